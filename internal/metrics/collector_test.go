package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"sublink/internal/model"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestFetchErrorType(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("fetch: %w", timeoutErr{}), "Timeout"},
		{context.DeadlineExceeded, "Timeout"},
		{errors.New("dial tcp: connection refused"), "Conn Refused"},
		{errors.New("read: connection reset by peer"), "Conn Reset"},
		{errors.New("unexpected EOF"), "EOF / Empty"},
		{errors.New("lookup x: no such host"), "DNS Error"},
		{errors.New("non-2xx status code: 404"), "HTTP Status"},
		{errors.New("weird"), "Unknown"},
	}
	for _, tc := range cases {
		if got := FetchErrorType(tc.err); got != tc.want {
			t.Errorf("FetchErrorType(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestCollectorReport(t *testing.T) {
	c := New()
	c.RecordNode(model.Trojan)
	c.RecordNode(model.Trojan)
	c.RecordNode(model.VLESS)
	c.RecordDuplicate()
	c.RecordSubscription()
	c.RecordParseFailure("unsupported_scheme")
	c.RecordFetchFailure(timeoutErr{})

	if c.Nodes() != 3 {
		t.Fatalf("Nodes = %d", c.Nodes())
	}

	var buf bytes.Buffer
	c.PrintReport(&buf)
	out := buf.String()
	for _, want := range []string{"BUILD REPORT", "trojan:", "Duplicates dropped:", "unsupported_scheme:", "Timeout:", "Most failures are timeouts"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordNode(model.VMess)
	c.RecordDuplicate()
	c.RecordSubscription()
	c.RecordParseFailure("x")
	c.RecordFetchFailure(errors.New("x"))
}
