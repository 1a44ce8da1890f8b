package convert

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"sublink/internal/builder"
	"sublink/internal/metrics"
	"sublink/internal/parser"
	"sublink/internal/store"
)

const (
	ssLink      = "ss://YWVzLTEyOC1nY206cGFzcw@1.2.3.4:8388#SS"
	trojanLink  = "trojan://pw@trojan.example.com:443?sni=trojan.example.com#T"
	trojanLink2 = "trojan://pw2@other.example.com:443#U"
)

func subscriptionServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(body))))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveMixedInput(t *testing.T) {
	srv := subscriptionServer(t, trojanLink+"\n"+trojanLink2+"\nnot-a-link\n"+nestedSubscription()+"\n")
	input := strings.Join([]string{
		ssLink,
		"wireguard://nope@1.1.1.1:51820",
		srv.URL + "/sub",
		srv.URL + "/missing",
		"",
	}, "\n")

	report := metrics.New()
	nodes, stats, err := Resolve(context.Background(), input, Options{Report: report})
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 3 || stats.Nodes != 3 {
		t.Fatalf("nodes = %d (%+v)", len(nodes), stats)
	}
	if stats.Lines != 4 || stats.Subscriptions != 1 || stats.FetchFailures != 1 || stats.ParseFailures != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if nodes[0].Tag != "SS" || nodes[1].Tag != "T" || nodes[2].Tag != "U" {
		t.Errorf("order not preserved: %s %s %s", nodes[0].Tag, nodes[1].Tag, nodes[2].Tag)
	}
	if report.Nodes() != 3 {
		t.Errorf("report nodes = %d", report.Nodes())
	}
}

// nested subscriptions are not followed
func nestedSubscription() string { return "https://nested.invalid/sub" }

func TestResolveWholeInputBase64(t *testing.T) {
	input := base64.StdEncoding.EncodeToString([]byte(ssLink + "\n" + trojanLink))
	nodes, _, err := Resolve(context.Background(), input, Options{})
	if err != nil || len(nodes) != 2 {
		t.Fatalf("nodes = %v, err = %v", nodes, err)
	}
}

func TestResolveDedupe(t *testing.T) {
	input := ssLink + "\n" + strings.Replace(ssLink, "#SS", "#Other", 1) + "\n" + trojanLink
	nodes, stats, err := Resolve(context.Background(), input, Options{Dedupe: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || stats.Duplicates != 1 {
		t.Fatalf("nodes = %d, stats = %+v", len(nodes), stats)
	}

	nodes, _, _ = Resolve(context.Background(), input, Options{})
	if len(nodes) != 3 {
		t.Fatalf("without dedupe want 3 nodes, got %d", len(nodes))
	}
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Resolve(ctx, ssLink, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestFailureProtocolIsBounded(t *testing.T) {
	cases := []struct{ link, want string }{
		{"abc123://x", "unsupported"},
		{"zzz-" + strings.Repeat("q", 40) + "://", "unsupported"},
		{"no scheme at all", "unsupported"},
		{"hy2://@:0", "hysteria2"},
		{"SOCKS://host", "socks5"},
		{"vless://uuid@h.example:443?security=reality", "vless"},
	}
	for _, tc := range cases {
		_, err := parser.Parse(tc.link)
		if err == nil {
			t.Fatalf("%q: expected an error", tc.link)
		}
		if got := failureProtocol(err); got != tc.want {
			t.Errorf("%q: label = %q, want %q", tc.link, got, tc.want)
		}
	}
	if got := failureProtocol(errors.New("boom")); got != "unknown" {
		t.Errorf("plain error label = %q", got)
	}
}

func TestRunClash(t *testing.T) {
	out, stats, err := Run(context.Background(), nil, Request{
		Target:        builder.TargetClash,
		Input:         ssLink + "\n" + trojanLink,
		SelectedRules: "balanced",
		CustomRules:   `[{"name":"Corp","domain_suffix":"corp.example"}]`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Nodes != 2 {
		t.Errorf("stats = %+v", stats)
	}
	var doc struct {
		Rules []string `yaml:"rules"`
	}
	if err := yaml.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Rules[0] != "DOMAIN-SUFFIX,corp.example,Corp" {
		t.Errorf("first rule = %q", doc.Rules[0])
	}
}

func TestRunFormatErrors(t *testing.T) {
	cases := map[string]Request{
		"rules":        {Target: builder.TargetSingbox, Input: ssLink, SelectedRules: `["Nope"]`},
		"custom rules": {Target: builder.TargetSingbox, Input: ssLink, CustomRules: `{not json`},
		"target":       {Target: "quantumult", Input: ssLink},
	}
	for stage, req := range cases {
		_, _, err := Run(context.Background(), nil, req)
		var be *builder.BuildError
		if !errors.As(err, &be) || be.Stage != stage {
			t.Errorf("%s: want BuildError at %s, got %v", stage, stage, err)
		}
	}
}

func TestRunNoNodes(t *testing.T) {
	_, _, err := Run(context.Background(), nil, Request{Target: builder.TargetSurge, Input: "garbage"})
	if !errors.Is(err, builder.ErrNoNodes) {
		t.Fatalf("want ErrNoNodes, got %v", err)
	}
}

func TestRunWithStoredBaseConfig(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenBolt(filepath.Join(t.TempDir(), "kv.bolt"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	id, err := store.SaveBaseConfig(ctx, st, "clash", "mixed-port: 7777\nrules:\n  - DOMAIN,a.example,DIRECT\n")
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := Run(ctx, st, Request{Target: builder.TargetClash, Input: ssLink, ConfigID: id})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "mixed-port: 7777") || !strings.Contains(string(out), "DOMAIN,a.example,DIRECT") {
		t.Errorf("base config not applied:\n%s", out)
	}

	// a clash base config cannot seed a sing-box build
	_, _, err = Run(ctx, st, Request{Target: builder.TargetSingbox, Input: ssLink, ConfigID: id})
	var be *builder.BuildError
	if !errors.As(err, &be) || be.Stage != "base config" {
		t.Errorf("want base config BuildError, got %v", err)
	}

	// unknown ids fall back to the skeleton
	if _, _, err := Run(ctx, st, Request{Target: builder.TargetClash, Input: ssLink, ConfigID: "clash_gone"}); err != nil {
		t.Errorf("missing base config should not fail: %v", err)
	}
}
