package metrics

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"sublink/internal/model"
)

// Collector accumulates a human-readable report of one build run.
type Collector struct {
	mu sync.Mutex

	nodesByProtocol map[model.Protocol]int
	totalNodes      int
	duplicates      int

	parseErrors map[string]int
	totalParse  int

	fetchErrors   map[string]int
	totalFetch    int
	timeoutErrors int
	subscriptions int
}

func New() *Collector {
	return &Collector{
		nodesByProtocol: make(map[model.Protocol]int),
		parseErrors:     make(map[string]int),
		fetchErrors:     make(map[string]int),
	}
}

func (c *Collector) RecordNode(p model.Protocol) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodesByProtocol[p]++
	c.totalNodes++
}

func (c *Collector) RecordDuplicate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duplicates++
}

func (c *Collector) RecordSubscription() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions++
}

// RecordParseFailure groups failures by the error's category label.
func (c *Collector) RecordParseFailure(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parseErrors[kind]++
	c.totalParse++
}

func (c *Collector) RecordFetchFailure(err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalFetch++
	errType := FetchErrorType(err)
	if errType == "Timeout" {
		c.timeoutErrors++
	}
	c.fetchErrors[errType]++
}

type timeouter interface{ Timeout() bool }

// FetchErrorType buckets a fetch error for reporting.
func FetchErrorType(err error) string {
	var t timeouter
	if errors.As(err, &t) && t.Timeout() {
		return "Timeout"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return "Timeout"
	case strings.Contains(msg, "refused"):
		return "Conn Refused"
	case strings.Contains(msg, "reset"):
		return "Conn Reset"
	case strings.Contains(msg, "EOF"):
		return "EOF / Empty"
	case strings.Contains(msg, "no such host"):
		return "DNS Error"
	case strings.Contains(msg, "status"):
		return "HTTP Status"
	}
	return "Unknown"
}

// Nodes returns the number of nodes recorded.
func (c *Collector) Nodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalNodes
}

func (c *Collector) PrintReport(out io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\n📊 \033[1mBUILD REPORT\033[0m")
	fmt.Fprintln(w, "────────────────────────────────────────")

	fmt.Fprintln(w, "\033[1;36m[ NODES ]\033[0m")
	fmt.Fprintf(w, "  Total:\t%d\n", c.totalNodes)
	for _, p := range model.Protocols {
		if n := c.nodesByProtocol[p]; n > 0 {
			fmt.Fprintf(w, "  %s:\t%d (%.1f%%)\n", p, n, float64(n)/float64(c.totalNodes)*100)
		}
	}
	if c.duplicates > 0 {
		fmt.Fprintf(w, "  Duplicates dropped:\t%d\n", c.duplicates)
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "\033[1;36m[ PARSE FAILURES ]\033[0m")
	fmt.Fprintf(w, "  Total:\t%d\n", c.totalParse)
	for _, k := range sortedKeys(c.parseErrors) {
		fmt.Fprintf(w, "  %s:\t%d\n", k, c.parseErrors[k])
	}
	fmt.Fprintln(w, "")

	fmt.Fprintln(w, "\033[1;36m[ SUBSCRIPTIONS ]\033[0m")
	fmt.Fprintf(w, "  Fetched:\t%d\n", c.subscriptions)
	fmt.Fprintf(w, "  Failed:\t%d\n", c.totalFetch)
	for _, k := range sortedKeys(c.fetchErrors) {
		fmt.Fprintf(w, "  %s:\t%d\n", k, c.fetchErrors[k])
	}
	if c.totalFetch > 0 && c.timeoutErrors*10 > c.totalFetch*7 {
		fmt.Fprintln(w, "  ⚠️  Most failures are timeouts. 💡 Raise 'fetch.timeout' or set 'fetch.proxy_url'.")
	}

	w.Flush()
	fmt.Fprintln(out, "")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
