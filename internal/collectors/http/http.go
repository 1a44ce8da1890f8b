package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sublink/internal/collectors"
	"sublink/internal/logger"
	"sublink/internal/parser"
)

// DefaultUserAgent is sent when the caller does not choose one; subscription
// servers pick their output format from it.
const DefaultUserAgent = "curl/7.74.0"

const maxBodyBytes = 16 << 20

// FetchError reports a failed subscription download.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: non-2xx status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// bodyStrategy turns a subscription body into link text; ok=false passes to
// the next strategy.
type bodyStrategy func(body string) (text string, ok bool)

var bodyStrategies = []bodyStrategy{
	func(body string) (string, bool) {
		decoded, err := parser.DecodeBase64(body)
		return decoded, err == nil
	},
	func(body string) (string, bool) {
		return body, true
	},
}

// DecodeBody applies the body strategies and the percent-decode fallback.
func DecodeBody(body string) string {
	for _, strategy := range bodyStrategies {
		text, ok := strategy(body)
		if !ok {
			continue
		}
		if strings.Contains(text, "%") {
			text = parser.PercentDecode(text)
		}
		return text
	}
	return body
}

// Fetch downloads a subscription and expands it into one link per line.
// No retries are attempted.
func Fetch(ctx context.Context, client *http.Client, targetURL, userAgent string) ([]string, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	logger.Log.Debugf("Fetching subscription: %s (UA %q)", targetURL, userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: targetURL, StatusCode: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: targetURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return parser.SplitLines(DecodeBody(string(bodyBytes))), nil
}

type URLCollector struct{}

func (c *URLCollector) Collect(ctx context.Context, config map[string]interface{}) ([]string, error) {
	// 1. Get URL
	targetURL, _ := config["url"].(string)
	if targetURL == "" {
		return nil, fmt.Errorf("missing 'url' in collector config")
	}
	userAgent, _ := config["user_agent"].(string)

	// 2. Setup Client
	timeout := 30 * time.Second
	if t, ok := config["_timeout"].(time.Duration); ok && t > 0 {
		timeout = t
	}
	client := &http.Client{Timeout: timeout}

	// 3. Optional upstream proxy
	if proxyStr, ok := config["_proxy_url"].(string); ok && proxyStr != "" {
		if pURL, err := url.Parse(proxyStr); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(pURL)}
			logger.Log.Debugf("HTTP Collector using proxy: %s", proxyStr)
		}
	}

	return Fetch(ctx, client, targetURL, userAgent)
}

func init() {
	collectors.Register("http", func() collectors.Collector {
		return &URLCollector{}
	})
}
