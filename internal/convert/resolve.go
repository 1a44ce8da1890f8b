package convert

import (
	"context"
	"errors"
	"strings"
	"time"

	"sublink/internal/collectors"
	_ "sublink/internal/collectors/http"
	"sublink/internal/logger"
	"sublink/internal/metrics"
	"sublink/internal/model"
	"sublink/internal/parser"
)

// Options control how input links and subscriptions are resolved.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	ProxyURL  string
	// Dedupe drops nodes whose Hash was already seen.
	Dedupe bool
	// Report, when set, receives per-link outcomes.
	Report *metrics.Collector
}

// Stats summarises one Resolve call.
type Stats struct {
	Lines         int
	Nodes         int
	Subscriptions int
	ParseFailures int
	FetchFailures int
	Duplicates    int
}

// Resolve turns user input (share links, subscription URLs, or a whole
// base64 subscription body) into nodes. Bad links and failed fetches are
// logged and skipped; only cancellation is an error.
func Resolve(ctx context.Context, input string, opts Options) ([]model.Node, Stats, error) {
	var stats Stats
	input = strings.TrimSpace(input)
	if !strings.Contains(input, "://") {
		if decoded, err := parser.DecodeBase64(input); err == nil && strings.Contains(decoded, "://") {
			input = decoded
		}
	}

	var nodes []model.Node
	seen := make(map[string]bool)
	add := func(n *model.Node) {
		if opts.Dedupe {
			h := n.Hash()
			if seen[h] {
				stats.Duplicates++
				opts.Report.RecordDuplicate()
				return
			}
			seen[h] = true
		}
		nodes = append(nodes, *n)
		stats.Nodes++
		opts.Report.RecordNode(n.Type)
		metrics.LinksTotal.WithLabelValues(string(n.Type), "ok").Inc()
	}

	for _, line := range parser.SplitLines(input) {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		stats.Lines++

		res, err := parser.Parse(line)
		if err != nil {
			recordParseFailure(&stats, opts, err)
			continue
		}
		if res.Node != nil {
			add(res.Node)
			continue
		}

		links, err := fetch(ctx, res.Subscription, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			stats.FetchFailures++
			opts.Report.RecordFetchFailure(err)
			metrics.FetchesTotal.WithLabelValues("error").Inc()
			logger.Log.Warnf("⚠️ Subscription failed: %v", err)
			continue
		}
		stats.Subscriptions++
		opts.Report.RecordSubscription()
		metrics.FetchesTotal.WithLabelValues("ok").Inc()

		for _, link := range links {
			res, err := parser.Parse(link)
			if err != nil {
				recordParseFailure(&stats, opts, err)
				continue
			}
			if res.Node == nil {
				// subscriptions are followed one level deep
				logger.Log.Debugf("Ignoring nested subscription %s", res.Subscription)
				continue
			}
			add(res.Node)
		}
	}

	logger.Log.Debugf("Resolved %d nodes from %d lines (%d parse failures, %d fetch failures)",
		stats.Nodes, stats.Lines, stats.ParseFailures, stats.FetchFailures)
	return nodes, stats, nil
}

func fetch(ctx context.Context, url string, opts Options) ([]string, error) {
	c, err := collectors.Get("http")
	if err != nil {
		return nil, err
	}
	return c.Collect(ctx, map[string]interface{}{
		"url":        url,
		"user_agent": opts.UserAgent,
		"_timeout":   opts.Timeout,
		"_proxy_url": opts.ProxyURL,
	})
}

func recordParseFailure(stats *Stats, opts Options, err error) {
	stats.ParseFailures++
	kind := "malformed"
	if errors.Is(err, parser.ErrUnsupportedScheme) {
		kind = "unsupported scheme"
	}
	opts.Report.RecordParseFailure(kind)
	metrics.LinksTotal.WithLabelValues(failureProtocol(err), "error").Inc()
	logger.Log.Warnf("⚠️ Skipping link: %v", err)
}

// failureProtocol is the protocol label of a failed link. Schemes come from
// client input, so only known protocols are used verbatim.
func failureProtocol(err error) string {
	if errors.Is(err, parser.ErrUnsupportedScheme) {
		return "unsupported"
	}
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		if p, ok := parser.ProtocolOf(pe.Scheme); ok {
			return string(p)
		}
	}
	return "unknown"
}
