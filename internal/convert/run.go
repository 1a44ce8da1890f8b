package convert

import (
	"context"
	"fmt"
	"time"

	"sublink/internal/builder"
	"sublink/internal/logger"
	"sublink/internal/metrics"
	"sublink/internal/rules"
	"sublink/internal/store"
)

// Request is one end-to-end conversion.
type Request struct {
	Target builder.Target
	Input  string

	// SelectedRules is a preset name or a JSON list of category names.
	SelectedRules string
	// CustomRules is a JSON array of custom rules.
	CustomRules string
	// ConfigID names a stored base config.
	ConfigID string

	SubscriptionURL string
	Sources         rules.Sources
	Regions         builder.RegionLookup
	Validate        bool

	Options Options
}

// Run resolves the input, applies rules and the stored base config, and
// renders the target config. st may be nil when no base config is used.
func Run(ctx context.Context, st store.Store, req Request) (out []byte, stats Stats, err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.BuildsTotal.WithLabelValues(string(req.Target), result).Inc()
		metrics.BuildSeconds.WithLabelValues(string(req.Target)).Observe(time.Since(start).Seconds())
	}()

	b, err := builder.Get(req.Target)
	if err != nil {
		return nil, stats, &builder.BuildError{Target: req.Target, Stage: "target", Err: err}
	}

	selection := req.SelectedRules
	if selection == "" {
		selection = rules.DefaultPreset
	}
	categories, err := rules.Resolve(selection)
	if err != nil {
		return nil, stats, &builder.BuildError{Target: req.Target, Stage: "rules", Err: err}
	}
	custom, err := rules.ParseCustomRules(req.CustomRules)
	if err != nil {
		return nil, stats, &builder.BuildError{Target: req.Target, Stage: "custom rules", Err: err}
	}

	base, err := loadBase(ctx, st, req)
	if err != nil {
		return nil, stats, err
	}

	nodes, stats, err := Resolve(ctx, req.Input, req.Options)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to resolve input: %w", err)
	}

	out, err = b.Build(ctx, &builder.Request{
		Nodes:           nodes,
		Categories:      categories,
		CustomRules:     custom,
		BaseConfig:      base,
		SubscriptionURL: req.SubscriptionURL,
		Sources:         req.Sources,
		Regions:         req.Regions,
		Validate:        req.Validate,
	})
	return out, stats, err
}

func loadBase(ctx context.Context, st store.Store, req Request) (map[string]interface{}, error) {
	if req.ConfigID == "" || st == nil {
		return nil, nil
	}
	if t, ok := store.BaseConfigTarget(req.ConfigID); ok && t != req.Target {
		return nil, &builder.BuildError{
			Target: req.Target,
			Stage:  "base config",
			Err:    fmt.Errorf("config %s is a %s config", req.ConfigID, t),
		}
	}
	doc, ok, err := store.LoadBaseConfig(ctx, st, req.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}
	if !ok {
		logger.Log.Warnf("⚠️ Base config %s not found, using defaults", req.ConfigID)
		return nil, nil
	}
	return doc, nil
}
