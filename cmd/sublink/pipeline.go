package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"

	"sublink/internal/builder"
	"sublink/internal/collectors"
	"sublink/internal/config"
	"sublink/internal/convert"
	"sublink/internal/geoip"
	"sublink/internal/logger"
	"sublink/internal/metrics"
	"sublink/internal/publishers"
	"sublink/internal/store"
)

// pipeline runs configured collectors once and renders builds from their
// combined links.
type pipeline struct {
	cfg    *config.Config
	store  store.Store
	report *metrics.Collector
	dedupe bool

	collectorParams map[string]string
	links           map[string][]string
}

func newPipeline(cfg *config.Config, st store.Store) *pipeline {
	return &pipeline{
		cfg:    cfg,
		store:  st,
		report: metrics.New(),
		dedupe: cfg.Builder.Dedupe,
		links:  make(map[string][]string),
	}
}

// collect runs every collector the given builds reference.
func (p *pipeline) collect(ctx context.Context, builds []config.BuildConfig) {
	var needed []config.CollectorConfig
	for _, cCfg := range p.cfg.Collectors {
		for _, b := range builds {
			if len(b.Collectors) == 0 || lo.Contains(b.Collectors, cCfg.Name) {
				needed = append(needed, cCfg)
				break
			}
		}
	}
	if len(needed) == 0 {
		logger.Log.Warn("No collectors matched the configured builds.")
		return
	}

	bar := progressbar.NewOptions(len(needed),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("[cyan]Collecting...[reset]"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	for _, cCfg := range needed {
		logger.Log.Debugf("🏃 Running collector: %s (%s)...", cCfg.Name, cCfg.Type)
		links, err := p.runCollector(ctx, cCfg)
		bar.Add(1)
		if err != nil {
			logger.Log.Errorf("Error running collector %s: %v", cCfg.Name, err)
			p.report.RecordFetchFailure(err)
			continue
		}
		p.links[cCfg.Name] = links
		logger.Log.Debugf("✅ Collector %s returned %d lines.", cCfg.Name, len(links))
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)
}

func (p *pipeline) runCollector(ctx context.Context, cCfg config.CollectorConfig) ([]string, error) {
	collector, err := collectors.Get(cCfg.Type)
	if err != nil {
		return nil, err
	}
	params := applyParams(lo.Assign(map[string]interface{}{}, cCfg.Params), p.collectorParams)
	if _, ok := params["user_agent"]; !ok {
		params["user_agent"] = p.cfg.Fetch.UserAgent
	}
	params["_timeout"] = p.cfg.Fetch.Timeout
	if p.cfg.Fetch.ProxyURL != "" {
		params["_proxy_url"] = p.cfg.Fetch.ProxyURL
	}
	return collector.Collect(ctx, params)
}

// build renders one configured build from the collected links.
func (p *pipeline) build(ctx context.Context, b config.BuildConfig) (publishers.Artifact, error) {
	var lines []string
	for _, cCfg := range p.cfg.Collectors {
		if len(b.Collectors) == 0 || lo.Contains(b.Collectors, cCfg.Name) {
			lines = append(lines, p.links[cCfg.Name]...)
		}
	}
	input := strings.Join(lines, "\n")

	opts := convert.Options{
		UserAgent: p.cfg.Fetch.UserAgent,
		Timeout:   p.cfg.Fetch.Timeout,
		ProxyURL:  p.cfg.Fetch.ProxyURL,
		Dedupe:    p.dedupe,
		Report:    p.report,
	}

	if b.Target == publishers.TargetLinks {
		nodes, _, err := convert.Resolve(ctx, input, opts)
		if err != nil {
			return publishers.Artifact{}, err
		}
		return publishers.Artifact{
			Name:        b.Name,
			Target:      publishers.TargetLinks,
			ContentType: "text/plain; charset=utf-8",
			Nodes:       nodes,
		}, nil
	}

	target, err := builder.ParseTarget(b.Target)
	if err != nil {
		return publishers.Artifact{}, err
	}
	out, _, err := convert.Run(ctx, p.store, convert.Request{
		Target:        target,
		Input:         input,
		SelectedRules: b.SelectedRules,
		CustomRules:   b.CustomRules,
		ConfigID:      b.ConfigID,
		Sources:       p.cfg.Rules.Sources,
		Regions:       geoip.Default(),
		Validate:      p.cfg.Builder.Validate,
		Options:       opts,
	})
	if err != nil {
		return publishers.Artifact{}, err
	}
	return publishers.Artifact{
		Name:        b.Name,
		Target:      string(target),
		ContentType: target.ContentType(),
		Data:        out,
	}, nil
}

// buildAll collects once and renders every build, skipping failures.
func (p *pipeline) buildAll(ctx context.Context, builds []config.BuildConfig) []publishers.Artifact {
	p.collect(ctx, builds)

	var artifacts []publishers.Artifact
	for _, b := range builds {
		a, err := p.build(ctx, b)
		if err != nil {
			logger.Log.Errorf("❌ Build %s failed: %v", b.Name, err)
			continue
		}
		logger.Log.Infof("🧱 Built %s (%s)", b.Name, a.Target)
		artifacts = append(artifacts, a)
	}
	return artifacts
}

// openStore opens the configured store when any build needs a base config.
func openStore(cfg *config.Config, builds []config.BuildConfig) store.Store {
	if !lo.SomeBy(builds, func(b config.BuildConfig) bool { return b.ConfigID != "" }) {
		return nil
	}
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		logger.Log.Fatalf("Error opening store: %v", err)
	}
	return st
}

func initGeoIP(cfg *config.Config) {
	if err := geoip.Init(cfg.GeoIP.CountryPath); err != nil {
		logger.Log.Debugf("GeoIP disabled: %v", err)
	}
}
