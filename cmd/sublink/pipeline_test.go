package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sublink/internal/config"
	"sublink/internal/publishers"
)

func TestPipelineBuildsFromFileCollector(t *testing.T) {
	dir := t.TempDir()
	links := filepath.Join(dir, "links.txt")
	body := "ss://YWVzLTEyOC1nY206cGFzcw@1.2.3.4:8388#SS\n" +
		"trojan://pw@trojan.example.com:443?sni=trojan.example.com#T\n"
	if err := os.WriteFile(links, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Collectors = []config.CollectorConfig{
		{Name: "local", Type: "file", Params: map[string]interface{}{"path": links}},
		{Name: "unused", Type: "file", Params: map[string]interface{}{"path": filepath.Join(dir, "nope")}},
	}
	cfg.Builds = []config.BuildConfig{
		{Name: "phone", Target: "clash", Collectors: []string{"local"}},
		{Name: "raw", Target: publishers.TargetLinks, Collectors: []string{"local"}},
		{Name: "broken", Target: "quantumult", Collectors: []string{"local"}},
	}

	p := newPipeline(cfg, nil)
	artifacts := p.buildAll(context.Background(), cfg.Builds)
	if len(artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(artifacts))
	}
	if _, ran := p.links["unused"]; ran {
		t.Error("collector not referenced by any build should not run")
	}

	clash := artifacts[0]
	if clash.Name != "phone" || clash.Target != "clash" || !strings.Contains(string(clash.Data), "name: T") {
		t.Errorf("unexpected clash artifact %s/%s:\n%s", clash.Name, clash.Target, clash.Data)
	}
	if raw := artifacts[1]; len(raw.Nodes) != 2 {
		t.Errorf("links artifact has %d nodes", len(raw.Nodes))
	}
	if p.report.Nodes() != 4 {
		t.Errorf("report counted %d nodes, want 4", p.report.Nodes())
	}
}

func TestApplyParams(t *testing.T) {
	got := applyParams(nil, map[string]string{"retries": "3", "dir": "out"})
	if got["retries"] != 3 || got["dir"] != "out" {
		t.Errorf("applyParams = %v", got)
	}
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{512: "512 B", 2048: "2.0 KB", 5 << 20: "5.0 MB"}
	for in, want := range cases {
		if got := formatBytes(in); got != want {
			t.Errorf("formatBytes(%d) = %s, want %s", in, got, want)
		}
	}
}
