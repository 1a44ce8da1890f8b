package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sublink/internal/rules"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  listen: ":9000"
fetch:
  timeout: 5s
rules:
  sources:
    clash_site: "https://mirror.example/%s.mrs"
builds:
  - name: phone
    target: clash
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Listen != ":9000" || cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Fetch.Timeout != 5*time.Second || cfg.Fetch.UserAgent != "curl/7.74.0" {
		t.Errorf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
	if cfg.Rules.Sources.ClashSite != "https://mirror.example/%s.mrs" {
		t.Errorf("override lost: %q", cfg.Rules.Sources.ClashSite)
	}
	if cfg.Rules.Sources.SingboxSite != rules.DefaultSources.SingboxSite {
		t.Errorf("default source lost: %q", cfg.Rules.Sources.SingboxSite)
	}
	if b, ok := cfg.Build("phone"); !ok || b.SelectedRules != rules.DefaultPreset {
		t.Errorf("build = %+v, %v", b, ok)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("explicit missing file accepted")
	}
	if _, err := Load(writeConfig(t, "rules:\n  default_preset: everything\n")); err == nil {
		t.Error("unknown preset accepted")
	}
	if _, err := Load(writeConfig(t, "builds:\n  - target: clash\n")); err == nil {
		t.Error("unnamed build accepted")
	}
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("invalid yaml accepted")
	}
}

func TestLoadDefaultPathMayBeAbsent(t *testing.T) {
	wd, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Listen != ":7788" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
}

func TestFilters(t *testing.T) {
	cfg := &Config{
		Collectors: []CollectorConfig{{Name: "a"}, {Name: "b"}},
		Builds:     []BuildConfig{{Name: "x"}, {Name: "y"}},
		Publishers: []PublisherConfig{{Name: "p"}},
	}
	cfg.FilterCollectors([]string{"b"})
	cfg.FilterBuilds(nil)
	cfg.FilterPublishers([]string{"nope"})

	if len(cfg.Collectors) != 1 || cfg.Collectors[0].Name != "b" {
		t.Errorf("collectors = %+v", cfg.Collectors)
	}
	if len(cfg.Builds) != 2 {
		t.Errorf("empty filter should keep everything: %+v", cfg.Builds)
	}
	if len(cfg.Publishers) != 0 {
		t.Errorf("publishers = %+v", cfg.Publishers)
	}
}
