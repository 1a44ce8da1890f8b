package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"sublink/internal/rules"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "config.yaml"

type Config struct {
	Server     ServerConfig      `yaml:"server"`
	Store      StoreConfig       `yaml:"store"`
	Fetch      FetchConfig       `yaml:"fetch"`
	Rules      RulesConfig       `yaml:"rules"`
	GeoIP      GeoIPConfig       `yaml:"geoip"`
	Builder    BuilderConfig     `yaml:"builder"`
	Collectors []CollectorConfig `yaml:"collectors"`
	Builds     []BuildConfig     `yaml:"builds"`
	Publishers []PublisherConfig `yaml:"publishers"`
}

type ServerConfig struct {
	Listen string `yaml:"listen"`
	// BaseURL overrides the scheme://host used in short links and Surge
	// managed-config headers (useful behind a reverse proxy).
	BaseURL      string        `yaml:"base_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Metrics      bool          `yaml:"metrics"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite or bolt
	Path   string `yaml:"path"`
}

type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	ProxyURL  string        `yaml:"proxy_url"`
}

type RulesConfig struct {
	DefaultPreset string        `yaml:"default_preset"`
	Sources       rules.Sources `yaml:"sources"`
}

type GeoIPConfig struct {
	CountryPath string `yaml:"country_path"`
}

type BuilderConfig struct {
	// Validate runs sing-box's option parser over every sing-box build.
	Validate bool `yaml:"validate"`
	Dedupe   bool `yaml:"dedupe"`
}

type CollectorConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Params map[string]interface{} `yaml:"params"`
}

// BuildConfig is one named artifact produced by `sublink build`.
type BuildConfig struct {
	Name          string   `yaml:"name"`
	Target        string   `yaml:"target"` // singbox, clash, surge, xray or links
	SelectedRules string   `yaml:"selected_rules"`
	CustomRules   string   `yaml:"custom_rules"`
	ConfigID      string   `yaml:"config_id"`
	Collectors    []string `yaml:"collectors"` // empty means all
}

type PublisherConfig struct {
	Name   string                 `yaml:"name"`
	Type   string                 `yaml:"type"`
	Builds []string               `yaml:"builds"`
	Params map[string]interface{} `yaml:"params"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Listen = ":7788"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Server.Metrics = true
	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "sublink.db"
	cfg.Fetch.Timeout = 30 * time.Second
	cfg.Fetch.UserAgent = "curl/7.74.0"
	cfg.Rules.DefaultPreset = rules.DefaultPreset
	cfg.Rules.Sources = rules.DefaultSources
	cfg.GeoIP.CountryPath = "GeoLite2-Country.mmdb"
	return &cfg
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	cfg.Rules.Sources = cfg.Rules.Sources.WithDefaults()
	if _, ok := rules.Preset(cfg.Rules.DefaultPreset); !ok {
		return nil, fmt.Errorf("unknown default_preset %q", cfg.Rules.DefaultPreset)
	}
	for i, b := range cfg.Builds {
		if b.Name == "" {
			return nil, fmt.Errorf("builds[%d] has no name", i)
		}
		if cfg.Builds[i].SelectedRules == "" {
			cfg.Builds[i].SelectedRules = cfg.Rules.DefaultPreset
		}
	}

	return cfg, nil
}

func (c *Config) FilterCollectors(names []string) {
	c.Collectors = filter(c.Collectors, names, func(item CollectorConfig) string { return item.Name })
}

func (c *Config) FilterPublishers(names []string) {
	c.Publishers = filter(c.Publishers, names, func(item PublisherConfig) string { return item.Name })
}

func (c *Config) FilterBuilds(names []string) {
	c.Builds = filter(c.Builds, names, func(item BuildConfig) string { return item.Name })
}

// Build looks up a build by name.
func (c *Config) Build(name string) (BuildConfig, bool) {
	for _, b := range c.Builds {
		if b.Name == name {
			return b, true
		}
	}
	return BuildConfig{}, false
}

func filter[T any](items []T, names []string, name func(T) string) []T {
	if len(names) == 0 {
		return items
	}
	whitelist := make(map[string]bool)
	for _, n := range names {
		whitelist[n] = true
	}
	var filtered []T
	for _, item := range items {
		if whitelist[name(item)] {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
