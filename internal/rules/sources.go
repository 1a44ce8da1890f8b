package rules

import "fmt"

// Sources holds the printf templates of the remote rule-set files each
// client downloads. %s is the geosite/geoip name.
type Sources struct {
	SingboxSite string `yaml:"singbox_site"`
	SingboxIP   string `yaml:"singbox_ip"`
	ClashSite   string `yaml:"clash_site"`
	ClashIP     string `yaml:"clash_ip"`
	SurgeSite   string `yaml:"surge_site"`
	SurgeIP     string `yaml:"surge_ip"`
}

var DefaultSources = Sources{
	SingboxSite: "https://raw.githubusercontent.com/lyc8503/sing-box-rules/rule-set-geosite/geosite-%s.srs",
	SingboxIP:   "https://raw.githubusercontent.com/lyc8503/sing-box-rules/rule-set-geoip/geoip-%s.srs",
	ClashSite:   "https://github.com/MetaCubeX/meta-rules-dat/raw/refs/heads/meta/geo/geosite/%s.mrs",
	ClashIP:     "https://github.com/MetaCubeX/meta-rules-dat/raw/refs/heads/meta/geo/geoip/%s.mrs",
	SurgeSite:   "https://github.com/NSZA156/surge-geox-rules/raw/refs/heads/release/geo/geosite/%s.txt",
	SurgeIP:     "https://github.com/NSZA156/surge-geox-rules/raw/refs/heads/release/geo/geoip/%s.txt",
}

// WithDefaults fills empty templates from DefaultSources.
func (s Sources) WithDefaults() Sources {
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.SingboxSite, DefaultSources.SingboxSite)
	fill(&s.SingboxIP, DefaultSources.SingboxIP)
	fill(&s.ClashSite, DefaultSources.ClashSite)
	fill(&s.ClashIP, DefaultSources.ClashIP)
	fill(&s.SurgeSite, DefaultSources.SurgeSite)
	fill(&s.SurgeIP, DefaultSources.SurgeIP)
	return s
}

func SiteTag(name string) string { return "geosite-" + name }
func IPTag(name string) string   { return "geoip-" + name }

func format(tmpl, name string) string { return fmt.Sprintf(tmpl, name) }

func (s Sources) SingboxSiteURL(name string) string { return format(s.SingboxSite, name) }
func (s Sources) SingboxIPURL(name string) string   { return format(s.SingboxIP, name) }
func (s Sources) ClashSiteURL(name string) string   { return format(s.ClashSite, name) }
func (s Sources) ClashIPURL(name string) string     { return format(s.ClashIP, name) }
func (s Sources) SurgeSiteURL(name string) string   { return format(s.SurgeSite, name) }
func (s Sources) SurgeIPURL(name string) string     { return format(s.SurgeIP, name) }
