package rules

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// Policy decides the default ordering of a category group's members.
type Policy int

const (
	PolicyProxy Policy = iota
	PolicyDirect
	PolicyReject
)

// Category is one predefined rule set: geosite/geoip lists routed to a
// named selection group.
type Category struct {
	Name      string
	Outbound  string
	SiteRules []string
	IPRules   []string
	Policy    Policy

	// Strategy and Params pick the nodes allowed in the group
	// (see internal/categories).
	Strategy string
	Params   map[string]interface{}
}

var registry = []Category{
	{Name: "Ad Block", Outbound: "🛑 Ad Block", SiteRules: []string{"category-ads-all"}, Policy: PolicyReject},
	{Name: "AI Services", Outbound: "💬 AI Services", SiteRules: []string{"category-ai-!cn"}},
	{Name: "Bilibili", Outbound: "📺 Bilibili", SiteRules: []string{"bilibili"}, Policy: PolicyDirect},
	{Name: "Youtube", Outbound: "📹 Youtube", SiteRules: []string{"youtube"}},
	{Name: "Google", Outbound: "🔍 Google", SiteRules: []string{"google"}, IPRules: []string{"google"}},
	{Name: "Private", Outbound: "🏠 Private", IPRules: []string{"private"}, Policy: PolicyDirect},
	{Name: "Location:CN", Outbound: "🔒 Location:CN", SiteRules: []string{"geolocation-cn"}, IPRules: []string{"cn"}, Policy: PolicyDirect},
	{Name: "Telegram", Outbound: "📲 Telegram", IPRules: []string{"telegram"}},
	{Name: "Github", Outbound: "🐱 Github", SiteRules: []string{"github", "gitlab"}},
	{Name: "Microsoft", Outbound: "Ⓜ️ Microsoft", SiteRules: []string{"microsoft"}},
	{Name: "Apple", Outbound: "🍏 Apple", SiteRules: []string{"apple"}},
	{Name: "Social Media", Outbound: "🌐 Social Media", SiteRules: []string{"facebook", "instagram", "twitter", "tiktok", "linkedin"}},
	{Name: "Streaming", Outbound: "🎬 Streaming", SiteRules: []string{"netflix", "hulu", "disney", "hbo", "amazon", "bahamut"}},
	{
		Name: "Gaming", Outbound: "🎮 Gaming",
		SiteRules: []string{"steam", "epicgames", "ea", "ubisoft", "blizzard"},
		Params:    map[string]interface{}{"require_udp": true},
	},
	{Name: "Education", Outbound: "📚 Education", SiteRules: []string{"coursera", "edx", "udemy", "khanacademy", "category-scholar-!cn"}},
	{Name: "Financial", Outbound: "💰 Financial", SiteRules: []string{"paypal", "visa", "mastercard", "stripe", "wise"}},
	{Name: "Cloud Services", Outbound: "☁️ Cloud Services", SiteRules: []string{"aws", "azure", "digitalocean", "heroku", "dropbox"}},
	{Name: "Non-China", Outbound: "🌍 Non-China", SiteRules: []string{"geolocation-!cn"}},
}

var presets = map[string][]string{
	"minimal":  {"Location:CN", "Private", "Non-China"},
	"balanced": {"Location:CN", "Private", "Non-China", "Github", "Google", "Youtube", "AI Services", "Telegram"},
}

// DefaultPreset is used when the caller selects nothing.
const DefaultPreset = "minimal"

func init() {
	presets["comprehensive"] = lo.Map(registry, func(c Category, _ int) string { return c.Name })
}

// All returns every category in registry order.
func All() []Category {
	return append([]Category(nil), registry...)
}

// Lookup finds a category by name.
func Lookup(name string) (Category, bool) {
	return lo.Find(registry, func(c Category) bool { return c.Name == name })
}

// Preset returns the category names of a predefined rule set.
func Preset(name string) ([]string, bool) {
	names, ok := presets[name]
	return names, ok
}

// PresetNames lists the predefined rule sets.
func PresetNames() []string {
	return []string{"minimal", "balanced", "comprehensive"}
}

// Resolve turns a caller selection into categories. The selection is either
// a preset name or a JSON array of category names; empty means the default
// preset. Output follows registry order, which is the rule evaluation order.
func Resolve(selection string) ([]Category, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		selection = DefaultPreset
	}

	names, ok := Preset(selection)
	if !ok {
		raw := selection
		if strings.Contains(raw, "%") {
			if d, err := url.QueryUnescape(raw); err == nil {
				raw = d
			}
		}
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("invalid rule selection %q: %w", truncate(selection, 40), err)
		}
	}

	unknown := lo.Filter(names, func(n string, _ int) bool {
		_, found := Lookup(n)
		return !found
	})
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown rule categories: %s", strings.Join(unknown, ", "))
	}

	return lo.Filter(registry, func(c Category, _ int) bool {
		return lo.Contains(names, c.Name)
	}), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
