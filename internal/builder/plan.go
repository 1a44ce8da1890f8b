package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"sublink/internal/categories"
	_ "sublink/internal/categories/strategies"
	"sublink/internal/geoip"
	"sublink/internal/model"
	"sublink/internal/rules"
)

const (
	GroupAuto     = "⚡ Auto Select"
	GroupSelect   = "🚀 Node Select"
	GroupFallback = "🐟 Fall Back"

	OutboundDirect = "DIRECT"
	OutboundReject = "REJECT"
)

type GroupKind int

const (
	GroupSelector GroupKind = iota
	GroupURLTest
)

// Group is a target-neutral selection group.
type Group struct {
	Name    string
	Kind    GroupKind
	Members []string
}

// Proxy is a node with its collision-free output name.
type Proxy struct {
	Name string
	Node model.Node
}

type RuleKind int

const (
	RuleSite RuleKind = iota
	RuleIP
	RuleDomainSuffix
	RuleDomainKeyword
	RuleIPCIDR
	RuleProtocol
)

// Rule is one routing entry; rules are evaluated in slice order.
type Rule struct {
	Kind     RuleKind
	Values   []string
	Outbound string
}

// plan is the naming, grouping and rule ordering shared by every target.
type plan struct {
	Proxies []Proxy
	Groups  []Group
	Rules   []Rule
	Final   string

	used map[string]bool
}

type planOptions struct {
	// reserved names may not be used for proxies (base config tags)
	reserved []string
	// sanitize rewrites tags the target cannot represent
	sanitize func(string) string
	// skip drops nodes the target does not support
	skip func(model.Node) bool
}

// newPlan fails when a custom rule would reuse the name of another group or
// outbound.
func newPlan(req *Request, opts planOptions) (*plan, error) {
	if err := checkCustomNames(req, opts.reserved); err != nil {
		return nil, err
	}
	p := &plan{Final: GroupFallback}

	nodes := req.Nodes
	if opts.skip != nil {
		nodes = lo.Filter(nodes, func(n model.Node, _ int) bool { return !opts.skip(n) })
	}

	used := map[string]bool{
		GroupAuto: true, GroupSelect: true, GroupFallback: true,
		OutboundDirect: true, OutboundReject: true,
	}
	for _, c := range req.Categories {
		used[c.Outbound] = true
	}
	for _, r := range req.CustomRules {
		used[r.Outbound()] = true
	}
	for _, name := range opts.reserved {
		used[name] = true
	}

	for _, n := range nodes {
		base := strings.TrimSpace(n.Tag)
		if opts.sanitize != nil {
			base = opts.sanitize(base)
		}
		if base == "" {
			base = n.Server
		}
		name := base
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s %d", base, i)
		}
		used[name] = true
		p.Proxies = append(p.Proxies, Proxy{Name: name, Node: n})
	}

	p.used = used
	all := p.names(func(model.Node) bool { return true })
	regions := p.regionGroups(req.Regions)
	regionNames := lo.Map(regions, func(g Group, _ int) string { return g.Name })

	p.Groups = append(p.Groups,
		Group{Name: GroupAuto, Kind: GroupURLTest, Members: all},
		Group{Name: GroupSelect, Kind: GroupSelector, Members: concat([]string{GroupAuto}, regionNames, all)},
	)

	for _, c := range req.Categories {
		c := c
		eligible := p.names(func(n model.Node) bool {
			return categories.Accepts(c.Strategy, c.Params, n)
		})
		var members []string
		switch c.Policy {
		case rules.PolicyReject:
			members = []string{OutboundReject, OutboundDirect, GroupSelect}
		case rules.PolicyDirect:
			members = concat([]string{OutboundDirect, GroupSelect, OutboundReject}, eligible)
		default:
			members = concat([]string{GroupSelect, OutboundDirect, OutboundReject}, eligible)
		}
		p.Groups = append(p.Groups, Group{Name: c.Outbound, Kind: GroupSelector, Members: members})
	}

	for _, r := range req.CustomRules {
		p.Groups = append(p.Groups, Group{
			Name:    r.Outbound(),
			Kind:    GroupSelector,
			Members: concat([]string{GroupSelect, OutboundDirect, OutboundReject}, all),
		})
	}

	p.Groups = append(p.Groups, regions...)
	p.Groups = append(p.Groups, Group{
		Name:    GroupFallback,
		Kind:    GroupSelector,
		Members: concat([]string{GroupSelect, OutboundDirect}, all),
	})

	p.Rules = planRules(req)
	return p, nil
}

func checkCustomNames(req *Request, reserved []string) error {
	taken := map[string]string{
		GroupAuto: "built-in group", GroupSelect: "built-in group", GroupFallback: "built-in group",
		OutboundDirect: "built-in outbound", OutboundReject: "built-in outbound",
	}
	for _, c := range req.Categories {
		taken[c.Outbound] = "rule category group"
	}
	for _, name := range reserved {
		if _, ok := taken[name]; !ok {
			taken[name] = "base config outbound"
		}
	}
	for _, r := range req.CustomRules {
		if what, ok := taken[r.Outbound()]; ok {
			return fmt.Errorf("custom rule name %q is already used by a %s", r.Outbound(), what)
		}
	}
	return nil
}

// planRules orders custom rules before the predefined categories.
func planRules(req *Request) []Rule {
	var out []Rule
	add := func(kind RuleKind, values []string, outbound string) {
		if len(values) > 0 {
			out = append(out, Rule{Kind: kind, Values: values, Outbound: outbound})
		}
	}
	for _, r := range req.CustomRules {
		add(RuleDomainSuffix, r.DomainSuffixes(), r.Outbound())
		add(RuleDomainKeyword, r.DomainKeywords(), r.Outbound())
		add(RuleSite, r.Sites(), r.Outbound())
		add(RuleIPCIDR, r.IPCIDRs(), r.Outbound())
		add(RuleIP, r.IPs(), r.Outbound())
		add(RuleProtocol, r.Protocols(), r.Outbound())
	}
	// site rules first: domain matches must not trigger DNS resolution
	for _, c := range req.Categories {
		add(RuleSite, c.SiteRules, c.Outbound)
	}
	for _, c := range req.Categories {
		add(RuleIP, c.IPRules, c.Outbound)
	}
	return out
}

func (p *plan) names(keep func(model.Node) bool) []string {
	var out []string
	for _, px := range p.Proxies {
		if keep(px.Node) {
			out = append(out, px.Name)
		}
	}
	return out
}

func (p *plan) regionGroups(lookup RegionLookup) []Group {
	if lookup == nil {
		return nil
	}
	byCountry := make(map[string][]string)
	for _, px := range p.Proxies {
		if code, ok := lookup.Country(px.Node.Server); ok {
			byCountry[code] = append(byCountry[code], px.Name)
		}
	}
	codes := lo.Keys(byCountry)
	sort.Strings(codes)

	groups := make([]Group, 0, len(codes))
	for _, code := range codes {
		name := geoip.Flag(code) + " " + code
		for p.used[name] {
			name += "+"
		}
		p.used[name] = true
		groups = append(groups, Group{
			Name:    name,
			Kind:    GroupURLTest,
			Members: byCountry[code],
		})
	}
	return groups
}

// SiteSets lists the distinct geosite names referenced by rules.
func (p *plan) SiteSets() []string {
	return p.sets(RuleSite)
}

// IPSets lists the distinct geoip names referenced by rules.
func (p *plan) IPSets() []string {
	return p.sets(RuleIP)
}

func (p *plan) sets(kind RuleKind) []string {
	var out []string
	for _, r := range p.Rules {
		if r.Kind == kind {
			out = append(out, r.Values...)
		}
	}
	return lo.Uniq(out)
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
