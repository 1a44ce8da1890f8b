package builder

import (
	"bytes"
	"context"
	"encoding/json"

	C "github.com/sagernet/sing-box/constant"

	"sublink/internal/model"
	"sublink/internal/rules"
)

const urlTestURL = "https://www.gstatic.com/generate_204"

func init() {
	Register(TargetSingbox, func() Builder { return &SingboxBuilder{} })
}

// SingboxBuilder renders sing-box 1.12 JSON configurations.
type SingboxBuilder struct{}

func (b *SingboxBuilder) Target() Target { return TargetSingbox }

func (b *SingboxBuilder) Build(ctx context.Context, req *Request) ([]byte, error) {
	doc, err := cloneDocument(req.BaseConfig)
	if err != nil {
		return nil, buildErr(TargetSingbox, "base config", err)
	}
	if doc == nil {
		doc = singboxSkeleton()
	}

	existing, err := asList(doc, "outbounds")
	if err != nil {
		return nil, buildErr(TargetSingbox, "base config", err)
	}
	route, err := asMap(doc, "route")
	if err != nil {
		return nil, buildErr(TargetSingbox, "base config", err)
	}
	baseRules, err := asList(route, "rules")
	if err != nil {
		return nil, buildErr(TargetSingbox, "base config", err)
	}
	baseSets, err := asList(route, "rule_set")
	if err != nil {
		return nil, buildErr(TargetSingbox, "base config", err)
	}

	reserved := fieldValues(existing, "tag")
	p, err := newPlan(req, planOptions{reserved: reserved})
	if err != nil {
		return nil, buildErr(TargetSingbox, "custom rules", err)
	}
	if len(p.Proxies) == 0 {
		return nil, buildErr(TargetSingbox, "render", ErrNoNodes)
	}

	outbounds := make([]interface{}, 0, len(p.Groups)+len(p.Proxies)+len(existing)+2)
	for _, g := range p.Groups {
		outbounds = append(outbounds, singboxGroup(g))
	}
	for _, px := range p.Proxies {
		outbounds = append(outbounds, singboxOutbound(px))
	}
	have := make(map[string]bool, len(reserved))
	for _, tag := range reserved {
		have[tag] = true
	}
	if !have[OutboundDirect] {
		outbounds = append(outbounds, map[string]interface{}{"type": C.TypeDirect, "tag": OutboundDirect})
	}
	if !have[OutboundReject] {
		outbounds = append(outbounds, map[string]interface{}{"type": C.TypeBlock, "tag": OutboundReject})
	}
	doc["outbounds"] = append(outbounds, existing...)

	for _, r := range p.Rules {
		baseRules = append(baseRules, singboxRule(r))
	}
	route["rules"] = baseRules
	route["rule_set"] = singboxRuleSets(baseSets, p, req.Sources.WithDefaults())
	route["final"] = p.Final

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, buildErr(TargetSingbox, "render", err)
	}
	out := buf.Bytes()

	if req.Validate {
		if err := ValidateSingbox(ctx, out); err != nil {
			return nil, buildErr(TargetSingbox, "validate", err)
		}
	}
	return out, nil
}

func singboxSkeleton() map[string]interface{} {
	return map[string]interface{}{
		"log": map[string]interface{}{"level": "info", "timestamp": true},
		"dns": map[string]interface{}{
			"servers": []interface{}{
				map[string]interface{}{"type": "https", "tag": "dns_proxy", "server": "1.1.1.1", "detour": GroupSelect},
				map[string]interface{}{"type": "udp", "tag": "dns_direct", "server": "223.5.5.5"},
			},
			"final":    "dns_proxy",
			"strategy": "prefer_ipv4",
		},
		"inbounds": []interface{}{
			map[string]interface{}{"type": "mixed", "tag": "mixed-in", "listen": "127.0.0.1", "listen_port": 2080},
			map[string]interface{}{
				"type":         "tun",
				"tag":          "tun-in",
				"address":      []interface{}{"172.19.0.1/30"},
				"auto_route":   true,
				"strict_route": true,
				"stack":        "mixed",
			},
		},
		"route": map[string]interface{}{
			"rules": []interface{}{
				map[string]interface{}{"action": "sniff"},
				map[string]interface{}{"protocol": "dns", "action": "hijack-dns"},
			},
			"auto_detect_interface":   true,
			"default_domain_resolver": "dns_direct",
		},
		"experimental": map[string]interface{}{
			"cache_file": map[string]interface{}{"enabled": true},
			"clash_api":  map[string]interface{}{"external_controller": "127.0.0.1:9090"},
		},
	}
}

func singboxGroup(g Group) map[string]interface{} {
	if g.Kind == GroupURLTest {
		return map[string]interface{}{
			"type":      C.TypeURLTest,
			"tag":       g.Name,
			"outbounds": toInterfaces(g.Members),
			"url":       urlTestURL,
			"interval":  "3m",
		}
	}
	return map[string]interface{}{
		"type":      C.TypeSelector,
		"tag":       g.Name,
		"outbounds": toInterfaces(g.Members),
	}
}

func singboxType(p model.Protocol) string {
	switch p {
	case model.Shadowsocks:
		return C.TypeShadowsocks
	case model.VMess:
		return C.TypeVMess
	case model.VLESS:
		return C.TypeVLESS
	case model.Trojan:
		return C.TypeTrojan
	case model.Hysteria2:
		return C.TypeHysteria2
	case model.TUIC:
		return C.TypeTUIC
	case model.Socks5:
		return C.TypeSOCKS
	}
	return string(p)
}

func singboxOutbound(px Proxy) map[string]interface{} {
	out := nodeFields(px.Node)
	out["tag"] = px.Name
	out["type"] = singboxType(px.Node.Type)
	if px.Node.Type == model.Socks5 {
		out["version"] = "5"
	}
	return out
}

func singboxRule(r Rule) map[string]interface{} {
	out := map[string]interface{}{}
	switch r.Kind {
	case RuleSite:
		out["rule_set"] = toInterfaces(mapStrings(r.Values, rules.SiteTag))
	case RuleIP:
		out["rule_set"] = toInterfaces(mapStrings(r.Values, rules.IPTag))
	case RuleDomainSuffix:
		out["domain_suffix"] = toInterfaces(r.Values)
	case RuleDomainKeyword:
		out["domain_keyword"] = toInterfaces(r.Values)
	case RuleIPCIDR:
		out["ip_cidr"] = toInterfaces(r.Values)
	case RuleProtocol:
		out["protocol"] = toInterfaces(r.Values)
	}
	out["outbound"] = r.Outbound
	return out
}

// singboxRuleSets appends a remote binary rule set for every referenced
// geosite/geoip name not already declared by the base config.
func singboxRuleSets(base []interface{}, p *plan, src rules.Sources) []interface{} {
	declared := make(map[string]bool)
	for _, tag := range fieldValues(base, "tag") {
		declared[tag] = true
	}
	out := base
	add := func(tag, url string) {
		if declared[tag] {
			return
		}
		declared[tag] = true
		out = append(out, map[string]interface{}{
			"tag":             tag,
			"type":            C.RuleSetTypeRemote,
			"format":          C.RuleSetFormatBinary,
			"url":             url,
			"download_detour": GroupSelect,
		})
	}
	for _, name := range p.SiteSets() {
		add(rules.SiteTag(name), src.SingboxSiteURL(name))
	}
	for _, name := range p.IPSets() {
		add(rules.IPTag(name), src.SingboxIPURL(name))
	}
	if out == nil {
		out = []interface{}{}
	}
	return out
}

func mapStrings(in []string, f func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f(s)
	}
	return out
}
