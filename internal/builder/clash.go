package builder

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"sublink/internal/model"
	"sublink/internal/rules"
)

func init() {
	Register(TargetClash, func() Builder { return &ClashBuilder{} })
}

// ClashBuilder renders mihomo (Clash.Meta) YAML configurations.
type ClashBuilder struct{}

func (b *ClashBuilder) Target() Target { return TargetClash }

// entry is one key of an ordered YAML mapping.
type entry struct {
	Key   string
	Value interface{}
}

// ordered is a YAML mapping that keeps insertion order.
type ordered []entry

func (m ordered) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range m {
		var k, v yaml.Node
		if err := k.Encode(e.Key); err != nil {
			return nil, err
		}
		if err := v.Encode(e.Value); err != nil {
			return nil, fmt.Errorf("key %q: %w", e.Key, err)
		}
		node.Content = append(node.Content, &k, &v)
	}
	return node, nil
}

// clashKeyOrder is the emitted order of well-known top-level keys; other
// base config keys follow alphabetically.
var clashKeyOrder = []string{
	"port", "socks-port", "mixed-port", "allow-lan", "mode", "log-level",
	"external-controller", "dns", "proxies", "proxy-groups", "rule-providers", "rules",
}

func (b *ClashBuilder) Build(_ context.Context, req *Request) ([]byte, error) {
	doc, err := cloneDocument(req.BaseConfig)
	if err != nil {
		return nil, buildErr(TargetClash, "base config", err)
	}
	if doc == nil {
		doc = clashSkeleton()
	}

	baseProxies, err := asList(doc, "proxies")
	if err != nil {
		return nil, buildErr(TargetClash, "base config", err)
	}
	baseGroups, err := asList(doc, "proxy-groups")
	if err != nil {
		return nil, buildErr(TargetClash, "base config", err)
	}
	baseRules, err := asList(doc, "rules")
	if err != nil {
		return nil, buildErr(TargetClash, "base config", err)
	}
	providers, err := asMap(doc, "rule-providers")
	if err != nil {
		return nil, buildErr(TargetClash, "base config", err)
	}

	reserved := append(fieldValues(baseProxies, "name"), fieldValues(baseGroups, "name")...)
	p, err := newPlan(req, planOptions{reserved: reserved})
	if err != nil {
		return nil, buildErr(TargetClash, "custom rules", err)
	}
	if len(p.Proxies) == 0 {
		return nil, buildErr(TargetClash, "render", ErrNoNodes)
	}

	proxies := make([]interface{}, 0, len(baseProxies)+len(p.Proxies))
	proxies = append(proxies, baseProxies...)
	for _, px := range p.Proxies {
		proxies = append(proxies, clashProxy(px))
	}
	doc["proxies"] = proxies

	groups := make([]interface{}, 0, len(p.Groups)+len(baseGroups))
	for _, g := range p.Groups {
		groups = append(groups, clashGroup(g))
	}
	doc["proxy-groups"] = append(groups, baseGroups...)

	src := req.Sources.WithDefaults()
	for _, name := range p.SiteSets() {
		tag := rules.SiteTag(name)
		if _, ok := providers[tag]; !ok {
			providers[tag] = clashProvider(tag, "domain", src.ClashSiteURL(name))
		}
	}
	for _, name := range p.IPSets() {
		tag := rules.IPTag(name)
		if _, ok := providers[tag]; !ok {
			providers[tag] = clashProvider(tag, "ipcidr", src.ClashIPURL(name))
		}
	}
	if len(providers) == 0 {
		delete(doc, "rule-providers")
	}

	var lines []interface{}
	for _, r := range baseRules {
		// a base catch-all would shadow everything appended after it
		if s, ok := r.(string); ok && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "MATCH,") {
			continue
		}
		lines = append(lines, r)
	}
	for _, r := range p.Rules {
		for _, line := range clashRule(r) {
			lines = append(lines, line)
		}
	}
	lines = append(lines, "MATCH,"+p.Final)
	doc["rules"] = lines

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(orderDocument(doc)); err != nil {
		return nil, buildErr(TargetClash, "render", err)
	}
	if err := enc.Close(); err != nil {
		return nil, buildErr(TargetClash, "render", err)
	}
	return buf.Bytes(), nil
}

func orderDocument(doc map[string]interface{}) ordered {
	out := make(ordered, 0, len(doc))
	seen := make(map[string]bool, len(clashKeyOrder))
	for _, k := range clashKeyOrder {
		seen[k] = true
		if v, ok := doc[k]; ok {
			out = append(out, entry{k, v})
		}
	}
	var rest []string
	for k := range doc {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, entry{k, doc[k]})
	}
	return out
}

func clashSkeleton() map[string]interface{} {
	return map[string]interface{}{
		"port":                7890,
		"socks-port":          7891,
		"allow-lan":           false,
		"mode":                "rule",
		"log-level":           "info",
		"external-controller": "127.0.0.1:9090",
		"dns": ordered{
			{"enable", true},
			{"ipv6", false},
			{"enhanced-mode", "fake-ip"},
			{"fake-ip-range", "198.18.0.1/16"},
			{"default-nameserver", []string{"223.5.5.5", "119.29.29.29"}},
			{"nameserver", []string{"https://1.1.1.1/dns-query", "https://8.8.8.8/dns-query"}},
		},
	}
}

func clashGroup(g Group) ordered {
	if g.Kind == GroupURLTest {
		return ordered{
			{"name", g.Name},
			{"type", "url-test"},
			{"proxies", g.Members},
			{"url", urlTestURL},
			{"interval", 300},
			{"lazy", false},
		}
	}
	return ordered{
		{"name", g.Name},
		{"type", "select"},
		{"proxies", g.Members},
	}
}

func clashProvider(tag, behavior, url string) ordered {
	return ordered{
		{"type", "http"},
		{"format", "mrs"},
		{"behavior", behavior},
		{"url", url},
		{"path", "./ruleset/" + tag + ".mrs"},
		{"interval", 86400},
	}
}

func clashRule(r Rule) []string {
	var out []string
	for _, v := range r.Values {
		switch r.Kind {
		case RuleSite:
			out = append(out, fmt.Sprintf("RULE-SET,%s,%s", rules.SiteTag(v), r.Outbound))
		case RuleIP:
			out = append(out, fmt.Sprintf("RULE-SET,%s,%s,no-resolve", rules.IPTag(v), r.Outbound))
		case RuleDomainSuffix:
			out = append(out, fmt.Sprintf("DOMAIN-SUFFIX,%s,%s", v, r.Outbound))
		case RuleDomainKeyword:
			out = append(out, fmt.Sprintf("DOMAIN-KEYWORD,%s,%s", v, r.Outbound))
		case RuleIPCIDR:
			out = append(out, fmt.Sprintf("IP-CIDR,%s,%s,no-resolve", v, r.Outbound))
		case RuleProtocol:
			// mihomo only matches the transport network
			if n := strings.ToLower(v); n == "tcp" || n == "udp" {
				out = append(out, fmt.Sprintf("NETWORK,%s,%s", n, r.Outbound))
			}
		}
	}
	return out
}

func clashType(p model.Protocol) string {
	switch p {
	case model.Shadowsocks:
		return "ss"
	case model.TUIC:
		return "tuic"
	}
	return string(p)
}

func clashProxy(px Proxy) ordered {
	n := px.Node
	m := ordered{
		{"name", px.Name},
		{"type", clashType(n.Type)},
		{"server", n.Server},
		{"port", n.ServerPort},
	}
	add := func(k string, v interface{}) { m = append(m, entry{k, v}) }

	switch n.Type {
	case model.Shadowsocks:
		add("cipher", n.Method)
		add("password", n.Password)
		if n.Plugin != "" {
			plugin, opts := clashPlugin(n.Plugin, n.PluginOpts)
			add("plugin", plugin)
			if len(opts) > 0 {
				add("plugin-opts", opts)
			}
		}
	case model.VMess:
		add("uuid", n.UUID)
		add("alterId", n.AlterID)
		add("cipher", firstNonBlank(n.Security, "auto"))
	case model.VLESS:
		add("uuid", n.UUID)
		if n.Flow != "" {
			add("flow", n.Flow)
		}
	case model.Trojan, model.Hysteria2:
		add("password", n.Password)
	case model.TUIC:
		add("uuid", n.UUID)
		add("password", n.Password)
		if n.CongestionControl != "" {
			add("congestion-controller", n.CongestionControl)
		}
	case model.Socks5:
		if n.Username != "" {
			add("username", n.Username)
		}
		if n.Password != "" {
			add("password", n.Password)
		}
	}

	if n.Type == model.Hysteria2 {
		if n.Obfs != nil {
			add("obfs", n.Obfs.Type)
			add("obfs-password", n.Obfs.Password)
		}
		if n.UpMbps > 0 {
			add("up", n.UpMbps)
		}
		if n.DownMbps > 0 {
			add("down", n.DownMbps)
		}
	}

	if t := n.TLS; t != nil && t.Enabled {
		switch n.Type {
		case model.VMess, model.VLESS:
			add("tls", true)
			if t.ServerName != "" {
				add("servername", t.ServerName)
			}
		case model.Socks5:
			add("tls", true)
		default:
			if t.ServerName != "" {
				add("sni", t.ServerName)
			}
		}
		if t.Insecure {
			add("skip-cert-verify", true)
		}
		if len(t.ALPN) > 0 {
			add("alpn", t.ALPN)
		}
		if t.UTLS != nil && t.UTLS.Enabled && t.UTLS.Fingerprint != "" {
			add("client-fingerprint", t.UTLS.Fingerprint)
		}
		if t.Reality != nil && t.Reality.Enabled {
			reality := ordered{{"public-key", t.Reality.PublicKey}}
			if t.Reality.ShortID != "" {
				reality = append(reality, entry{"short-id", t.Reality.ShortID})
			}
			add("reality-opts", reality)
		}
	}

	m = append(m, clashTransport(n.Transport, n.TLSEnabled())...)
	if n.SupportsUDP() {
		add("udp", true)
	}
	if n.TCPFastOpen {
		add("tfo", true)
	}
	return m
}

func clashTransport(t *model.Transport, tls bool) ordered {
	if t == nil {
		return nil
	}
	switch t.Type {
	case "ws", "httpupgrade":
		opts := ordered{{"path", firstNonBlank(t.Path, "/")}}
		if host := t.HostHeader(); host != "" {
			opts = append(opts, entry{"headers", ordered{{"Host", host}}})
		}
		if t.Type == "httpupgrade" {
			opts = append(opts, entry{"v2ray-http-upgrade", true})
		}
		return ordered{{"network", "ws"}, {"ws-opts", opts}}
	case "grpc":
		return ordered{{"network", "grpc"}, {"grpc-opts", ordered{{"grpc-service-name", t.ServiceName}}}}
	case "http":
		if tls {
			opts := ordered{{"path", firstNonBlank(t.Path, "/")}}
			if len(t.Host) > 0 {
				opts = append(opts, entry{"host", t.Host})
			}
			return ordered{{"network", "h2"}, {"h2-opts", opts}}
		}
		opts := ordered{{"path", []string{firstNonBlank(t.Path, "/")}}}
		if len(t.Host) > 0 {
			opts = append(opts, entry{"headers", ordered{{"Host", t.Host}}})
		}
		return ordered{{"network", "http"}, {"http-opts", opts}}
	}
	return nil
}

// clashPlugin maps SIP003 plugin strings onto mihomo plugin options.
func clashPlugin(plugin, raw string) (string, ordered) {
	kv := make(map[string]string)
	var flags []string
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			kv[k] = v
		} else {
			flags = append(flags, part)
		}
	}

	switch plugin {
	case "obfs-local", "simple-obfs", "obfs":
		opts := ordered{{"mode", kv["obfs"]}}
		if h := kv["obfs-host"]; h != "" {
			opts = append(opts, entry{"host", h})
		}
		return "obfs", opts
	case "v2ray-plugin":
		opts := ordered{{"mode", firstNonBlank(kv["mode"], "websocket")}}
		if h := kv["host"]; h != "" {
			opts = append(opts, entry{"host", h})
		}
		if p := kv["path"]; p != "" {
			opts = append(opts, entry{"path", p})
		}
		for _, f := range flags {
			if f == "tls" {
				opts = append(opts, entry{"tls", true})
			}
		}
		return "v2ray-plugin", opts
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	opts := make(ordered, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, entry{k, kv[k]})
	}
	return plugin, opts
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
