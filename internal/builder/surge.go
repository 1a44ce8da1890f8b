package builder

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"sublink/internal/model"
	"sublink/internal/rules"
)

func init() {
	Register(TargetSurge, func() Builder { return &SurgeBuilder{} })
}

// SurgeBuilder renders Surge INI-style profiles.
type SurgeBuilder struct{}

func (b *SurgeBuilder) Target() Target { return TargetSurge }

const (
	sectionGeneral = "General"
	sectionProxy   = "Proxy"
	sectionGroup   = "Proxy Group"
	sectionRule    = "Rule"
)

var surgeSectionOrder = []string{sectionGeneral, "Replica", sectionProxy, sectionGroup, sectionRule}

var surgeNamer = strings.NewReplacer(",", "_", "=", "_", "\n", " ", "\r", " ")

// surgeName strips the separators Surge uses in proxy lines.
func surgeName(s string) string {
	return strings.TrimSpace(surgeNamer.Replace(s))
}

// surgeSkip drops nodes Surge cannot express.
func surgeSkip(n model.Node) bool {
	if n.Type == model.VLESS {
		return true
	}
	if n.TLS != nil && n.TLS.Reality != nil && n.TLS.Reality.Enabled {
		return true
	}
	return n.Transport != nil && n.Transport.Type != "ws"
}

func (b *SurgeBuilder) Build(_ context.Context, req *Request) ([]byte, error) {
	doc, err := cloneDocument(req.BaseConfig)
	if err != nil {
		return nil, buildErr(TargetSurge, "base config", err)
	}
	if doc == nil {
		doc = surgeSkeleton()
	}

	sections := make(map[string][]string, len(doc))
	for name, v := range doc {
		lines, err := surgeSectionLines(v)
		if err != nil {
			return nil, buildErr(TargetSurge, "base config", fmt.Errorf("section [%s]: %w", name, err))
		}
		sections[name] = lines
	}

	reserved := append(surgeLineNames(sections[sectionProxy]), surgeLineNames(sections[sectionGroup])...)
	p, err := newPlan(req, planOptions{reserved: reserved, sanitize: surgeName, skip: surgeSkip})
	if err != nil {
		return nil, buildErr(TargetSurge, "custom rules", err)
	}
	if len(p.Proxies) == 0 {
		return nil, buildErr(TargetSurge, "render", ErrNoNodes)
	}

	for _, px := range p.Proxies {
		sections[sectionProxy] = append(sections[sectionProxy], surgeProxy(px))
	}

	groups := make([]string, 0, len(p.Groups)+len(sections[sectionGroup]))
	for _, g := range p.Groups {
		groups = append(groups, surgeGroup(g))
	}
	sections[sectionGroup] = append(groups, sections[sectionGroup]...)

	var ruleLines []string
	for _, line := range sections[sectionRule] {
		if strings.HasPrefix(strings.ToUpper(line), "FINAL,") {
			continue
		}
		ruleLines = append(ruleLines, line)
	}
	src := req.Sources.WithDefaults()
	for _, r := range p.Rules {
		ruleLines = append(ruleLines, surgeRule(r, src)...)
	}
	ruleLines = append(ruleLines, fmt.Sprintf("FINAL,%s,dns-failed", surgeName(p.Final)))
	sections[sectionRule] = ruleLines

	var sb strings.Builder
	if req.SubscriptionURL != "" {
		fmt.Fprintf(&sb, "#!MANAGED-CONFIG %s interval=43200 strict=false\n\n", req.SubscriptionURL)
	}
	for _, name := range surgeOrder(sections) {
		fmt.Fprintf(&sb, "[%s]\n", name)
		for _, line := range sections[name] {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

func surgeSkeleton() map[string]interface{} {
	return map[string]interface{}{
		sectionGeneral: []interface{}{
			"loglevel = notify",
			"dns-server = 223.5.5.5, 114.114.114.114, system",
			"skip-proxy = 127.0.0.1, 192.168.0.0/16, 10.0.0.0/8, 172.16.0.0/12, 100.64.0.0/10, localhost, *.local",
			"internet-test-url = http://www.gstatic.com/generate_204",
			"proxy-test-url = http://www.gstatic.com/generate_204",
			"ipv6 = false",
			"allow-wifi-access = false",
		},
	}
}

// surgeSectionLines accepts a section as a list of raw lines or as an object
// of key = value settings.
func surgeSectionLines(v interface{}) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			line, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("line must be a string, got %T", item)
			}
			out = append(out, line)
		}
		return out, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, fmt.Sprintf("%s = %v", k, s[k]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("section must be an object or a list of lines, got %T", v)
}

func surgeLineNames(lines []string) []string {
	var out []string
	for _, line := range lines {
		if name, _, ok := strings.Cut(line, "="); ok {
			out = append(out, strings.TrimSpace(name))
		}
	}
	return out
}

func surgeOrder(sections map[string][]string) []string {
	var out []string
	known := make(map[string]bool)
	for _, name := range surgeSectionOrder {
		known[name] = true
		if _, ok := sections[name]; ok {
			out = append(out, name)
		}
	}
	var rest []string
	for name := range sections {
		if !known[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// surgeValue double-quotes values that would otherwise split the proxy line.
func surgeValue(v string) string {
	if strings.ContainsAny(v, ",\"") || v != strings.TrimSpace(v) {
		return `"` + v + `"`
	}
	return v
}

func surgeProxy(px Proxy) string {
	n := px.Node
	port := strconv.Itoa(n.ServerPort)
	var parts []string
	add := func(s ...string) { parts = append(parts, s...) }

	switch n.Type {
	case model.Shadowsocks:
		add("ss", n.Server, port, "encrypt-method="+surgeValue(n.Method), "password="+surgeValue(n.Password))
		if n.Plugin == "obfs-local" || n.Plugin == "simple-obfs" {
			for _, opt := range strings.Split(n.PluginOpts, ";") {
				if k, v, ok := strings.Cut(opt, "="); ok && (k == "obfs" || k == "obfs-host") {
					add(k + "=" + v)
				}
			}
		}
	case model.VMess:
		add("vmess", n.Server, port, "username="+n.UUID)
		if n.AlterID == 0 {
			add("vmess-aead=true")
		}
	case model.Trojan:
		add("trojan", n.Server, port, "password="+surgeValue(n.Password))
	case model.Hysteria2:
		add("hysteria2", n.Server, port, "password="+surgeValue(n.Password))
		if n.DownMbps > 0 {
			add("download-bandwidth=" + strconv.Itoa(n.DownMbps))
		}
	case model.TUIC:
		add("tuic-v5", n.Server, port, "password="+surgeValue(n.Password), "uuid="+n.UUID)
	case model.Socks5:
		kind := "socks5"
		if n.TLSEnabled() {
			kind = "socks5-tls"
		}
		add(kind, n.Server, port)
		if n.Username != "" || n.Password != "" {
			add(surgeValue(n.Username), surgeValue(n.Password))
		}
	}

	if t := n.TLS; t != nil && t.Enabled {
		if n.Type == model.VMess {
			add("tls=true")
		}
		if t.ServerName != "" {
			add("sni=" + t.ServerName)
		}
		if t.Insecure {
			add("skip-cert-verify=true")
		}
		if len(t.ALPN) > 0 && n.Type == model.TUIC {
			add("alpn=" + t.ALPN[0])
		}
	}
	if t := n.Transport; t != nil && t.Type == "ws" {
		add("ws=true", "ws-path="+surgeValue(firstNonBlank(t.Path, "/")))
		if host := t.HostHeader(); host != "" {
			add(fmt.Sprintf("ws-headers=Host:%q", host))
		}
	}
	if n.SupportsUDP() && n.Type != model.Hysteria2 && n.Type != model.TUIC {
		add("udp-relay=true")
	}
	if n.TCPFastOpen {
		add("tfo=true")
	}
	return px.Name + " = " + strings.Join(parts, ", ")
}

func surgeGroup(g Group) string {
	members := mapStrings(g.Members, surgeName)
	if g.Kind == GroupURLTest {
		return fmt.Sprintf("%s = url-test, %s, url=%s, interval=300",
			surgeName(g.Name), strings.Join(members, ", "), "http://www.gstatic.com/generate_204")
	}
	return fmt.Sprintf("%s = select, %s", surgeName(g.Name), strings.Join(members, ", "))
}

func surgeRule(r Rule, src rules.Sources) []string {
	outbound := surgeName(r.Outbound)
	var out []string
	for _, v := range r.Values {
		switch r.Kind {
		case RuleSite:
			out = append(out, fmt.Sprintf("RULE-SET,%s,%s", src.SurgeSiteURL(v), outbound))
		case RuleIP:
			out = append(out, fmt.Sprintf("RULE-SET,%s,%s,no-resolve", src.SurgeIPURL(v), outbound))
		case RuleDomainSuffix:
			out = append(out, fmt.Sprintf("DOMAIN-SUFFIX,%s,%s", v, outbound))
		case RuleDomainKeyword:
			out = append(out, fmt.Sprintf("DOMAIN-KEYWORD,%s,%s", v, outbound))
		case RuleIPCIDR:
			kind := "IP-CIDR"
			if prefix, err := netip.ParsePrefix(v); err == nil && prefix.Addr().Is6() {
				kind = "IP-CIDR6"
			}
			out = append(out, fmt.Sprintf("%s,%s,%s,no-resolve", kind, v, outbound))
		case RuleProtocol:
			out = append(out, fmt.Sprintf("PROTOCOL,%s,%s", strings.ToUpper(v), outbound))
		}
	}
	return out
}
