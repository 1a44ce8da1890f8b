package builder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/xtls/xray-core/infra/conf"

	"sublink/internal/logger"
	"sublink/internal/model"
	"sublink/internal/rules"
)

const (
	xrayBalancer = "proxy"
	xrayDirect   = "direct"
	xrayBlock    = "block"
)

func init() {
	Register(TargetXray, func() Builder { return &XrayBuilder{} })
}

// XrayBuilder renders xray-core JSON. Xray has no selector groups, so every
// proxied rule goes through a single balancer over all usable outbounds.
type XrayBuilder struct{}

func (b *XrayBuilder) Target() Target { return TargetXray }

func xraySkip(n model.Node) bool {
	if n.Type == model.TUIC {
		return true
	}
	return n.Transport != nil && n.Transport.Type != "ws" && n.Transport.Type != "grpc"
}

func (b *XrayBuilder) Build(_ context.Context, req *Request) ([]byte, error) {
	doc, err := cloneDocument(req.BaseConfig)
	if err != nil {
		return nil, buildErr(TargetXray, "base config", err)
	}
	if doc == nil {
		doc = xraySkeleton()
	}
	existing, err := asList(doc, "outbounds")
	if err != nil {
		return nil, buildErr(TargetXray, "base config", err)
	}
	routing, err := asMap(doc, "routing")
	if err != nil {
		return nil, buildErr(TargetXray, "base config", err)
	}
	baseRules, err := asList(routing, "rules")
	if err != nil {
		return nil, buildErr(TargetXray, "base config", err)
	}
	balancers, err := asList(routing, "balancers")
	if err != nil {
		return nil, buildErr(TargetXray, "base config", err)
	}

	reserved := append(fieldValues(existing, "tag"), xrayBalancer, xrayDirect, xrayBlock)
	p, err := newPlan(req, planOptions{reserved: reserved, skip: xraySkip})
	if err != nil {
		return nil, buildErr(TargetXray, "custom rules", err)
	}

	var outbounds []interface{}
	var selector []string
	for _, px := range p.Proxies {
		out, err := xrayOutbound(px)
		if err == nil {
			_, err = out.Build()
		}
		if err != nil {
			logger.Log.Warnf("⚠️ Skipping %s for xray: %v", px.Name, err)
			continue
		}
		rendered, err := compact(out)
		if err != nil {
			return nil, buildErr(TargetXray, "render", err)
		}
		outbounds = append(outbounds, rendered)
		selector = append(selector, px.Name)
	}
	if len(selector) == 0 {
		return nil, buildErr(TargetXray, "render", ErrNoNodes)
	}

	have := make(map[string]bool)
	for _, tag := range fieldValues(existing, "tag") {
		have[tag] = true
	}
	if !have[xrayDirect] {
		outbounds = append(outbounds, map[string]interface{}{"tag": xrayDirect, "protocol": "freedom"})
	}
	if !have[xrayBlock] {
		outbounds = append(outbounds, map[string]interface{}{"tag": xrayBlock, "protocol": "blackhole"})
	}
	doc["outbounds"] = append(outbounds, existing...)

	routing["balancers"] = append(balancers, map[string]interface{}{
		"tag":      xrayBalancer,
		"selector": toInterfaces(selector),
	})

	policies := make(map[string]rules.Policy, len(req.Categories))
	for _, c := range req.Categories {
		policies[c.Outbound] = c.Policy
	}
	for _, r := range p.Rules {
		if rule := xrayRule(r, policies[r.Outbound]); rule != nil {
			baseRules = append(baseRules, rule)
		}
	}
	baseRules = append(baseRules, map[string]interface{}{
		"type":        "field",
		"network":     "tcp,udp",
		"balancerTag": xrayBalancer,
	})
	routing["rules"] = baseRules

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, buildErr(TargetXray, "render", err)
	}
	return buf.Bytes(), nil
}

func xraySkeleton() map[string]interface{} {
	return map[string]interface{}{
		"log": map[string]interface{}{"loglevel": "warning"},
		"dns": map[string]interface{}{
			"servers": []interface{}{"https://1.1.1.1/dns-query", "223.5.5.5"},
		},
		"inbounds": []interface{}{
			map[string]interface{}{
				"tag": "socks-in", "protocol": "socks", "listen": "127.0.0.1", "port": 10808,
				"settings": map[string]interface{}{"auth": "noauth", "udp": true},
				"sniffing": map[string]interface{}{"enabled": true, "destOverride": []interface{}{"http", "tls", "quic"}},
			},
			map[string]interface{}{
				"tag": "http-in", "protocol": "http", "listen": "127.0.0.1", "port": 10809,
			},
		},
		"routing": map[string]interface{}{"domainStrategy": "IPIfNonMatch"},
	}
}

func xrayRule(r Rule, policy rules.Policy) map[string]interface{} {
	rule := map[string]interface{}{"type": "field"}
	var values []string
	switch r.Kind {
	case RuleSite:
		values = mapStrings(r.Values, func(s string) string { return "geosite:" + s })
	case RuleIP:
		values = mapStrings(r.Values, func(s string) string { return "geoip:" + s })
	case RuleDomainSuffix:
		values = mapStrings(r.Values, func(s string) string { return "domain:" + s })
	case RuleDomainKeyword:
		values = mapStrings(r.Values, func(s string) string { return "keyword:" + s })
	case RuleIPCIDR:
		values = r.Values
	case RuleProtocol:
		values = r.Values
	}
	switch r.Kind {
	case RuleSite, RuleDomainSuffix, RuleDomainKeyword:
		rule["domain"] = toInterfaces(values)
	case RuleIP, RuleIPCIDR:
		rule["ip"] = toInterfaces(values)
	case RuleProtocol:
		rule["protocol"] = toInterfaces(values)
	default:
		return nil
	}

	switch policy {
	case rules.PolicyDirect:
		rule["outboundTag"] = xrayDirect
	case rules.PolicyReject:
		rule["outboundTag"] = xrayBlock
	default:
		rule["balancerTag"] = xrayBalancer
	}
	return rule
}

func xrayOutbound(px Proxy) (*conf.OutboundDetourConfig, error) {
	n := px.Node
	var protocol string
	var settings json.RawMessage

	switch n.Type {
	case model.VMess:
		protocol = "vmess"
		settings = buildVMess(n)
	case model.VLESS:
		protocol = "vless"
		settings = buildVLESS(n)
	case model.Trojan:
		protocol = "trojan"
		settings = buildTrojan(n)
	case model.Shadowsocks:
		protocol = "shadowsocks"
		settings = buildShadowsocks(n)
	case model.Socks5:
		protocol = "socks"
		settings = buildSocks(n)
	case model.Hysteria2:
		protocol = "hysteria2"
		settings = buildHysteria2(n)
	default:
		return nil, fmt.Errorf("protocol conversion not implemented: %s", n.Type)
	}

	return &conf.OutboundDetourConfig{
		Tag:           px.Name,
		Protocol:      protocol,
		Settings:      &settings,
		StreamSetting: buildStreamSettings(n),
	}, nil
}

func buildVMess(n model.Node) json.RawMessage {
	return jsonRaw(map[string]interface{}{
		"vnext": []interface{}{
			map[string]interface{}{
				"address": n.Server,
				"port":    n.ServerPort,
				"users": []interface{}{
					map[string]interface{}{
						"id":       n.UUID,
						"alterId":  n.AlterID,
						"security": firstNonBlank(n.Security, "auto"),
					},
				},
			},
		},
	})
}

func buildVLESS(n model.Node) json.RawMessage {
	user := map[string]interface{}{"id": n.UUID, "encryption": "none"}
	if n.Flow != "" {
		user["flow"] = n.Flow
	}
	return jsonRaw(map[string]interface{}{
		"vnext": []interface{}{
			map[string]interface{}{
				"address": n.Server,
				"port":    n.ServerPort,
				"users":   []interface{}{user},
			},
		},
	})
}

func buildTrojan(n model.Node) json.RawMessage {
	return jsonRaw(map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{
				"address":  n.Server,
				"port":     n.ServerPort,
				"password": n.Password,
			},
		},
	})
}

func buildShadowsocks(n model.Node) json.RawMessage {
	return jsonRaw(map[string]interface{}{
		"servers": []interface{}{
			map[string]interface{}{
				"address":  n.Server,
				"port":     n.ServerPort,
				"method":   n.Method,
				"password": n.Password,
			},
		},
	})
}

func buildSocks(n model.Node) json.RawMessage {
	server := map[string]interface{}{
		"address": n.Server,
		"port":    n.ServerPort,
	}
	if n.Username != "" {
		server["users"] = []interface{}{
			map[string]interface{}{"user": n.Username, "pass": n.Password},
		}
	}
	return jsonRaw(map[string]interface{}{
		"servers": []interface{}{server},
	})
}

func buildHysteria2(n model.Node) json.RawMessage {
	settings := map[string]interface{}{
		"address": n.Server,
		"port":    n.ServerPort,
		"auth":    n.Password,
	}
	if n.Obfs != nil {
		settings["obfs"] = map[string]interface{}{
			"type":       n.Obfs.Type,
			"salamander": map[string]interface{}{"password": n.Obfs.Password},
		}
	}
	return jsonRaw(settings)
}

func buildStreamSettings(n model.Node) *conf.StreamConfig {
	network := "tcp"
	if n.Transport != nil {
		network = n.Transport.Type
	}

	security := "none"
	reality := n.TLS != nil && n.TLS.Reality != nil && n.TLS.Reality.Enabled
	switch {
	case reality:
		security = "reality"
	case n.TLSEnabled():
		security = "tls"
	}

	sc := &conf.StreamConfig{
		Network:  (*conf.TransportProtocol)(&network),
		Security: security,
	}

	var fingerprint string
	if n.TLS != nil && n.TLS.UTLS != nil && n.TLS.UTLS.Enabled {
		fingerprint = n.TLS.UTLS.Fingerprint
	}

	switch security {
	case "tls":
		sc.TLSSettings = &conf.TLSConfig{
			ServerName:  n.TLS.ServerName,
			Fingerprint: fingerprint,
		}
		if len(n.TLS.ALPN) > 0 {
			sc.TLSSettings.ALPN = &conf.StringList{}
			*sc.TLSSettings.ALPN = append(*sc.TLSSettings.ALPN, n.TLS.ALPN...)
		}
		if n.TLS.Insecure {
			sc.TLSSettings.Insecure = true
		}
	case "reality":
		sc.REALITYSettings = &conf.REALITYConfig{
			Fingerprint: firstNonBlank(fingerprint, "chrome"),
			ServerName:  n.TLS.ServerName,
			PublicKey:   n.TLS.Reality.PublicKey,
			ShortId:     n.TLS.Reality.ShortID,
		}
	}

	switch network {
	case "ws":
		sc.WSSettings = &conf.WebSocketConfig{Path: firstNonBlank(n.Transport.Path, "/")}
		if host := n.Transport.HostHeader(); host != "" {
			sc.WSSettings.Headers = map[string]string{"Host": host}
		}
	case "grpc":
		sc.GRPCSettings = &conf.GRPCConfig{ServiceName: n.Transport.ServiceName}
	}
	return sc
}

// compact renders a conf value to a generic object, dropping null and empty
// members so the output stays readable.
func compact(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return prune(generic), nil
}

func prune(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			child = prune(child)
			if isEmpty(child) {
				delete(t, k)
				continue
			}
			t[k] = child
		}
		return t
	case []interface{}:
		for i, child := range t {
			t[i] = prune(child)
		}
		return t
	}
	return v
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	}
	return false
}

func jsonRaw(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return json.RawMessage(b)
}
