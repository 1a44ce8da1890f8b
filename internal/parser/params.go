package parser

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"sublink/internal/model"
)

// ParseURLParams splits a share link into its address part (scheme, query and
// fragment stripped), its query parameters and its percent-decoded fragment.
func ParseURLParams(uri string) (address string, params map[string]string, name string) {
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}

	if i := strings.Index(rest, "#"); i >= 0 {
		name = percentDecode(rest[i+1:])
		rest = rest[:i]
	}

	params = make(map[string]string)
	if i := strings.Index(rest, "?"); i >= 0 {
		params = splitQuery(rest[i+1:])
		rest = rest[:i]
	}

	address = strings.TrimSuffix(rest, "/")
	return address, params, name
}

// splitQuery reads "k=v&k2=v2" into a map. Only '&' separates pairs, so raw
// ';' inside values (SIP002 plugin strings, ws paths) is kept. The first
// occurrence of a key wins.
func splitQuery(raw string) map[string]string {
	params := make(map[string]string)
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = percentDecode(key)
		if key == "" {
			continue
		}
		if _, seen := params[key]; seen {
			continue
		}
		params[key] = percentDecode(value)
	}
	return params
}

// CreateTLSConfig maps security-related query keys into a TLS record.
// It returns nil when the link does not ask for TLS.
func CreateTLSConfig(params map[string]string) *model.TLS {
	security := strings.ToLower(params["security"])
	switch security {
	case "tls", "xtls", "reality":
	default:
		return nil
	}

	tls := &model.TLS{
		Enabled:    true,
		ServerName: firstNonEmpty(params["sni"], params["peer"]),
		Insecure:   insecureParam(params, false),
		ALPN:       splitList(params["alpn"]),
	}
	if fp := params["fp"]; fp != "" {
		tls.UTLS = &model.UTLS{Enabled: true, Fingerprint: fp}
	}
	if security == "reality" {
		tls.Reality = &model.Reality{
			Enabled:   true,
			PublicKey: params["pbk"],
			ShortID:   params["sid"],
		}
	}
	return tls
}

// CreateTransportConfig maps the v2ray transport keys into a Transport
// record. Plain tcp yields nil.
func CreateTransportConfig(params map[string]string) (*model.Transport, error) {
	typ := strings.ToLower(params["type"])
	switch typ {
	case "", "tcp", "raw", "none":
		return nil, nil
	case "ws", "httpupgrade":
		t := &model.Transport{Type: typ, Path: params["path"]}
		if host := params["host"]; host != "" {
			t.Headers = map[string]string{"Host": host}
		}
		return t, nil
	case "grpc":
		return &model.Transport{Type: "grpc", ServiceName: params["serviceName"]}, nil
	case "http", "h2":
		return &model.Transport{Type: "http", Path: params["path"], Host: splitList(params["host"])}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", typ)
	}
}

// splitUserInfo separates "userinfo@host:port". The last '@' wins so that
// unescaped '@' inside credentials survives.
func splitUserInfo(address string) (userinfo, hostport string, ok bool) {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return "", address, false
	}
	return address[:at], address[at+1:], true
}

// splitHostPort accepts "host:port" and "[v6]:port".
func splitHostPort(s string) (string, int, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "/")
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		idx := strings.LastIndex(s, ":")
		if idx <= 0 || idx == len(s)-1 {
			return "", 0, fmt.Errorf("invalid server address %q", s)
		}
		host = strings.Trim(s[:idx], "[]")
		portStr = s[idx+1:]
	}
	if host == "" {
		return "", 0, errors.New("empty server host")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid server port %q", portStr)
	}
	return host, port, nil
}

// insecureParam reads the allowInsecure family of keys (1/0/true/false).
func insecureParam(params map[string]string, def bool) bool {
	for _, key := range []string{"allowInsecure", "insecure", "allow_insecure", "skip-cert-verify"} {
		if val := params[key]; val != "" {
			return val == "1" || strings.EqualFold(val, "true")
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// leadingInt parses "100", "100 mbps" or "100Mbps" as 100.
func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
