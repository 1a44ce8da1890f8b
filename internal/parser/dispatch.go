package parser

import (
	"fmt"
	"strings"

	"sublink/internal/model"
)

// Parser turns one share link of a single protocol into a Node.
type Parser interface {
	Parse(uri string) (*model.Node, error)
}

// Result is what a link resolves to: a node, or a subscription URL whose body
// holds more links.
type Result struct {
	Node         *model.Node
	Subscription string
}

var schemes = map[string]model.Protocol{
	"ss":        model.Shadowsocks,
	"vmess":     model.VMess,
	"vless":     model.VLESS,
	"trojan":    model.Trojan,
	"hysteria":  model.Hysteria2,
	"hysteria2": model.Hysteria2,
	"hy2":       model.Hysteria2,
	"tuic":      model.TUIC,
	"socks":     model.Socks5,
	"socks5":    model.Socks5,
}

// ProtocolOf maps a link scheme, aliases included, to its protocol.
func ProtocolOf(scheme string) (model.Protocol, bool) {
	p, ok := schemes[strings.ToLower(scheme)]
	return p, ok
}

// ParserFor returns the parser of a protocol, or nil for an unknown one.
func ParserFor(p model.Protocol) Parser {
	switch p {
	case model.Shadowsocks:
		return shadowsocksParser{}
	case model.VMess:
		return vmessParser{}
	case model.VLESS:
		return vlessParser{}
	case model.Trojan:
		return trojanParser{}
	case model.Hysteria2:
		return hysteria2Parser{}
	case model.TUIC:
		return tuicParser{}
	case model.Socks5:
		return socks5Parser{}
	}
	return nil
}

// Parse resolves a single link. Links wrapped whole in base64 are unwrapped
// first; http(s) links come back as subscriptions, untouched.
func Parse(link string) (res *Result, err error) {
	link = cleanLink(link)
	original := link

	if decoded, derr := DecodeBase64(link); derr == nil && strings.Contains(decoded, "://") {
		link = cleanLink(decoded)
	}

	rawScheme, _, found := strings.Cut(link, "://")
	if !found {
		return nil, &ParseError{Kind: ErrUnsupportedScheme, Err: fmt.Errorf("no scheme in %q", truncate(link, 32))}
	}
	scheme := strings.ToLower(rawScheme)

	if scheme == "http" || scheme == "https" {
		return &Result{Subscription: original}, nil
	}

	proto, ok := schemes[scheme]
	p := ParserFor(proto)
	if !ok || p == nil {
		return nil, &ParseError{Scheme: scheme, Kind: ErrUnsupportedScheme}
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = malformed(scheme, fmt.Errorf("panic: %v", r))
		}
	}()

	node, perr := p.Parse(link)
	if perr != nil {
		return nil, malformed(scheme, perr)
	}
	return &Result{Node: node}, nil
}

// ParseNode is Parse for callers that cannot follow subscriptions.
func ParseNode(link string) (*model.Node, error) {
	res, err := Parse(link)
	if err != nil {
		return nil, err
	}
	if res.Node == nil {
		return nil, &ParseError{Scheme: "http", Kind: ErrUnsupportedScheme, Err: fmt.Errorf("subscription links need fetching")}
	}
	return res.Node, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
