package parser

import (
	"errors"
	"net/url"
	"strings"

	"sublink/internal/model"
)

type trojanParser struct{}

func (trojanParser) Parse(uri string) (*model.Node, error) {
	address, params, name := ParseURLParams(uri)

	userinfo, hostport, ok := splitUserInfo(address)
	if !ok {
		return nil, errors.New("missing password")
	}

	var decoded string
	if d, err := url.PathUnescape(userinfo); err == nil {
		decoded = d
	}
	password := trojanPassword(decoded, urlUsername(uri))
	if password == "" {
		return nil, errors.New("empty password")
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}

	// trojan is TLS-only unless the link explicitly opts out
	if params["security"] == "" {
		params["security"] = "tls"
	}
	tls := CreateTLSConfig(params)

	transport, err := CreateTransportConfig(params)
	if err != nil {
		return nil, err
	}

	return &model.Node{
		Tag:         firstNonEmpty(name, host),
		Type:        model.Trojan,
		Server:      host,
		ServerPort:  port,
		Password:    password,
		Network:     "tcp",
		TCPFastOpen: false,
		TLS:         tls,
		Transport:   transport,
	}, nil
}

// trojanPassword: the decoded userinfo wins, the URL username is only a
// fallback.
func trojanPassword(decodedUserinfo, username string) string {
	if strings.TrimSpace(decodedUserinfo) != "" {
		return decodedUserinfo
	}
	return username
}

func urlUsername(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return ""
	}
	return u.User.Username()
}
