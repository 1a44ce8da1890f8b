package parser

import (
	"errors"
	"fmt"
	"strings"

	"sublink/internal/model"
)

type shadowsocksParser struct{}

// Parse handles SIP002 (userinfo@host:port) and the legacy form where the
// whole "method:password@host:port" is base64 encoded.
func (shadowsocksParser) Parse(uri string) (*model.Node, error) {
	_, body, _ := strings.Cut(uri, "://")

	var tag string
	if i := strings.Index(body, "#"); i >= 0 {
		tag = body[i+1:]
		body = body[:i]
		if strings.Contains(tag, "%") {
			tag = percentDecode(tag)
		}
	}

	var plugin, pluginOpts string
	if i := strings.Index(body, "?"); i >= 0 {
		q := splitQuery(body[i+1:])
		plugin, pluginOpts, _ = strings.Cut(q["plugin"], ";")
		body = body[:i]
	}
	body = strings.TrimSuffix(body, "/")

	var method, password, serverPart string
	if userinfo, hostport, ok := splitUserInfo(body); ok {
		var err error
		method, password, err = decodeShadowsocksUserInfo(userinfo)
		if err != nil {
			return nil, err
		}
		serverPart = hostport
	} else {
		decoded, err := DecodeBase64(body)
		if err != nil {
			return nil, fmt.Errorf("legacy payload: %w", err)
		}
		creds, hostport, ok := splitUserInfo(decoded)
		if !ok {
			return nil, errors.New("legacy payload has no server part")
		}
		method, password, _ = strings.Cut(creds, ":")
		serverPart = hostport
	}

	if method == "" || password == "" {
		return nil, errors.New("missing method or password")
	}

	host, port, err := splitHostPort(serverPart)
	if err != nil {
		return nil, err
	}

	return &model.Node{
		Tag:         firstNonEmpty(tag, "Shadowsocks"),
		Type:        model.Shadowsocks,
		Server:      host,
		ServerPort:  port,
		Method:      method,
		Password:    password,
		Network:     "tcp",
		TCPFastOpen: false,
		Plugin:      plugin,
		PluginOpts:  pluginOpts,
	}, nil
}

// decodeShadowsocksUserInfo accepts base64(method:password) and, for AEAD-2022
// style links, percent-encoded plaintext method:password.
func decodeShadowsocksUserInfo(userinfo string) (string, string, error) {
	userinfo = percentDecode(userinfo)
	if decoded, err := DecodeBase64(userinfo); err == nil && strings.Contains(decoded, ":") {
		method, password, _ := strings.Cut(decoded, ":")
		return method, password, nil
	}
	if method, password, ok := strings.Cut(userinfo, ":"); ok {
		return method, password, nil
	}
	return "", "", errors.New("undecodable userinfo")
}
