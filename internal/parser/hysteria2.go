package parser

import (
	"errors"

	"sublink/internal/model"
)

type hysteria2Parser struct{}

// Parse accepts "password@host:port" as well as "host:port?auth=password".
func (hysteria2Parser) Parse(uri string) (*model.Node, error) {
	address, params, name := ParseURLParams(uri)

	var password, hostport string
	if userinfo, hp, ok := splitUserInfo(address); ok {
		password = percentDecode(userinfo)
		hostport = hp
	} else {
		password = params["auth"]
		hostport = address
	}
	if password == "" {
		return nil, errors.New("missing password")
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}

	node := &model.Node{
		Tag:        firstNonEmpty(name, host),
		Type:       model.Hysteria2,
		Server:     host,
		ServerPort: port,
		Password:   password,
		TLS: &model.TLS{
			Enabled:    true,
			ServerName: firstNonEmpty(params["sni"], params["peer"]),
			Insecure:   insecureParam(params, false),
			ALPN:       splitList(params["alpn"]),
		},
		UpMbps:   leadingInt(params["upmbps"]),
		DownMbps: leadingInt(params["downmbps"]),
	}

	if obfsPassword := params["obfs-password"]; obfsPassword != "" {
		node.Obfs = &model.Obfs{
			Type:     firstNonEmpty(params["obfs"], "salamander"),
			Password: obfsPassword,
		}
	}

	return node, nil
}
