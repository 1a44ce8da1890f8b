package parser

import (
	"errors"
	"strings"

	"sublink/internal/model"
)

type tuicParser struct{}

func (tuicParser) Parse(uri string) (*model.Node, error) {
	address, params, name := ParseURLParams(uri)

	userinfo, hostport, ok := splitUserInfo(address)
	if !ok {
		return nil, errors.New("missing uuid:password")
	}
	// only the first colon separates; the password may hold more
	uuid, password, _ := strings.Cut(percentDecode(userinfo), ":")
	if uuid == "" || password == "" {
		return nil, errors.New("missing uuid or password")
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}

	return &model.Node{
		Tag:        firstNonEmpty(name, host),
		Type:       model.TUIC,
		Server:     host,
		ServerPort: port,
		UUID:       uuid,
		Password:   password,
		TLS: &model.TLS{
			Enabled:    true,
			ServerName: params["sni"],
			Insecure:   insecureParam(params, true),
			ALPN:       splitList(params["alpn"]),
		},
		CongestionControl: firstNonEmpty(params["congestion_control"], params["congestion-control"]),
	}, nil
}
