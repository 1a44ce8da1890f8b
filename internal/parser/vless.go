package parser

import (
	"errors"

	"sublink/internal/model"
)

type vlessParser struct{}

func (vlessParser) Parse(uri string) (*model.Node, error) {
	address, params, name := ParseURLParams(uri)

	userinfo, hostport, ok := splitUserInfo(address)
	if !ok {
		return nil, errors.New("missing uuid")
	}
	uuid := percentDecode(userinfo)
	if uuid == "" {
		return nil, errors.New("empty uuid")
	}

	host, port, err := splitHostPort(hostport)
	if err != nil {
		return nil, err
	}

	tls := CreateTLSConfig(params)
	if tls != nil && tls.Reality != nil {
		if tls.Reality.PublicKey == "" {
			return nil, errors.New("reality without public key")
		}
		// reality handshakes need a browser fingerprint
		tls.UTLS = &model.UTLS{Enabled: true, Fingerprint: "chrome"}
	}

	transport, err := CreateTransportConfig(params)
	if err != nil {
		return nil, err
	}

	return &model.Node{
		Tag:         firstNonEmpty(name, host),
		Type:        model.VLESS,
		Server:      host,
		ServerPort:  port,
		UUID:        uuid,
		Flow:        params["flow"],
		Network:     "tcp",
		TCPFastOpen: false,
		TLS:         tls,
		Transport:   transport,
	}, nil
}
