package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"sublink/internal/model"
)

type vmessParser struct{}

// vmessJSON is the v2rayN link payload. Port and aid show up both as numbers
// and as strings in the wild.
type vmessJSON struct {
	V    interface{} `json:"v"`
	Ps   string      `json:"ps"`
	Add  string      `json:"add"`
	Port interface{} `json:"port"`
	ID   string      `json:"id"`
	Aid  interface{} `json:"aid"`
	Scy  string      `json:"scy"`
	Net  string      `json:"net"`
	Type string      `json:"type"`
	Host string      `json:"host"`
	Path string      `json:"path"`
	TLS  string      `json:"tls"`
	Sni  string      `json:"sni"`
	Alpn string      `json:"alpn"`
	Fp   string      `json:"fp"`
}

func (vmessParser) Parse(uri string) (*model.Node, error) {
	_, payload, _ := strings.Cut(uri, "://")

	jsonStr, err := DecodeBase64(payload)
	if err != nil {
		return nil, fmt.Errorf("vmess base64 error: %w", err)
	}

	var v vmessJSON
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, fmt.Errorf("vmess json error: %w", err)
	}

	port := jsonInt(v.Port)
	if v.Add == "" || v.ID == "" {
		return nil, errors.New("missing server or id")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid server port %v", v.Port)
	}

	node := &model.Node{
		Tag:         firstNonEmpty(v.Ps, v.Add),
		Type:        model.VMess,
		Server:      v.Add,
		ServerPort:  port,
		UUID:        v.ID,
		AlterID:     jsonInt(v.Aid),
		Security:    firstNonEmpty(v.Scy, "auto"),
		Network:     "tcp",
		TCPFastOpen: false,
	}

	switch strings.ToLower(v.Net) {
	case "ws", "httpupgrade":
		t := &model.Transport{Type: strings.ToLower(v.Net), Path: v.Path}
		if host := firstNonEmpty(v.Host, v.Sni); host != "" {
			t.Headers = map[string]string{"Host": host}
		}
		node.Transport = t
	case "grpc":
		node.Transport = &model.Transport{Type: "grpc", ServiceName: v.Path}
	case "h2", "http":
		node.Transport = &model.Transport{Type: "http", Path: v.Path, Host: splitList(v.Host)}
	}

	if v.TLS != "" && v.TLS != "none" {
		node.TLS = &model.TLS{
			Enabled:    true,
			ServerName: firstNonEmpty(v.Sni, v.Host),
			ALPN:       splitList(v.Alpn),
		}
		if v.Fp != "" {
			node.TLS.UTLS = &model.UTLS{Enabled: true, Fingerprint: v.Fp}
		}
	}

	return node, nil
}

// jsonInt reads a JSON number or numeric string; anything else is 0.
func jsonInt(v interface{}) int {
	if v == nil {
		return 0
	}
	n, _ := strconv.Atoi(strings.TrimSpace(fmt.Sprintf("%v", v)))
	return n
}
