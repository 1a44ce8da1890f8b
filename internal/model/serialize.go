package model

import (
	"encoding/base64"
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ToURI converts a Node back into its share-link form.
func (n *Node) ToURI() string {
	switch n.Type {
	case VMess:
		return n.toVMessURI()
	case Shadowsocks:
		return n.toShadowsocksURI()
	default:
		// VLESS, Trojan, Hysteria2, TUIC, Socks5 share a common URI structure
		return n.toGenericURI()
	}
}

type vmessLink struct {
	V    string `json:"v"`
	Ps   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Host string `json:"host,omitempty"`
	Path string `json:"path,omitempty"`
	TLS  string `json:"tls,omitempty"`
	Sni  string `json:"sni,omitempty"`
	Alpn string `json:"alpn,omitempty"`
	Fp   string `json:"fp,omitempty"`
}

func (n *Node) toVMessURI() string {
	v := vmessLink{
		V:    "2",
		Ps:   n.Tag,
		Add:  n.Server,
		Port: strconv.Itoa(n.ServerPort),
		ID:   n.UUID,
		Aid:  strconv.Itoa(n.AlterID),
		Scy:  n.Security,
		Net:  "tcp",
	}
	if t := n.Transport; t != nil {
		v.Net = t.Type
		v.Host = t.HostHeader()
		v.Path = t.Path
		if t.Type == "grpc" {
			v.Path = t.ServiceName
		}
	}
	if n.TLSEnabled() {
		v.TLS = "tls"
		v.Sni = n.TLS.ServerName
		v.Alpn = strings.Join(n.TLS.ALPN, ",")
		if n.TLS.UTLS != nil {
			v.Fp = n.TLS.UTLS.Fingerprint
		}
	}

	b, _ := json.Marshal(v)
	return "vmess://" + base64.StdEncoding.EncodeToString(b)
}

func (n *Node) toShadowsocksURI() string {
	userInfo := n.Method + ":" + n.Password

	// SIP002 form keeps special characters out of the authority
	safeUser := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(userInfo))

	u := url.URL{
		Scheme:   "ss",
		User:     url.User(safeUser),
		Host:     n.hostPort(),
		Fragment: n.Tag,
	}
	if n.Plugin != "" {
		plugin := n.Plugin
		if n.PluginOpts != "" {
			plugin += ";" + n.PluginOpts
		}
		u.Path = "/"
		u.RawQuery = encodeQuery(url.Values{"plugin": {plugin}})
	}
	return u.String()
}

func (n *Node) toGenericURI() string {
	u := url.URL{
		Scheme:   string(n.Type),
		Host:     n.hostPort(),
		Fragment: n.Tag,
	}

	switch n.Type {
	case VLESS:
		u.User = url.User(n.UUID)
	case TUIC:
		u.User = url.UserPassword(n.UUID, n.Password)
	case Socks5:
		if n.Username != "" {
			if n.Password != "" {
				u.User = url.UserPassword(n.Username, n.Password)
			} else {
				u.User = url.User(n.Username)
			}
		}
	default:
		u.User = url.User(n.Password)
	}

	q := url.Values{}

	// Transport
	if t := n.Transport; t != nil {
		q.Set("type", t.Type)
		if t.Path != "" {
			q.Set("path", t.Path)
		}
		if h := t.HostHeader(); h != "" {
			q.Set("host", h)
		}
		if t.ServiceName != "" {
			q.Set("serviceName", t.ServiceName)
		}
	}

	// TLS / Reality
	if n.TLSEnabled() {
		security := "tls"
		if r := n.TLS.Reality; r != nil && r.Enabled {
			security = "reality"
			q.Set("pbk", r.PublicKey)
			if r.ShortID != "" {
				q.Set("sid", r.ShortID)
			}
		}
		if n.Type == VLESS || n.Type == Trojan {
			q.Set("security", security)
		}
		if n.TLS.ServerName != "" {
			q.Set("sni", n.TLS.ServerName)
		}
		if len(n.TLS.ALPN) > 0 {
			q.Set("alpn", strings.Join(n.TLS.ALPN, ","))
		}
		if n.TLS.UTLS != nil && n.TLS.UTLS.Fingerprint != "" {
			q.Set("fp", n.TLS.UTLS.Fingerprint)
		}
		if n.TLS.Insecure {
			q.Set("insecure", "1")
		} else if n.Type == TUIC {
			// tuic links default to insecure when the key is absent
			q.Set("insecure", "0")
		}
	} else if n.Type == Trojan {
		// trojan links default to tls when security is absent
		q.Set("security", "none")
	}

	if n.Flow != "" {
		q.Set("flow", n.Flow)
	}
	if n.CongestionControl != "" {
		q.Set("congestion_control", n.CongestionControl)
	}

	// Hysteria2
	if n.Obfs != nil {
		q.Set("obfs", n.Obfs.Type)
		q.Set("obfs-password", n.Obfs.Password)
	}
	if n.UpMbps > 0 {
		q.Set("upmbps", strconv.Itoa(n.UpMbps))
	}
	if n.DownMbps > 0 {
		q.Set("downmbps", strconv.Itoa(n.DownMbps))
	}

	if len(q) > 0 {
		u.Path = "/"
		u.RawQuery = encodeQuery(q)
	}
	return u.String()
}

// encodeQuery is url.Values.Encode with spaces written as %20; the link
// parsers read '+' literally.
func encodeQuery(q url.Values) string {
	return strings.ReplaceAll(q.Encode(), "+", "%20")
}

func (n *Node) hostPort() string {
	return net.JoinHostPort(n.Server, strconv.Itoa(n.ServerPort))
}
