package model

// Protocol is the canonical proxy type of a Node.
type Protocol string

const (
	Shadowsocks Protocol = "shadowsocks"
	VMess       Protocol = "vmess"
	VLESS       Protocol = "vless"
	Trojan      Protocol = "trojan"
	Hysteria2   Protocol = "hysteria2"
	TUIC        Protocol = "tuic"
	Socks5      Protocol = "socks5"
)

// Protocols lists every supported protocol in display order.
var Protocols = []Protocol{Shadowsocks, VMess, VLESS, Trojan, Hysteria2, TUIC, Socks5}

// Node is the canonical, protocol-agnostic descriptor of one proxy endpoint.
// JSON field names follow sing-box outbound naming.
type Node struct {
	Tag        string   `json:"tag"`
	Type       Protocol `json:"type"`
	Server     string   `json:"server"`
	ServerPort int      `json:"server_port"`

	// Credentials, shape depends on Type.
	Method   string `json:"method,omitempty"`
	Password string `json:"password,omitempty"`
	UUID     string `json:"uuid,omitempty"`
	AlterID  int    `json:"alter_id,omitempty"`
	Security string `json:"security,omitempty"`
	Username string `json:"username,omitempty"`

	Network     string `json:"network,omitempty"`
	TCPFastOpen bool   `json:"tcp_fast_open,omitempty"`

	TLS       *TLS       `json:"tls,omitempty"`
	Transport *Transport `json:"transport,omitempty"`

	// Protocol extras.
	Flow              string `json:"flow,omitempty"`
	Obfs              *Obfs  `json:"obfs,omitempty"`
	CongestionControl string `json:"congestion_control,omitempty"`
	UpMbps            int    `json:"up_mbps,omitempty"`
	DownMbps          int    `json:"down_mbps,omitempty"`
	Plugin            string `json:"plugin,omitempty"`
	PluginOpts        string `json:"plugin_opts,omitempty"`
}

type TLS struct {
	Enabled    bool     `json:"enabled"`
	ServerName string   `json:"server_name,omitempty"`
	Insecure   bool     `json:"insecure,omitempty"`
	ALPN       []string `json:"alpn,omitempty"`
	UTLS       *UTLS    `json:"utls,omitempty"`
	Reality    *Reality `json:"reality,omitempty"`
}

type UTLS struct {
	Enabled     bool   `json:"enabled"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type Reality struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"public_key,omitempty"`
	ShortID   string `json:"short_id,omitempty"`
}

// Transport is the inner (v2ray) transport carried over the node connection.
type Transport struct {
	Type        string            `json:"type"` // ws, grpc, http, httpupgrade
	Path        string            `json:"path,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Host        []string          `json:"host,omitempty"` // http transport only
	ServiceName string            `json:"service_name,omitempty"`
}

type Obfs struct {
	Type     string `json:"type"`
	Password string `json:"password,omitempty"`
}

// TLSEnabled is a nil-safe accessor.
func (n *Node) TLSEnabled() bool {
	return n.TLS != nil && n.TLS.Enabled
}

// SupportsUDP reports whether the node carries UDP. Nodes pinned to the tcp
// network are TCP-only in every supported client.
func (n *Node) SupportsUDP() bool {
	return n.Network != "tcp"
}

// HostHeader returns the Host header of a ws/httpupgrade transport, if any.
func (t *Transport) HostHeader() string {
	if t == nil {
		return ""
	}
	if h := t.Headers["Host"]; h != "" {
		return h
	}
	if len(t.Host) > 0 {
		return t.Host[0]
	}
	return ""
}
