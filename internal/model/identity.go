package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Hash generates an identifier for the connection described by the node.
// The tag is excluded so renamed copies of the same server collide.
func (n *Node) Hash() string {
	var parts []string

	// --- 1. Protocol & Endpoint ---
	parts = append(parts, string(n.Type))
	parts = append(parts, strings.ToLower(n.Server))
	parts = append(parts, strconv.Itoa(n.ServerPort))

	// --- 2. Authentication ---
	parts = append(parts, n.Method, n.Password, n.UUID, n.Username)

	// "auto" and empty mean the same vmess cipher.
	sec := strings.ToLower(n.Security)
	if sec == "auto" {
		sec = ""
	}
	parts = append(parts, sec)

	// --- 3. Transport ---
	if t := n.Transport; t != nil {
		parts = append(parts, t.Type, t.Path, t.HostHeader(), t.ServiceName)
	} else {
		parts = append(parts, "", "", "", "")
	}

	// --- 4. Security ---
	if n.TLSEnabled() {
		parts = append(parts, "tls", n.TLS.ServerName)
		if r := n.TLS.Reality; r != nil && r.Enabled {
			parts = append(parts, r.PublicKey, r.ShortID)
		}
	}

	// --- 5. Protocol specifics ---
	parts = append(parts, n.Flow, n.CongestionControl, n.Plugin, n.PluginOpts)
	if n.Obfs != nil {
		parts = append(parts, n.Obfs.Type, n.Obfs.Password)
	}

	signature := strings.Join(parts, "|")
	return fmt.Sprintf("%016x", xxh3.HashString(signature))
}
