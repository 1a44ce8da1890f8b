package strategies

import (
	"testing"

	"sublink/internal/categories"
	"sublink/internal/model"
)

func TestStandardStrategy(t *testing.T) {
	tcpNode := model.Node{Tag: "HK vmess", Type: model.VMess, Network: "tcp"}
	quicNode := model.Node{Tag: "JP hy2", Type: model.Hysteria2, TLS: &model.TLS{Enabled: true}}

	cases := []struct {
		params map[string]interface{}
		node   model.Node
		want   bool
	}{
		{nil, tcpNode, true},
		{map[string]interface{}{"require_udp": true}, tcpNode, false},
		{map[string]interface{}{"require_udp": true}, quicNode, true},
		{map[string]interface{}{"require_tls": true}, tcpNode, false},
		{map[string]interface{}{"protocol": "vmess"}, tcpNode, true},
		{map[string]interface{}{"protocol": []interface{}{"tuic", "hysteria2"}}, tcpNode, false},
		{map[string]interface{}{"protocol": []interface{}{"tuic", "hysteria2"}}, quicNode, true},
		{map[string]interface{}{"tag_contains": "hk"}, tcpNode, true},
		{map[string]interface{}{"tag_contains": "hk"}, quicNode, false},
	}
	for i, tc := range cases {
		if got := categories.Accepts("standard", tc.params, tc.node); got != tc.want {
			t.Fatalf("case %d: got %v want %v", i, got, tc.want)
		}
	}

	if !categories.Accepts("no-such-strategy", map[string]interface{}{"require_udp": true}, tcpNode) {
		t.Fatal("unknown strategy should admit every node")
	}
}
