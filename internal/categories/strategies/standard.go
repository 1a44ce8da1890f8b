package strategies

import (
	"strings"

	"github.com/samber/lo"

	"sublink/internal/categories"
	"sublink/internal/model"
)

type StandardStrategy struct{}

func (s *StandardStrategy) Name() string {
	return "standard"
}

// IsCandidate checks protocol, UDP/TLS capability and tag constraints.
func (s *StandardStrategy) IsCandidate(node model.Node, config map[string]interface{}) bool {
	// 1. Protocol Filter (single name or list)
	switch v := config["protocol"].(type) {
	case string:
		if v != "" && string(node.Type) != v {
			return false
		}
	case []string:
		if len(v) > 0 && !containsFold(v, string(node.Type)) {
			return false
		}
	case []interface{}:
		if len(v) > 0 {
			var names []string
			for _, item := range v {
				if s, ok := item.(string); ok {
					names = append(names, s)
				}
			}
			if !containsFold(names, string(node.Type)) {
				return false
			}
		}
	}

	// 2. Capability Filters
	if requireUDP, ok := config["require_udp"].(bool); ok && requireUDP && !node.SupportsUDP() {
		return false
	}
	if requireTLS, ok := config["require_tls"].(bool); ok && requireTLS && !node.TLSEnabled() {
		return false
	}

	// 3. Tag Filter, case-insensitive substring
	if needle, ok := config["tag_contains"].(string); ok && needle != "" {
		if !strings.Contains(strings.ToLower(node.Tag), strings.ToLower(needle)) {
			return false
		}
	}

	return true
}

func containsFold(list []string, s string) bool {
	return lo.ContainsBy(list, func(item string) bool { return strings.EqualFold(item, s) })
}

func init() {
	categories.Register("standard", func() categories.Strategy { return &StandardStrategy{} })
}
