package rules

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/idna"
)

// CustomRule is a caller-defined rule routed to its own group. List-valued
// fields are comma separated, as they arrive from the query string.
type CustomRule struct {
	Name          string `json:"name"`
	Site          string `json:"site,omitempty"`
	IP            string `json:"ip,omitempty"`
	DomainSuffix  string `json:"domain_suffix,omitempty"`
	DomainKeyword string `json:"domain_keyword,omitempty"`
	IPCIDR        string `json:"ip_cidr,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
}

// Outbound is the group name the rule routes to.
func (r CustomRule) Outbound() string {
	return r.Name
}

func (r CustomRule) Sites() []string          { return splitList(r.Site) }
func (r CustomRule) IPs() []string            { return splitList(r.IP) }
func (r CustomRule) DomainSuffixes() []string { return splitList(r.DomainSuffix) }
func (r CustomRule) DomainKeywords() []string { return splitList(r.DomainKeyword) }
func (r CustomRule) IPCIDRs() []string        { return splitList(r.IPCIDR) }
func (r CustomRule) Protocols() []string      { return splitList(r.Protocol) }

// Empty reports a rule that matches nothing.
func (r CustomRule) Empty() bool {
	return r.Site == "" && r.IP == "" && r.DomainSuffix == "" && r.DomainKeyword == "" &&
		r.IPCIDR == "" && r.Protocol == ""
}

// ParseCustomRules decodes the customRules JSON array. Empty input is no rules.
// Domains are converted to their ASCII form and CIDRs validated.
func ParseCustomRules(raw string) ([]CustomRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.Contains(raw, "%") {
		if d, err := url.QueryUnescape(raw); err == nil {
			raw = d
		}
	}

	var list []CustomRule
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("invalid custom rules: %w", err)
	}

	seen := make(map[string]bool)
	for i := range list {
		r := &list[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			return nil, fmt.Errorf("custom rule %d has no name", i)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate custom rule name %q", r.Name)
		}
		seen[r.Name] = true
		if r.Empty() {
			return nil, fmt.Errorf("custom rule %q matches nothing", r.Name)
		}

		suffixes, err := toASCII(r.DomainSuffixes())
		if err != nil {
			return nil, fmt.Errorf("custom rule %q: %w", r.Name, err)
		}
		r.DomainSuffix = strings.Join(suffixes, ",")

		for _, cidr := range r.IPCIDRs() {
			if _, err := netip.ParsePrefix(cidr); err != nil {
				return nil, fmt.Errorf("custom rule %q: invalid ip_cidr %q", r.Name, cidr)
			}
		}
	}
	return list, nil
}

func toASCII(domains []string) ([]string, error) {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		ascii, err := idna.Lookup.ToASCII(strings.TrimPrefix(d, "."))
		if err != nil {
			return nil, fmt.Errorf("invalid domain %q: %w", d, err)
		}
		out = append(out, ascii)
	}
	return out, nil
}

func splitList(s string) []string {
	parts := lo.Map(strings.Split(s, ","), func(p string, _ int) string { return strings.TrimSpace(p) })
	return lo.Compact(parts)
}
