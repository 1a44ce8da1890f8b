package rules

import (
	"strings"
	"testing"
)

func names(cats []Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}

func TestResolveDefaultsToMinimal(t *testing.T) {
	cats, err := Resolve("")
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(names(cats), ",")
	if got != "Private,Location:CN,Non-China" {
		t.Fatalf("got %s", got)
	}
}

func TestResolvePresetsAndLists(t *testing.T) {
	cats, err := Resolve("comprehensive")
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != len(All()) {
		t.Fatalf("comprehensive should select all %d categories, got %d", len(All()), len(cats))
	}

	// caller order does not matter, registry order wins
	cats, err = Resolve(`["Non-China","Ad Block"]`)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(names(cats), ","); got != "Ad Block,Non-China" {
		t.Fatalf("got %s", got)
	}

	cats, err = Resolve("%5B%22Google%22%5D")
	if err != nil || len(cats) != 1 || cats[0].Name != "Google" {
		t.Fatalf("escaped list: %v %v", names(cats), err)
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	if _, err := Resolve("not-a-preset"); err == nil {
		t.Fatal("expected error for malformed selection")
	}
	if _, err := Resolve(`["Nope"]`); err == nil || !strings.Contains(err.Error(), "Nope") {
		t.Fatalf("expected unknown category error, got %v", err)
	}
}

func TestParseCustomRules(t *testing.T) {
	list, err := ParseCustomRules(`[{"name":"Work","domain_suffix":"corp.example, bücher.example","ip_cidr":"10.0.0.0/8"}]`)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d rules", len(list))
	}
	suffixes := list[0].DomainSuffixes()
	if len(suffixes) != 2 || suffixes[1] != "xn--bcher-kva.example" {
		t.Fatalf("suffixes = %v", suffixes)
	}

	if list, err := ParseCustomRules(""); err != nil || list != nil {
		t.Fatalf("empty input: %v %v", list, err)
	}
	for _, bad := range []string{
		`{`,
		`[{"domain_suffix":"a.com"}]`,
		`[{"name":"x"}]`,
		`[{"name":"x","ip_cidr":"300.0.0.0/8"}]`,
		`[{"name":"x","site":"a"},{"name":"x","site":"b"}]`,
	} {
		if _, err := ParseCustomRules(bad); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestSourcesWithDefaults(t *testing.T) {
	s := Sources{ClashSite: "https://mirror.example/%s.mrs"}.WithDefaults()
	if s.ClashSiteURL("google") != "https://mirror.example/google.mrs" {
		t.Fatalf("got %s", s.ClashSiteURL("google"))
	}
	if s.SingboxIPURL("cn") != "https://raw.githubusercontent.com/lyc8503/sing-box-rules/rule-set-geoip/geoip-cn.srs" {
		t.Fatalf("got %s", s.SingboxIPURL("cn"))
	}
}
