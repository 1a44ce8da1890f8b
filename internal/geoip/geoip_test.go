package geoip

import "testing"

func TestFlag(t *testing.T) {
	if got := Flag("hk"); got != "🇭🇰" {
		t.Fatalf("Flag(hk) = %q", got)
	}
	if got := Flag("XYZ"); got != "🌐" {
		t.Fatalf("Flag(XYZ) = %q", got)
	}
}

func TestNilResolverIsSafe(t *testing.T) {
	var r *Resolver
	if _, ok := r.Country("1.1.1.1"); ok {
		t.Fatal("nil resolver should not resolve")
	}
	r.Close()
}

func TestOpenMissingDatabase(t *testing.T) {
	if _, err := Open(t.TempDir() + "/missing.mmdb"); err == nil {
		t.Fatal("expected error for missing database")
	}
}
