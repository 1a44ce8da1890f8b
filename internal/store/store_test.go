package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type clockSetter interface {
	Store
	setNow(func() time.Time)
}

func (s *SQLite) setNow(f func() time.Time) { s.now = f }
func (b *Bolt) setNow(f func() time.Time)   { b.now = f }

func openAll(t *testing.T) map[string]clockSetter {
	t.Helper()
	dir := t.TempDir()
	sq, err := OpenSQLite(filepath.Join(dir, "kv.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	bo, err := OpenBolt(filepath.Join(dir, "nested", "kv.bolt"))
	if err != nil {
		t.Fatalf("bolt: %v", err)
	}
	t.Cleanup(func() {
		sq.Close()
		bo.Close()
	})
	return map[string]clockSetter{"sqlite": sq, "bolt": bo}
}

func TestPutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
				t.Fatalf("missing key: ok=%v err=%v", ok, err)
			}
			if err := s.Put(ctx, "k", "v1", 0); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "k", "v2", 0); err != nil {
				t.Fatal(err)
			}
			v, ok, err := s.Get(ctx, "k")
			if err != nil || !ok || v != "v2" {
				t.Fatalf("Get = %q, %v, %v", v, ok, err)
			}
		})
	}
}

func TestExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	for name, s := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			s.setNow(func() time.Time { return base })

			if err := s.Put(ctx, "short", "a", time.Hour); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "long", "b", 48*time.Hour); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "forever", "c", 0); err != nil {
				t.Fatal(err)
			}

			s.setNow(func() time.Time { return base.Add(2 * time.Hour) })
			if _, ok, _ := s.Get(ctx, "short"); ok {
				t.Error("expired entry still visible")
			}
			if _, ok, _ := s.Get(ctx, "long"); !ok {
				t.Error("live entry hidden")
			}

			n, err := s.Purge(ctx)
			if err != nil || n != 1 {
				t.Fatalf("Purge = %d, %v", n, err)
			}
			if _, ok, _ := s.Get(ctx, "forever"); !ok {
				t.Error("entry without ttl purged")
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("redis", "x"); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

func TestNewCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		c := NewCode(8)
		if len(c) != 8 || strings.Trim(c, codeAlphabet) != "" {
			t.Fatalf("bad code %q", c)
		}
		seen[c] = true
	}
	if len(seen) < 45 {
		t.Errorf("codes repeat too often: %d distinct", len(seen))
	}
	if len(NewCode(0)) != DefaultCodeLength {
		t.Error("default length not applied")
	}
}

func TestSaveBaseConfig(t *testing.T) {
	ctx := context.Background()
	s := openAll(t)["bolt"]

	id, err := SaveBaseConfig(ctx, s, "clash", "port: 7890\nrules:\n  - MATCH,DIRECT\n")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(id, "clash_") || len(id) != len("clash_")+8 {
		t.Errorf("id = %q", id)
	}
	if target, ok := BaseConfigTarget(id); !ok || target != "clash" {
		t.Errorf("BaseConfigTarget(%q) = %q, %v", id, target, ok)
	}

	doc, ok, err := LoadBaseConfig(ctx, s, id)
	if err != nil || !ok {
		t.Fatalf("load: %v %v", ok, err)
	}
	if doc["port"] != float64(7890) {
		t.Errorf("port = %#v", doc["port"])
	}
	if rules, _ := doc["rules"].([]interface{}); len(rules) != 1 {
		t.Errorf("rules = %#v", doc["rules"])
	}

	if _, err := SaveBaseConfig(ctx, s, "singbox", "port: 1"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("YAML accepted for singbox: %v", err)
	}
	if _, err := SaveBaseConfig(ctx, s, "singbox", "[1,2]"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("array accepted: %v", err)
	}
	if _, err := SaveBaseConfig(ctx, s, "quantumult", "{}"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown type accepted: %v", err)
	}
	if _, ok, _ := LoadBaseConfig(ctx, s, "clash_missing"); ok {
		t.Error("missing id found")
	}
}
