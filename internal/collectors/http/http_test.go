package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchNon2xxYieldsNoLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusForbidden)
	}))
	defer srv.Close()

	links, err := Fetch(context.Background(), srv.Client(), srv.URL, "")
	if links != nil {
		t.Fatalf("expected nil links, got %v", links)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusForbidden {
		t.Fatalf("expected FetchError with 403, got %v", err)
	}
	if fe.Timeout() {
		t.Fatal("403 is not a timeout")
	}
}

func TestFetchSendsUserAgentAndDecodesBase64(t *testing.T) {
	body := "trojan://pw@a.example:443#a\n\n  \nss://YWVzLTI1Ni1nY206cHc@b.example:8388#b%20two\r\n"
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(base64.StdEncoding.EncodeToString([]byte(body))))
	}))
	defer srv.Close()

	links, err := Fetch(context.Background(), srv.Client(), srv.URL, "clash-verge/1.0")
	if err != nil {
		t.Fatal(err)
	}
	if gotUA != "clash-verge/1.0" {
		t.Fatalf("user agent = %q", gotUA)
	}
	want := []string{"trojan://pw@a.example:443#a", "ss://YWVzLTI1Ni1nY206cHc@b.example:8388#b two"}
	if len(links) != len(want) {
		t.Fatalf("links = %q", links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Fatalf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestFetchDefaultUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("vless://u@h.example:443\n"))
	}))
	defer srv.Close()

	links, err := Fetch(context.Background(), srv.Client(), srv.URL, "")
	if err != nil {
		t.Fatal(err)
	}
	if gotUA != DefaultUserAgent {
		t.Fatalf("user agent = %q", gotUA)
	}
	if len(links) != 1 || links[0] != "vless://u@h.example:443" {
		t.Fatalf("links = %q", links)
	}
}

func TestDecodeBodyRawWithPercentEscapes(t *testing.T) {
	got := DecodeBody("vless://u@h.example:443#caf%C3%A9")
	if got != "vless://u@h.example:443#café" {
		t.Fatalf("got %q", got)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Fetch(ctx, srv.Client(), srv.URL, ""); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
