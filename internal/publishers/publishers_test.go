package publishers_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"sublink/internal/model"
	"sublink/internal/publishers"
	_ "sublink/internal/publishers/file"
	_ "sublink/internal/publishers/github"
)

func ssNode(tag string) model.Node {
	return model.Node{
		Tag: tag, Type: model.Shadowsocks, Server: "1.2.3.4", ServerPort: 8388,
		Method: "aes-128-gcm", Password: "secret",
	}
}

func TestLinksPayloadDedupes(t *testing.T) {
	a := publishers.Artifact{
		Name:   "all",
		Target: publishers.TargetLinks,
		Nodes:  []model.Node{ssNode("one"), ssNode("two")},
	}
	out, err := publishers.Payload(a, map[string]interface{}{})
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d lines: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ss://") {
		t.Errorf("unexpected link %q", lines[0])
	}

	enc, err := publishers.Payload(a, map[string]interface{}{"base64": true})
	if err != nil {
		t.Fatalf("Payload base64: %v", err)
	}
	dec, err := base64.StdEncoding.DecodeString(string(enc))
	if err != nil || string(dec) != string(out) {
		t.Errorf("base64 payload mismatch: %q", enc)
	}
}

func TestLinksPayloadEmpty(t *testing.T) {
	_, err := publishers.Payload(publishers.Artifact{Name: "x", Target: publishers.TargetLinks}, nil)
	if err == nil {
		t.Fatal("expected error for empty links artifact")
	}
}

func TestFileName(t *testing.T) {
	cases := map[string]string{
		"clash":                 "a.yaml",
		"surge":                 "a.conf",
		"singbox":               "a.json",
		"xray":                  "a.json",
		publishers.TargetLinks: "a.txt",
	}
	for target, want := range cases {
		if got := publishers.FileName(publishers.Artifact{Name: "a", Target: target}); got != want {
			t.Errorf("FileName(%s) = %s, want %s", target, got, want)
		}
	}
}

func TestFilePublisher(t *testing.T) {
	dir := t.TempDir()
	p, err := publishers.Get("file")
	if err != nil {
		t.Fatal(err)
	}
	artifacts := []publishers.Artifact{
		{Name: "home", Target: "clash", Data: []byte("proxies: []\n")},
		{Name: "home", Target: "singbox", Data: []byte("{}")},
	}
	if err := p.Publish(context.Background(), artifacts, map[string]interface{}{"dir": dir}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "home.yaml"))
	if err != nil || string(got) != "proxies: []\n" {
		t.Errorf("home.yaml = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "home.json")); err != nil {
		t.Errorf("home.json missing: %v", err)
	}

	err = p.Publish(context.Background(), artifacts, map[string]interface{}{"path": filepath.Join(dir, "one.json")})
	if err == nil {
		t.Error("expected error when path is used with several artifacts")
	}
}

func TestGithubPublisherCreatesAndUpdates(t *testing.T) {
	var mu sync.Mutex
	puts := map[string]map[string]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			if strings.HasSuffix(r.URL.Path, "/out/home.yaml") {
				json.NewEncoder(w).Encode(map[string]string{"sha": "abc123"})
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			var req map[string]string
			json.Unmarshal(body, &req)
			mu.Lock()
			puts[r.URL.Path] = req
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	p, err := publishers.Get("github")
	if err != nil {
		t.Fatal(err)
	}
	artifacts := []publishers.Artifact{
		{Name: "home", Target: "clash", Data: []byte("mode: rule\n")},
		{Name: "home", Target: "singbox", Data: []byte("{}")},
	}
	cfg := map[string]interface{}{
		"token": "tok", "owner": "me", "repo": "subs", "dir": "out",
		"branch": "main", "api_url": srv.URL,
	}
	if err := p.Publish(context.Background(), artifacts, cfg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	yamlPut, ok := puts["/repos/me/subs/contents/out/home.yaml"]
	if !ok {
		t.Fatalf("no PUT for home.yaml, got %v", puts)
	}
	if yamlPut["sha"] != "abc123" {
		t.Errorf("update should carry existing sha, got %q", yamlPut["sha"])
	}
	if yamlPut["branch"] != "main" {
		t.Errorf("branch = %q", yamlPut["branch"])
	}
	content, _ := base64.StdEncoding.DecodeString(yamlPut["content"])
	if string(content) != "mode: rule\n" {
		t.Errorf("content = %q", content)
	}

	jsonPut, ok := puts["/repos/me/subs/contents/out/home.json"]
	if !ok {
		t.Fatalf("no PUT for home.json")
	}
	if jsonPut["sha"] != "" {
		t.Errorf("new file should not carry a sha, got %q", jsonPut["sha"])
	}
}

func TestGithubPublisherRequiresParams(t *testing.T) {
	p, _ := publishers.Get("github")
	err := p.Publish(context.Background(), nil, map[string]interface{}{"token": "x"})
	if err == nil {
		t.Fatal("expected missing params error")
	}
}

func TestGithubPublisherUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer srv.Close()

	p, _ := publishers.Get("github")
	cfg := map[string]interface{}{
		"token": "tok", "owner": "me", "repo": "subs", "path": "sub.json", "api_url": srv.URL,
	}
	err := p.Publish(context.Background(), []publishers.Artifact{{Name: "a", Target: "xray", Data: []byte("{}")}}, cfg)
	if err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected 409 upload error, got %v", err)
	}
}
