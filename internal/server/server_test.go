package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"sublink/internal/config"
	"sublink/internal/store"
)

const ssLink = "ss://YWVzLTEyOC1nY206cGFzcw@1.2.3.4:8388#SS"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open("bolt", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return New(config.Default(), st, nil)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthzAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	if rec := do(t, s, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Errorf("metrics = %d", rec.Code)
	}
}

func TestConvertClash(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/clash?config="+url.QueryEscape(ssLink), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/yaml") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "name: SS") {
		t.Errorf("proxy missing from output:\n%s", rec.Body.String())
	}
}

func TestConvertSurgeHeaders(t *testing.T) {
	s := newTestServer(t)
	target := "/surge?config=" + url.QueryEscape(ssLink)
	rec := do(t, s, http.MethodGet, target, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("subscription-userinfo") != surgeUserInfo {
		t.Errorf("subscription-userinfo = %q", rec.Header().Get("subscription-userinfo"))
	}
	want := "#!MANAGED-CONFIG http://example.com" + target
	if !strings.HasPrefix(rec.Body.String(), want) {
		t.Errorf("body should start with %q, got %q", want, firstLine(rec.Body.String()))
	}
}

func TestConvertErrors(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		target string
		code   int
	}{
		{"/singbox", http.StatusBadRequest},
		{"/clash?config=not-a-link", http.StatusUnprocessableEntity},
		{"/clash?selectedRules=nope&config=" + url.QueryEscape(ssLink), http.StatusBadRequest},
		{"/clash?customRules=%7Bbad&config=" + url.QueryEscape(ssLink), http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := do(t, s, http.MethodGet, tc.target, ""); rec.Code != tc.code {
			t.Errorf("%s: status = %d, want %d (%s)", tc.target, rec.Code, tc.code, rec.Body.String())
		}
	}
}

func TestSaveConfigAndUse(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/config", `{"type":"clash","content":"mode: global\nproxies: []\n"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save yaml = %d: %s", rec.Code, rec.Body.String())
	}
	id := rec.Body.String()
	if !strings.HasPrefix(id, "clash_") {
		t.Fatalf("id = %q", id)
	}

	rec = do(t, s, http.MethodGet, "/clash?configId="+id+"&config="+url.QueryEscape(ssLink), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("convert = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "mode: global") {
		t.Errorf("base config not applied:\n%s", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/config", `{"type":"singbox","content":{"log":{"level":"warn"}}}`)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "singbox_") {
		t.Errorf("save object = %d %q", rec.Code, rec.Body.String())
	}

	for _, body := range []string{
		`{"type":"singbox","content":"{not json"}`,
		`{"type":"word","content":"{}"}`,
		`not json`,
	} {
		if rec := do(t, s, http.MethodPost, "/config", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", body, rec.Code)
		}
	}
}

func TestShortenRedirectResolve(t *testing.T) {
	s := newTestServer(t)
	long := "http://example.com/clash?config=" + url.QueryEscape(ssLink)

	rec := do(t, s, http.MethodGet, "/shorten?url="+url.QueryEscape(long), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("shorten = %d: %s", rec.Code, rec.Body.String())
	}
	var short struct {
		ShortURL string `json:"shortUrl"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &short); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(short.ShortURL, "http://example.com/c/") {
		t.Fatalf("shortUrl = %q", short.ShortURL)
	}

	path := strings.TrimPrefix(short.ShortURL, "http://example.com")
	rec = do(t, s, http.MethodGet, path, "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != long {
		t.Errorf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = do(t, s, http.MethodGet, "/resolve?url="+url.QueryEscape(short.ShortURL), "")
	var resolved struct {
		OriginalURL string `json:"originalUrl"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resolved)
	if rec.Code != http.StatusOK || resolved.OriginalURL != long {
		t.Errorf("resolve = %d %q", rec.Code, resolved.OriginalURL)
	}

	if rec := do(t, s, http.MethodGet, "/c/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown code = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/resolve?url="+url.QueryEscape("http://example.com/q/abc"), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad prefix = %d", rec.Code)
	}
}

func TestShortenV2CustomCode(t *testing.T) {
	s := newTestServer(t)
	long := "http://example.com/singbox?config=x&selectedRules=minimal"

	rec := do(t, s, http.MethodGet, "/shorten-v2?shortCode=mine&url="+url.QueryEscape(long), "")
	if rec.Code != http.StatusOK || rec.Body.String() != "mine" {
		t.Fatalf("shorten-v2 = %d %q", rec.Code, rec.Body.String())
	}
	rec = do(t, s, http.MethodGet, "/x/mine", "")
	if want := "http://example.com/xray?config=x&selectedRules=minimal"; rec.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), want)
	}

	if rec := do(t, s, http.MethodGet, "/shorten-v2?shortCode=a/b&url="+url.QueryEscape(long), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid code = %d", rec.Code)
	}
}

func TestShortCodesCannotReachBaseConfigs(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/config", `{"type":"clash","content":"mode: global\n"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d: %s", rec.Code, rec.Body.String())
	}
	id := rec.Body.String()

	long := "http://example.com/clash?config=" + url.QueryEscape(ssLink)
	for _, code := range []string{id, "clash_abcd1234", "singbox_x"} {
		rec := do(t, s, http.MethodGet, "/shorten-v2?shortCode="+code+"&url="+url.QueryEscape(long), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("shortCode %s accepted: %d %q", code, rec.Code, rec.Body.String())
		}
	}
	if rec := do(t, s, http.MethodGet, "/c/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("redirect to base config id = %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/resolve?url="+url.QueryEscape("http://example.com/c/"+id), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("resolve of base config id = %d", rec.Code)
	}

	// the stored config still applies
	rec = do(t, s, http.MethodGet, "/clash?configId="+id+"&config="+url.QueryEscape(ssLink), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "mode: global") {
		t.Errorf("base config lost: %d\n%s", rec.Code, rec.Body.String())
	}

	if rec := do(t, s, http.MethodGet, "/shorten-v2?shortCode=my_code&url="+url.QueryEscape(long), ""); rec.Code != http.StatusOK {
		t.Errorf("underscore code with unknown prefix rejected: %d", rec.Code)
	}
}

func TestBaseURLOverride(t *testing.T) {
	cfg := config.Default()
	cfg.Server.BaseURL = "https://sub.example.org/"
	s := &Server{cfg: cfg}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := s.baseURL(r); got != "https://sub.example.org" {
		t.Errorf("baseURL = %q", got)
	}

	s.cfg = config.Default()
	r.Header.Set("X-Forwarded-Proto", "https")
	if got := s.baseURL(r); got != "https://example.com" {
		t.Errorf("forwarded baseURL = %q", got)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
