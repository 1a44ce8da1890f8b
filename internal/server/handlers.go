package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"sublink/internal/builder"
	"sublink/internal/convert"
	"sublink/internal/logger"
	"sublink/internal/store"
)

const (
	defaultUserAgent = "curl/7.74.0"
	maxConfigBody    = 4 << 20

	surgeUserInfo = "upload=0; download=0; total=10737418240; expire=2546249531"
)

// shortPrefixes maps short link path prefixes to the route they expand to.
var shortPrefixes = map[string]builder.Target{
	"b": builder.TargetSingbox,
	"c": builder.TargetClash,
	"x": builder.TargetXray,
	"s": builder.TargetSurge,
}

var shortCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// validShortCode rejects codes outside the pattern and codes shaped like a
// base config id, which share the keyspace.
func validShortCode(code string) bool {
	if !shortCodePattern.MatchString(code) {
		return false
	}
	_, isBaseConfig := store.BaseConfigTarget(code)
	return !isBaseConfig
}

func prefixOf(t builder.Target) string {
	for p, target := range shortPrefixes {
		if target == t {
			return p
		}
	}
	return ""
}

func (s *Server) handleConvert(target builder.Target) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		input := q.Get("config")
		if input == "" {
			http.Error(w, "Missing config parameter", http.StatusBadRequest)
			return
		}

		ua := firstNonEmpty(q.Get("ua"), s.cfg.Fetch.UserAgent, defaultUserAgent)
		req := convert.Request{
			Target:        target,
			Input:         input,
			SelectedRules: firstNonEmpty(q.Get("selectedRules"), s.cfg.Rules.DefaultPreset),
			CustomRules:   q.Get("customRules"),
			ConfigID:      q.Get("configId"),
			Sources:       s.cfg.Rules.Sources,
			Regions:       s.regions,
			Validate:      s.cfg.Builder.Validate,
			Options: convert.Options{
				UserAgent: ua,
				Timeout:   s.cfg.Fetch.Timeout,
				ProxyURL:  s.cfg.Fetch.ProxyURL,
				Dedupe:    s.cfg.Builder.Dedupe,
			},
		}
		if target == builder.TargetSurge {
			req.SubscriptionURL = s.baseURL(r) + r.URL.RequestURI()
		}

		out, stats, err := convert.Run(r.Context(), s.store, req)
		if err != nil {
			writeBuildError(w, err)
			return
		}
		logger.Log.Debugf("Built %s: %d nodes from %d lines (%d failed to parse)",
			target, stats.Nodes, stats.Lines, stats.ParseFailures)

		w.Header().Set("Content-Type", target.ContentType())
		if target == builder.TargetSurge {
			w.Header().Set("subscription-userinfo", surgeUserInfo)
		}
		w.Write(out)
	}
}

func writeBuildError(w http.ResponseWriter, err error) {
	var be *builder.BuildError
	switch {
	case errors.Is(err, builder.ErrNoNodes):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &be):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Log.Errorf("❌ Build failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

type saveConfigRequest struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// handleSaveConfig stores an uploaded base config and answers with its id.
// content may be a string (JSON, or YAML for clash) or an inline object.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxConfigBody)

	var typ, content string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		typ, content = r.FormValue("type"), r.FormValue("content")
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Invalid format: "+err.Error(), http.StatusBadRequest)
			return
		}
		var req saveConfigRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid format: "+err.Error(), http.StatusBadRequest)
			return
		}
		typ = req.Type
		if err := json.Unmarshal(req.Content, &content); err != nil {
			content = string(req.Content)
		}
	}

	id, err := store.SaveBaseConfig(r.Context(), s.store, typ, content)
	if err != nil {
		if errors.Is(err, store.ErrInvalidConfig) {
			http.Error(w, "Invalid format: "+err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.Errorf("❌ Failed to save base config: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	logger.Log.Infof("💾 Stored %s base config %s", typ, id)
	writeText(w, id)
}

// handleShorten stores the query of a conversion URL under a fresh code.
func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	target, query, err := splitConvertURL(r.URL.Query().Get("url"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := store.NewCode(store.DefaultCodeLength)
	if err := s.store.Put(r.Context(), code, query, 0); err != nil {
		logger.Log.Errorf("❌ Failed to store short link: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{
		"shortUrl": fmt.Sprintf("%s/%s/%s", s.baseURL(r), prefixOf(target), code),
	})
}

// handleShortenV2 is handleShorten with an optional caller-chosen code; it
// answers with the bare code.
func (s *Server) handleShortenV2(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	q := r.URL.Query()
	_, query, err := splitConvertURL(q.Get("url"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code := q.Get("shortCode")
	if code == "" {
		code = store.NewCode(store.DefaultCodeLength)
	} else if !validShortCode(code) {
		http.Error(w, "Invalid shortCode", http.StatusBadRequest)
		return
	}
	if err := s.store.Put(r.Context(), code, query, 0); err != nil {
		logger.Log.Errorf("❌ Failed to store short link: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeText(w, code)
}

func (s *Server) handleRedirect(prefix string) http.HandlerFunc {
	target := shortPrefixes[prefix]
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.requireStore(w) {
			return
		}
		code := r.PathValue("code")
		if !validShortCode(code) {
			http.Error(w, "Short URL not found", http.StatusNotFound)
			return
		}
		query, ok, err := s.store.Get(r.Context(), code)
		if err != nil {
			logger.Log.Errorf("❌ Failed to read short link: %v", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "Short URL not found", http.StatusNotFound)
			return
		}
		http.Redirect(w, r, s.baseURL(r)+"/"+string(target)+query, http.StatusFound)
	}
}

// handleResolve expands a short link without following it.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "Missing URL parameter", http.StatusBadRequest)
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid short URL", http.StatusBadRequest)
		return
	}
	parts := strings.Split(u.Path, "/")
	if len(parts) < 3 {
		http.Error(w, "Invalid short URL", http.StatusBadRequest)
		return
	}
	target, ok := shortPrefixes[parts[1]]
	if !ok || !validShortCode(parts[2]) {
		http.Error(w, "Invalid short URL", http.StatusBadRequest)
		return
	}
	query, found, err := s.store.Get(r.Context(), parts[2])
	if err != nil {
		logger.Log.Errorf("❌ Failed to read short link: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Short URL not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{
		"originalUrl": s.baseURL(r) + "/" + string(target) + query,
	})
}

// splitConvertURL returns the target route of a conversion URL and its
// query string including the leading '?'.
func splitConvertURL(raw string) (builder.Target, string, error) {
	if raw == "" {
		return "", "", errors.New("missing url parameter")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %v", err)
	}
	target, err := builder.ParseTarget(strings.Trim(u.Path, "/"))
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %v", err)
	}
	query := ""
	if u.RawQuery != "" {
		query = "?" + u.RawQuery
	}
	return target, query, nil
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		http.Error(w, "Store disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// baseURL is scheme://host as seen by the client.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.Server.BaseURL != "" {
		return strings.TrimRight(s.cfg.Server.BaseURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
