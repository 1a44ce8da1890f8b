package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"sublink/internal/logger"
	"sublink/internal/publishers"
)

// Publisher commits artifacts through the GitHub contents API.
type Publisher struct{}

type githubFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // Base64 encoded content
	Sha     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type githubFileResponse struct {
	Sha string `json:"sha"`
}

type target struct {
	client  *http.Client
	apiBase string
	token   string
	owner   string
	repo    string
	branch  string
	message string
	retries int
}

func (p *Publisher) Publish(ctx context.Context, artifacts []publishers.Artifact, config map[string]interface{}) error {
	token, _ := config["token"].(string)
	owner, _ := config["owner"].(string)
	repo, _ := config["repo"].(string)
	filePath, _ := config["path"].(string)
	dir, _ := config["dir"].(string)
	branch, _ := config["branch"].(string)
	msg, _ := config["message"].(string)

	apiBase, _ := config["api_url"].(string)
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	apiBase = strings.TrimRight(apiBase, "/")

	// Determine Timeout & Retries
	timeout := 30 * time.Second
	if t, ok := config["_timeout"].(time.Duration); ok && t > 0 {
		timeout = t
	}
	retries, _ := config["_retries"].(int)

	if token == "" || owner == "" || repo == "" || (filePath == "" && dir == "") {
		return fmt.Errorf("git publisher requires token, owner, repo, and path or dir")
	}
	if filePath != "" && len(artifacts) > 1 {
		return fmt.Errorf("git publisher 'path' takes one artifact, got %d (use 'dir')", len(artifacts))
	}
	if msg == "" {
		msg = "Update proxy subscription [sublink]"
	}

	client := &http.Client{Timeout: timeout}
	if proxyStr, ok := config["_proxy_url"].(string); ok && proxyStr != "" {
		if u, err := url.Parse(proxyStr); err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
			logger.Log.Debugf("Git Publisher using proxy: %s", proxyStr)
		}
	}

	t := &target{
		client: client, apiBase: apiBase, token: token, owner: owner, repo: repo,
		branch: branch, message: msg, retries: retries,
	}
	for _, a := range artifacts {
		payload, err := publishers.Payload(a, config)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		dest := filePath
		if dest == "" {
			dest = path.Join(dir, publishers.FileName(a))
		}
		if err := t.put(ctx, strings.TrimPrefix(dest, "/"), payload); err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		logger.Log.Infof("🚀 Pushed %s to %s/%s:%s", a.Name, owner, repo, dest)
	}
	return nil
}

func (t *target) newRequest(ctx context.Context, method, apiURL string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (t *target) put(ctx context.Context, filePath string, payload []byte) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", t.apiBase, t.owner, t.repo, filePath)

	// 1. Get existing SHA (With Retries)
	var respGet *http.Response
	var err error
	for i := 0; i <= t.retries; i++ {
		var reqGet *http.Request
		reqGet, err = t.newRequest(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return err
		}
		if t.branch != "" {
			q := reqGet.URL.Query()
			q.Add("ref", t.branch)
			reqGet.URL.RawQuery = q.Encode()
		}

		logger.Log.Debugf("Git: Fetching file info (Attempt %d/%d)", i+1, t.retries+1)
		respGet, err = t.client.Do(reqGet)
		if err == nil && (respGet.StatusCode == http.StatusOK || respGet.StatusCode == http.StatusNotFound) {
			break
		}
		if err == nil {
			respGet.Body.Close()
			err = fmt.Errorf("status %d", respGet.StatusCode)
		}
		if i < t.retries {
			if werr := wait(ctx, time.Second); werr != nil {
				return werr
			}
		}
	}
	if err != nil {
		return fmt.Errorf("git fetch failed after retries: %w", err)
	}
	defer respGet.Body.Close()

	var currentSha string
	if respGet.StatusCode == http.StatusOK {
		var existing githubFileResponse
		if err := json.NewDecoder(respGet.Body).Decode(&existing); err != nil {
			return fmt.Errorf("failed to parse git response: %w", err)
		}
		currentSha = existing.Sha
		logger.Log.Debugf("Git: File exists (SHA: %s), updating...", currentSha)
	} else {
		logger.Log.Debugf("Git: File not found, creating new...")
	}

	// 2. Upload File (PUT) (With Retries)
	jsonBody, _ := json.Marshal(githubFileRequest{
		Message: t.message,
		Content: base64.StdEncoding.EncodeToString(payload),
		Sha:     currentSha,
		Branch:  t.branch,
	})

	for i := 0; i <= t.retries; i++ {
		var reqPut *http.Request
		reqPut, err = t.newRequest(ctx, http.MethodPut, apiURL, jsonBody)
		if err != nil {
			return err
		}

		logger.Log.Debugf("Git: Uploading file (Attempt %d/%d)", i+1, t.retries+1)
		var respPut *http.Response
		respPut, err = t.client.Do(reqPut)
		if err == nil {
			bodyBytes, _ := io.ReadAll(respPut.Body)
			respPut.Body.Close()
			if respPut.StatusCode >= 200 && respPut.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status %d: %s", respPut.StatusCode, string(bodyBytes))
		}
		if i < t.retries {
			if werr := wait(ctx, time.Second); werr != nil {
				return werr
			}
		}
	}
	return fmt.Errorf("git upload failed after retries: %w", err)
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func init() {
	publishers.Register("github", func() publishers.Publisher { return &Publisher{} })
}
