package parser

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

var errEmptyInput = errors.New("empty input")

// base64Strategies are tried in order; the first successful decode wins.
var base64Strategies = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeBase64Bytes decodes standard or URL-safe base64, with or without
// padding. Whitespace inside the payload is ignored.
func DecodeBase64Bytes(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, errEmptyInput
	}

	var lastErr error
	for _, enc := range base64Strategies {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// DecodeBase64 is DecodeBase64Bytes for payloads expected to be text.
// Output that is not valid UTF-8 is rejected.
func DecodeBase64(s string) (string, error) {
	b, err := DecodeBase64Bytes(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("decoded payload is not utf-8 text")
	}
	return string(b), nil
}

// percentDecode behaves like decodeURIComponent but never fails: invalid
// escapes leave the input untouched.
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if d, err := url.PathUnescape(s); err == nil {
		return d
	}
	return s
}

// PercentDecode is the exported form used by the subscription fetcher.
func PercentDecode(s string) string {
	return percentDecode(s)
}

// isPrintable reports whether s is text a human could have typed.
func isPrintable(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// cleanLink strips the whitespace scraped links tend to carry.
func cleanLink(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}
