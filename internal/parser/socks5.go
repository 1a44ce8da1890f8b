package parser

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"sublink/internal/model"
)

type socks5Parser struct{}

// The userinfo is cut from the raw string; net/url would unescape it and can
// mangle base64 payloads.
var regexSocksUserInfo = regexp.MustCompile(`(?i)^socks5?://([^@?#]*)@`)

func (socks5Parser) Parse(uri string) (*model.Node, error) {
	_, rest, _ := strings.Cut(uri, "://")

	var userinfo string
	if m := regexSocksUserInfo.FindStringSubmatch(uri); m != nil {
		userinfo = m[1]
		rest = rest[len(userinfo)+1:]
	}

	u, err := url.Parse("socks5://" + rest)
	if err != nil {
		return nil, err
	}
	host := u.Hostname()
	if host == "" {
		return nil, errors.New("empty server host")
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port <= 0 || port > 65535 {
		return nil, errors.New("invalid server port")
	}

	username, password := decodeSocksUserInfo(userinfo)

	return &model.Node{
		Tag:         firstNonEmpty(u.Fragment, host),
		Type:        model.Socks5,
		Server:      host,
		ServerPort:  port,
		Username:    username,
		Password:    password,
		Network:     "tcp",
		TCPFastOpen: false,
	}, nil
}

// decodeSocksUserInfo tries plaintext user:pass, then base64(user:pass), then
// treats the whole thing as a bare username.
func decodeSocksUserInfo(raw string) (username, password string) {
	if raw == "" {
		return "", ""
	}
	s := percentDecode(raw)
	if user, pass, ok := strings.Cut(s, ":"); ok {
		return user, pass
	}
	if decoded, err := DecodeBase64(s); err == nil && isPrintable(decoded) && strings.Contains(decoded, ":") {
		user, pass, _ := strings.Cut(decoded, ":")
		return user, pass
	}
	return s, ""
}
