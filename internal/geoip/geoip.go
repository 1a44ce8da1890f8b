package geoip

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"sublink/internal/logger"
)

// Resolver maps node addresses to ISO country codes.
type Resolver struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
}

// Open loads a GeoLite2/GeoIP2 Country database.
func Open(countryPath string) (*Resolver, error) {
	reader, err := geoip2.Open(countryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Country DB at %s: %w", countryPath, err)
	}
	return &Resolver{reader: reader}, nil
}

// Country returns the ISO code for an IP-literal host. Hostnames are not
// resolved; they report ok=false.
func (r *Resolver) Country(host string) (string, bool) {
	if r == nil {
		return "", false
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return "", false
	}
	c, err := r.reader.Country(ip)
	if err != nil || c.Country.IsoCode == "" {
		return "", false
	}
	return c.Country.IsoCode, true
}

func (r *Resolver) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
}

var (
	defaultResolver *Resolver
	once            sync.Once
	initErr         error
)

// Init loads the process-wide resolver once. An empty path disables region
// lookups without error.
func Init(countryPath string) error {
	once.Do(func() {
		if countryPath == "" {
			return
		}
		defaultResolver, initErr = Open(countryPath)
		if initErr != nil {
			logger.Log.Warnf("%v. Region groups will be missing.", initErr)
		}
	})
	return initErr
}

// Default returns the resolver loaded by Init, or nil.
func Default() *Resolver {
	return defaultResolver
}

func Close() {
	defaultResolver.Close()
}

// Flag renders a two-letter country code as a flag emoji.
func Flag(countryCode string) string {
	if len(countryCode) != 2 {
		return "🌐"
	}
	countryCode = strings.ToUpper(countryCode)
	return string(rune(countryCode[0])+127397) + string(rune(countryCode[1])+127397)
}
