package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Store is a key-value store with optional per-entry expiry. Expired entries
// are invisible to Get and removed by Purge.
type Store interface {
	// Get returns ok=false for missing or expired keys.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Put overwrites key. ttl <= 0 stores without expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Purge deletes expired entries and reports how many were removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}

type Opener func(path string) (Store, error)

var drivers = map[string]Opener{
	"sqlite": func(path string) (Store, error) { return OpenSQLite(path) },
	"bolt":   func(path string) (Store, error) { return OpenBolt(path) },
}

// Open selects a driver by name ("sqlite" or "bolt").
func Open(driver, path string) (Store, error) {
	open, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("store driver '%s' not found", driver)
	}
	return open(path)
}

func expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}
