package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEntries = []byte("entries")

// Bolt keeps entries in a single bbolt bucket as JSON envelopes.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

type envelope struct {
	Value     string     `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e envelope) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketEntries)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db, now: time.Now}, nil
}

func (b *Bolt) Get(_ context.Context, key string) (string, bool, error) {
	var env envelope
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &env)
	})
	if err != nil || !found || env.expired(b.now()) {
		return "", false, err
	}
	return env.Value, true, nil
}

func (b *Bolt) Put(_ context.Context, key, value string, ttl time.Duration) error {
	now := b.now()
	j, err := json.Marshal(envelope{Value: value, CreatedAt: now, ExpiresAt: expiry(now, ttl)})
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(key), j)
	})
}

func (b *Bolt) Purge(_ context.Context) (int, error) {
	now := b.now()
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var env envelope
			if err := json.Unmarshal(v, &env); err != nil || env.expired(now) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (b *Bolt) Close() error { return b.db.Close() }
