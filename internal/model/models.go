package model

import (
	"time"
)

// Entry is one row of the key-value store: short links, stored base configs.
type Entry struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	CreatedAt time.Time
	ExpiresAt *time.Time `gorm:"index"` // nil means no expiry
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}
