package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sublink/internal/db"
	"sublink/internal/model"
)

// SQLite keeps entries in a gorm-managed table.
type SQLite struct {
	db  *gorm.DB
	now func() time.Time
}

func OpenSQLite(path string) (*SQLite, error) {
	database, err := db.Connect(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return &SQLite{db: database, now: time.Now}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var e model.Entry
	err := s.db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if e.Expired(s.now()) {
		return "", false, nil
	}
	return e.Value, true, nil
}

func (s *SQLite) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now()
	e := model.Entry{Key: key, Value: value, CreatedAt: now, ExpiresAt: expiry(now, ttl)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at", "expires_at"}),
	}).Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Purge compares expiry in Go; sqlite stores timestamps as text.
func (s *SQLite) Purge(ctx context.Context) (int, error) {
	var entries []model.Entry
	if err := s.db.WithContext(ctx).Select("key", "expires_at").
		Where("expires_at IS NOT NULL").Find(&entries).Error; err != nil {
		return 0, fmt.Errorf("failed to list expiring entries: %w", err)
	}
	now := s.now()
	var stale []string
	for i := range entries {
		if entries[i].Expired(now) {
			stale = append(stale, entries[i].Key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Where(clause.IN{Column: clause.Column{Name: "key"}, Values: toAny(stale)}).
		Delete(&model.Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func toAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

func (s *SQLite) Close() error {
	return db.Close(s.db)
}
