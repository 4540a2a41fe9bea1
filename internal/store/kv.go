// Package store – KV operations.
//
// The API mirrors the storage contract the synchronization core was designed
// against: GetItem, SetItem, MultiSet, MultiRemove, GetAllKeys, plus Clear
// for the logout path. All operations are context-aware and safe for use
// within transactions via gorm's WithContext.
//
// Error semantics:
//   - GetItem returns ("", ErrNotFound) for a missing key.
//   - Batch operations are atomic: MultiSet and MultiRemove run inside one
//     transaction so a partially applied batch cannot be observed.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested key does not exist. It aliases
// gorm.ErrRecordNotFound for consistency with the rest of the data layer.
var ErrNotFound = gorm.ErrRecordNotFound

// KV is a handle over the key-value table. Construct with New.
type KV struct {
	db *gorm.DB
}

// New wraps an opened database in a KV handle.
func New(db *gorm.DB) *KV { return &KV{db: db} }

// DB exposes the underlying handle for callers that need raw access
// (primarily tests).
func (s *KV) DB() *gorm.DB { return s.db }

// GetItem returns the value stored under key, or ErrNotFound.
func (s *KV) GetItem(ctx context.Context, key string) (string, error) {
	var e Entry
	if err := s.db.WithContext(ctx).First(&e, "key = ?", key).Error; err != nil {
		return "", err
	}
	return e.Value, nil
}

// SetItem stores value under key, overwriting any previous value.
func (s *KV) SetItem(ctx context.Context, key, value string) error {
	e := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
}

// MultiSet stores every pair atomically. Pairs is a flat list of
// [key, value] tuples; a dangling key without a value is an error.
func (s *KV) MultiSet(ctx context.Context, pairs [][2]string) error {
	if len(pairs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, Entry{Key: p[0], Value: p[1], UpdatedAt: now})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
}

// MultiRemove deletes every listed key atomically. Missing keys are not an
// error; the purge step routinely removes keys that may already be gone.
func (s *KV) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("key IN ?", keys).Delete(&Entry{}).Error
	})
}

// GetAllKeys returns every stored key in lexical order.
func (s *KV) GetAllKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&Entry{}).
		Order("key asc").
		Pluck("key", &keys).Error
	return keys, err
}

// Clear wipes the entire store. Used on logout so a following login starts
// from an empty cache.
func (s *KV) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&Entry{}).Error
}

// GetJSON fetches key and unmarshals it into out. A missing key returns
// ErrNotFound with out untouched.
func (s *KV) GetJSON(ctx context.Context, key string, out any) error {
	v, err := s.GetItem(ctx, key)
	if err != nil {
		return err
	}
	return unmarshalJSON(v, out)
}

// SetJSON marshals v and stores it under key.
func (s *KV) SetJSON(ctx context.Context, key string, v any) error {
	b, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return s.SetItem(ctx, key, b)
}

// IsNotFound reports whether err means "key absent".
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
