package store

import (
	"time"
)

// DefaultTableName is used when the engine configuration does not override it.
const DefaultTableName = "cache_records"

// MaxKeyLength bounds the logical cache key so it fits the unique index.
const MaxKeyLength = 449

// CacheRecord represents a cached value persisted in the relational store.
//
// A record whose ExpiresAt is in the past is logically absent; readers skip
// it and the reaper eventually deletes it.
//
// Value carries no explicit column type so each dialect maps []byte to its
// native binary type (blob, bytea, longblob).
type CacheRecord struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	Key              string    `gorm:"uniqueIndex;size:449;not null"`
	Value            []byte
	ExpiresAt        time.Time `gorm:"index;not null"`
	SlidingEnabled   bool      `gorm:"not null"`
	AbsoluteDeadline *time.Time
	LastAccessedAt   time.Time
	CreatedAt        time.Time
}

// Window reports the sliding window the record was written with. At every
// write and refresh the pair (LastAccessedAt, ExpiresAt) is set to
// (now, now+interval), so their difference recovers the interval.
func (r *CacheRecord) Window() time.Duration {
	return r.ExpiresAt.Sub(r.LastAccessedAt)
}

// Expired reports whether the record is logically absent at the given time.
func (r *CacheRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
