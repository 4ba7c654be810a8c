package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordStore executes the keyed record operations against the backing
// relational engine. It is a thin query layer: expiry policy and
// serialization are decided by the caller.
type RecordStore struct {
	db    *gorm.DB
	table string
}

// NewRecordStore constructs a store over the supplied database handle.
// An empty table name falls back to DefaultTableName.
func NewRecordStore(db *gorm.DB, table string) (*RecordStore, error) {
	if db == nil {
		return nil, errors.New("store: db is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = DefaultTableName
	}
	return &RecordStore{db: db, table: table}, nil
}

// TableName returns the table this store reads and writes.
func (s *RecordStore) TableName() string {
	return s.table
}

// Migrate creates or updates the cache table schema.
func (s *RecordStore) Migrate() error {
	return s.db.Table(s.table).AutoMigrate(&CacheRecord{})
}

// HasTable reports whether the cache table exists yet.
func (s *RecordStore) HasTable() bool {
	return s.db.Migrator().HasTable(s.table)
}

func (s *RecordStore) scoped(ctx context.Context) *gorm.DB {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx).Table(s.table)
}

// GetByKey retrieves a record regardless of expiry state.
func (s *RecordStore) GetByKey(ctx context.Context, key string) (*CacheRecord, bool, error) {
	var record CacheRecord
	err := s.scoped(ctx).Take(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

// Upsert atomically inserts the record or, when the key already exists,
// overwrites its payload and expiry columns in a single statement.
func (s *RecordStore) Upsert(ctx context.Context, record *CacheRecord) error {
	if record == nil {
		return errors.New("store: record is required")
	}
	return s.scoped(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"value", "expires_at", "sliding_enabled", "absolute_deadline", "last_accessed_at",
			}),
		}).Create(record).Error
}

// Touch updates only the expiry and access-time columns, used by the
// sliding refresh side effect where the payload is left untouched.
func (s *RecordStore) Touch(ctx context.Context, key string, expiresAt time.Time, sliding bool, accessedAt time.Time) error {
	return s.scoped(ctx).
		Where("key = ?", key).
		Updates(map[string]any{
			"expires_at":       expiresAt,
			"sliding_enabled":  sliding,
			"last_accessed_at": accessedAt,
		}).Error
}

// DeleteByKey removes a record and reports how many rows were affected.
func (s *RecordStore) DeleteByKey(ctx context.Context, key string) (int64, error) {
	result := s.scoped(ctx).Where("key = ?", key).Delete(&CacheRecord{})
	return result.RowsAffected, result.Error
}

// DeleteExpired removes every record whose expiry is at or before the cutoff.
func (s *RecordStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.scoped(ctx).Where("expires_at <= ?", cutoff).Delete(&CacheRecord{})
	return result.RowsAffected, result.Error
}

// Truncate unconditionally removes all records.
func (s *RecordStore) Truncate(ctx context.Context) error {
	return s.scoped(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&CacheRecord{}).Error
}

// GetMany retrieves the records for the supplied keys that are still live
// at the cutoff time. Missing and expired keys are simply omitted.
func (s *RecordStore) GetMany(ctx context.Context, keys []string, cutoff time.Time) ([]CacheRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var records []CacheRecord
	err := s.scoped(ctx).
		Where("key IN ?", keys).
		Where("expires_at > ?", cutoff).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateResult is the single-query statistics projection over the table.
type AggregateResult struct {
	ItemCount     int64
	TotalBytes    int64
	ExpiringCount int64
}

// Aggregate computes record count, total payload size and the number of
// records expiring within the horizon, in one scan over the table.
func (s *RecordStore) Aggregate(ctx context.Context, now time.Time, horizon time.Duration) (AggregateResult, error) {
	var result AggregateResult
	err := s.scoped(ctx).
		Select(
			"COUNT(*) AS item_count, "+
				"COALESCE(SUM(LENGTH(value)), 0) AS total_bytes, "+
				"COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) AS expiring_count",
			now.Add(horizon),
		).
		Scan(&result).Error
	return result, err
}

// WithinTx runs fn with a store bound to a single transaction. Any error
// returned by fn rolls back every write performed inside it.
func (s *RecordStore) WithinTx(ctx context.Context, fn func(tx *RecordStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RecordStore{db: tx, table: s.table})
	})
}
