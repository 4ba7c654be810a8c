// Package cache implements a distributed cache whose durable store and
// cross-process mutual exclusion are delegated to a relational engine.
// Records carry sliding or absolute expiration, reads apply lazy expiry,
// and a background reaper physically deletes expired rows.
package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/charlesng35/dbcache/lock"
	apperrors "github.com/charlesng35/dbcache/pkg/errors"
	"github.com/charlesng35/dbcache/pkg/logger"
	"github.com/charlesng35/dbcache/pkg/metrics"
	"github.com/charlesng35/dbcache/store"
)

const lockNamePrefix = "dbcache:"

func observe(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Operations.WithLabelValues(operation, result).Inc()
}

// FactoryFunc computes a value for GetOrAdd when the key is absent.
type FactoryFunc func(ctx context.Context) (any, error)

// Engine implements the public cache contract over a RecordStore, a
// Locker and a Serializer. All methods are safe for concurrent use.
type Engine struct {
	store  *store.RecordStore
	locker lock.Locker
	codec  Serializer
	stats  *StatisticsTracker
	opts   Options
	log    *zap.Logger
	reaper *Reaper
	group  singleflight.Group
	now    func() time.Time
}

// EngineOption customises an Engine at construction.
type EngineOption func(*Engine)

// WithSerializer replaces the default JSON codec.
func WithSerializer(codec Serializer) EngineOption {
	return func(e *Engine) {
		if codec != nil {
			e.codec = codec
		}
	}
}

// WithLocker replaces the SQL advisory locker, primarily for testing or
// for substituting a dedicated lock service.
func WithLocker(locker lock.Locker) EngineOption {
	return func(e *Engine) {
		if locker != nil {
			e.locker = locker
		}
	}
}

// WithClock overrides the clock used for expiry computation.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Engine over the supplied database handle, migrates the
// cache table and, when configured, starts the background reaper.
func New(db *gorm.DB, opts Options, engineOpts ...EngineOption) (*Engine, error) {
	if db == nil {
		return nil, apperrors.NewInvalidArgument("cache: db is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, apperrors.NewInvalidArgument("cache: invalid options").WithInternal(err)
	}
	opts = opts.withDefaults()

	recordStore, err := store.NewRecordStore(db, opts.TableName)
	if err != nil {
		return nil, err
	}
	if err := recordStore.Migrate(); err != nil {
		return nil, apperrors.Wrap(err, "cache: migrate table")
	}

	engine := &Engine{
		store: recordStore,
		opts:  opts,
		stats: &StatisticsTracker{},
		log:   logger.WithModule("cache"),
		now:   time.Now,
	}

	engine.codec = JSONSerializer{}
	if opts.Compression {
		engine.codec = SnappySerializer{Inner: JSONSerializer{}}
	}

	for _, opt := range engineOpts {
		opt(engine)
	}

	if engine.locker == nil {
		sqlLocker, err := lock.NewSQLLocker(db)
		if err != nil {
			return nil, err
		}
		engine.locker = sqlLocker
	}

	if opts.AutoCleanup {
		engine.reaper = NewReaper(engine, opts.CleanupInterval)
		if err := engine.reaper.Start(); err != nil {
			return nil, apperrors.Wrap(err, "cache: start reaper")
		}
	}

	return engine, nil
}

// Close stops the background reaper. The database handle belongs to the
// caller and is left open.
func (e *Engine) Close() error {
	if e.reaper != nil {
		e.reaper.Stop()
	}
	return nil
}

func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.opts.CommandTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.CommandTimeout)
	}
	return ctx, func() {}
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return apperrors.NewInvalidArgument("cache: key is required")
	}
	if len(key) > store.MaxKeyLength {
		return apperrors.NewInvalidArgument("cache: key exceeds maximum length")
	}
	return nil
}

// Get reads the value for a key into dest. A missing or expired record
// counts as a miss; an empty or oversized key is an InvalidArgument error
// and touches no counter. A hit on a sliding record extends its expiry as
// a best-effort side effect before returning.
func (e *Engine) Get(ctx context.Context, key string, dest any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	found, raw, err := e.lookup(ctx, key)
	if err != nil || !found {
		return false, err
	}

	if dest != nil {
		if err := e.codec.Decode(raw, dest); err != nil {
			return false, apperrors.Wrap(err, "cache: decode value")
		}
	}
	return true, nil
}

// TryGet behaves like Get but never propagates an error: any failure,
// including connectivity loss and decode errors, reads as not-found.
func (e *Engine) TryGet(ctx context.Context, key string, dest any) bool {
	found, err := e.Get(ctx, key, dest)
	if err != nil {
		e.log.Debug("tryget swallowed error", zap.String("key", key), zap.Error(err))
		return false
	}
	return found
}

// lookup fetches the raw payload for a live record, updating statistics
// and applying the sliding refresh side effect. Refresh failures are
// logged, not surfaced: a read must not fail because its bookkeeping did.
func (e *Engine) lookup(ctx context.Context, key string) (bool, []byte, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	now := e.now().UTC()
	record, ok, err := e.store.GetByKey(ctx, key)
	observe("get", err)
	if err != nil {
		return false, nil, apperrors.Wrap(err, "cache: get record")
	}
	if !ok || record.Expired(now) {
		e.stats.Miss()
		return false, nil, nil
	}

	if record.SlidingEnabled {
		next := NextOnRead(record, now)
		if touchErr := e.store.Touch(ctx, key, next.ExpiresAt, next.Sliding, now); touchErr != nil {
			e.log.Debug("sliding refresh failed", zap.String("key", key), zap.Error(touchErr))
		}
	}

	e.stats.Hit()
	return true, record.Value, nil
}

// Set writes a value under a key, overwriting any previous record in a
// single atomic upsert. Explicit expiration options override the engine
// defaults; a write with no expiration at all slides by the fixed
// thirty-minute default.
func (e *Engine) Set(ctx context.Context, key string, value any, opts ...EntryOption) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	record, err := e.buildRecord(e.now().UTC(), key, value, opts)
	if err != nil {
		return err
	}
	err = e.store.Upsert(ctx, record)
	observe("set", err)
	if err != nil {
		return apperrors.Wrap(err, "cache: upsert record")
	}
	return nil
}

func (e *Engine) buildRecord(now time.Time, key string, value any, opts []EntryOption) (*store.CacheRecord, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, apperrors.NewInvalidArgument("cache: value is required")
	}

	sliding, deadline := e.resolveEntry(now, opts)
	expiry := ComputeExpiry(now, sliding, deadline)

	data, err := e.codec.Encode(value)
	if err != nil {
		return nil, apperrors.Wrap(err, "cache: encode value")
	}

	return &store.CacheRecord{
		Key:              key,
		Value:            data,
		ExpiresAt:        expiry.ExpiresAt,
		SlidingEnabled:   expiry.Sliding,
		AbsoluteDeadline: deadline,
		LastAccessedAt:   now,
		CreatedAt:        now,
	}, nil
}

// Remove deletes a key and reports whether a row existed. An empty key is
// not an error here; there is simply nothing to remove.
func (e *Engine) Remove(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}

	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	rows, err := e.store.DeleteByKey(ctx, key)
	observe("remove", err)
	if err != nil {
		return false, apperrors.Wrap(err, "cache: delete record")
	}
	return rows > 0, nil
}

// Exists reports whether a live record is present. It does not refresh
// sliding expiration and does not touch the hit/miss counters.
func (e *Engine) Exists(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}

	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	record, ok, err := e.store.GetByKey(ctx, key)
	observe("exists", err)
	if err != nil {
		return false, apperrors.Wrap(err, "cache: get record")
	}
	return ok && !record.Expired(e.now().UTC()), nil
}

// GetOrAdd returns the value for a key, computing and storing it with
// factory when absent. Concurrent callers for the same key collapse: in
// process through singleflight, across processes through the distributed
// lock, so factory runs once per fleet-wide miss. A lock timeout surfaces
// as an error and factory is not invoked.
func (e *Engine) GetOrAdd(ctx context.Context, key string, dest any, factory FactoryFunc, opts ...EntryOption) error {
	if err := validKey(key); err != nil {
		return err
	}
	if factory == nil {
		return apperrors.NewInvalidArgument("cache: factory is required")
	}

	if found, err := e.Get(ctx, key, dest); err != nil || found {
		return err
	}

	raw, err, _ := e.group.Do(key, func() (any, error) {
		return e.populate(ctx, key, factory, opts)
	})
	if err != nil {
		return err
	}

	if dest != nil {
		if decodeErr := e.codec.Decode(raw.([]byte), dest); decodeErr != nil {
			return apperrors.Wrap(decodeErr, "cache: decode value")
		}
	}
	return nil
}

// populate runs the double-checked locking slow path of GetOrAdd and
// returns the stored payload bytes.
func (e *Engine) populate(ctx context.Context, key string, factory FactoryFunc, opts []EntryOption) ([]byte, error) {
	handle, err := e.locker.Acquire(ctx, lockNamePrefix+key, e.opts.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	// Another caller may have stored the value while we waited.
	found, raw, err := e.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return raw, nil
	}

	value, err := factory(ctx)
	if err != nil {
		return nil, err
	}

	record, err := e.buildRecord(e.now().UTC(), key, value, opts)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.store.Upsert(storeCtx, record); err != nil {
		return nil, apperrors.Wrap(err, "cache: upsert record")
	}
	return record.Value, nil
}

// Refresh extends the expiry of a sliding record from now by the engine's
// default sliding interval, without decoding the payload. Absent keys and
// non-sliding records report false rather than an error.
func (e *Engine) Refresh(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, nil
	}

	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	now := e.now().UTC()
	record, ok, err := e.store.GetByKey(ctx, key)
	if err != nil {
		observe("refresh", err)
		return false, apperrors.Wrap(err, "cache: get record")
	}
	if !ok || record.Expired(now) || !record.SlidingEnabled {
		observe("refresh", nil)
		return false, nil
	}

	interval := e.opts.DefaultSliding
	if interval <= 0 {
		interval = DefaultSlidingInterval
	}
	expiry := ComputeExpiry(now, interval, record.AbsoluteDeadline)

	err = e.store.Touch(ctx, key, expiry.ExpiresAt, expiry.Sliding, now)
	observe("refresh", err)
	if err != nil {
		return false, apperrors.Wrap(err, "cache: refresh record")
	}
	return true, nil
}

// GetMany returns the live values for the requested keys. Empty and
// duplicate keys are filtered before querying; absent keys are omitted
// from the result and counted as misses. Each hit undergoes the same
// sliding refresh side effect as Get.
func (e *Engine) GetMany(ctx context.Context, keys []string) (map[string]Value, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	seen := make(map[string]struct{}, len(keys))
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}

	result := make(map[string]Value, len(unique))
	if len(unique) == 0 {
		return result, nil
	}

	now := e.now().UTC()
	records, err := e.store.GetMany(ctx, unique, now)
	observe("get_many", err)
	if err != nil {
		return nil, apperrors.Wrap(err, "cache: get records")
	}

	var refreshErrs error
	for i := range records {
		record := &records[i]
		if record.SlidingEnabled {
			next := NextOnRead(record, now)
			if touchErr := e.store.Touch(ctx, record.Key, next.ExpiresAt, next.Sliding, now); touchErr != nil {
				refreshErrs = multierr.Append(refreshErrs, touchErr)
			}
		}
		e.stats.Hit()
		result[record.Key] = Value{raw: record.Value, codec: e.codec}
	}

	for _, key := range unique {
		if _, ok := result[key]; !ok {
			e.stats.Miss()
		}
	}

	if refreshErrs != nil {
		e.log.Debug("sliding refresh failed for batch", zap.Error(refreshErrs))
	}
	return result, nil
}

// SetMany writes every item in one transaction. If any write fails the
// whole batch rolls back and the error propagates; an empty batch is a
// no-op.
func (e *Engine) SetMany(ctx context.Context, items map[string]any, opts ...EntryOption) error {
	if len(items) == 0 {
		return nil
	}

	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	now := e.now().UTC()
	err := e.store.WithinTx(ctx, func(tx *store.RecordStore) error {
		for _, key := range keys {
			record, buildErr := e.buildRecord(now, key, items[key], opts)
			if buildErr != nil {
				return buildErr
			}
			if upsertErr := tx.Upsert(ctx, record); upsertErr != nil {
				return upsertErr
			}
		}
		return nil
	})
	observe("set_many", err)
	if err != nil {
		return apperrors.FromError(err)
	}
	return nil
}

// FlushExpired physically deletes every logically expired record and
// reports how many rows were removed.
func (e *Engine) FlushExpired(ctx context.Context) (int64, error) {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	rows, err := e.store.DeleteExpired(ctx, e.now().UTC())
	observe("flush_expired", err)
	if err != nil {
		return 0, apperrors.Wrap(err, "cache: flush expired")
	}
	metrics.ReapedRecords.Add(float64(rows))
	return rows, nil
}

// Clear unconditionally removes all records, expired or not.
func (e *Engine) Clear(ctx context.Context) error {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	err := e.store.Truncate(ctx)
	observe("clear", err)
	if err != nil {
		return apperrors.Wrap(err, "cache: clear records")
	}
	return nil
}

// Statistics returns a snapshot of cache state. It never fails: a missing
// table or a failed aggregate query yields a zeroed snapshot.
func (e *Engine) Statistics(ctx context.Context) Statistics {
	ctx, cancel := e.opCtx(ctx)
	defer cancel()

	if !e.store.HasTable() {
		return Statistics{}
	}

	agg, err := e.store.Aggregate(ctx, e.now().UTC(), 10*time.Minute)
	if err != nil {
		e.log.Warn("statistics query failed", zap.Error(err))
		return Statistics{}
	}

	return Statistics{
		ItemCount:           agg.ItemCount,
		TotalSizeBytes:      agg.TotalBytes,
		ExpiringWithin10Min: agg.ExpiringCount,
		HitRatio:            e.stats.Ratio(),
	}
}
