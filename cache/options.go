package cache

import (
	"time"

	"github.com/charlesng35/dbcache/pkg/validator"
	"github.com/charlesng35/dbcache/store"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultLockTimeout     = 10 * time.Second
)

// Options configures an Engine. It is read once at construction and never
// mutated afterwards.
type Options struct {
	// TableName overrides the cache table, letting several caches share a
	// database.
	TableName string `mapstructure:"table_name"`

	// CommandTimeout bounds each store round trip. Zero disables the bound.
	CommandTimeout time.Duration `mapstructure:"command_timeout" validate:"min=0"`

	// Compression wraps the serializer in snappy compression.
	Compression bool `mapstructure:"compression"`

	// DefaultSliding applies to writes that supply no expiration at all.
	DefaultSliding time.Duration `mapstructure:"default_sliding_expiration" validate:"min=0"`

	// DefaultAbsolute, when positive, gives writes without an explicit
	// deadline an absolute ceiling of now+DefaultAbsolute.
	DefaultAbsolute time.Duration `mapstructure:"default_absolute_expiration" validate:"min=0"`

	// AutoCleanup starts the background reaper at construction.
	AutoCleanup bool `mapstructure:"auto_cleanup"`

	// CleanupInterval is the reaper tick. Defaults to five minutes.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"min=0"`

	// LockTimeout bounds GetOrAdd lock acquisition. Defaults to ten seconds.
	LockTimeout time.Duration `mapstructure:"lock_timeout" validate:"min=0"`
}

// Validate checks the option values against their declared constraints.
func (o Options) Validate() error {
	return validator.ValidateStruct(o)
}

func (o Options) withDefaults() Options {
	if o.TableName == "" {
		o.TableName = store.DefaultTableName
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = defaultCleanupInterval
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = defaultLockTimeout
	}
	return o
}

// EntryOption overrides expiration for a single write.
type EntryOption func(*entryOptions)

type entryOptions struct {
	sliding  time.Duration
	deadline *time.Time
}

// WithSlidingExpiration sets the sliding window for this write.
func WithSlidingExpiration(interval time.Duration) EntryOption {
	return func(o *entryOptions) {
		o.sliding = interval
	}
}

// WithAbsoluteExpiration sets a hard deadline for this write.
func WithAbsoluteExpiration(deadline time.Time) EntryOption {
	return func(o *entryOptions) {
		d := deadline.UTC()
		o.deadline = &d
	}
}

// resolveEntry folds per-write overrides over the engine defaults.
func (e *Engine) resolveEntry(now time.Time, opts []EntryOption) (time.Duration, *time.Time) {
	var eo entryOptions
	for _, opt := range opts {
		opt(&eo)
	}

	sliding := eo.sliding
	if sliding <= 0 {
		sliding = e.opts.DefaultSliding
	}

	deadline := eo.deadline
	if deadline == nil && e.opts.DefaultAbsolute > 0 {
		d := now.Add(e.opts.DefaultAbsolute)
		deadline = &d
	}

	return sliding, deadline
}
