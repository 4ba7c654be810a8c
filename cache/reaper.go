package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/charlesng35/dbcache/pkg/logger"
)

// Reaper periodically deletes logically expired records. A failed sweep
// is logged and retried on the next tick; it never stops the schedule.
type Reaper struct {
	engine   *Engine
	cron     *cron.Cron
	interval time.Duration
	log      *zap.Logger
}

// NewReaper builds a reaper ticking at the supplied interval.
func NewReaper(engine *Engine, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = defaultCleanupInterval
	}
	return &Reaper{
		engine:   engine,
		cron:     cron.New(cron.WithLogger(cron.DiscardLogger)),
		interval: interval,
		log:      logger.WithModule("reaper"),
	}
}

// Start runs one immediate sweep and then schedules sweeps at the
// configured interval.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.sweep); err != nil {
		return err
	}
	go r.sweep()
	r.cron.Start()
	return nil
}

// Stop halts the schedule. It returns immediately; an in-flight sweep
// finishes in the background.
func (r *Reaper) Stop() {
	r.cron.Stop()
}

func (r *Reaper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	rows, err := r.engine.FlushExpired(ctx)
	if err != nil {
		r.log.Warn("expired sweep failed", zap.Error(err))
		return
	}
	if rows > 0 {
		r.log.Debug("expired records removed", zap.Int64("rows", rows))
	}
}
