package snapshot

import (
	"context"
	"time"

	"discovery/api/internal/logging"
)

// Writer is the write side of a Cache.
type Writer interface {
	Save(ctx context.Context, key string, snap Snapshot) error
}

// Session is a live session that writes its own slot, so the write is
// ordered against anything else the session does to that slot. SaveSnapshot
// reports false when the session no longer wants a slot.
type Session interface {
	ID() string
	SaveSnapshot(ctx context.Context, w Writer, at time.Time) (bool, error)
}

// Source yields the live sessions to snapshot on each tick and drops the
// ones that have gone idle.
type Source interface {
	Sessions() []Session
	EvictIdle(now time.Time) int
}

// Autosaver writes every live session to the cache on a fixed interval.
type Autosaver struct {
	cache    Cache
	source   Source
	interval time.Duration
	log      *logging.Logger
	now      func() time.Time
}

func NewAutosaver(cache Cache, source Source, interval time.Duration, log *logging.Logger) *Autosaver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Autosaver{
		cache:    cache,
		source:   source,
		interval: interval,
		log:      log.With("component", "autosave"),
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (a *Autosaver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick writes one snapshot per live session and returns how many were written.
func (a *Autosaver) Tick(ctx context.Context) int {
	now := a.now().UTC()
	saved := 0
	for _, session := range a.source.Sessions() {
		wrote, err := session.SaveSnapshot(ctx, a.cache, now)
		if err != nil {
			a.log.Warn("autosave failed", "session", session.ID(), "error", err)
			continue
		}
		if wrote {
			saved++
		}
	}
	if evicted := a.source.EvictIdle(now); evicted > 0 {
		a.log.Debug("evicted idle sessions", "count", evicted)
	}
	return saved
}
