package wizard

import (
	"context"
	"regexp"
	"sync"
	"time"

	"discovery/api/internal/logging"
	"discovery/api/internal/snapshot"
	"discovery/api/internal/util"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// SnapshotStore is the local slot used to restore reconnecting sessions.
type SnapshotStore interface {
	SnapshotWriter
	Load(ctx context.Context, key string) (snapshot.Snapshot, bool, error)
}

// Registry holds the live wizard sessions of this process.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Controller
	deps      Deps
	snapshots SnapshotStore
	idleTTL   time.Duration
	log       *logging.Logger
	now       func() time.Time
}

func NewRegistry(deps Deps, snapshots SnapshotStore, idleTTL time.Duration) *Registry {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	if idleTTL <= 0 {
		idleTTL = 6 * time.Hour
	}
	deps.Snapshots = snapshots
	return &Registry{
		sessions:  map[string]*Controller{},
		deps:      deps,
		snapshots: snapshots,
		idleTTL:   idleTTL,
		log:       deps.Log.With("component", "registry"),
		now:       time.Now,
	}
}

// Start returns the live session for id, restores it from the local slot,
// or creates a new one. An empty id always creates a new session. restored
// reports whether a snapshot was applied.
func (r *Registry) Start(ctx context.Context, id string) (c *Controller, restored bool, err error) {
	if id == "" {
		id = util.NewID("ses")
	} else if !sessionIDPattern.MatchString(id) {
		return nil, false, ErrInvalidSessionID
	}

	r.mu.Lock()
	if live, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return live, false, nil
	}
	r.mu.Unlock()

	c = NewController(id, r.deps)
	c.now = r.now
	c.touch()
	if r.snapshots != nil {
		snap, found, loadErr := r.snapshots.Load(ctx, id)
		if loadErr != nil {
			r.log.Warn("snapshot restore failed", "session", id, "error", loadErr)
		} else if found {
			c.Restore(snap)
			restored = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if live, ok := r.sessions[id]; ok {
		return live, false, nil
	}
	r.sessions[id] = c
	r.log.Info("session started", "session", id, "restored", restored)
	return c, restored, nil
}

func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Sessions returns every live session. Submitted ones skip their own
// snapshot write.
func (r *Registry) Sessions() []snapshot.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]snapshot.Session, 0, len(r.sessions))
	for _, c := range r.sessions {
		out = append(out, c)
	}
	return out
}

// EvictIdle drops sessions untouched for longer than the idle TTL. Their
// last snapshot stays in the local slot for a later reconnect.
func (r *Registry) EvictIdle(now time.Time) int {
	r.mu.Lock()
	live := make(map[string]*Controller, len(r.sessions))
	for id, c := range r.sessions {
		live[id] = c
	}
	r.mu.Unlock()

	var stale []string
	for id, c := range live {
		if now.Sub(c.IdleSince()) > r.idleTTL {
			stale = append(stale, id)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range stale {
		delete(r.sessions, id)
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
