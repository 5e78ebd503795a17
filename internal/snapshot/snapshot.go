// Package snapshot keeps the last in-memory state of a wizard session in a
// local key-value slot so an interrupted respondent can pick up where they
// left off without a remote draft.
package snapshot

import (
	"context"
	"time"

	"discovery/api/internal/form"
)

// KeyPrefix namespaces every slot key.
const KeyPrefix = "voiceAIFormData:"

// Snapshot is the serialized state of one wizard session. Pending blobs are
// kept inline so they survive a reconnect.
type Snapshot struct {
	Record            form.Record   `json:"record"`
	CurrentSection    int           `json:"currentSection"`
	CompletedSections form.Sections `json:"completedSections"`
	SavedAt           time.Time     `json:"savedAt"`
}

// Cache is a local slot store. Save overwrites the slot wholesale.
type Cache interface {
	Save(ctx context.Context, key string, snap Snapshot) error
	Load(ctx context.Context, key string) (Snapshot, bool, error)
	Clear(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
