// Package history persists capability state transitions observed by the
// sync daemon.
//
// The backend itself keeps no change log, so this is the only audit trail
// of who flipped what and when. Entries are keyed by the entity's stable
// identifier, which survives capabilities disappearing from the backend.
package history

import (
	"context"
	"time"
)

// State change source values.
const (
	SourcePoll    = "poll"
	SourceCommand = "command"
)

// Entry represents a single capability state transition.
type Entry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// EntityID is the stable entity identifier the transition belongs to.
	EntityID string `json:"entity_id"`

	// Scope is "device" or "global".
	Scope string `json:"scope"`

	// OldState is the backend state string before the transition. Empty
	// for the first observation of an entity.
	OldState string `json:"old_state"`

	// NewState is the backend state string after the transition.
	NewState string `json:"new_state"`

	// Source identifies how the transition was observed (poll, command).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the transition (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves capability state transitions.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordTransition records one observed state transition.
	RecordTransition(ctx context.Context, entityID, scope, oldState, newState, source string) error

	// GetHistory returns recent transitions for one entity, newest first.
	// The limit may be clamped by the implementation.
	GetHistory(ctx context.Context, entityID string, limit int) ([]Entry, error)

	// Prune deletes transitions older than the given duration and returns
	// the number of rows removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
