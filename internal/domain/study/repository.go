package study

import (
	"context"
)

// Repository defines the durable State Store contract: one serialized
// aggregate per session identifier. Writes are whole-aggregate so a failed
// write can never leave a subset of fields behind.
type Repository interface {
	// Load returns the aggregate for a session, or errors.ErrNotFound.
	Load(ctx context.Context, sessionID string) (*State, error)

	// Save durably writes the full aggregate, replacing any previous record.
	Save(ctx context.Context, sessionID string, state *State) error

	// Delete removes the durable record for a session.
	Delete(ctx context.Context, sessionID string) error
}
