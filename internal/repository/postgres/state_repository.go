package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"mentor/internal/domain/study"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// Compile-time check
var _ study.Repository = (*StateRepository)(nil)

// StateRepository implements study.Repository using PostgreSQL. The aggregate
// is stored as a single JSONB record per session so every write is
// all-or-nothing.
type StateRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewStateRepository creates a new PostgreSQL state repository
func NewStateRepository(db *sqlx.DB) *StateRepository {
	return &StateRepository{
		db:  db,
		log: logger.Get().With("component", "state_repository"),
	}
}

// Load returns the aggregate for a session
func (r *StateRepository) Load(ctx context.Context, sessionID string) (*study.State, error) {
	query := `SELECT state FROM session_states WHERE session_id = $1`

	var stateJSON []byte
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "no state for session %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session state")
	}

	var st study.State
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session state")
	}

	return &st, nil
}

// Save durably writes the full aggregate, replacing any previous record
func (r *StateRepository) Save(ctx context.Context, sessionID string, state *study.State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session state")
	}

	query := `
		INSERT INTO session_states (session_id, state, updated_at, created_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (session_id) DO UPDATE SET state = $2, updated_at = $3
	`

	if _, err := r.db.ExecContext(ctx, query, sessionID, stateJSON, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "failed to save session state")
	}

	return nil
}

// Delete removes the durable record for a session
func (r *StateRepository) Delete(ctx context.Context, sessionID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM session_states WHERE session_id = $1`, sessionID)
	if err != nil {
		return errors.Wrap(err, "failed to delete session state")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "no state for session %s", sessionID)
	}

	return nil
}
