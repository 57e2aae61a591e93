package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"mentor/internal/domain/passage"
	"mentor/pkg/errors"
)

// Compile-time check
var _ passage.Repository = (*PassageRepository)(nil)

// PassageRepository implements passage.Repository using sqlx and pgvector
type PassageRepository struct {
	db *sqlx.DB
}

// NewPassageRepository creates a new passage repository
func NewPassageRepository(db *sqlx.DB) *PassageRepository {
	return &PassageRepository{db: db}
}

// StoreBatch inserts a batch of passages for a session
func (r *PassageRepository) StoreBatch(ctx context.Context, passages []*passage.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin passage batch")
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO passages (id, session_id, page, content, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, p := range passages {
		if _, err := tx.ExecContext(ctx, query,
			p.ID, p.SessionID, p.Page, p.Content, p.Embedding, p.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "insert passage page=%d", p.Page)
		}
	}

	return tx.Commit()
}

// SearchSimilar performs semantic search using pgvector cosine similarity
func (r *PassageRepository) SearchSimilar(ctx context.Context, sessionID string, embedding pgvector.Vector, limit int) ([]*passage.Passage, error) {
	var passages []*passage.Passage

	query := `
		SELECT id, session_id, page, content, embedding, created_at
		FROM passages
		WHERE session_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	err := r.db.SelectContext(ctx, &passages, query, sessionID, embedding, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search passages")
	}

	return passages, nil
}

// GetPages returns passages for a contiguous page range, ordered by page
func (r *PassageRepository) GetPages(ctx context.Context, sessionID string, startPage, endPage int) ([]*passage.Passage, error) {
	var passages []*passage.Passage

	query := `
		SELECT id, session_id, page, content, embedding, created_at
		FROM passages
		WHERE session_id = $1 AND page BETWEEN $2 AND $3
		ORDER BY page`

	err := r.db.SelectContext(ctx, &passages, query, sessionID, startPage, endPage)
	if err != nil {
		return nil, errors.Wrap(err, "get passage pages")
	}

	return passages, nil
}

// DeleteSession removes all passages for a session
func (r *PassageRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM passages WHERE session_id = $1`, sessionID); err != nil {
		return errors.Wrap(err, "delete session passages")
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM textbooks WHERE session_id = $1`, sessionID); err != nil {
		return errors.Wrap(err, "delete session textbook")
	}
	return nil
}

// SaveTextbook upserts textbook metadata for a session
func (r *PassageRepository) SaveTextbook(ctx context.Context, tb *passage.Textbook) error {
	query := `
		INSERT INTO textbooks (session_id, title, total_pages, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET title = $2, total_pages = $3, size_bytes = $4, uploaded_at = $5`

	if tb.UploadedAt.IsZero() {
		tb.UploadedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx, query,
		tb.SessionID, tb.Title, tb.TotalPages, tb.SizeBytes, tb.UploadedAt,
	); err != nil {
		return errors.Wrap(err, "save textbook metadata")
	}

	return nil
}

// GetTextbook returns textbook metadata for a session
func (r *PassageRepository) GetTextbook(ctx context.Context, sessionID string) (*passage.Textbook, error) {
	var tb passage.Textbook

	query := `
		SELECT session_id, title, total_pages, size_bytes, uploaded_at
		FROM textbooks WHERE session_id = $1`

	err := r.db.GetContext(ctx, &tb, query, sessionID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "no textbook for session %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get textbook metadata")
	}

	return &tb, nil
}
