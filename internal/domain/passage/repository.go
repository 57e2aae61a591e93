package passage

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// Repository defines storage for document passages and textbook metadata.
// Data is partitioned by session identifier with no cross-session visibility.
type Repository interface {
	// StoreBatch inserts a batch of passages for a session.
	StoreBatch(ctx context.Context, passages []*Passage) error

	// SearchSimilar returns up to limit passages ranked by cosine similarity.
	SearchSimilar(ctx context.Context, sessionID string, embedding pgvector.Vector, limit int) ([]*Passage, error)

	// GetPages returns passages for a contiguous page range, ordered by page.
	GetPages(ctx context.Context, sessionID string, startPage, endPage int) ([]*Passage, error)

	// DeleteSession removes all passages for a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// SaveTextbook upserts textbook metadata for a session.
	SaveTextbook(ctx context.Context, tb *Textbook) error

	// GetTextbook returns textbook metadata, or errors.ErrNotFound.
	GetTextbook(ctx context.Context, sessionID string) (*Textbook, error)
}
