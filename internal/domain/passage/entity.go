package passage

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Passage is one embedded chunk of an ingested document, bound to a session.
type Passage struct {
	ID        uuid.UUID       `db:"id"`
	SessionID string          `db:"session_id"`
	Page      int             `db:"page"`
	Content   string          `db:"content"`
	Embedding pgvector.Vector `db:"embedding"`
	CreatedAt time.Time       `db:"created_at"`
}

// Textbook is per-session metadata about the uploaded document.
type Textbook struct {
	SessionID  string    `db:"session_id" json:"session_id"`
	Title      string    `db:"title" json:"title"`
	TotalPages int       `db:"total_pages" json:"total_pages"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
