package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"mentor/internal/adapters/embeddings"
	"mentor/internal/domain/passage"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// Ingestor populates a session's retrieval index from an uploaded document.
// The orchestration core only ever reads the index; this is the single write
// path. Pages arrive already extracted (one string per page).
type Ingestor struct {
	repo      passage.Repository
	embedder  embeddings.Provider
	batchSize int
	log       *logger.Logger
}

// NewIngestor creates a document ingestor.
func NewIngestor(repo passage.Repository, embedder embeddings.Provider, batchSize int) *Ingestor {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Ingestor{
		repo:      repo,
		embedder:  embedder,
		batchSize: batchSize,
		log:       logger.Get().With("component", "ingestor"),
	}
}

// Ingest replaces the session's index with embeddings of the given pages and
// records textbook metadata. Page numbers are 1-based.
func (in *Ingestor) Ingest(ctx context.Context, sessionID, title string, pages []string) (*passage.Textbook, error) {
	if sessionID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "session id is required")
	}
	if len(pages) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "document has no pages")
	}

	started := time.Now()

	// Re-upload replaces the previous document.
	if err := in.repo.DeleteSession(ctx, sessionID); err != nil {
		return nil, errors.Wrap(err, "clear previous index")
	}

	var sizeBytes int64
	for batchStart := 0; batchStart < len(pages); batchStart += in.batchSize {
		batchEnd := batchStart + in.batchSize
		if batchEnd > len(pages) {
			batchEnd = len(pages)
		}

		batch := pages[batchStart:batchEnd]
		texts := make([]string, len(batch))
		for i, p := range batch {
			if strings.TrimSpace(p) == "" {
				// Embedding providers reject empty input
				p = " "
			}
			texts[i] = p
		}

		vectors, err := in.embedder.GenerateBatchEmbeddings(ctx, texts)
		if err != nil {
			return nil, errors.Wrapf(err, "embed pages %d-%d", batchStart+1, batchEnd)
		}

		records := make([]*passage.Passage, len(batch))
		for i := range batch {
			sizeBytes += int64(len(batch[i]))
			records[i] = &passage.Passage{
				ID:        uuid.New(),
				SessionID: sessionID,
				Page:      batchStart + i + 1,
				Content:   batch[i],
				Embedding: pgvector.NewVector(vectors[i]),
				CreatedAt: time.Now().UTC(),
			}
		}

		if err := in.repo.StoreBatch(ctx, records); err != nil {
			return nil, errors.Wrapf(err, "store pages %d-%d", batchStart+1, batchEnd)
		}
	}

	tb := &passage.Textbook{
		SessionID:  sessionID,
		Title:      title,
		TotalPages: len(pages),
		SizeBytes:  sizeBytes,
		UploadedAt: time.Now().UTC(),
	}
	if err := in.repo.SaveTextbook(ctx, tb); err != nil {
		return nil, errors.Wrap(err, "save textbook metadata")
	}

	in.log.Infof("Ingested %q for session %s: %d pages, %s in %v",
		title, sessionID, len(pages), humanize.Bytes(uint64(sizeBytes)), time.Since(started).Round(time.Millisecond))

	return tb, nil
}

// SplitPages splits raw extracted text into pages on form-feed boundaries,
// the delimiter emitted by common PDF text extractors. A document without
// form feeds becomes a single page.
func SplitPages(text string) []string {
	raw := strings.Split(text, "\f")
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, p)
	}
	if len(pages) == 0 && strings.TrimSpace(text) != "" {
		pages = append(pages, text)
	}
	return pages
}
