package retrieval

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"mentor/internal/adapters/embeddings"
	"mentor/internal/domain/passage"
	"mentor/internal/metrics"
	"mentor/pkg/logger"
)

// Passage is one ranked excerpt returned to the orchestration core.
type Passage struct {
	Page    int
	Content string
}

// Gateway is the per-session read path into the similarity-search index.
// It never mutates the index; population happens through ingest. A session
// without an index yields an empty result so a reasoning step can proceed
// with degraded context instead of failing the turn.
type Gateway struct {
	repo        passage.Repository
	embedder    embeddings.Provider
	maxPassages int
	log         *logger.Logger
}

// NewGateway creates a retrieval gateway bounded to maxPassages per query.
func NewGateway(repo passage.Repository, embedder embeddings.Provider, maxPassages int) *Gateway {
	if maxPassages <= 0 {
		maxPassages = 5
	}
	return &Gateway{
		repo:        repo,
		embedder:    embedder,
		maxPassages: maxPassages,
		log:         logger.Get().With("component", "retrieval_gateway"),
	}
}

// Query returns passages ranked by similarity to the query text, bounded to
// the configured maximum. Retrieval failures degrade to an empty result.
func (g *Gateway) Query(ctx context.Context, sessionID, text string) ([]Passage, error) {
	embedding, err := g.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		g.log.Warnf("Embedding failed, degrading to empty retrieval: session=%s err=%v", sessionID, err)
		metrics.RetrievalQueries.WithLabelValues("degraded").Inc()
		return []Passage{}, nil
	}

	found, err := g.repo.SearchSimilar(ctx, sessionID, pgvector.NewVector(embedding), g.maxPassages)
	if err != nil {
		g.log.Warnf("Passage search failed, degrading to empty retrieval: session=%s err=%v", sessionID, err)
		metrics.RetrievalQueries.WithLabelValues("degraded").Inc()
		return []Passage{}, nil
	}

	results := make([]Passage, 0, len(found))
	for _, p := range found {
		results = append(results, Passage{Page: p.Page, Content: p.Content})
	}

	metrics.RetrievalQueries.WithLabelValues("ok").Inc()
	return results, nil
}

// Textbook returns metadata for the session's ingested document, or
// errors.ErrNotFound when nothing was ingested yet.
func (g *Gateway) Textbook(ctx context.Context, sessionID string) (*passage.Textbook, error) {
	return g.repo.GetTextbook(ctx, sessionID)
}

// Pages returns the raw page range for a session's document, ordered by page.
// Used by the textbook content tool for direct page reads.
func (g *Gateway) Pages(ctx context.Context, sessionID string, startPage, endPage int) ([]Passage, error) {
	found, err := g.repo.GetPages(ctx, sessionID, startPage, endPage)
	if err != nil {
		g.log.Warnf("Page read failed, degrading to empty result: session=%s err=%v", sessionID, err)
		return []Passage{}, nil
	}

	results := make([]Passage, 0, len(found))
	for _, p := range found {
		results = append(results, Passage{Page: p.Page, Content: p.Content})
	}
	return results, nil
}
