package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mentor/internal/retrieval"
	"mentor/pkg/errors"
)

// maxPageSpan bounds a single content read to keep the reasoning context small.
const maxPageSpan = 20

// TextbookTool exposes the session's document to the reasoning engine.
// Three modes: "info" returns document metadata, "search" runs a similarity
// query, "pages" reads a bounded contiguous page range. Read-only.
type TextbookTool struct {
	gateway *retrieval.Gateway
}

// NewTextbookTool creates the content query tool backed by a retrieval gateway.
func NewTextbookTool(gateway *retrieval.Gateway) *TextbookTool {
	return &TextbookTool{gateway: gateway}
}

type textbookArgs struct {
	Mode      string `json:"mode"`
	Query     string `json:"query,omitempty"`
	StartPage int    `json:"start_page,omitempty"`
	EndPage   int    `json:"end_page,omitempty"`
}

func (t *TextbookTool) Name() string { return "query_textbook" }

func (t *TextbookTool) Description() string {
	return "Look up the learner's uploaded document. Use mode=info for title and page count, " +
		"mode=search with a query for relevant excerpts, or mode=pages with start_page/end_page " +
		"(at most 20 pages) to read a specific range."
}

func (t *TextbookTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mode": map[string]interface{}{
				"type": "string",
				"enum": []string{"info", "search", "pages"},
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Free-text query, required for mode=search",
			},
			"start_page": map[string]interface{}{"type": "integer"},
			"end_page":   map[string]interface{}{"type": "integer"},
		},
		"required": []string{"mode"},
	}
}

// Execute runs the lookup. Retrieval degradation (no index yet) produces an
// informative excerpt-free response, never an error.
func (t *TextbookTool) Execute(ctx context.Context, req Request) (*Result, error) {
	var args textbookArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errors.NewValidationError("args", "malformed tool arguments", string(req.Args))
	}

	switch args.Mode {
	case "info":
		return t.info(ctx, req.SessionID)
	case "search":
		return t.search(ctx, req.SessionID, args.Query)
	case "pages":
		return t.pages(ctx, req.SessionID, args.StartPage, args.EndPage)
	default:
		return nil, errors.NewValidationError("mode", "must be info, search, or pages", args.Mode)
	}
}

func (t *TextbookTool) info(ctx context.Context, sessionID string) (*Result, error) {
	tb, err := t.gateway.Textbook(ctx, sessionID)
	if errors.Is(err, errors.ErrNotFound) {
		return &Result{Content: "No document has been uploaded for this session yet."}, nil
	}
	if err != nil {
		return &Result{Content: "Document metadata is temporarily unavailable."}, nil
	}

	return &Result{Content: fmt.Sprintf("Document: %s (%d pages)", tb.Title, tb.TotalPages)}, nil
}

func (t *TextbookTool) search(ctx context.Context, sessionID, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidationError("query", "query is required for mode=search", query)
	}

	passages, err := t.gateway.Query(ctx, sessionID, query)
	if err != nil {
		return &Result{Content: "Retrieval is temporarily unavailable; proceed without excerpts."}, nil
	}
	if len(passages) == 0 {
		return &Result{Content: "No matching passages found. The document may not be uploaded yet."}, nil
	}

	return &Result{Content: formatPassages(passages)}, nil
}

func (t *TextbookTool) pages(ctx context.Context, sessionID string, start, end int) (*Result, error) {
	if start <= 0 || end < start {
		return nil, errors.NewValidationError("start_page", "start_page and end_page must form a valid range", fmt.Sprintf("%d-%d", start, end))
	}
	if end-start+1 > maxPageSpan {
		return nil, errors.NewValidationError("end_page",
			fmt.Sprintf("at most %d pages per read", maxPageSpan), fmt.Sprintf("%d-%d", start, end))
	}

	passages, err := t.gateway.Pages(ctx, sessionID, start, end)
	if err != nil || len(passages) == 0 {
		return &Result{Content: fmt.Sprintf("No content found for pages %d-%d.", start, end)}, nil
	}

	return &Result{Content: formatPassages(passages)}, nil
}

func formatPassages(passages []retrieval.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[page %d] %s", p.Page, p.Content)
	}
	return b.String()
}
