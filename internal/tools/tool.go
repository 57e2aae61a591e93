package tools

import (
	"context"
	"encoding/json"

	"mentor/internal/domain/study"
)

// Request carries one tool invocation. State is a snapshot of the session
// aggregate taken by the caller; handlers read it for validation but must
// confine all side effects to the returned Result.
type Request struct {
	SessionID string
	Args      json.RawMessage
	State     *study.State
}

// Result is the tagged outcome of a tool execution. Content is always set
// and is fed back into the reasoning context as a tool-output record. Patch
// is set only by state-patch tools; the orchestration loop merges it into
// the authoritative aggregate.
type Result struct {
	Content string
	Patch   *study.Patch
}

// IsStatePatch reports whether this result mutates session state.
func (r *Result) IsStatePatch() bool {
	return r != nil && r.Patch != nil
}

// Tool represents a callable capability exposed to the reasoning engine.
type Tool interface {
	// Name returns the unique tool identifier.
	Name() string
	// Description returns a short summary surfaced to the engine.
	Description() string
	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() map[string]interface{}
	// Execute performs the tool's action against a state snapshot.
	Execute(ctx context.Context, req Request) (*Result, error)
}
