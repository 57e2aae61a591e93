package events

import (
	"time"
)

// Type discriminates stream events. Clients switch on this field; no event
// is ever identified by sniffing its payload text.
type Type string

const (
	// TypePartialAnswer carries a delta of the assistant's answer text
	TypePartialAnswer Type = "partial_answer"

	// TypeToolCallStarted marks the beginning of a tool dispatch
	TypeToolCallStarted Type = "tool_call_started"

	// TypeToolCallFinished marks the end of a tool dispatch
	TypeToolCallFinished Type = "tool_call_finished"

	// TypeStateChanged announces a durable mutation of one aggregate field
	TypeStateChanged Type = "state_changed"

	// TypeTurnCompleted terminates a successful turn
	TypeTurnCompleted Type = "turn_completed"

	// TypeTurnFailed terminates an aborted turn with an error description
	TypeTurnFailed Type = "turn_failed"
)

// Event is one entry of a session's ordered outbound sequence. Seq is
// strictly increasing per session in publish order.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Text      string    `json:"text,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Field     string    `json:"field,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether the event ends a turn's stream.
func (e Event) Terminal() bool {
	return e.Type == TypeTurnCompleted || e.Type == TypeTurnFailed
}

// PartialAnswer builds an answer-delta event.
func PartialAnswer(text string) Event {
	return Event{Type: TypePartialAnswer, Text: text}
}

// ToolCallStarted builds a tool start event.
func ToolCallStarted(tool string) Event {
	return Event{Type: TypeToolCallStarted, Tool: tool}
}

// ToolCallFinished builds a tool finish event.
func ToolCallFinished(tool string) Event {
	return Event{Type: TypeToolCallFinished, Tool: tool}
}

// StateChanged builds a state mutation event for one aggregate field.
func StateChanged(field string) Event {
	return Event{Type: TypeStateChanged, Field: field}
}

// TurnCompleted builds the successful terminal event.
func TurnCompleted() Event {
	return Event{Type: TypeTurnCompleted}
}

// TurnFailed builds the error terminal event.
func TurnFailed(reason string) Event {
	return Event{Type: TypeTurnFailed, Text: reason}
}
