package study

import (
	"time"
)

// ProfessorType selects the coaching style applied to a session.
// Set at session creation, read-only unless explicitly reconfigured.
type ProfessorType string

const (
	ProfessorAnalytical ProfessorType = "analytical"
	ProfessorSupportive ProfessorType = "supportive"
)

// Valid reports whether the value is a known professor type.
func (p ProfessorType) Valid() bool {
	return p == ProfessorAnalytical || p == ProfessorSupportive
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn record in the conversation history.
// Insertion order is semantically meaningful and never changed.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Tool      string    `json:"tool,omitempty"` // set for tool-output records
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolMessage creates a tool-output record.
func NewToolMessage(tool, content string) Message {
	return Message{
		Role:      RoleTool,
		Content:   content,
		Tool:      tool,
		Timestamp: time.Now().UTC(),
	}
}

// Task is one unit of the day-by-day study plan.
// TaskID is unique within a session and never reused.
type Task struct {
	TaskID      int    `json:"task_id"`
	Name        string `json:"name"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD, study day this task belongs to
	SourcePages []int  `json:"source_pages"`
	Completed   bool   `json:"completed"`
	Summary     string `json:"summary"`
}

// Feedback is a reflective quiz record tied to a completed task.
// Created only after its task exists; Answer and FeedbackText may be amended.
type Feedback struct {
	TaskID       int       `json:"task_id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	FeedbackText string    `json:"feedback_text"`
	CreatedAt    time.Time `json:"created_at"`
}
