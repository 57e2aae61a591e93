package study

import (
	"fmt"
	"time"

	"mentor/pkg/errors"
)

// State is the orchestration aggregate, one per session. It is the single
// source of truth: the reasoning engine's context for a turn is derived from
// it and never stored independently. Messages are append-only; tasks are
// replaced wholesale; feedback entries are appended after validation.
type State struct {
	Messages      []Message     `json:"messages"`
	TaskList      []Task        `json:"task_list"`
	FeedbackList  []Feedback    `json:"feedback_list"`
	ProfessorType ProfessorType `json:"professor_type"`

	// Highest task_id ever assigned in this session. Guards against id reuse
	// across wholesale replacements.
	MaxTaskID int `json:"max_task_id"`
}

// NewState creates an empty aggregate for a fresh session.
func NewState(professorType ProfessorType) *State {
	if !professorType.Valid() {
		professorType = ProfessorAnalytical
	}
	return &State{
		Messages:      []Message{},
		TaskList:      []Task{},
		FeedbackList:  []Feedback{},
		ProfessorType: professorType,
	}
}

// PatchField names an aggregate field a patch replaces or appends to.
type PatchField string

const (
	FieldTaskList      PatchField = "task_list"
	FieldFeedbackList  PatchField = "feedback_list"
	FieldProfessorType PatchField = "professor_type"
)

// Patch is a whole-field replacement or append applied to the aggregate,
// bypassing the conversational message path. Exactly one payload is set,
// matching Field.
type Patch struct {
	Field         PatchField
	Tasks         []Task
	Feedback      *Feedback
	ProfessorType ProfessorType
}

// AppendMessage appends a turn record. Messages are never reordered,
// truncated, or removed.
func (s *State) AppendMessage(m Message) {
	s.Messages = append(s.Messages, m)
}

// ApplyPatch merges a state patch into the aggregate. Merge semantics are
// shallow: whole-field replacement for task_list, append for feedback_list.
// Validation failures leave the aggregate untouched.
func (s *State) ApplyPatch(p Patch) error {
	switch p.Field {
	case FieldTaskList:
		return s.replaceTasks(p.Tasks)
	case FieldFeedbackList:
		if p.Feedback == nil {
			return errors.NewValidationError("feedback_list", "feedback payload is required", nil)
		}
		return s.appendFeedback(*p.Feedback)
	case FieldProfessorType:
		if !p.ProfessorType.Valid() {
			return errors.NewValidationError("professor_type", "must be analytical or supportive", string(p.ProfessorType))
		}
		s.ProfessorType = p.ProfessorType
		return nil
	default:
		return errors.NewValidationError("field", "unknown patch field", string(p.Field))
	}
}

// replaceTasks swaps the task list wholesale. Incoming ids must be unique,
// previously unseen ids must be strictly greater than any id ever assigned,
// and tasks referenced by feedback must survive the replacement.
func (s *State) replaceTasks(tasks []Task) error {
	seen := make(map[int]bool, len(tasks))
	prev := make(map[int]bool, len(s.TaskList))
	for _, t := range s.TaskList {
		prev[t.TaskID] = true
	}

	maxID := s.MaxTaskID
	for _, t := range tasks {
		if t.TaskID <= 0 {
			return errors.NewValidationError("task_id", "must be positive", t.TaskID)
		}
		if seen[t.TaskID] {
			return errors.NewValidationError("task_id", "duplicate task_id in task list", t.TaskID)
		}
		seen[t.TaskID] = true

		// A new id (not carried over from the current list) must not revive
		// an id that was used and dropped earlier in the session.
		if !prev[t.TaskID] && t.TaskID <= s.MaxTaskID {
			return errors.NewValidationError("task_id", "task_id was already used in this session", t.TaskID)
		}
		if t.TaskID > maxID {
			maxID = t.TaskID
		}
	}

	for _, fb := range s.FeedbackList {
		if !seen[fb.TaskID] {
			return errors.NewValidationError("task_list",
				fmt.Sprintf("task %d is referenced by feedback and cannot be removed", fb.TaskID), fb.TaskID)
		}
	}

	replaced := make([]Task, len(tasks))
	copy(replaced, tasks)
	s.TaskList = replaced
	s.MaxTaskID = maxID
	return nil
}

// appendFeedback appends a feedback record after checking its task exists.
func (s *State) appendFeedback(fb Feedback) error {
	if !s.hasTask(fb.TaskID) {
		return errors.NewValidationError("task_id", "feedback references unknown task", fb.TaskID)
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	s.FeedbackList = append(s.FeedbackList, fb)
	return nil
}

// AmendFeedback updates the answer and feedback text of the most recent
// feedback entry for a task. All other feedback fields are immutable.
func (s *State) AmendFeedback(taskID int, answer, feedbackText string) error {
	for i := len(s.FeedbackList) - 1; i >= 0; i-- {
		if s.FeedbackList[i].TaskID == taskID {
			s.FeedbackList[i].Answer = answer
			s.FeedbackList[i].FeedbackText = feedbackText
			return nil
		}
	}
	return errors.NewValidationError("task_id", "no feedback recorded for task", taskID)
}

// hasTask reports whether a task with the given id is in the current list.
func (s *State) hasTask(taskID int) bool {
	for _, t := range s.TaskList {
		if t.TaskID == taskID {
			return true
		}
	}
	return false
}

// TaskByID returns the task with the given id, if present.
func (s *State) TaskByID(taskID int) (Task, bool) {
	for _, t := range s.TaskList {
		if t.TaskID == taskID {
			return t, true
		}
	}
	return Task{}, false
}

// Clone returns a deep copy of the aggregate.
func (s *State) Clone() *State {
	c := &State{
		Messages:      make([]Message, len(s.Messages)),
		TaskList:      make([]Task, len(s.TaskList)),
		FeedbackList:  make([]Feedback, len(s.FeedbackList)),
		ProfessorType: s.ProfessorType,
		MaxTaskID:     s.MaxTaskID,
	}
	copy(c.Messages, s.Messages)
	copy(c.FeedbackList, s.FeedbackList)
	for i, t := range s.TaskList {
		c.TaskList[i] = t
		if t.SourcePages != nil {
			c.TaskList[i].SourcePages = append([]int(nil), t.SourcePages...)
		}
	}
	return c
}
