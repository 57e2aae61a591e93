package tools

import (
	"context"
	"encoding/json"

	"mentor/internal/domain/study"
	"mentor/pkg/errors"
)

// FeedbackTool appends one reflective feedback record for a completed task.
// Dispatch fails with a validation error when the referenced task does not
// exist, which the loop feeds back to the engine as tool-failure content.
type FeedbackTool struct{}

// NewFeedbackTool creates the feedback state-patch tool.
func NewFeedbackTool() *FeedbackTool {
	return &FeedbackTool{}
}

type feedbackArgs struct {
	TaskID       int    `json:"task_id"`
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	FeedbackText string `json:"feedback_text"`
}

func (t *FeedbackTool) Name() string { return "add_feedback" }

func (t *FeedbackTool) Description() string {
	return "Record quiz feedback for an existing task: the question asked, the learner's " +
		"answer, and your feedback on it. The task_id must be present in the current task list."
}

func (t *FeedbackTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task_id":       map[string]interface{}{"type": "integer"},
			"question":      map[string]interface{}{"type": "string"},
			"answer":        map[string]interface{}{"type": "string"},
			"feedback_text": map[string]interface{}{"type": "string"},
		},
		"required": []string{"task_id", "question", "answer", "feedback_text"},
	}
}

// Execute validates the referenced task against the snapshot and returns an
// append patch for the feedback list.
func (t *FeedbackTool) Execute(ctx context.Context, req Request) (*Result, error) {
	var args feedbackArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errors.NewValidationError("args", "malformed tool arguments", string(req.Args))
	}

	fb := study.Feedback{
		TaskID:       args.TaskID,
		Question:     args.Question,
		Answer:       args.Answer,
		FeedbackText: args.FeedbackText,
	}
	patch := study.Patch{Field: study.FieldFeedbackList, Feedback: &fb}

	if err := req.State.ApplyPatch(patch); err != nil {
		return nil, err
	}

	return &Result{
		Content: "Feedback recorded",
		Patch:   &patch,
	}, nil
}
