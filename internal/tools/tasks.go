package tools

import (
	"context"
	"encoding/json"

	"mentor/internal/domain/study"
	"mentor/pkg/errors"
)

// TaskListTool replaces the session's study plan wholesale. Used by the
// engine when proposing or revising the plan; the direct state endpoint goes
// through the same patch shape without involving this tool.
type TaskListTool struct{}

// NewTaskListTool creates the task-list state-patch tool.
func NewTaskListTool() *TaskListTool {
	return &TaskListTool{}
}

type taskListArgs struct {
	Tasks []study.Task `json:"tasks"`
}

func (t *TaskListTool) Name() string { return "update_task_list" }

func (t *TaskListTool) Description() string {
	return "Replace the complete study plan with the given ordered task list. " +
		"Every task needs a task_id unique in this session, a name, the source pages " +
		"it covers, and a short summary. Break each study day into several tasks."
}

func (t *TaskListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tasks": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"task_id":      map[string]interface{}{"type": "integer"},
						"name":         map[string]interface{}{"type": "string"},
						"date":         map[string]interface{}{"type": "string", "description": "YYYY-MM-DD study day"},
						"source_pages": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}},
						"completed":    map[string]interface{}{"type": "boolean"},
						"summary":      map[string]interface{}{"type": "string"},
					},
					"required": []string{"task_id", "name", "source_pages", "summary"},
				},
			},
		},
		"required": []string{"tasks"},
	}
}

// Execute validates the replacement against the state snapshot and returns
// the patch. The loop applies it to the authoritative aggregate.
func (t *TaskListTool) Execute(ctx context.Context, req Request) (*Result, error) {
	var args taskListArgs
	if err := json.Unmarshal(req.Args, &args); err != nil {
		return nil, errors.NewValidationError("args", "malformed tool arguments", string(req.Args))
	}

	patch := study.Patch{Field: study.FieldTaskList, Tasks: args.Tasks}

	// The snapshot is a private copy; applying the patch to it surfaces
	// validation errors at dispatch time without touching session state.
	if err := req.State.ApplyPatch(patch); err != nil {
		return nil, err
	}

	return &Result{
		Content: "Task list updated",
		Patch:   &patch,
	}, nil
}
