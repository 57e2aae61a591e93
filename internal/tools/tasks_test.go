package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/internal/domain/study"
	"mentor/pkg/errors"
)

func TestTaskListTool(t *testing.T) {
	tool := NewTaskListTool()

	t.Run("returns replacement patch", func(t *testing.T) {
		state := study.NewState(study.ProfessorAnalytical)

		args := `{"tasks":[
			{"task_id":1,"name":"Read ch.1","date":"2026-08-29","source_pages":[1,8],"summary":"intro"},
			{"task_id":2,"name":"Read ch.2","date":"2026-08-30","source_pages":[9,15],"summary":"basics"}
		]}`
		result, err := tool.Execute(context.Background(), Request{
			SessionID: "s1",
			Args:      json.RawMessage(args),
			State:     state.Clone(),
		})
		require.NoError(t, err)
		assert.Equal(t, "Task list updated", result.Content)
		require.True(t, result.IsStatePatch())
		assert.Equal(t, study.FieldTaskList, result.Patch.Field)
		require.Len(t, result.Patch.Tasks, 2)

		// The snapshot was validated against; the real aggregate is untouched
		// until the loop applies the patch.
		assert.Empty(t, state.TaskList)
		require.NoError(t, state.ApplyPatch(*result.Patch))
		assert.Len(t, state.TaskList, 2)
	})

	t.Run("rejects invalid replacement at dispatch time", func(t *testing.T) {
		state := study.NewState(study.ProfessorAnalytical)
		require.NoError(t, state.ApplyPatch(study.Patch{Field: study.FieldTaskList, Tasks: []study.Task{
			{TaskID: 1, Name: "a"}, {TaskID: 2, Name: "b"},
		}}))
		require.NoError(t, state.ApplyPatch(study.Patch{Field: study.FieldTaskList, Tasks: []study.Task{
			{TaskID: 1, Name: "a"},
		}}))

		// Reuses dropped id 2
		args := `{"tasks":[{"task_id":1,"name":"a","source_pages":[],"summary":""},{"task_id":2,"name":"b","source_pages":[],"summary":""}]}`
		_, err := tool.Execute(context.Background(), Request{
			SessionID: "s1",
			Args:      json.RawMessage(args),
			State:     state.Clone(),
		})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("rejects malformed arguments", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), Request{
			SessionID: "s1",
			Args:      json.RawMessage(`{"tasks": "not a list"}`),
			State:     study.NewState(study.ProfessorAnalytical),
		})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
	})
}
