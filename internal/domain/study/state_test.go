package study

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/pkg/errors"
)

func TestState_AppendMessage(t *testing.T) {
	state := NewState(ProfessorAnalytical)

	state.AppendMessage(NewMessage(RoleUser, "explain chapter 2"))
	state.AppendMessage(NewToolMessage("query_textbook", "p.12: ..."))
	state.AppendMessage(NewMessage(RoleAssistant, "Chapter 2 covers..."))

	require.Len(t, state.Messages, 3)
	assert.Equal(t, RoleUser, state.Messages[0].Role)
	assert.Equal(t, "query_textbook", state.Messages[1].Tool)
	assert.Equal(t, RoleAssistant, state.Messages[2].Role)
	assert.False(t, state.Messages[0].Timestamp.IsZero())
}

func TestState_ReplaceTasks(t *testing.T) {
	t.Run("valid replacement", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		err := state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
			{TaskID: 1, Name: "Read ch.1", Date: "2026-08-29", SourcePages: []int{1, 5}},
			{TaskID: 2, Name: "Read ch.2", Date: "2026-08-30", SourcePages: []int{6, 11}},
		}})
		require.NoError(t, err)
		assert.Len(t, state.TaskList, 2)
		assert.Equal(t, 2, state.MaxTaskID)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		err := state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
			{TaskID: 1, Name: "a"},
			{TaskID: 1, Name: "b"},
		}})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Empty(t, state.TaskList, "failed patch must not change the aggregate")
	})

	t.Run("rejects non-positive ids", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		err := state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{{TaskID: 0, Name: "a"}}})
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("dropped ids are never reused", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
			{TaskID: 1, Name: "a"},
			{TaskID: 2, Name: "b"},
		}}))
		// Drop task 2
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
			{TaskID: 1, Name: "a"},
		}}))

		// Reviving id 2 as a "new" task must fail
		err := state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
			{TaskID: 1, Name: "a"},
			{TaskID: 2, Name: "b again"},
		}})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))

		// A genuinely new id is fine
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
			{TaskID: 1, Name: "a"},
			{TaskID: 3, Name: "c"},
		}}))
		assert.Equal(t, 3, state.MaxTaskID)
	})

	t.Run("identical replacement is idempotent", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)
		tasks := []Task{{TaskID: 1, Name: "a"}, {TaskID: 2, Name: "b"}}

		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: tasks}))
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: tasks}))

		assert.Len(t, state.TaskList, 2)
		assert.Equal(t, 2, state.MaxTaskID)
	})

	t.Run("cannot remove task referenced by feedback", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{{TaskID: 1, Name: "a"}}}))
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldFeedbackList, Feedback: &Feedback{
			TaskID: 1, Question: "q", Answer: "a", FeedbackText: "good",
		}}))

		err := state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{}})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Len(t, state.TaskList, 1)
	})
}

func TestState_Feedback(t *testing.T) {
	t.Run("append requires existing task", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		err := state.ApplyPatch(Patch{Field: FieldFeedbackList, Feedback: &Feedback{TaskID: 9, Question: "q"}})
		require.Error(t, err)
		assert.True(t, errors.IsValidation(err))
		assert.Empty(t, state.FeedbackList)
	})

	t.Run("append stamps creation time", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{{TaskID: 1, Name: "a"}}}))

		require.NoError(t, state.ApplyPatch(Patch{Field: FieldFeedbackList, Feedback: &Feedback{
			TaskID: 1, Question: "q", Answer: "ans", FeedbackText: "fb",
		}}))
		require.Len(t, state.FeedbackList, 1)
		assert.False(t, state.FeedbackList[0].CreatedAt.IsZero())
	})

	t.Run("amend updates latest entry for task", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{{TaskID: 1, Name: "a"}}}))
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldFeedbackList, Feedback: &Feedback{TaskID: 1, Question: "q1"}}))
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldFeedbackList, Feedback: &Feedback{TaskID: 1, Question: "q2"}}))

		require.NoError(t, state.AmendFeedback(1, "new answer", "new fb"))
		assert.Equal(t, "q1", state.FeedbackList[0].Question)
		assert.Empty(t, state.FeedbackList[0].Answer)
		assert.Equal(t, "new answer", state.FeedbackList[1].Answer)
		assert.Equal(t, "new fb", state.FeedbackList[1].FeedbackText)

		err := state.AmendFeedback(5, "x", "y")
		assert.True(t, errors.IsValidation(err))
	})
}

func TestState_ProfessorType(t *testing.T) {
	state := NewState(ProfessorAnalytical)

	require.NoError(t, state.ApplyPatch(Patch{Field: FieldProfessorType, ProfessorType: ProfessorSupportive}))
	assert.Equal(t, ProfessorSupportive, state.ProfessorType)

	err := state.ApplyPatch(Patch{Field: FieldProfessorType, ProfessorType: "stern"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, ProfessorSupportive, state.ProfessorType)
}

func TestState_UnknownPatchField(t *testing.T) {
	state := NewState(ProfessorAnalytical)
	err := state.ApplyPatch(Patch{Field: "messages"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestState_Clone(t *testing.T) {
	state := NewState(ProfessorSupportive)
	require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{
		{TaskID: 1, Name: "a", SourcePages: []int{1, 2}},
	}}))
	state.AppendMessage(NewMessage(RoleUser, "hi"))

	clone := state.Clone()
	clone.TaskList[0].SourcePages[0] = 99
	clone.AppendMessage(NewMessage(RoleUser, "extra"))

	assert.Equal(t, 1, state.TaskList[0].SourcePages[0], "clone must not share page slices")
	assert.Len(t, state.Messages, 1)
	assert.Equal(t, ProfessorSupportive, clone.ProfessorType)
	assert.Equal(t, state.MaxTaskID, clone.MaxTaskID)
}

func TestState_JSONRoundTrip(t *testing.T) {
	t.Run("empty aggregate keeps empty lists", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)

		data, err := json.Marshal(state)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"messages":[]`)
		assert.Contains(t, string(data), `"task_list":[]`)
		assert.Contains(t, string(data), `"feedback_list":[]`)

		var decoded State
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.NotNil(t, decoded.Messages)
		assert.Equal(t, ProfessorAnalytical, decoded.ProfessorType)
	})

	t.Run("max task id survives round trip", func(t *testing.T) {
		state := NewState(ProfessorAnalytical)
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{{TaskID: 7, Name: "a"}}}))
		require.NoError(t, state.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{}}))
		require.Empty(t, state.TaskList)

		data, err := json.Marshal(state)
		require.NoError(t, err)

		var decoded State
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, 7, decoded.MaxTaskID)

		// Reuse guard still holds after reload
		err = decoded.ApplyPatch(Patch{Field: FieldTaskList, Tasks: []Task{{TaskID: 3, Name: "x"}}})
		require.Error(t, err)
	})
}
