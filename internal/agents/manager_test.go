package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentor/internal/adapters/ai"
	"mentor/internal/adapters/config"
	"mentor/internal/domain/passage"
	"mentor/internal/domain/study"
	"mentor/internal/events"
	"mentor/pkg/errors"
)

func testAgentsConfig() config.AgentsConfig {
	return config.AgentsConfig{
		IterationCap:    5,
		SessionTTL:      time.Hour,
		JanitorInterval: time.Minute,
		EventBuffer:     16,
	}
}

func newTestManager(provider ai.ChatProvider) (*Manager, *fakeStateRepo, *fakePassageRepo) {
	repo := newFakeStateRepo()
	passages := &fakePassageRepo{}
	loop := NewLoop(newTestEngine(provider), newTestRegistry(), repo, 5)
	stream := events.NewStream(16, nil)
	manager := NewManager(repo, passages, loop, stream, nil, testAgentsConfig())
	return manager, repo, passages
}

func TestManager_RunTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []*ai.ChatResponse{
		{Content: "hello!", FinishReason: ai.FinishReasonStop},
	}}
	manager, repo, _ := newTestManager(provider)

	err := manager.RunTurn(context.Background(), "s1", "hi")
	require.NoError(t, err)

	saved, err := repo.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, saved.Messages, 2)
	assert.Equal(t, "hello!", saved.Messages[1].Content)
}

func TestManager_RunTurnValidation(t *testing.T) {
	manager, _, _ := newTestManager(&scriptedProvider{})

	err := manager.RunTurn(context.Background(), "", "hi")
	assert.True(t, errors.IsValidation(err))

	err = manager.RunTurn(context.Background(), "s1", "")
	assert.True(t, errors.IsValidation(err))
}

func TestManager_ConcurrentTurnRejected(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{})
	provider := &scriptedProvider{
		responses: []*ai.ChatResponse{{Content: "done", FinishReason: ai.FinishReasonStop}},
		block:     block,
		started:   started,
	}
	manager, _, _ := newTestManager(provider)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- manager.RunTurn(context.Background(), "s1", "first")
	}()

	// Wait for the first turn to occupy the session slot
	<-started
	err := manager.RunTurn(context.Background(), "s1", "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSessionBusy))

	// A different session is unaffected by the busy one
	other := &scriptedProvider{responses: []*ai.ChatResponse{{Content: "ok", FinishReason: ai.FinishReasonStop}}}
	otherManager, _, _ := newTestManager(other)
	require.NoError(t, otherManager.RunTurn(context.Background(), "s2", "hi"))

	close(block)
	require.NoError(t, <-firstDone)

	// Slot is free again
	provider.mu.Lock()
	provider.responses = append(provider.responses, &ai.ChatResponse{Content: "again", FinishReason: ai.FinishReasonStop})
	provider.mu.Unlock()
	require.NoError(t, manager.RunTurn(context.Background(), "s1", "third"))
}

func TestManager_RunTurnStream(t *testing.T) {
	provider := &scriptedProvider{responses: []*ai.ChatResponse{
		{Content: "streamed answer", FinishReason: ai.FinishReasonStop},
	}}
	manager, _, _ := newTestManager(provider)

	var streamed []events.Event
	state, err := manager.RunTurnStream(context.Background(), "s1", "hi", func(ev events.Event) {
		streamed = append(streamed, ev)
	})
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Len(t, state.Messages, 2)

	require.Len(t, streamed, 2)
	assert.Equal(t, events.TypePartialAnswer, streamed[0].Type)
	assert.Equal(t, "streamed answer", streamed[0].Text)
	assert.Equal(t, events.TypeTurnCompleted, streamed[1].Type)
	assert.Equal(t, uint64(1), streamed[0].Seq)
	assert.Equal(t, uint64(2), streamed[1].Seq)
}

func TestManager_UpdateTaskList(t *testing.T) {
	manager, repo, _ := newTestManager(&scriptedProvider{})

	tasks := []study.Task{{TaskID: 1, Name: "Read ch.1", SourcePages: []int{1, 5}}}

	state, err := manager.UpdateTaskList(context.Background(), "s1", tasks)
	require.NoError(t, err)
	assert.Len(t, state.TaskList, 1)

	// Identical replacement is idempotent
	state, err = manager.UpdateTaskList(context.Background(), "s1", tasks)
	require.NoError(t, err)
	assert.Len(t, state.TaskList, 1)
	assert.Equal(t, 1, state.MaxTaskID)

	saved, err := repo.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, saved.TaskList, 1)
}

func TestManager_UpdateTaskListEmitsStateEvent(t *testing.T) {
	manager, _, _ := newTestManager(&scriptedProvider{})

	ch, detach := manager.Events().Subscribe("s1")
	defer detach()

	_, err := manager.UpdateTaskList(context.Background(), "s1", []study.Task{{TaskID: 1, Name: "a"}})
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, events.TypeStateChanged, ev.Type)
	assert.Equal(t, string(study.FieldTaskList), ev.Field)
}

func TestManager_UpdateTaskListValidation(t *testing.T) {
	manager, repo, _ := newTestManager(&scriptedProvider{})

	_, err := manager.UpdateTaskList(context.Background(), "s1", []study.Task{
		{TaskID: 1, Name: "a"}, {TaskID: 1, Name: "dup"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	// Nothing was persisted for the failed update
	_, err = repo.Load(context.Background(), "s1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestManager_SetProfessorType(t *testing.T) {
	manager, _, _ := newTestManager(&scriptedProvider{})

	state, err := manager.SetProfessorType(context.Background(), "s1", study.ProfessorSupportive)
	require.NoError(t, err)
	assert.Equal(t, study.ProfessorSupportive, state.ProfessorType)

	_, err = manager.SetProfessorType(context.Background(), "s1", "drill-sergeant")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestManager_StateForUnknownSession(t *testing.T) {
	manager, _, _ := newTestManager(&scriptedProvider{})

	state, err := manager.State(context.Background(), "brand-new")
	require.NoError(t, err)
	assert.Empty(t, state.Messages)
	assert.Equal(t, study.ProfessorAnalytical, state.ProfessorType)
}

func TestManager_CloseSession(t *testing.T) {
	provider := &scriptedProvider{responses: []*ai.ChatResponse{
		{Content: "hi", FinishReason: ai.FinishReasonStop},
	}}
	manager, repo, passages := newTestManager(provider)

	require.NoError(t, manager.RunTurn(context.Background(), "s1", "hello"))
	passages.textbook = &passage.Textbook{SessionID: "s1", Title: "t"}

	require.NoError(t, manager.CloseSession(context.Background(), "s1"))

	_, err := repo.Load(context.Background(), "s1")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.Nil(t, passages.textbook)

	// Closing an already-absent session is not an error
	require.NoError(t, manager.CloseSession(context.Background(), "s1"))
}

// fakePassageRepo is a minimal in-memory passage.Repository
type fakePassageRepo struct {
	mu       sync.Mutex
	passages []*passage.Passage
	textbook *passage.Textbook
}

func (f *fakePassageRepo) StoreBatch(ctx context.Context, batch []*passage.Passage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passages = append(f.passages, batch...)
	return nil
}

func (f *fakePassageRepo) SearchSimilar(ctx context.Context, sessionID string, embedding pgvector.Vector, limit int) ([]*passage.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.passages) > limit {
		return f.passages[:limit], nil
	}
	return f.passages, nil
}

func (f *fakePassageRepo) GetPages(ctx context.Context, sessionID string, startPage, endPage int) ([]*passage.Passage, error) {
	return nil, nil
}

func (f *fakePassageRepo) DeleteSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passages = nil
	f.textbook = nil
	return nil
}

func (f *fakePassageRepo) SaveTextbook(ctx context.Context, tb *passage.Textbook) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textbook = tb
	return nil
}

func (f *fakePassageRepo) GetTextbook(ctx context.Context, sessionID string) (*passage.Textbook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textbook == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "no textbook for session %s", sessionID)
	}
	return f.textbook, nil
}
