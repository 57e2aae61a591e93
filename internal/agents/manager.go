package agents

import (
	"context"
	"sync"
	"time"

	"mentor/internal/adapters/config"
	"mentor/internal/domain/passage"
	"mentor/internal/domain/study"
	"mentor/internal/events"
	"mentor/internal/metrics"
	redisrepo "mentor/internal/repository/redis"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// Manager owns the session table. It enforces single-turn-per-session
// admission, lazily materializes aggregates from storage, and garbage
// collects idle sessions. All state mutations - conversational turns and
// direct updates alike - go through the same persist-then-publish path.
type Manager struct {
	repo     study.Repository
	passages passage.Repository
	loop     *Loop
	stream   *events.Stream
	activity *redisrepo.ActivityTracker // nil when Redis is not configured
	cfg      config.AgentsConfig
	log      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*managedSession
	stopCh   chan struct{}
	stopOnce sync.Once
}

type managedSession struct {
	state      *study.State
	busy       bool
	lastActive time.Time
}

// NewManager creates a session manager. activity may be nil.
func NewManager(
	repo study.Repository,
	passages passage.Repository,
	loop *Loop,
	stream *events.Stream,
	activity *redisrepo.ActivityTracker,
	cfg config.AgentsConfig,
) *Manager {
	return &Manager{
		repo:     repo,
		passages: passages,
		loop:     loop,
		stream:   stream,
		activity: activity,
		cfg:      cfg,
		log:      logger.Get().With("component", "session_manager"),
		sessions: make(map[string]*managedSession),
		stopCh:   make(chan struct{}),
	}
}

// Events exposes the session event stream for attach endpoints.
func (m *Manager) Events() *events.Stream {
	return m.stream
}

// RunTurn executes one conversation turn. A second turn for the same session
// is rejected with ErrSessionBusy while the first is in flight.
func (m *Manager) RunTurn(ctx context.Context, sessionID, input string) error {
	if sessionID == "" {
		return errors.NewValidationError("session_id", "must not be empty", nil)
	}
	if input == "" {
		return errors.NewValidationError("message", "must not be empty", nil)
	}

	s, err := m.checkout(sessionID)
	if err != nil {
		return err
	}
	defer m.release(s)

	if err := m.ensureLoaded(ctx, sessionID, s); err != nil {
		return err
	}
	m.touch(ctx, sessionID)

	return m.loop.Run(ctx, sessionID, s.state, input, m.stream)
}

// RunTurnStream executes one conversation turn, mirroring every event of the
// turn into sink as it is published. The returned aggregate is the state
// after the turn, whether it completed or failed.
func (m *Manager) RunTurnStream(ctx context.Context, sessionID, input string, sink func(events.Event)) (*study.State, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("session_id", "must not be empty", nil)
	}
	if input == "" {
		return nil, errors.NewValidationError("message", "must not be empty", nil)
	}

	s, err := m.checkout(sessionID)
	if err != nil {
		return nil, err
	}
	defer m.release(s)

	if err := m.ensureLoaded(ctx, sessionID, s); err != nil {
		return nil, err
	}
	m.touch(ctx, sessionID)

	err = m.loop.Run(ctx, sessionID, s.state, input, events.Tee{Base: m.stream, Sink: sink})
	return s.state.Clone(), err
}

// UpdateTaskList replaces the study plan directly, outside any turn. The
// replacement passes the same validation as a tool-driven update and is
// announced with the same state event.
func (m *Manager) UpdateTaskList(ctx context.Context, sessionID string, tasks []study.Task) (*study.State, error) {
	return m.applyDirect(ctx, sessionID, study.Patch{Field: study.FieldTaskList, Tasks: tasks})
}

// SetProfessorType reconfigures the session's coaching style.
func (m *Manager) SetProfessorType(ctx context.Context, sessionID string, pt study.ProfessorType) (*study.State, error) {
	return m.applyDirect(ctx, sessionID, study.Patch{Field: study.FieldProfessorType, ProfessorType: pt})
}

// applyDirect applies a state patch through the session's exclusive slot.
func (m *Manager) applyDirect(ctx context.Context, sessionID string, patch study.Patch) (*study.State, error) {
	if sessionID == "" {
		return nil, errors.NewValidationError("session_id", "must not be empty", nil)
	}

	s, err := m.checkout(sessionID)
	if err != nil {
		return nil, err
	}
	defer m.release(s)

	if err := m.ensureLoaded(ctx, sessionID, s); err != nil {
		return nil, err
	}
	m.touch(ctx, sessionID)

	if err := s.state.ApplyPatch(patch); err != nil {
		return nil, err
	}
	if err := m.repo.Save(ctx, sessionID, s.state); err != nil {
		return nil, errors.Wrap(err, "persist direct update")
	}
	m.stream.Publish(ctx, sessionID, events.StateChanged(string(patch.Field)))

	return s.state.Clone(), nil
}

// State returns the durable aggregate for a session. Unknown sessions get a
// fresh empty aggregate, matching lazy session creation elsewhere.
func (m *Manager) State(ctx context.Context, sessionID string) (*study.State, error) {
	state, err := m.repo.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return study.NewState(study.ProfessorAnalytical), nil
		}
		return nil, err
	}
	return state, nil
}

// CloseSession removes the session's durable state, its passage index, and
// all in-memory resources. Rejected while a turn is in flight.
func (m *Manager) CloseSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		if s.busy {
			m.mu.Unlock()
			metrics.SessionsBusy.Inc()
			return errors.Wrapf(errors.ErrSessionBusy, "session %s has a turn in flight", sessionID)
		}
		delete(m.sessions, sessionID)
		metrics.ActiveSessions.Dec()
	}
	m.mu.Unlock()

	m.stream.Drop(sessionID)
	if m.activity != nil {
		if err := m.activity.Forget(ctx, sessionID); err != nil {
			m.log.Warnf("Failed to clear session activity: %v", err)
		}
	}
	if err := m.passages.DeleteSession(ctx, sessionID); err != nil {
		return errors.Wrap(err, "delete session passages")
	}
	if err := m.repo.Delete(ctx, sessionID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return errors.Wrap(err, "delete session state")
	}

	m.log.Infof("Session closed: session=%s", sessionID)
	return nil
}

// StartJanitor launches the idle-session collector. It releases in-memory
// resources only; durable state stays resumable.
func (m *Manager) StartJanitor() {
	interval := m.cfg.JanitorInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.collectIdle(context.Background())
			}
		}
	}()
}

// Stop halts the janitor.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) collectIdle(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.busy {
			continue
		}
		if !m.idle(ctx, id, s) {
			continue
		}
		delete(m.sessions, id)
		metrics.ActiveSessions.Dec()
		m.stream.Drop(id)
		m.log.Infof("Idle session released: session=%s", id)
	}
}

func (m *Manager) idle(ctx context.Context, sessionID string, s *managedSession) bool {
	if m.activity != nil {
		alive, err := m.activity.Alive(ctx, sessionID)
		if err != nil {
			m.log.Warnf("Activity check failed, keeping session %s: %v", sessionID, err)
			return false
		}
		return !alive
	}
	return time.Since(s.lastActive) > m.cfg.SessionTTL
}

// checkout reserves the session's exclusive slot.
func (m *Manager) checkout(sessionID string) (*managedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &managedSession{}
		m.sessions[sessionID] = s
		metrics.ActiveSessions.Inc()
	}
	if s.busy {
		metrics.SessionsBusy.Inc()
		return nil, errors.Wrapf(errors.ErrSessionBusy, "session %s has a turn in flight", sessionID)
	}
	s.busy = true
	s.lastActive = time.Now()
	return s, nil
}

func (m *Manager) release(s *managedSession) {
	m.mu.Lock()
	s.busy = false
	s.lastActive = time.Now()
	m.mu.Unlock()
}

// ensureLoaded materializes the aggregate on first use. Missing records mean
// a brand new session.
func (m *Manager) ensureLoaded(ctx context.Context, sessionID string, s *managedSession) error {
	if s.state != nil {
		return nil
	}
	state, err := m.repo.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			s.state = study.NewState(study.ProfessorAnalytical)
			return nil
		}
		return errors.Wrap(err, "load session state")
	}
	s.state = state
	return nil
}

func (m *Manager) touch(ctx context.Context, sessionID string) {
	if m.activity == nil {
		return
	}
	if err := m.activity.Touch(ctx, sessionID); err != nil {
		m.log.Warnf("Failed to touch session activity: %v", err)
	}
}
