package agents

import (
	"context"
	"encoding/json"
	"time"

	"mentor/internal/adapters/ai"
	"mentor/internal/domain/study"
	"mentor/internal/events"
	"mentor/internal/metrics"
	"mentor/internal/tools"
	"mentor/pkg/errors"
	"mentor/pkg/logger"
)

// fallbackAnswer is emitted when the cycle cap is reached and the engine
// cannot produce a closing answer either.
const fallbackAnswer = "I could not finish working through that within this turn. " +
	"Here is where I got to so far - please ask again and I will continue from the current plan."

// Loop drives one conversation turn through bounded reasoning/dispatch
// cycles. Every state mutation is persisted before the matching event is
// published, so an observer can never see an event for a change that could
// still be lost.
type Loop struct {
	engine   *ai.Client
	registry *tools.Registry
	repo     study.Repository
	cap      int
	log      *logger.Logger
}

// NewLoop creates a turn loop with the given cycle cap.
func NewLoop(engine *ai.Client, registry *tools.Registry, repo study.Repository, iterationCap int) *Loop {
	if iterationCap <= 0 {
		iterationCap = 5
	}
	return &Loop{
		engine:   engine,
		registry: registry,
		repo:     repo,
		cap:      iterationCap,
		log:      logger.Get().With("component", "turn_loop"),
	}
}

// Run executes one turn against the session aggregate, publishing events
// through pub. The caller must hold exclusive access to state for the
// duration of the call; on return the in-memory aggregate matches the
// durable record.
func (l *Loop) Run(ctx context.Context, sessionID string, state *study.State, input string, pub events.Publisher) error {
	t := &turn{
		loop:      l,
		pub:       pub,
		sessionID: sessionID,
		state:     state,
		started:   time.Now(),
	}
	return t.run(ctx, input)
}

// turn carries the per-invocation context of one Run call.
type turn struct {
	loop      *Loop
	pub       events.Publisher
	sessionID string
	state     *study.State
	started   time.Time
}

func (t *turn) run(ctx context.Context, input string) error {
	l := t.loop

	t.state.AppendMessage(study.NewMessage(study.RoleUser, input))
	if err := l.repo.Save(ctx, t.sessionID, t.state); err != nil {
		return t.fail(ctx, 0, "aborted", errors.Wrap(err, "persist user message"))
	}

	convo := buildConversation(t.state)
	defs := toolDefinitions(l.registry)

	for cycle := 1; cycle <= l.cap; cycle++ {
		// Cancellation is honored between cycles only; everything already
		// persisted stays persisted.
		if ctx.Err() != nil {
			t.pub.Publish(context.WithoutCancel(ctx), t.sessionID, events.TurnFailed("turn cancelled"))
			metrics.RecordTurn("cancelled", time.Since(t.started), cycle-1)
			return errors.Wrap(ctx.Err(), "turn cancelled")
		}

		resp, err := l.engine.Chat(ctx, ai.ChatRequest{Messages: convo, Tools: defs})
		if err != nil {
			return t.fail(ctx, cycle, "aborted", err)
		}

		if len(resp.ToolCalls) == 0 {
			return t.finish(ctx, resp.Content, cycle)
		}

		convo = append(convo, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, err := t.dispatch(ctx, tc)
			if err != nil {
				return t.fail(ctx, cycle, "aborted", err)
			}
			convo = append(convo, ai.Message{
				Role:       ai.RoleTool,
				Content:    result,
				ToolCallID: tc.ID,
				Name:       tc.Name,
			})
		}
	}

	l.log.Warnf("Cycle cap reached: session=%s cap=%d", t.sessionID, l.cap)
	return t.finish(ctx, t.closingAnswer(ctx, convo), l.cap)
}

// dispatch runs one tool call and folds its outcome into the aggregate and
// the transcript. The returned string is the tool record fed back to the
// engine. Only an unregistered tool name aborts the turn; execution and
// validation failures are reported back to the engine as tool output.
func (t *turn) dispatch(ctx context.Context, tc ai.ToolCall) (string, error) {
	t.pub.Publish(ctx, t.sessionID, events.ToolCallStarted(tc.Name))

	result, err := t.loop.registry.Dispatch(ctx, tc.Name, tools.Request{
		SessionID: t.sessionID,
		Args:      json.RawMessage(tc.Arguments),
		State:     t.state.Clone(),
	})

	if err != nil {
		if errors.Is(err, errors.ErrToolNotFound) {
			return "", err
		}
		// Recoverable: the engine sees the failure and can adjust.
		content := "Tool error: " + err.Error()
		if persistErr := t.record(ctx, tc.Name, content, nil); persistErr != nil {
			return "", persistErr
		}
		return content, nil
	}

	var patch *study.Patch
	content := result.Content
	if result.IsStatePatch() {
		if applyErr := t.state.ApplyPatch(*result.Patch); applyErr != nil {
			content = "Tool error: " + applyErr.Error()
		} else {
			patch = result.Patch
		}
	}

	if err := t.record(ctx, tc.Name, content, patch); err != nil {
		return "", err
	}
	return content, nil
}

// record appends the tool output to the transcript, persists the aggregate,
// and only then publishes the tool and state events.
func (t *turn) record(ctx context.Context, tool, content string, patch *study.Patch) error {
	t.state.AppendMessage(study.NewToolMessage(tool, content))
	if err := t.loop.repo.Save(ctx, t.sessionID, t.state); err != nil {
		return errors.Wrapf(err, "persist tool result for %s", tool)
	}

	t.pub.Publish(ctx, t.sessionID, events.ToolCallFinished(tool))
	if patch != nil {
		t.pub.Publish(ctx, t.sessionID, events.StateChanged(string(patch.Field)))
	}
	return nil
}

// finish persists the assistant's answer and closes the turn.
func (t *turn) finish(ctx context.Context, answer string, cycles int) error {
	t.state.AppendMessage(study.NewMessage(study.RoleAssistant, answer))
	if err := t.loop.repo.Save(ctx, t.sessionID, t.state); err != nil {
		return t.fail(ctx, cycles, "aborted", errors.Wrap(err, "persist final answer"))
	}

	t.pub.Publish(ctx, t.sessionID, events.PartialAnswer(answer))
	t.pub.Publish(ctx, t.sessionID, events.TurnCompleted())
	metrics.RecordTurn("completed", time.Since(t.started), cycles)

	t.loop.log.Infof("Turn completed: session=%s cycles=%d", t.sessionID, cycles)
	return nil
}

// fail publishes the terminal failure event and returns the cause.
func (t *turn) fail(ctx context.Context, cycles int, status string, err error) error {
	t.pub.Publish(context.WithoutCancel(ctx), t.sessionID, events.TurnFailed(err.Error()))
	metrics.RecordTurn(status, time.Since(t.started), cycles)
	t.loop.log.Errorf("Turn failed: session=%s cycles=%d err=%v", t.sessionID, cycles, err)
	return err
}

// closingAnswer asks the engine to wrap up without tools once the cycle cap
// is spent. Any failure degrades to the canned fallback.
func (t *turn) closingAnswer(ctx context.Context, convo []ai.Message) string {
	convo = append(convo, ai.Message{
		Role:    ai.RoleUser,
		Content: "You have no tool calls left for this turn. Give the student your best final answer now.",
	})

	resp, err := t.loop.engine.Chat(ctx, ai.ChatRequest{Messages: convo})
	if err != nil || resp.Content == "" {
		return fallbackAnswer
	}
	return resp.Content
}
