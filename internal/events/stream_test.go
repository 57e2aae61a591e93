package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_PublishOrdering(t *testing.T) {
	stream := NewStream(8, nil)
	ctx := context.Background()

	ch, detach := stream.Subscribe("s1")
	defer detach()

	stream.Publish(ctx, "s1", ToolCallStarted("query_textbook"))
	stream.Publish(ctx, "s1", ToolCallFinished("query_textbook"))
	stream.Publish(ctx, "s1", PartialAnswer("answer text"))
	stream.Publish(ctx, "s1", TurnCompleted())

	got := make([]Event, 0, 4)
	for i := 0; i < 4; i++ {
		got = append(got, <-ch)
	}

	assert.Equal(t, TypeToolCallStarted, got[0].Type)
	assert.Equal(t, TypeToolCallFinished, got[1].Type)
	assert.Equal(t, TypePartialAnswer, got[2].Type)
	assert.Equal(t, TypeTurnCompleted, got[3].Type)

	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.Seq, "seq must increase in publish order")
		assert.Equal(t, "s1", ev.SessionID)
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.True(t, got[3].Terminal())
}

func TestStream_SequencesArePerSession(t *testing.T) {
	stream := NewStream(8, nil)
	ctx := context.Background()

	a := stream.Publish(ctx, "a", TurnCompleted())
	b := stream.Publish(ctx, "b", TurnCompleted())

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(1), b.Seq)
}

func TestStream_DropsWithoutSubscriber(t *testing.T) {
	stream := NewStream(8, nil)
	ctx := context.Background()

	// No subscriber attached: events are dropped but still sequenced
	ev := stream.Publish(ctx, "s1", PartialAnswer("lost"))
	assert.Equal(t, uint64(1), ev.Seq)

	ch, detach := stream.Subscribe("s1")
	defer detach()

	ev = stream.Publish(ctx, "s1", TurnCompleted())
	assert.Equal(t, uint64(2), ev.Seq, "dropped events still consume sequence numbers")

	got := <-ch
	assert.Equal(t, TypeTurnCompleted, got.Type)
}

func TestStream_DropsWhenBufferFull(t *testing.T) {
	stream := NewStream(2, nil)
	ctx := context.Background()

	ch, detach := stream.Subscribe("s1")
	defer detach()

	stream.Publish(ctx, "s1", PartialAnswer("1"))
	stream.Publish(ctx, "s1", PartialAnswer("2"))
	stream.Publish(ctx, "s1", PartialAnswer("3")) // buffer full, dropped

	assert.Equal(t, "1", (<-ch).Text)
	assert.Equal(t, "2", (<-ch).Text)
	select {
	case ev := <-ch:
		t.Fatalf("expected overflow event to be dropped, got %q", ev.Text)
	default:
	}
}

func TestStream_NewSubscriberReplacesOld(t *testing.T) {
	stream := NewStream(8, nil)
	ctx := context.Background()

	oldCh, _ := stream.Subscribe("s1")
	newCh, detach := stream.Subscribe("s1")
	defer detach()

	_, ok := <-oldCh
	assert.False(t, ok, "replaced subscriber channel must be closed")

	stream.Publish(ctx, "s1", TurnCompleted())
	ev := <-newCh
	assert.Equal(t, TypeTurnCompleted, ev.Type)
}

func TestStream_DetachStopsDelivery(t *testing.T) {
	stream := NewStream(8, nil)
	ctx := context.Background()

	ch, detach := stream.Subscribe("s1")
	detach()

	_, ok := <-ch
	require.False(t, ok)

	// Publishing after detach must not panic
	stream.Publish(ctx, "s1", TurnCompleted())
}

func TestStream_Drop(t *testing.T) {
	stream := NewStream(8, nil)
	ctx := context.Background()

	ch, _ := stream.Subscribe("s1")
	stream.Publish(ctx, "s1", PartialAnswer("x"))
	stream.Drop("s1")

	// Buffered event is still readable, then the channel closes
	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "x", ev.Text)
	_, ok = <-ch
	assert.False(t, ok)

	// Sequence restarts for a re-created session
	ev = stream.Publish(ctx, "s1", TurnCompleted())
	assert.Equal(t, uint64(1), ev.Seq)
}
