package events

import "context"

// Tee forwards every published event to a secondary sink after the primary
// publisher has stamped it. Used by streaming HTTP handlers that mirror a
// turn's events into the response body.
type Tee struct {
	Base Publisher
	Sink func(Event)
}

// Publish stamps through the base publisher, then hands the stamped event to
// the sink.
func (t Tee) Publish(ctx context.Context, sessionID string, ev Event) Event {
	stamped := t.Base.Publish(ctx, sessionID, ev)
	if t.Sink != nil {
		t.Sink(stamped)
	}
	return stamped
}
