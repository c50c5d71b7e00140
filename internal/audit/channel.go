package audit

import (
	"context"

	dErrors "stagepass/pkg/domain-errors"
)

// ChannelSink hands events to a Worker through a buffered channel so slow
// downstream sinks never sit on the request path. A full buffer drops the
// event and reports it; the publisher logs the drop.
type ChannelSink struct {
	inbox chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{inbox: make(chan Event, buffer)}
}

// Inbox is the channel a Worker drains.
func (s *ChannelSink) Inbox() <-chan Event {
	return s.inbox
}

func (s *ChannelSink) Emit(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return dErrors.New(dErrors.CodeUnavailable, "audit buffer full, event dropped")
	}
}
