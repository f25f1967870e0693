// Package nop provides the publisher used when events.provider is unset.
// Valid events are counted and then dropped.
package nop

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rasaya1/OCRFastAPI/pkg/eventstream"
)

// Publisher drops every document event after validating it.
type Publisher struct {
	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewPublisher returns a Publisher that reports dropped events at debug level
// on log. A nil log discards them silently.
func NewPublisher(log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Publisher{logger: log}
}

// PublishDocument rejects a nil event and drops anything else.
func (p *Publisher) PublishDocument(ctx context.Context, event *eventstream.DocumentIndexedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	n := p.dropped.Add(1)
	p.logger.DebugContext(ctx, "events disabled, dropping document event",
		"event_id", event.EventID,
		"position", event.Document.Position,
		"dropped", n,
	)
	return nil
}

// Dropped reports how many events the publisher has discarded.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close does nothing; a dropped event has no buffer to flush.
func (p *Publisher) Close() error {
	return nil
}
