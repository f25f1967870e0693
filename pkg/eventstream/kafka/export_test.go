package kafka

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

// FakeWriter records messages instead of sending them.
type FakeWriter struct {
	Messages []kafkago.Message
	Err      error
	Closed   bool
}

func (f *FakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.Err != nil {
		return f.Err
	}
	f.Messages = append(f.Messages, msgs...)
	return nil
}

func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

func NewPublisherWithWriter(w *FakeWriter, c Config) *Publisher {
	return newPublisher(w, c)
}
