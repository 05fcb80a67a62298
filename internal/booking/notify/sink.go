package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Sink receives the intents of a committed command
type Sink interface {
	Publish(ctx context.Context, intents ...Intent) error
}

// DirectSink delivers intents in-process before returning
type DirectSink struct {
	deliverer *Deliverer
}

// NewDirectSink creates a new DirectSink
func NewDirectSink(deliverer *Deliverer) *DirectSink {
	return &DirectSink{deliverer: deliverer}
}

func (s *DirectSink) Publish(ctx context.Context, intents ...Intent) error {
	s.deliverer.Deliver(ctx, intents)
	return nil
}

// Publisher is the queue client the QueueSink writes to
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// QueueSink publishes every intent as its own JSON message for the notification worker
type QueueSink struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewQueueSink creates a new QueueSink
func NewQueueSink(publisher Publisher, logger *slog.Logger) *QueueSink {
	return &QueueSink{publisher: publisher, logger: logger}
}

func (s *QueueSink) Publish(ctx context.Context, intents ...Intent) error {
	var failed int
	var lastErr error

	for _, in := range intents {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal intent: %w", err)
		}

		if err := s.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
			failed++
			lastErr = err
			s.logger.Error("Failed to publish notification intent",
				slog.String("intent_id", in.ID),
				slog.String("kind", string(in.Kind)),
				slog.Any("error", err),
			)
			continue
		}

		s.logger.Debug("Notification intent published",
			slog.String("intent_id", in.ID),
			slog.String("kind", string(in.Kind)),
		)
	}

	if lastErr != nil {
		return fmt.Errorf("failed to publish %d of %d intents: %w", failed, len(intents), lastErr)
	}
	return nil
}

// Recorder keeps published intents in memory
type Recorder struct {
	mu      sync.Mutex
	intents []Intent
}

func (r *Recorder) Publish(_ context.Context, intents ...Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intents...)
	return nil
}

// Intents returns a copy of everything published so far
func (r *Recorder) Intents() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.intents)
}

// OfKind returns the recorded intents of one kind
func (r *Recorder) OfKind(kind Kind) []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Intent
	for _, in := range r.intents {
		if in.Kind == kind {
			out = append(out, in)
		}
	}
	return out
}

// Reset forgets all recorded intents
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = nil
}
