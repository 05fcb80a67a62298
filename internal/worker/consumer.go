package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
	"github.com/cuongbtq/interpreter-booking/internal/worker/domain"
)

// setupConsumer starts a manual-ack consumer tagged with the worker id
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	deliveries, err := w.queue.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("Notification consumer started", slog.String("consumer_tag", w.workerID))
	return deliveries, nil
}

// decodeIntent parses a delivery body into an intent with a uuid id
func decodeIntent(body []byte) (notify.Intent, error) {
	var in notify.Intent
	if err := json.Unmarshal(body, &in); err != nil {
		return notify.Intent{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if _, err := uuid.Parse(in.ID); err != nil {
		return notify.Intent{}, fmt.Errorf("%w: intent id %q is not a uuid", domain.ErrInvalidPayload, in.ID)
	}

	if !in.Valid() {
		return notify.Intent{}, fmt.Errorf("%w: %s intent %s has no matching payload", domain.ErrInvalidPayload, in.Kind, in.ID)
	}

	return in, nil
}

// startMessageDispatcher decodes deliveries and hands them to the pool.
// Undecodable messages are rejected without requeue.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - worker stopping")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("Notification delivery channel closed")
				return
			}

			in, err := decodeIntent(delivery.Body)
			if err != nil {
				w.logger.Error("Dropping malformed notification message",
					slog.Any("error", err),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message", slog.Any("error", nackErr))
				}
				continue
			}

			msg := &domain.IntentMessage{Intent: in, Delivery: delivery}

			select {
			case w.intents <- msg:
			case <-ctx.Done():
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown", slog.Any("error", nackErr))
				}
				return
			}
		}
	}
}
