package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
	"github.com/cuongbtq/interpreter-booking/internal/worker/domain"
)

// processIntent delivers one intent within the job timeout. Transport
// failures are counted in the report and never fail the message; only a
// resolution failure is retried.
func (w *Worker) processIntent(ctx context.Context, msg *domain.IntentMessage) error {
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.jobTimeout)
	defer cancel()

	report, err := w.deliverer.DeliverOne(deliverCtx, msg.Intent)
	if err == nil {
		w.forget(msg.ID())
		w.logger.Info("Notification intent delivered",
			slog.String("intent_id", msg.ID()),
			slog.String("kind", string(msg.Intent.Kind)),
			slog.Int("sent", report.Sent),
			slog.Int("failed", report.Failed),
		)
		return nil
	}

	if errors.Is(err, notify.ErrInvalidIntent) {
		w.forget(msg.ID())
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}

	if w.requeued(msg.ID()) > w.maxRequeues {
		w.forget(msg.ID())
		return fmt.Errorf("%w: %v", domain.ErrMaxRequeuesExceeded, err)
	}

	return domain.NewRetryableError(fmt.Errorf("failed to resolve recipients: %w", err))
}

// requeued bumps and returns how often id has failed in this process
func (w *Worker) requeued(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requeues[id]++
	return w.requeues[id]
}

func (w *Worker) forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.requeues, id)
}
