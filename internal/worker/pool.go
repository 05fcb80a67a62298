package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/worker/domain"
)

// spawnWorkerPool spawns N goroutines that drain the intents channel
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned", slog.Int("worker_count", w.concurrency))
}

// workerLoop processes intents until the channel is closed. Messages already
// handed over are finished even after ctx is canceled.
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for msg := range w.intents {
		err := w.processIntent(ctx, msg)

		if err == nil {
			if ackErr := msg.Delivery.Ack(false); ackErr != nil {
				w.logger.Error("Failed to ACK message",
					slog.String("worker_name", workerName),
					slog.String("intent_id", msg.ID()),
					slog.Any("error", ackErr),
				)
			}
			continue
		}

		requeue := shouldRequeue(err)
		w.logger.Error("Notification intent failed",
			slog.String("worker_name", workerName),
			slog.String("intent_id", msg.ID()),
			slog.String("kind", string(msg.Intent.Kind)),
			slog.Bool("requeue", requeue),
			slog.Any("error", err),
		)

		if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("worker_name", workerName),
				slog.String("intent_id", msg.ID()),
				slog.Any("error", nackErr),
			)
		}
	}
}

// shouldRequeue requeues only transient resolution failures within budget
func shouldRequeue(err error) bool {
	if errors.Is(err, domain.ErrInvalidPayload) || errors.Is(err, domain.ErrMaxRequeuesExceeded) {
		return false
	}

	var retryableErr *domain.RetryableError
	return errors.As(err, &retryableErr)
}
