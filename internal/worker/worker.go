package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
	"github.com/cuongbtq/interpreter-booking/internal/worker/domain"
)

// Queue is the notification queue the worker consumes
type Queue interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	Cancel(consumerTag string) error
}

// Deliverer executes one notification intent
type Deliverer interface {
	DeliverOne(ctx context.Context, in notify.Intent) (notify.Report, error)
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Queue       Queue
	Deliverer   Deliverer
	Concurrency int
	JobTimeout  time.Duration
	// MaxRequeues bounds how often an intent whose recipients could not be resolved goes back on the queue
	MaxRequeues int
}

// Worker drains the notification queue and delivers each intent
type Worker struct {
	logger      *slog.Logger
	queue       Queue
	deliverer   Deliverer
	workerID    string
	concurrency int
	jobTimeout  time.Duration
	maxRequeues int

	intents  chan *domain.IntentMessage
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	requeues map[string]int
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 30 * time.Second
	}

	return &Worker{
		logger:      cfg.Logger,
		queue:       cfg.Queue,
		deliverer:   cfg.Deliverer,
		workerID:    fmt.Sprintf("notification-worker-%s", uuid.NewString()[:8]),
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		maxRequeues: cfg.MaxRequeues,
		intents:     make(chan *domain.IntentMessage, concurrency),
		stopChan:    make(chan struct{}),
		requeues:    make(map[string]int),
	}
}

// Start consumes until ctx is canceled or the delivery channel closes
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	// dispatcher returned; let the pool drain what it already holds
	close(w.intents)
	w.wg.Wait()

	w.logger.Info("Notification worker stopped", slog.String("worker_id", w.workerID))
	return nil
}

// Stop cancels the consumer so Start can return after in-flight intents finish
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping notification worker", slog.String("worker_id", w.workerID))
		close(w.stopChan)
		if err := w.queue.Cancel(w.workerID); err != nil {
			w.logger.Warn("Failed to cancel consumer", slog.Any("error", err))
		}
	})
}
