// Package lifecycle is the job state machine. Every command runs under the
// job's lock inside one storage transaction and publishes its notification
// intents only after the transaction has committed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/interpreter-booking/internal/booking/assignment"
	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/lock"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

const (
	DefaultImmediateMinutes = 5
	DefaultSupportPhone     = "+46 73 75 86 865"

	// CancelNotice is how long before due a translator may still cancel and a
	// customer cancellation still counts as withdrawbefore24
	CancelNotice = 24 * time.Hour
)

// Config holds the lifecycle settings
type Config struct {
	Location         *time.Location
	SupportPhone     string
	ImmediateMinutes int
}

// Service runs the lifecycle commands
type Service struct {
	store    domain.Store
	locker   lock.Locker
	resolver *assignment.Resolver
	sink     notify.Sink
	clock    domain.Clock
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a new Service
func NewService(store domain.Store, locker lock.Locker, sink notify.Sink, clock domain.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SupportPhone == "" {
		cfg.SupportPhone = DefaultSupportPhone
	}
	if cfg.ImmediateMinutes <= 0 {
		cfg.ImmediateMinutes = DefaultImmediateMinutes
	}
	if clock == nil {
		clock = domain.SystemClock
	}

	return &Service{
		store:    store,
		locker:   locker,
		resolver: assignment.NewResolver(store, logger),
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
		validate: newValidator(),
		logger:   logger,
	}
}

// outbox collects the intents of one command until it commits
type outbox struct {
	intents []notify.Intent
}

func (o *outbox) add(intents ...notify.Intent) {
	o.intents = append(o.intents, intents...)
}

// mutate runs fn for one job under the job's lock and inside a transaction.
// The collected intents are published only if fn succeeds and the transaction commits.
func (s *Service) mutate(ctx context.Context, jobID int64, fn func(tx domain.Store, out *outbox) error) error {
	release, err := s.locker.Acquire(ctx, lock.JobKey(jobID))
	if err != nil {
		return fmt.Errorf("failed to lock job %d: %w", jobID, err)
	}
	defer release()

	return s.inTx(ctx, fn)
}

func (s *Service) inTx(ctx context.Context, fn func(tx domain.Store, out *outbox) error) error {
	var out outbox
	err := s.store.WithinTx(ctx, func(tx domain.Store) error {
		out = outbox{}
		return fn(tx, &out)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, out.intents)
	return nil
}

// publish hands intents to the sink. Failures are logged and never undo the committed change.
func (s *Service) publish(ctx context.Context, intents []notify.Intent) {
	if len(intents) == 0 {
		return
	}
	if err := s.sink.Publish(context.WithoutCancel(ctx), intents...); err != nil {
		s.logger.Error("Failed to publish notifications",
			slog.Int("count", len(intents)),
			slog.Any("error", err),
		)
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}

func (s *Service) language(ctx context.Context, store domain.UserStore, id int64) string {
	name, err := store.LanguageName(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Failed to load language name",
				slog.Int64("language_id", id),
				slog.Any("error", err),
			)
		}
		return fmt.Sprintf("#%d", id)
	}
	return name
}

// activeAssignment returns the job's active assignment or nil
func activeAssignment(ctx context.Context, tx domain.JobStore, jobID int64) (*domain.Assignment, error) {
	a, err := tx.LoadActiveAssignment(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignment: %w", err)
	}
	return &a, nil
}

// latestAssignment returns the active or, failing that, the last completed assignment or nil
func latestAssignment(ctx context.Context, tx domain.JobStore, jobID int64) (*domain.Assignment, error) {
	a, err := tx.LoadLatestAssignment(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	return &a, nil
}

// customerEmail sends an email to the job's customer, preferring the contact address on the job
func customerEmail(job domain.Job, customer domain.User, subject, template string, data map[string]any) notify.Intent {
	to := customer.Email
	if job.UserEmail != "" {
		to = job.UserEmail
	}
	return notify.NewEmail(to, customer.Name, subject, template, emailData(job, customer, data))
}

func userEmail(job domain.Job, user domain.User, subject, template string, data map[string]any) notify.Intent {
	return notify.NewEmail(user.Email, user.Name, subject, template, emailData(job, user, data))
}

func emailData(job domain.Job, user domain.User, extra map[string]any) map[string]any {
	data := map[string]any{
		"job_id":    job.ID,
		"user_id":   user.ID,
		"name":      user.Name,
		"due":       job.Due,
		"duration":  job.Duration,
		"immediate": job.Immediate,
	}
	maps.Copy(data, extra)
	return data
}
