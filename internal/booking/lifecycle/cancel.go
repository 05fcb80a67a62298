package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/expiry"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// CancelJob withdraws a booking. The customer may cancel a pending or assigned
// job at any time; the assigned translator only while at least CancelNotice
// remains before due, which puts the job back to pending.
func (s *Service) CancelJob(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error) {
	var job domain.Job

	err := s.mutate(ctx, jobID, func(tx domain.Store, out *outbox) error {
		var err error
		job, err = tx.LoadJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}

		active, err := activeAssignment(ctx, tx, job.ID)
		if err != nil {
			return err
		}

		switch {
		case actor.Role == domain.RoleCustomer && actor.ID == job.CustomerID:
			job, err = s.customerCancel(ctx, tx, job, actor, active, out)
		case actor.Role == domain.RoleTranslator && active != nil && active.TranslatorID == actor.ID:
			job, err = s.translatorCancel(ctx, tx, job, *active, out)
		default:
			err = domain.NewValidationError("user", fmt.Sprintf("user %d can not cancel job %d", actor.ID, job.ID))
		}
		return err
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.logger.Info("Job cancelled",
		slog.Int64("job_id", job.ID),
		slog.Int64("user_id", actor.ID),
		slog.String("status", string(job.Status)),
	)

	return domain.Succeed("", &job, nil), nil
}

func (s *Service) customerCancel(ctx context.Context, tx domain.Store, job domain.Job, customer domain.User, active *domain.Assignment, out *outbox) (domain.Job, error) {
	now := s.now()

	target := domain.StatusWithdrawAfter24
	if job.Due.Sub(now) >= CancelNotice {
		target = domain.StatusWithdrawBefore24
	}
	if job.Status != domain.StatusPending && job.Status != domain.StatusAssigned {
		return domain.Job{}, &domain.TransitionError{From: job.Status, To: target, Reason: fmt.Sprintf(msgCannotCancelInStatus, job.Status)}
	}

	job.Status = target
	job.WithdrawAt = &now

	saved, err := tx.SaveJob(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to save job: %w", err)
	}

	var translator *domain.User
	if active != nil {
		if _, err := tx.SaveAssignment(ctx, active.Cancelled(now)); err != nil {
			return domain.Job{}, fmt.Errorf("failed to cancel assignment: %w", err)
		}
		if translator, err = s.translatorOf(ctx, tx, active); err != nil {
			return domain.Job{}, err
		}
	}

	out.add(s.cancellationEmails(saved, customer, translator)...)
	if translator != nil {
		language := s.language(ctx, tx, saved.FromLanguageID)
		out.add(notify.NewPush(saved.ID, domain.NotificationJobCancelled, s.customerCancelledPush(saved, language), translator.ID))
	}

	return saved, nil
}

func (s *Service) translatorCancel(ctx context.Context, tx domain.Store, job domain.Job, active domain.Assignment, out *outbox) (domain.Job, error) {
	now := s.now()

	if job.Status != domain.StatusAssigned {
		return domain.Job{}, &domain.TransitionError{From: job.Status, To: domain.StatusPending, Reason: "only assigned jobs can be cancelled by the translator"}
	}
	if job.Due.Sub(now) < CancelNotice {
		return domain.Job{}, domain.NewConflictError(s.lateCancelMessage())
	}

	if _, err := tx.SaveAssignment(ctx, active.Cancelled(now)); err != nil {
		return domain.Job{}, fmt.Errorf("failed to cancel assignment: %w", err)
	}

	job.Status = domain.StatusPending
	job.CreatedAt = now
	job.WillExpireAt = expiry.WillExpireAt(job.Due, now)

	saved, err := tx.SaveJob(ctx, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to save job: %w", err)
	}

	language := s.language(ctx, tx, saved.FromLanguageID)
	out.add(
		notify.NewPush(saved.ID, domain.NotificationJobCancelled, s.translatorCancelledPush(saved, language), saved.CustomerID),
		notify.NewTranslatorPush(saved.ID, active.TranslatorID),
	)

	return saved, nil
}

// Reopen puts a job back to pending. A timed out job is copied into a new job
// instead, and the copy is the one offered to translators.
func (s *Service) Reopen(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error) {
	var (
		reopened    domain.Job
		placeholder domain.Assignment
	)

	err := s.mutate(ctx, jobID, func(tx domain.Store, out *outbox) error {
		job, err := tx.LoadJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		if actor.Role != domain.RoleAdmin && actor.ID != job.CustomerID {
			return domain.NewValidationError("user", fmt.Sprintf("user %d can not reopen job %d", actor.ID, job.ID))
		}
		now := s.now()

		active, err := activeAssignment(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if active != nil {
			if _, err := tx.SaveAssignment(ctx, active.Cancelled(now)); err != nil {
				return fmt.Errorf("failed to cancel assignment: %w", err)
			}
		}

		if job.Status == domain.StatusTimedOut {
			clone := job
			clone.ID = 0
			clone.Status = domain.StatusPending
			clone.CreatedAt = now
			clone.WillExpireAt = expiry.WillExpireAt(job.Due, now)
			clone.AdminComments = fmt.Sprintf(reopenedComment, job.ID)
			clone.WithdrawAt = nil
			clone.EndAt = nil
			clone.SessionTime = ""

			reopened, err = tx.CreateJob(ctx, clone)
			if err != nil {
				return fmt.Errorf("failed to create reopened job: %w", err)
			}
		} else {
			job.Status = domain.StatusPending
			job.CreatedAt = now
			job.WillExpireAt = expiry.WillExpireAt(job.Due, now)

			reopened, err = tx.SaveJob(ctx, job)
			if err != nil {
				return fmt.Errorf("failed to save job: %w", err)
			}
		}

		// Track who reopened the original job
		placeholder, err = tx.SaveAssignment(ctx, domain.Assignment{
			JobID:        jobID,
			TranslatorID: actor.ID,
			AssignedAt:   now,
		}.Cancelled(now))
		if err != nil {
			return fmt.Errorf("failed to record reopen: %w", err)
		}

		out.add(notify.NewTranslatorPush(reopened.ID))
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.logger.Info("Job reopened",
		slog.Int64("job_id", jobID),
		slog.Int64("reopened_job_id", reopened.ID),
		slog.Int64("user_id", actor.ID),
	)

	return domain.Succeed(msgReopened, &reopened, &placeholder), nil
}
