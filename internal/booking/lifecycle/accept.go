package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/matcher"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

type acceptance struct {
	job        domain.Job
	assignment domain.Assignment
	language   string
}

// AcceptJob assigns a pending job to the acting translator. A lost race and an
// overlapping booking both report the same conflict.
func (s *Service) AcceptJob(ctx context.Context, jobID int64, translator domain.User) (domain.Result, error) {
	acc, err := s.accept(ctx, jobID, translator, false)
	if err != nil {
		var ce *domain.ConflictError
		if errors.As(err, &ce) {
			return domain.Result{}, &domain.ConflictError{Message: overlapShortMessage, Err: ce.Err}
		}
		return domain.Result{}, err
	}

	return domain.Succeed("", &acc.job, &acc.assignment), nil
}

// AcceptJobWithID assigns a pending job to the acting translator and pushes
// the acceptance to the customer.
func (s *Service) AcceptJobWithID(ctx context.Context, jobID int64, translator domain.User) (domain.Result, error) {
	acc, err := s.accept(ctx, jobID, translator, true)
	if err != nil {
		return domain.Result{}, err
	}

	return domain.Succeed(s.acceptedMessage(acc.job, acc.language), &acc.job, &acc.assignment), nil
}

func (s *Service) accept(ctx context.Context, jobID int64, translator domain.User, push bool) (acceptance, error) {
	if translator.Role != domain.RoleTranslator {
		return acceptance{}, domain.NewValidationError("user", fmt.Sprintf("user %d is not a translator", translator.ID))
	}

	var acc acceptance
	err := s.mutate(ctx, jobID, func(tx domain.Store, out *outbox) error {
		job, err := tx.LoadJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		language := s.language(ctx, tx, job.FromLanguageID)

		busy, err := tx.ListActiveTranslatorJobs(ctx, translator.ID)
		if err != nil {
			return fmt.Errorf("failed to list translator jobs: %w", err)
		}
		if matcher.Overlapping(job, busy) {
			return domain.NewConflictError(s.overlapMessage(job))
		}

		// The status check is repeated by the compare-and-swap in ClaimJob
		if job.Status != domain.StatusPending {
			return &domain.ConflictError{Message: s.alreadyTakenMessage(job, language), Err: domain.ErrJobAlreadyTaken}
		}

		claimed, a, err := tx.ClaimJob(ctx, jobID, translator.ID, s.now())
		if errors.Is(err, domain.ErrJobAlreadyTaken) || errors.Is(err, domain.ErrActiveAssignmentExists) {
			return &domain.ConflictError{Message: s.alreadyTakenMessage(job, language), Err: err}
		}
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}

		customer, err := tx.FindUser(ctx, claimed.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}

		out.add(customerEmail(claimed, customer, subjectAccepted(claimed.ID), templateJobAccepted, map[string]any{
			"translator_name": translator.Name,
		}))
		if push {
			out.add(notify.NewPush(claimed.ID, domain.NotificationJobAccepted, s.customerAcceptedPush(claimed, language), customer.ID))
		}

		acc = acceptance{job: claimed, assignment: a, language: language}
		return nil
	})
	if err != nil {
		s.logger.Info("Job not accepted",
			slog.Int64("job_id", jobID),
			slog.Int64("translator_id", translator.ID),
			slog.Any("error", err),
		)
		return acceptance{}, err
	}

	s.logger.Info("Job accepted",
		slog.Int64("job_id", jobID),
		slog.Int64("translator_id", translator.ID),
	)

	return acc, nil
}

// GetPotentialJobs lists the pending jobs the translator is eligible for
func (s *Service) GetPotentialJobs(ctx context.Context, translatorID int64) (domain.Result, error) {
	profile, err := s.store.FindTranslatorProfile(ctx, translatorID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to load translator: %w", err)
	}

	pending, err := s.store.ListPendingJobs(ctx)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	busy, err := s.store.ListActiveTranslatorJobs(ctx, translatorID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to list translator jobs: %w", err)
	}

	jobs := matcher.PotentialJobs(profile, pending, busy)
	return domain.Result{Status: domain.ResultSuccess, Jobs: jobs}, nil
}
