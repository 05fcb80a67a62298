package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/assignment"
	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// UpdateRequest is an admin update of a booking. Zero fields are left unchanged.
type UpdateRequest struct {
	TranslatorID    int64
	TranslatorEmail string
	Due             *time.Time
	FromLanguageID  int64
	Status          domain.Status
	AdminComments   string
	Reference       *string
	SessionTime     string
}

// UpdateJob changes the translator, due time, language and status of a job in
// one transaction. A refused status transition rejects the whole update.
func (s *Service) UpdateJob(ctx context.Context, jobID int64, actor domain.User, req UpdateRequest) (domain.Result, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Result{}, domain.NewValidationError("user", "Only admins can update bookings")
	}

	var (
		job     domain.Job
		active  *domain.Assignment
		changes []any
	)

	err := s.mutate(ctx, jobID, func(tx domain.Store, out *outbox) error {
		var err error
		job, err = tx.LoadJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		now := s.now()

		customer, err := tx.FindUser(ctx, job.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}

		current, err := latestAssignment(ctx, tx, job.ID)
		if err != nil {
			return err
		}

		outcome, err := s.resolver.With(tx).Resolve(ctx, job, current, assignment.Request{
			TranslatorID: req.TranslatorID,
			Email:        req.TranslatorEmail,
		}, now)
		if err != nil {
			return err
		}
		if err := s.resolver.Apply(ctx, tx, &outcome); err != nil {
			return err
		}
		active = outcome.Active
		if outcome.Changed {
			changes = append(changes, slog.Group("translator",
				slog.Any("old", translatorEmail(outcome.OldTranslator)),
				slog.String("new", outcome.NewTranslator.Email),
			))
		}

		var oldDue *time.Time
		if req.Due != nil && !req.Due.Equal(job.Due) {
			old := job.Due
			oldDue = &old
			job.Due = *req.Due
			changes = append(changes, slog.Group("due", slog.Time("old", old), slog.Time("new", job.Due)))
		}

		var oldLanguage int64
		if req.FromLanguageID != 0 && req.FromLanguageID != job.FromLanguageID {
			oldLanguage = job.FromLanguageID
			job.FromLanguageID = req.FromLanguageID
			changes = append(changes, slog.Group("language",
				slog.String("old", s.language(ctx, tx, oldLanguage)),
				slog.String("new", s.language(ctx, tx, job.FromLanguageID)),
			))
		}

		translator, err := s.translatorOf(ctx, tx, active)
		if err != nil {
			return err
		}

		if req.Status != "" {
			change := &statusChange{
				job:               job,
				from:              job.Status,
				to:                req.Status,
				adminComments:     req.AdminComments,
				sessionTime:       req.SessionTime,
				translatorChanged: outcome.Changed,
				active:            active,
				translator:        translator,
				customer:          customer,
				actor:             actor,
				language:          s.language(ctx, tx, job.FromLanguageID),
				now:               now,
			}
			changed, err := s.updateStatus(ctx, tx, change, out)
			if err != nil {
				return err
			}
			if changed {
				changes = append(changes, slog.Group("status", slog.String("old", string(change.from)), slog.String("new", string(change.to))))
				job = change.job
				active = change.active
			}
		}

		if req.AdminComments != "" {
			job.AdminComments = req.AdminComments
		}
		if req.Reference != nil {
			job.Reference = *req.Reference
		}

		job, err = tx.SaveJob(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}

		if !job.Due.After(now) {
			return nil
		}

		if oldDue != nil {
			data := map[string]any{"old_time": *oldDue}
			out.add(customerEmail(job, customer, subjectChanged(job.ID), templateChangedDate, data))
			if translator != nil {
				out.add(userEmail(job, *translator, subjectChanged(job.ID), templateChangedDate, data))
			}
		}
		if outcome.Changed {
			out.add(customerEmail(job, customer, subjectTranslatorChanged(job.ID), templateChangedTranslatorCust, nil))
			if outcome.OldTranslator != nil {
				out.add(userEmail(job, *outcome.OldTranslator, subjectTranslatorChanged(job.ID), templateChangedTranslatorOld, nil))
			}
			out.add(userEmail(job, *outcome.NewTranslator, subjectTranslatorChanged(job.ID), templateChangedTranslatorNew, nil))
		}
		if oldLanguage != 0 {
			data := map[string]any{"old_lang": s.language(ctx, tx, oldLanguage)}
			out.add(customerEmail(job, customer, subjectChanged(job.ID), templateChangedLanguage, data))
			if translator != nil {
				out.add(userEmail(job, *translator, subjectChanged(job.ID), templateChangedLanguage, data))
			}
		}
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.logger.Info("Job updated",
		append([]any{
			slog.Int64("job_id", jobID),
			slog.Int64("user_id", actor.ID),
			slog.String("user_name", actor.Name),
		}, changes...)...,
	)

	return domain.Succeed("Updated", &job, active), nil
}

func (s *Service) translatorOf(ctx context.Context, tx domain.UserStore, a *domain.Assignment) (*domain.User, error) {
	if a == nil {
		return nil, nil
	}
	u, err := tx.FindUser(ctx, a.TranslatorID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load translator: %w", err)
	}
	return &u, nil
}

func translatorEmail(u *domain.User) any {
	if u == nil {
		return nil
	}
	return u.Email
}

// ResendNotifications pushes a job to every eligible translator again
func (s *Service) ResendNotifications(ctx context.Context, jobID int64) (domain.Result, error) {
	return s.resend(ctx, jobID, notify.NewTranslatorPush(jobID), "Push sent")
}

// ResendSMSNotifications texts every eligible translator about a job again
func (s *Service) ResendSMSNotifications(ctx context.Context, jobID int64) (domain.Result, error) {
	return s.resend(ctx, jobID, notify.NewTranslatorSMS(jobID), "SMS sent")
}

func (s *Service) resend(ctx context.Context, jobID int64, in notify.Intent, message string) (domain.Result, error) {
	job, err := s.store.LoadJob(ctx, jobID)
	if err != nil {
		return domain.Result{}, fmt.Errorf("failed to load job: %w", err)
	}

	if err := s.sink.Publish(ctx, in); err != nil {
		return domain.Result{}, fmt.Errorf("failed to publish notifications: %w", err)
	}

	return domain.Succeed(message, &job, nil), nil
}
