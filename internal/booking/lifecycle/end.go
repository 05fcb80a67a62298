package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// EndJob completes a started session. The session time runs from due until now.
func (s *Service) EndJob(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error) {
	return s.finish(ctx, jobID, actor, domain.StatusCompleted)
}

// CustomerNotCall closes a started session the customer never called in to.
// The assignment is completed on behalf of the translator.
func (s *Service) CustomerNotCall(ctx context.Context, jobID int64, actor domain.User) (domain.Result, error) {
	return s.finish(ctx, jobID, actor, domain.StatusNotCarriedOutCustomer)
}

func (s *Service) finish(ctx context.Context, jobID int64, actor domain.User, target domain.Status) (domain.Result, error) {
	var (
		job       domain.Job
		completed domain.Assignment
	)

	err := s.mutate(ctx, jobID, func(tx domain.Store, out *outbox) error {
		var err error
		job, err = tx.LoadJob(ctx, jobID)
		if err != nil {
			return fmt.Errorf("failed to load job: %w", err)
		}
		if job.Status != domain.StatusStarted {
			return &domain.TransitionError{From: job.Status, To: target, Reason: "session has not started"}
		}

		active, err := activeAssignment(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		if active == nil {
			return &domain.TransitionError{From: job.Status, To: target, Reason: "job has no active translator"}
		}
		if actor.Role != domain.RoleAdmin && actor.ID != job.CustomerID && actor.ID != active.TranslatorID {
			return domain.NewValidationError("user", fmt.Sprintf("user %d can not end job %d", actor.ID, job.ID))
		}

		now := s.now()
		end := now
		job.Status = target
		job.EndAt = &end
		job.SessionTime = sessionInterval(job.Due, now)

		completedBy := actor.ID
		if target == domain.StatusNotCarriedOutCustomer {
			completedBy = active.TranslatorID
		}
		completed, err = tx.SaveAssignment(ctx, active.Completed(now, completedBy))
		if err != nil {
			return fmt.Errorf("failed to complete assignment: %w", err)
		}

		job, err = tx.SaveJob(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}

		customer, err := tx.FindUser(ctx, job.CustomerID)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		translator, err := s.translatorOf(ctx, tx, active)
		if err != nil {
			return err
		}

		out.add(s.sessionEndedEmails(job, customer, translator)...)

		// Every party that did not end the session is told it has ended
		var others []int64
		for _, id := range []int64{job.CustomerID, active.TranslatorID} {
			if id != actor.ID {
				others = append(others, id)
			}
		}
		out.add(notify.NewPush(job.ID, domain.NotificationSessionEnded,
			fmt.Sprintf("Tolkningen för bokning #%d har avslutats (%s).", job.ID, sessionDisplay(job.SessionTime)), others...))

		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.logger.Info("Session ended",
		slog.Int64("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.String("session_time", job.SessionTime),
		slog.Int64("user_id", actor.ID),
	)

	return domain.Succeed("", &job, &completed), nil
}
