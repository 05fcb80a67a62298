package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/expiry"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// statusChange is one requested status transition together with what the
// surrounding update already resolved
type statusChange struct {
	job               domain.Job
	from, to          domain.Status
	adminComments     string
	sessionTime       string
	translatorChanged bool
	active            *domain.Assignment
	translator        *domain.User
	customer          domain.User
	actor             domain.User
	language          string
	now               time.Time
}

// transition is the guard and effect of leaving one status. A nil targets list allows every target.
type transition struct {
	targets []domain.Status
	guard   func(c *statusChange) string
	effect  func(s *Service, ctx context.Context, tx domain.Store, c *statusChange, out *outbox) error
}

// transitions is keyed by the current status. A status without an entry cannot be left through an update.
var transitions = map[domain.Status]transition{
	domain.StatusTimedOut: {
		effect: (*Service).fromTimedOut,
	},
	domain.StatusCompleted: {
		targets: []domain.Status{domain.StatusTimedOut},
		guard:   requireAdminComments,
	},
	domain.StatusStarted: {
		guard: func(c *statusChange) string {
			if reason := requireAdminComments(c); reason != "" {
				return reason
			}
			if c.to == domain.StatusCompleted && !validSessionTime(c.sessionTime) {
				return msgSessionTimeRequired
			}
			return ""
		},
		effect: (*Service).fromStarted,
	},
	domain.StatusPending: {
		guard:  requireAdminComments,
		effect: (*Service).fromPending,
	},
	domain.StatusWithdrawAfter24: {
		targets: []domain.Status{domain.StatusTimedOut},
		guard:   requireAdminComments,
	},
	domain.StatusAssigned: {
		targets: []domain.Status{domain.StatusWithdrawBefore24, domain.StatusWithdrawAfter24, domain.StatusTimedOut},
		guard: func(c *statusChange) string {
			if c.to == domain.StatusTimedOut {
				return requireAdminComments(c)
			}
			return ""
		},
		effect: (*Service).fromAssigned,
	},
}

func requireAdminComments(c *statusChange) string {
	if strings.TrimSpace(c.adminComments) == "" {
		return msgAdminCommentsRequired
	}
	return ""
}

// releasesAssignment reports whether entering status ends the active assignment
func releasesAssignment(status domain.Status) bool {
	switch status {
	case domain.StatusPending, domain.StatusWithdrawBefore24, domain.StatusWithdrawAfter24:
		return true
	}
	return false
}

// updateStatus applies c.to to c.job. It reports false when the status is
// unchanged and returns a TransitionError when the table refuses the change.
func (s *Service) updateStatus(ctx context.Context, tx domain.Store, c *statusChange, out *outbox) (bool, error) {
	if c.to == c.from {
		return false, nil
	}
	if !c.to.Valid() {
		return false, &domain.TransitionError{From: c.from, To: c.to, Reason: "unknown status"}
	}

	t, ok := transitions[c.from]
	if !ok {
		return false, &domain.TransitionError{From: c.from, To: c.to, Reason: "no transitions out of " + string(c.from)}
	}
	if t.targets != nil && !slices.Contains(t.targets, c.to) {
		return false, &domain.TransitionError{From: c.from, To: c.to, Reason: "target not allowed"}
	}
	if t.guard != nil {
		if reason := t.guard(c); reason != "" {
			return false, &domain.TransitionError{From: c.from, To: c.to, Reason: reason}
		}
	}

	c.job.Status = c.to
	if c.adminComments != "" {
		c.job.AdminComments = c.adminComments
	}

	if t.effect != nil {
		if err := t.effect(s, ctx, tx, c, out); err != nil {
			return false, err
		}
	}

	if releasesAssignment(c.to) && c.active != nil && c.active.Active() {
		cancelled, err := tx.SaveAssignment(ctx, c.active.Cancelled(c.now))
		if err != nil {
			return false, fmt.Errorf("failed to cancel assignment: %w", err)
		}
		c.active = &cancelled
	}

	return true, nil
}

func (s *Service) fromTimedOut(_ context.Context, _ domain.Store, c *statusChange, out *outbox) error {
	job := &c.job

	if c.to == domain.StatusPending {
		job.CreatedAt = c.now
		job.WillExpireAt = expiry.WillExpireAt(job.Due, c.now)
		out.add(
			customerEmail(*job, c.customer, subjectReopened(job.ID, c.language), templateStatusToCustomer, nil),
			notify.NewTranslatorPush(job.ID),
		)
		return nil
	}

	out.add(customerEmail(*job, c.customer, subjectAccepted(job.ID), templateStatusToCustomer, nil))
	if c.translatorChanged {
		out.add(customerEmail(*job, c.customer, subjectAccepted(job.ID), templateJobAccepted, nil))
	}
	return nil
}

func (s *Service) fromStarted(ctx context.Context, tx domain.Store, c *statusChange, out *outbox) error {
	if c.to != domain.StatusCompleted {
		return nil
	}

	job := &c.job
	end := c.now
	job.EndAt = &end
	job.SessionTime = c.sessionTime

	out.add(s.sessionEndedEmails(*job, c.customer, c.translator)...)

	if c.active != nil && c.active.Active() {
		completed, err := tx.SaveAssignment(ctx, c.active.Completed(c.now, c.actor.ID))
		if err != nil {
			return fmt.Errorf("failed to complete assignment: %w", err)
		}
		c.active = &completed
	}
	return nil
}

func (s *Service) fromPending(_ context.Context, _ domain.Store, c *statusChange, out *outbox) error {
	job := c.job

	if c.to == domain.StatusAssigned && c.translatorChanged && c.translator != nil {
		out.add(
			customerEmail(job, c.customer, subjectAccepted(job.ID), templateJobAccepted, nil),
			userEmail(job, *c.translator, subjectAccepted(job.ID), templateChangedTranslatorNew, nil),
		)

		reminder := s.sessionReminder(job, c.language)
		out.add(
			notify.NewPush(job.ID, domain.NotificationSessionStartRemind, reminder, c.customer.ID),
			notify.NewPush(job.ID, domain.NotificationSessionStartRemind, reminder, c.translator.ID),
		)
		return nil
	}

	out.add(customerEmail(job, c.customer, subjectCancelled(job.ID), templateCancelledCustomer, nil))
	return nil
}

func (s *Service) fromAssigned(_ context.Context, _ domain.Store, c *statusChange, out *outbox) error {
	if c.to != domain.StatusWithdrawBefore24 && c.to != domain.StatusWithdrawAfter24 {
		return nil
	}

	out.add(s.cancellationEmails(c.job, c.customer, c.translator)...)
	return nil
}

func (s *Service) cancellationEmails(job domain.Job, customer domain.User, translator *domain.User) []notify.Intent {
	intents := []notify.Intent{
		customerEmail(job, customer, subjectCancelled(job.ID), templateCancelledCustomer, nil),
	}
	if translator != nil {
		intents = append(intents, userEmail(job, *translator, subjectCancelled(job.ID), templateCancelledTranslator, nil))
	}
	return intents
}

func (s *Service) sessionEndedEmails(job domain.Job, customer domain.User, translator *domain.User) []notify.Intent {
	display := sessionDisplay(job.SessionTime)
	subject := subjectSessionEnded(job.ID)

	intents := []notify.Intent{
		customerEmail(job, customer, subject, templateSessionEnded, map[string]any{
			"session_time": display,
			"for_text":     forTextInvoice,
		}),
	}
	if translator != nil {
		intents = append(intents, userEmail(job, *translator, subject, templateSessionEnded, map[string]any{
			"session_time": display,
			"for_text":     forTextSalary,
		}))
	}
	return intents
}
