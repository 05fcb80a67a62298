// Package assignment replaces or creates the active translator assignment of a job.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

// Request names the translator an update asks for. Email wins over TranslatorID.
type Request struct {
	TranslatorID int64
	Email        string
}

// Empty reports whether no translator was requested
func (r Request) Empty() bool {
	return r.TranslatorID == 0 && strings.TrimSpace(r.Email) == ""
}

// Outcome describes a resolved translator change
type Outcome struct {
	Changed bool
	// Replaced is the previous active assignment, cancelled. Nil if there was none.
	Replaced *domain.Assignment
	// Active is the assignment to keep as the job's active one
	Active *domain.Assignment

	OldTranslator *domain.User
	NewTranslator *domain.User
}

// Resolver decides whether an update implies a translator change
type Resolver struct {
	users  domain.UserStore
	logger *slog.Logger
}

// NewResolver creates a new Resolver
func NewResolver(users domain.UserStore, logger *slog.Logger) *Resolver {
	return &Resolver{users: users, logger: logger}
}

// With returns a copy of r that reads users through users, typically a transaction
func (r *Resolver) With(users domain.UserStore) *Resolver {
	return &Resolver{users: users, logger: r.logger}
}

// Resolve computes the assignment change for job given its current active
// assignment (nil if none) and the requested translator. Nothing is persisted.
func (r *Resolver) Resolve(ctx context.Context, job domain.Job, current *domain.Assignment, req Request, now time.Time) (Outcome, error) {
	if req.Empty() {
		if current != nil {
			return Outcome{Active: current}, nil
		}
		return Outcome{}, nil
	}

	next, err := r.lookup(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	if current != nil && current.TranslatorID == next.ID {
		return Outcome{Active: current}, nil
	}

	out := Outcome{
		Changed:       true,
		NewTranslator: &next,
		Active: &domain.Assignment{
			JobID:        job.ID,
			TranslatorID: next.ID,
			AssignedAt:   now,
		},
	}

	if current != nil {
		cancelled := current.Cancelled(now)
		out.Replaced = &cancelled

		old, err := r.users.FindUser(ctx, current.TranslatorID)
		switch {
		case err == nil:
			out.OldTranslator = &old
		case errors.Is(err, domain.ErrNotFound):
		default:
			return Outcome{}, fmt.Errorf("failed to load current translator: %w", err)
		}
	}

	var oldEmail any
	if out.OldTranslator != nil {
		oldEmail = out.OldTranslator.Email
	}
	r.logger.Info("Translator changed",
		slog.Int64("job_id", job.ID),
		slog.Any("old_translator_email", oldEmail),
		slog.String("new_translator_email", next.Email),
	)

	return out, nil
}

// Apply persists a resolved change through store. It is a no-op when nothing changed.
func (r *Resolver) Apply(ctx context.Context, store domain.JobStore, out *Outcome) error {
	if !out.Changed {
		return nil
	}

	if out.Replaced != nil {
		if _, err := store.SaveAssignment(ctx, *out.Replaced); err != nil {
			return fmt.Errorf("failed to cancel replaced assignment: %w", err)
		}
	}

	saved, err := store.SaveAssignment(ctx, *out.Active)
	if err != nil {
		return fmt.Errorf("failed to save new assignment: %w", err)
	}
	out.Active = &saved

	return nil
}

func (r *Resolver) lookup(ctx context.Context, req Request) (domain.User, error) {
	var (
		user domain.User
		err  error
	)

	if email := strings.TrimSpace(req.Email); email != "" {
		user, err = r.users.FindUserByEmail(ctx, email)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.NewValidationError("translator_email", "Ingen tolk med e-postadressen "+email)
		}
	} else {
		user, err = r.users.FindUser(ctx, req.TranslatorID)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to resolve translator: %w", err)
	}

	if user.Role != domain.RoleTranslator {
		return domain.User{}, domain.NewValidationError("translator", fmt.Sprintf("user %d is not a translator", user.ID))
	}

	return user, nil
}
