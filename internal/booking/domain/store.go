package domain

import (
	"context"
	"time"
)

// Clock supplies the current time. Tests inject a fixed clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// JobStore persists jobs and their assignments
type JobStore interface {
	LoadJob(ctx context.Context, id int64) (Job, error)
	// CreateJob inserts job and returns it with its new id
	CreateJob(ctx context.Context, job Job) (Job, error)
	// SaveJob updates job if its stored version still equals job.Version, and
	// returns ErrStaleJob otherwise. The stored version is incremented.
	SaveJob(ctx context.Context, job Job) (Job, error)
	// ClaimJob moves a pending job to assigned and inserts the assignment in a
	// single compare-and-swap. Returns ErrJobAlreadyTaken if the job is not pending.
	ClaimJob(ctx context.Context, jobID, translatorID int64, at time.Time) (Job, Assignment, error)
	ListPendingJobs(ctx context.Context) ([]Job, error)

	// LoadActiveAssignment returns the active assignment of a job or ErrNotFound
	LoadActiveAssignment(ctx context.Context, jobID int64) (Assignment, error)
	// LoadLatestAssignment returns the active assignment or, failing that, the
	// most recently completed one. Returns ErrNotFound if neither exists.
	LoadLatestAssignment(ctx context.Context, jobID int64) (Assignment, error)
	// SaveAssignment inserts a (ID == 0) or updates it
	SaveAssignment(ctx context.Context, a Assignment) (Assignment, error)
	// ListActiveTranslatorJobs returns the jobs a translator is actively assigned to
	ListActiveTranslatorJobs(ctx context.Context, translatorID int64) ([]Job, error)
}

// UserStore looks up accounts and translator attributes
type UserStore interface {
	FindUser(ctx context.Context, id int64) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUsersByEmails(ctx context.Context, emails []string) ([]User, error)
	FindTranslatorProfile(ctx context.Context, userID int64) (TranslatorProfile, error)
	ListActiveTranslators(ctx context.Context) ([]TranslatorProfile, error)
	FindBlacklist(ctx context.Context, customerID int64) ([]int64, error)
	LanguageName(ctx context.Context, languageID int64) (string, error)
}

// Store is the full storage collaborator
type Store interface {
	JobStore
	UserStore
	// WithinTx runs fn against a transactional view of the store. fn's writes are
	// committed together when it returns nil and discarded otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
