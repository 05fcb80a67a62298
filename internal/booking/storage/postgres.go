// Package storage persists bookings in PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/shared/postgresql"
)

var jobFields = []string{
	"id", "customer_id", "status", "immediate", "due", "duration", "from_language_id",
	"gender", "certified", "job_type", "customer_phone_type", "customer_physical_type",
	"town", "user_email", "by_admin", "specific_translator_id", "created_at", "will_expire_at",
	"admin_comments", "reference", "withdraw_at", "end_at", "session_time", "version",
}

const (
	assignmentColumns = "id, job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by"

	userColumns = `u.id, u.name, u.email, u.mobile, u.role, u.consumer_type, u.customer_type, u.city,
		u.active, u.no_notifications, u.no_emergency, u.no_night_time`

	profileQuery = `
		SELECT ` + userColumns + `,
			p.translator_type, p.gender, p.translator_level, p.town,
			COALESCE(array_agg(l.language_id) FILTER (WHERE l.language_id IS NOT NULL), '{}') AS languages
		FROM translator_profiles p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN translator_languages l ON l.user_id = p.user_id
	`
)

// jobColumns lists the job columns, optionally qualified with a table alias
func jobColumns(alias string) string {
	if alias == "" {
		return strings.Join(jobFields, ", ")
	}
	qualified := make([]string, len(jobFields))
	for i, f := range jobFields {
		qualified[i] = alias + "." + f
	}
	return strings.Join(qualified, ", ")
}

// Storage implements domain.Store on PostgreSQL
type Storage struct {
	db     *sqlx.DB
	q      sqlx.ExtContext
	inTx   bool
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		q:      db,
		logger: logger,
	}
}

// WithinTx runs fn against a Storage bound to one transaction. Nested calls join the outer transaction.
func (s *Storage) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&Storage{db: s.db, q: tx, inTx: true, logger: s.logger})
	})
}

func (s *Storage) LoadJob(ctx context.Context, id int64) (domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns("") + ` FROM jobs WHERE id = $1`
	if err := sqlx.GetContext(ctx, s.q, &job, query, id); err != nil {
		return domain.Job{}, notFound(err, "job", id)
	}
	return job, nil
}

func (s *Storage) CreateJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	query := `
		INSERT INTO jobs (
			customer_id, status, immediate, due, duration, from_language_id,
			gender, certified, job_type, customer_phone_type, customer_physical_type,
			town, user_email, by_admin, specific_translator_id, created_at, will_expire_at,
			admin_comments, reference, withdraw_at, end_at, session_time, version
		) VALUES (
			:customer_id, :status, :immediate, :due, :duration, :from_language_id,
			:gender, :certified, :job_type, :customer_phone_type, :customer_physical_type,
			:town, :user_email, :by_admin, :specific_translator_id, :created_at, :will_expire_at,
			:admin_comments, :reference, :withdraw_at, :end_at, :session_time, 1
		)
		RETURNING id, version
	`

	bound, args, err := s.q.BindNamed(query, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to bind job: %w", err)
	}
	if err := s.q.QueryRowxContext(ctx, bound, args...).Scan(&job.ID, &job.Version); err != nil {
		return domain.Job{}, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// SaveJob writes job if its version is still the stored one
func (s *Storage) SaveJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	query := `
		UPDATE jobs SET
			status = :status,
			immediate = :immediate,
			due = :due,
			duration = :duration,
			from_language_id = :from_language_id,
			gender = :gender,
			certified = :certified,
			job_type = :job_type,
			customer_phone_type = :customer_phone_type,
			customer_physical_type = :customer_physical_type,
			town = :town,
			user_email = :user_email,
			specific_translator_id = :specific_translator_id,
			created_at = :created_at,
			will_expire_at = :will_expire_at,
			admin_comments = :admin_comments,
			reference = :reference,
			withdraw_at = :withdraw_at,
			end_at = :end_at,
			session_time = :session_time,
			version = version + 1
		WHERE id = :id AND version = :version
		RETURNING ` + jobColumns("")

	bound, args, err := s.q.BindNamed(query, job)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to bind job: %w", err)
	}

	var saved domain.Job
	err = sqlx.GetContext(ctx, s.q, &saved, bound, args...)
	if errors.Is(err, sql.ErrNoRows) {
		if _, loadErr := s.LoadJob(ctx, job.ID); loadErr != nil {
			return domain.Job{}, loadErr
		}
		s.logger.Warn("Stale job write rejected",
			slog.Int64("job_id", job.ID),
			slog.Int64("version", job.Version),
		)
		return domain.Job{}, domain.ErrStaleJob
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to save job: %w", err)
	}

	return saved, nil
}

// ClaimJob moves a pending job to assigned and records the assignment in one transaction
func (s *Storage) ClaimJob(ctx context.Context, jobID, translatorID int64, at time.Time) (domain.Job, domain.Assignment, error) {
	var (
		job domain.Job
		a   domain.Assignment
	)

	err := s.WithinTx(ctx, func(store domain.Store) error {
		tx := store.(*Storage)

		query := `
			UPDATE jobs
			SET status = $1, version = version + 1
			WHERE id = $2 AND status = $3
			RETURNING ` + jobColumns("")

		err := sqlx.GetContext(ctx, tx.q, &job, query, domain.StatusAssigned, jobID, domain.StatusPending)
		if errors.Is(err, sql.ErrNoRows) {
			if _, loadErr := tx.LoadJob(ctx, jobID); loadErr != nil {
				return loadErr
			}
			s.logger.Warn("Failed to claim job - already taken",
				slog.Int64("job_id", jobID),
				slog.Int64("translator_id", translatorID),
			)
			return domain.ErrJobAlreadyTaken
		}
		if err != nil {
			return fmt.Errorf("failed to claim job: %w", err)
		}

		a, err = tx.SaveAssignment(ctx, domain.Assignment{
			JobID:        jobID,
			TranslatorID: translatorID,
			AssignedAt:   at,
		})
		return err
	})
	if err != nil {
		return domain.Job{}, domain.Assignment{}, err
	}

	s.logger.Info("Job claimed",
		slog.Int64("job_id", jobID),
		slog.Int64("translator_id", translatorID),
	)

	return job, a, nil
}

func (s *Storage) ListPendingJobs(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	query := `SELECT ` + jobColumns("") + ` FROM jobs WHERE status = $1 ORDER BY due`
	if err := sqlx.SelectContext(ctx, s.q, &jobs, query, domain.StatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	return jobs, nil
}

func (s *Storage) LoadActiveAssignment(ctx context.Context, jobID int64) (domain.Assignment, error) {
	var a domain.Assignment
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL
	`
	if err := sqlx.GetContext(ctx, s.q, &a, query, jobID); err != nil {
		return domain.Assignment{}, notFound(err, "active assignment of job", jobID)
	}
	return a, nil
}

func (s *Storage) LoadLatestAssignment(ctx context.Context, jobID int64) (domain.Assignment, error) {
	var a domain.Assignment
	// The active assignment sorts first, then completed ones newest first
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE job_id = $1 AND cancel_at IS NULL
		ORDER BY completed_at IS NOT NULL, completed_at DESC, id DESC
		LIMIT 1
	`
	if err := sqlx.GetContext(ctx, s.q, &a, query, jobID); err != nil {
		return domain.Assignment{}, notFound(err, "assignment of job", jobID)
	}
	return a, nil
}

func (s *Storage) SaveAssignment(ctx context.Context, a domain.Assignment) (domain.Assignment, error) {
	var err error
	if a.ID == 0 {
		query := `
			INSERT INTO assignments (job_id, translator_id, assigned_at, cancel_at, completed_at, completed_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		err = s.q.QueryRowxContext(ctx, query, a.JobID, a.TranslatorID, a.AssignedAt, a.CancelAt, a.CompletedAt, a.CompletedBy).Scan(&a.ID)
	} else {
		query := `
			UPDATE assignments
			SET translator_id = $2, cancel_at = $3, completed_at = $4, completed_by = $5
			WHERE id = $1
		`
		_, err = s.q.ExecContext(ctx, query, a.ID, a.TranslatorID, a.CancelAt, a.CompletedAt, a.CompletedBy)
	}

	if isUniqueViolation(err) {
		return domain.Assignment{}, domain.ErrActiveAssignmentExists
	}
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("failed to save assignment: %w", err)
	}
	return a, nil
}

func (s *Storage) ListActiveTranslatorJobs(ctx context.Context, translatorID int64) ([]domain.Job, error) {
	var jobs []domain.Job
	query := `
		SELECT ` + jobColumns("j") + `
		FROM jobs j
		JOIN assignments a ON a.job_id = j.id
		WHERE a.translator_id = $1
		  AND a.cancel_at IS NULL AND a.completed_at IS NULL
		  AND j.status IN ($2, $3)
		ORDER BY j.due
	`
	if err := sqlx.SelectContext(ctx, s.q, &jobs, query, translatorID, domain.StatusAssigned, domain.StatusStarted); err != nil {
		return nil, fmt.Errorf("failed to list translator jobs: %w", err)
	}
	return jobs, nil
}

func (s *Storage) FindUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`
	if err := sqlx.GetContext(ctx, s.q, &u, query, id); err != nil {
		return domain.User{}, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Storage) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	query := `SELECT ` + userColumns + ` FROM users u WHERE lower(u.email) = lower($1)`
	if err := sqlx.GetContext(ctx, s.q, &u, query, strings.TrimSpace(email)); err != nil {
		return domain.User{}, notFound(err, "user", email)
	}
	return u, nil
}

func (s *Storage) FindUsersByEmails(ctx context.Context, emails []string) ([]domain.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}

	var users []domain.User
	query := `SELECT ` + userColumns + ` FROM users u WHERE lower(u.email) = ANY($1) ORDER BY u.id`
	if err := sqlx.SelectContext(ctx, s.q, &users, query, pq.Array(lowered)); err != nil {
		return nil, fmt.Errorf("failed to find users by email: %w", err)
	}
	return users, nil
}

// profileRow scans the aggregated language ids of a translator
type profileRow struct {
	domain.TranslatorProfile
	Languages pq.Int64Array `db:"languages"`
}

func (r profileRow) profile() domain.TranslatorProfile {
	p := r.TranslatorProfile
	p.Languages = []int64(r.Languages)
	return p
}

func (s *Storage) FindTranslatorProfile(ctx context.Context, userID int64) (domain.TranslatorProfile, error) {
	var row profileRow
	query := profileQuery + ` WHERE p.user_id = $1 GROUP BY u.id, p.user_id`
	if err := sqlx.GetContext(ctx, s.q, &row, query, userID); err != nil {
		return domain.TranslatorProfile{}, notFound(err, "translator", userID)
	}
	return row.profile(), nil
}

func (s *Storage) ListActiveTranslators(ctx context.Context) ([]domain.TranslatorProfile, error) {
	var rows []profileRow
	query := profileQuery + ` WHERE u.active GROUP BY u.id, p.user_id ORDER BY u.id`
	if err := sqlx.SelectContext(ctx, s.q, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	profiles := make([]domain.TranslatorProfile, len(rows))
	for i, r := range rows {
		profiles[i] = r.profile()
	}
	return profiles, nil
}

func (s *Storage) FindBlacklist(ctx context.Context, customerID int64) ([]int64, error) {
	var ids []int64
	query := `SELECT translator_id FROM blacklists WHERE customer_id = $1 ORDER BY translator_id`
	if err := sqlx.SelectContext(ctx, s.q, &ids, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	return ids, nil
}

func (s *Storage) LanguageName(ctx context.Context, languageID int64) (string, error) {
	var name string
	if err := sqlx.GetContext(ctx, s.q, &name, `SELECT name FROM languages WHERE id = $1`, languageID); err != nil {
		return "", notFound(err, "language", languageID)
	}
	return name, nil
}

func notFound(err error, kind string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf(kind, id)
	}
	return fmt.Errorf("failed to load %s %v: %w", kind, id, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == postgresql.UniqueViolation
}

var _ domain.Store = (*Storage)(nil)
