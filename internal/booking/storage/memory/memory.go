// Package memory is an in-process domain.Store used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

type state struct {
	jobs             map[int64]domain.Job
	assignments      map[int64]domain.Assignment
	users            map[int64]domain.User
	profiles         map[int64]domain.TranslatorProfile
	blacklists       map[int64][]int64
	languages        map[int64]string
	nextJobID        int64
	nextAssignmentID int64
}

func (s *state) clone() *state {
	return &state{
		jobs:             maps.Clone(s.jobs),
		assignments:      maps.Clone(s.assignments),
		users:            maps.Clone(s.users),
		profiles:         maps.Clone(s.profiles),
		blacklists:       maps.Clone(s.blacklists),
		languages:        maps.Clone(s.languages),
		nextJobID:        s.nextJobID,
		nextAssignmentID: s.nextAssignmentID,
	}
}

// Store keeps everything in maps behind a single mutex. Transactions work on a
// copy of the state that replaces the original on commit.
type Store struct {
	mu    *sync.Mutex
	state *state
	inTx  bool
}

// New creates an empty Store
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		state: &state{
			jobs:        make(map[int64]domain.Job),
			assignments: make(map[int64]domain.Assignment),
			users:       make(map[int64]domain.User),
			profiles:    make(map[int64]domain.TranslatorProfile),
			blacklists:  make(map[int64][]int64),
			languages:   make(map[int64]string),
		},
	}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx runs fn on a copy of the state. The copy is kept only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, state: s.state.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.state = tx.state
	return nil
}

// AddUser seeds a user account
func (s *Store) AddUser(u domain.User) {
	defer s.lock()()
	s.state.users[u.ID] = u
}

// AddTranslator seeds a translator account together with its profile
func (s *Store) AddTranslator(p domain.TranslatorProfile) {
	defer s.lock()()
	p.Role = domain.RoleTranslator
	s.state.users[p.ID] = p.User
	s.state.profiles[p.ID] = p
}

// AddLanguage seeds a language name
func (s *Store) AddLanguage(id int64, name string) {
	defer s.lock()()
	s.state.languages[id] = name
}

// SetBlacklist replaces the blacklist of a customer
func (s *Store) SetBlacklist(customerID int64, translatorIDs ...int64) {
	defer s.lock()()
	s.state.blacklists[customerID] = slices.Clone(translatorIDs)
}

// Assignments returns every assignment recorded for a job, oldest first
func (s *Store) Assignments(jobID int64) []domain.Assignment {
	defer s.lock()()
	var out []domain.Assignment
	for _, a := range s.state.assignments {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Jobs returns every stored job ordered by id
func (s *Store) Jobs() []domain.Job {
	defer s.lock()()
	out := slices.Collect(maps.Values(s.state.jobs))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) LoadJob(_ context.Context, id int64) (domain.Job, error) {
	defer s.lock()()
	job, ok := s.state.jobs[id]
	if !ok {
		return domain.Job{}, domain.NotFoundf("job", id)
	}
	return job, nil
}

func (s *Store) CreateJob(_ context.Context, job domain.Job) (domain.Job, error) {
	defer s.lock()()
	s.state.nextJobID++
	job.ID = s.state.nextJobID
	job.Version = 1
	s.state.jobs[job.ID] = job
	return job, nil
}

func (s *Store) SaveJob(_ context.Context, job domain.Job) (domain.Job, error) {
	defer s.lock()()
	stored, ok := s.state.jobs[job.ID]
	if !ok {
		return domain.Job{}, domain.NotFoundf("job", job.ID)
	}
	if stored.Version != job.Version {
		return domain.Job{}, domain.ErrStaleJob
	}
	job.Version++
	s.state.jobs[job.ID] = job
	return job, nil
}

func (s *Store) ClaimJob(_ context.Context, jobID, translatorID int64, at time.Time) (domain.Job, domain.Assignment, error) {
	defer s.lock()()
	job, ok := s.state.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.Assignment{}, domain.NotFoundf("job", jobID)
	}
	if job.Status != domain.StatusPending {
		return domain.Job{}, domain.Assignment{}, domain.ErrJobAlreadyTaken
	}
	if _, found := s.activeAssignment(jobID); found {
		return domain.Job{}, domain.Assignment{}, domain.ErrActiveAssignmentExists
	}

	job.Status = domain.StatusAssigned
	job.Version++
	s.state.jobs[jobID] = job

	s.state.nextAssignmentID++
	a := domain.Assignment{
		ID:           s.state.nextAssignmentID,
		JobID:        jobID,
		TranslatorID: translatorID,
		AssignedAt:   at,
	}
	s.state.assignments[a.ID] = a

	return job, a, nil
}

func (s *Store) ListPendingJobs(_ context.Context) ([]domain.Job, error) {
	defer s.lock()()
	var out []domain.Job
	for _, job := range s.state.jobs {
		if job.Status == domain.StatusPending {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (s *Store) activeAssignment(jobID int64) (domain.Assignment, bool) {
	for _, a := range s.state.assignments {
		if a.JobID == jobID && a.Active() {
			return a, true
		}
	}
	return domain.Assignment{}, false
}

func (s *Store) LoadActiveAssignment(_ context.Context, jobID int64) (domain.Assignment, error) {
	defer s.lock()()
	a, ok := s.activeAssignment(jobID)
	if !ok {
		return domain.Assignment{}, domain.NotFoundf("active assignment for job", jobID)
	}
	return a, nil
}

func (s *Store) LoadLatestAssignment(_ context.Context, jobID int64) (domain.Assignment, error) {
	defer s.lock()()
	if a, ok := s.activeAssignment(jobID); ok {
		return a, nil
	}

	var latest *domain.Assignment
	for _, a := range s.state.assignments {
		if a.JobID != jobID || a.CompletedAt == nil {
			continue
		}
		if latest == nil || a.ID > latest.ID {
			latest = &a
		}
	}
	if latest == nil {
		return domain.Assignment{}, domain.NotFoundf("assignment for job", jobID)
	}
	return *latest, nil
}

func (s *Store) SaveAssignment(_ context.Context, a domain.Assignment) (domain.Assignment, error) {
	defer s.lock()()
	if a.Active() {
		if current, ok := s.activeAssignment(a.JobID); ok && current.ID != a.ID {
			return domain.Assignment{}, domain.ErrActiveAssignmentExists
		}
	}

	if a.ID == 0 {
		s.state.nextAssignmentID++
		a.ID = s.state.nextAssignmentID
	} else if _, ok := s.state.assignments[a.ID]; !ok {
		return domain.Assignment{}, domain.NotFoundf("assignment", a.ID)
	}

	s.state.assignments[a.ID] = a
	return a, nil
}

func (s *Store) ListActiveTranslatorJobs(_ context.Context, translatorID int64) ([]domain.Job, error) {
	defer s.lock()()
	var out []domain.Job
	for _, a := range s.state.assignments {
		if a.TranslatorID != translatorID || !a.Active() {
			continue
		}
		job, ok := s.state.jobs[a.JobID]
		if ok && (job.Status == domain.StatusAssigned || job.Status == domain.StatusStarted) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Due.Before(out[j].Due) })
	return out, nil
}

func (s *Store) FindUser(_ context.Context, id int64) (domain.User, error) {
	defer s.lock()()
	u, ok := s.state.users[id]
	if !ok {
		return domain.User{}, domain.NotFoundf("user", id)
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (domain.User, error) {
	defer s.lock()()
	for _, u := range s.state.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.NotFoundf("user", email)
}

func (s *Store) FindUsersByEmails(_ context.Context, emails []string) ([]domain.User, error) {
	defer s.lock()()
	var out []domain.User
	for _, u := range s.state.users {
		if slices.ContainsFunc(emails, func(e string) bool { return strings.EqualFold(e, u.Email) }) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindTranslatorProfile(_ context.Context, userID int64) (domain.TranslatorProfile, error) {
	defer s.lock()()
	p, ok := s.state.profiles[userID]
	if !ok {
		return domain.TranslatorProfile{}, domain.NotFoundf("translator", userID)
	}
	p.User = s.state.users[userID]
	return p, nil
}

func (s *Store) ListActiveTranslators(_ context.Context) ([]domain.TranslatorProfile, error) {
	defer s.lock()()
	var out []domain.TranslatorProfile
	for id, p := range s.state.profiles {
		u := s.state.users[id]
		if !u.Active {
			continue
		}
		p.User = u
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindBlacklist(_ context.Context, customerID int64) ([]int64, error) {
	defer s.lock()()
	return slices.Clone(s.state.blacklists[customerID]), nil
}

func (s *Store) LanguageName(_ context.Context, languageID int64) (string, error) {
	defer s.lock()()
	name, ok := s.state.languages[languageID]
	if !ok {
		return "", domain.NotFoundf("language", languageID)
	}
	return name, nil
}

var _ domain.Store = (*Store)(nil)
