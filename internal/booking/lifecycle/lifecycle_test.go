package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/lock"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
	"github.com/cuongbtq/interpreter-booking/internal/booking/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stockholm = mustLoad("Europe/Stockholm")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

const (
	customerID int64 = 1
	adminID    int64 = 100
)

type fixture struct {
	store *memory.Store
	rec   *notify.Recorder
	svc   *Service
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: memory.New(),
		rec:   &notify.Recorder{},
		now:   time.Date(2026, 6, 1, 12, 0, 0, 0, stockholm),
	}

	f.store.AddLanguage(4, "Arabiska")
	f.store.AddLanguage(9, "Somaliska")
	f.store.AddUser(domain.User{ID: customerID, Name: "Kund AB", Email: "kund@example.se", Role: domain.RoleCustomer, ConsumerType: "paid", City: "Lund", Active: true})
	f.store.AddUser(domain.User{ID: adminID, Name: "Admin", Email: "admin@example.se", Role: domain.RoleAdmin, Active: true})

	for id := int64(2); id <= 20; id++ {
		f.store.AddTranslator(domain.TranslatorProfile{
			User:           domain.User{ID: id, Name: "Tolk", Email: fmt.Sprintf("tolk%d@example.se", id), Active: true},
			TranslatorType: domain.TranslatorProfessional,
			Languages:      []int64{4},
			Level:          domain.LevelCertified,
			Town:           "Lund",
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := domain.ClockFunc(func() time.Time { return f.now })
	f.svc = NewService(f.store, lock.NewKeyedMutex(), f.rec, clock, Config{Location: stockholm}, logger)

	return f
}

func (f *fixture) user(t *testing.T, id int64) domain.User {
	t.Helper()
	u, err := f.store.FindUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) job(t *testing.T, id int64) domain.Job {
	t.Helper()
	job, err := f.store.LoadJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

// seedJob stores a pending job due in 48 hours, adjusted by opts
func (f *fixture) seedJob(t *testing.T, opts ...func(*domain.Job)) domain.Job {
	t.Helper()
	job := domain.Job{
		CustomerID:        customerID,
		Status:            domain.StatusPending,
		Due:               f.now.Add(48 * time.Hour),
		Duration:          60,
		FromLanguageID:    4,
		JobType:           domain.JobTypePaid,
		CustomerPhoneType: true,
		Town:              "Lund",
		CreatedAt:         f.now.Add(-time.Hour),
	}
	for _, opt := range opts {
		opt(&job)
	}
	job, err := f.store.CreateJob(context.Background(), job)
	require.NoError(t, err)
	return job
}

func (f *fixture) assign(t *testing.T, jobID, translatorID int64) domain.Assignment {
	t.Helper()
	a, err := f.store.SaveAssignment(context.Background(), domain.Assignment{
		JobID:        jobID,
		TranslatorID: translatorID,
		AssignedAt:   f.now.Add(-time.Hour),
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) active(jobID int64) []domain.Assignment {
	var out []domain.Assignment
	for _, a := range f.store.Assignments(jobID) {
		if a.Active() {
			out = append(out, a)
		}
	}
	return out
}

func withStatus(status domain.Status) func(*domain.Job) {
	return func(j *domain.Job) { j.Status = status }
}

func dueIn(d time.Duration, now time.Time) func(*domain.Job) {
	return func(j *domain.Job) { j.Due = now.Add(d) }
}

func templates(intents []notify.Intent) []string {
	var out []string
	for _, in := range intents {
		out = append(out, in.Email.Template)
	}
	return out
}

func TestCreate_Validation(t *testing.T) {
	valid := CreateRequest{
		FromLanguageID:    4,
		Duration:          60,
		DueDate:           "06/03/2026",
		DueTime:           "09:30",
		CustomerPhoneType: true,
	}

	tests := []struct {
		name    string
		actor   int64
		mutate  func(*CreateRequest)
		message string
	}{
		{
			name:    "translator can not book",
			actor:   2,
			mutate:  func(*CreateRequest) {},
			message: "Translator can not create booking",
		},
		{
			name:    "missing language",
			actor:   customerID,
			mutate:  func(r *CreateRequest) { r.FromLanguageID = 0 },
			message: "Du måste fylla in alla fält: from_language_id",
		},
		{
			name:    "missing duration",
			actor:   customerID,
			mutate:  func(r *CreateRequest) { r.Duration = 0 },
			message: "Du måste fylla in alla fält: duration",
		},
		{
			name:    "missing due time",
			actor:   customerID,
			mutate:  func(r *CreateRequest) { r.DueTime = "" },
			message: "Du måste fylla in alla fält: due_date or due_time",
		},
		{
			name:    "malformed due date",
			actor:   customerID,
			mutate:  func(r *CreateRequest) { r.DueDate = "2026-06-03" },
			message: "Du måste fylla in alla fält: due_date or due_time",
		},
		{
			name:    "no contact mode",
			actor:   customerID,
			mutate:  func(r *CreateRequest) { r.CustomerPhoneType = false },
			message: "Du måste göra ett val här: customer_phone_type",
		},
		{
			name:    "due in the past",
			actor:   customerID,
			mutate:  func(r *CreateRequest) { r.DueDate = "05/31/2026" },
			message: "Can't create booking in past",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := valid
			tt.mutate(&req)

			_, err := f.svc.Create(context.Background(), f.user(t, tt.actor), req)

			require.Error(t, err)
			assert.True(t, domain.IsValidation(err))
			assert.Equal(t, tt.message, err.Error())
			assert.Empty(t, f.store.Jobs())
			assert.Empty(t, f.rec.Intents())
		})
	}
}

func TestCreate_UnknownJobForTag(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.user(t, customerID), CreateRequest{
		Immediate:         true,
		CustomerPhoneType: true,
		JobFor:            []string{"robot"},
	})

	assert.True(t, domain.IsValidation(err))
}

func TestCreate_Scheduled(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Create(context.Background(), f.user(t, customerID), CreateRequest{
		FromLanguageID:    4,
		Duration:          45,
		DueDate:           "06/03/2026",
		DueTime:           "09:30",
		CustomerPhoneType: true,
		JobFor:            []string{JobForFemale, JobForNormal, JobForCertified},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Job)

	job := *res.Job
	assert.Equal(t, domain.ResultSuccess, res.Status)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.True(t, job.Due.Equal(time.Date(2026, 6, 3, 9, 30, 0, 0, stockholm)))
	assert.True(t, job.WillExpireAt.Equal(f.now.Add(16*time.Hour)), "45.5h lead expires 16h after creation")
	assert.Equal(t, domain.JobTypePaid, job.JobType)
	assert.Equal(t, domain.GenderFemale, job.Gender)
	assert.Equal(t, domain.CertifiedBoth, job.Certified)
	assert.Equal(t, "Lund", job.Town)
	assert.False(t, job.ByAdmin)

	emails := f.rec.OfKind(notify.KindEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "kund@example.se", emails[0].Email.To)
	assert.Equal(t, "Vi har mottagit er tolkbokning. Bokningsnr: #1", emails[0].Email.Subject)
	assert.Equal(t, templateJobCreated, emails[0].Email.Template)

	fanOut := f.rec.OfKind(notify.KindTranslatorPush)
	require.Len(t, fanOut, 1)
	assert.Equal(t, job.ID, fanOut[0].FanOut.JobID)
}

func TestCreate_Immediate(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Create(context.Background(), f.user(t, customerID), CreateRequest{
		Immediate:            true,
		FromLanguageID:       4,
		CustomerPhysicalType: true,
	})
	require.NoError(t, err)

	job := *res.Job
	assert.True(t, job.Immediate)
	assert.True(t, job.Due.Equal(f.now.Add(5*time.Minute)))
	assert.True(t, job.CustomerPhoneType, "immediate jobs are always served by phone")
	assert.True(t, job.WillExpireAt.Equal(job.Due))
	assert.Equal(t, domain.CertifiedNormal, job.Certified, "no job-for tags means a layman booking")
}

func TestCreate_AdminWithTranslator(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Create(context.Background(), f.user(t, adminID), CreateRequest{
		CustomerID:        customerID,
		TranslatorID:      2,
		FromLanguageID:    4,
		Duration:          30,
		DueDate:           "06/05/2026",
		DueTime:           "14:00",
		CustomerPhoneType: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, res.Job.Status)
	assert.Equal(t, customerID, res.Job.CustomerID)
	assert.True(t, res.Job.ByAdmin)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, int64(2), res.Assignment.TranslatorID)
	assert.Len(t, f.active(res.Job.ID), 1)
	assert.Empty(t, f.rec.OfKind(notify.KindTranslatorPush))
}

func TestCreate_AdminNeedsCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.user(t, adminID), CreateRequest{
		Immediate:         true,
		CustomerPhoneType: true,
	})

	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, f.store.Jobs())
}

func TestJobFor(t *testing.T) {
	tests := []struct {
		tags      []string
		gender    domain.Gender
		certified domain.Certification
	}{
		{nil, domain.GenderNone, domain.CertifiedNormal},
		{[]string{JobForMale}, domain.GenderMale, domain.CertifiedNormal},
		{[]string{JobForNormal}, domain.GenderNone, domain.CertifiedNormal},
		{[]string{JobForMale, JobForCertified}, domain.GenderMale, domain.CertifiedYes},
		{[]string{JobForNormal, JobForCertified}, domain.GenderNone, domain.CertifiedBoth},
		{[]string{JobForCertifiedInLaw}, domain.GenderNone, domain.CertifiedLaw},
		{[]string{JobForNormal, JobForCertifiedInLaw}, domain.GenderNone, domain.CertifiedNLaw},
		{[]string{JobForFemale, JobForCertifiedInHealth}, domain.GenderFemale, domain.CertifiedHealth},
		{[]string{JobForNormal, JobForCertifiedInHealth, JobForCertifiedInLaw}, domain.GenderNone, domain.CertifiedNHealth},
	}

	for _, tt := range tests {
		gender, certified := jobFor(tt.tags)
		assert.Equal(t, tt.gender, gender, "tags %v", tt.tags)
		assert.Equal(t, tt.certified, certified, "tags %v", tt.tags)
	}
}

func TestAcceptJobWithID_ConcurrentAcceptsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)

	const racers = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []int64
		conflicts int
		others    []error
	)

	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		translator := f.user(t, int64(2+i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.AcceptJobWithID(context.Background(), job.ID, translator)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, translator.ID)
			case domain.IsConflict(err):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Empty(t, others)
	require.Len(t, winners, 1)
	assert.Equal(t, racers-1, conflicts)

	assert.Equal(t, domain.StatusAssigned, f.job(t, job.ID).Status)
	active := f.active(job.ID)
	require.Len(t, active, 1)
	assert.Equal(t, winners[0], active[0].TranslatorID)
	assert.Len(t, f.store.Assignments(job.ID), 1)

	assert.Len(t, f.rec.OfKind(notify.KindPush), 1)
}

func TestAcceptJobWithID_Messages(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, func(j *domain.Job) {
		j.Due = time.Date(2026, 6, 10, 10, 0, 0, 0, stockholm)
	})

	res, err := f.svc.AcceptJobWithID(context.Background(), job.ID, f.user(t, 2))
	require.NoError(t, err)
	assert.Equal(t, "Du har nu accepterat och fått bokningen för Arabiskatolk 60min 2026-06-10 10:00", res.Message)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, int64(2), res.Assignment.TranslatorID)

	emails := f.rec.OfKind(notify.KindEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, templateJobAccepted, emails[0].Email.Template)
	assert.Equal(t, "Bekräftelse - tolk har accepterat er bokning (bokning # 1)", emails[0].Email.Subject)

	pushes := f.rec.OfKind(notify.KindPush)
	require.Len(t, pushes, 1)
	assert.Equal(t, []int64{customerID}, pushes[0].Push.UserIDs)
	assert.Equal(t, domain.NotificationJobAccepted, pushes[0].Push.NotificationType)
	assert.Contains(t, pushes[0].Push.Message, "har accepterats av en tolk")

	f.rec.Reset()
	_, err = f.svc.AcceptJobWithID(context.Background(), job.ID, f.user(t, 3))
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Denna Arabiskatolk 60min 2026-06-10 10:00 har redan accepterats av annan tolk. Du har inte fått denna tolkning", ce.Message)
	assert.ErrorIs(t, err, domain.ErrJobAlreadyTaken)
	assert.Empty(t, f.rec.Intents())
}

func TestAcceptJob_OverlappingBooking(t *testing.T) {
	f := newFixture(t)
	due := time.Date(2026, 6, 10, 10, 0, 0, 0, stockholm)

	booked := f.seedJob(t, withStatus(domain.StatusAssigned), func(j *domain.Job) { j.Due = due })
	f.assign(t, booked.ID, 2)

	overlapping := f.seedJob(t, func(j *domain.Job) { j.Due = due.Add(30 * time.Minute) })
	before := f.store.Jobs()

	_, err := f.svc.AcceptJobWithID(context.Background(), overlapping.ID, f.user(t, 2))
	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Du har redan en bokning den tiden 2026-06-10 10:30. Du har inte fått denna tolkning", ce.Message)

	_, err = f.svc.AcceptJob(context.Background(), overlapping.ID, f.user(t, 2))
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Du har redan en bokning den tiden! Bokningen är inte accepterad.", ce.Message)

	assert.Equal(t, before, f.store.Jobs())
	assert.Empty(t, f.store.Assignments(overlapping.ID))
	assert.Empty(t, f.rec.Intents())

	res, err := f.svc.AcceptJob(context.Background(), overlapping.ID, f.user(t, 3))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, res.Job.Status)
}

func TestAcceptJob_RequiresTranslator(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)

	_, err := f.svc.AcceptJob(context.Background(), job.ID, f.user(t, customerID))
	assert.True(t, domain.IsValidation(err))

	_, err = f.svc.AcceptJob(context.Background(), 999, f.user(t, 2))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateJob_StatusTransitions(t *testing.T) {
	tests := []struct {
		name          string
		from          domain.Status
		to            domain.Status
		adminComments string
		sessionTime   string
		assigned      bool
		allowed       bool
	}{
		{name: "completed to timedout without comment", from: domain.StatusCompleted, to: domain.StatusTimedOut},
		{name: "completed to timedout", from: domain.StatusCompleted, to: domain.StatusTimedOut, adminComments: "Kunden ringde", allowed: true},
		{name: "completed to pending", from: domain.StatusCompleted, to: domain.StatusPending, adminComments: "x"},
		{name: "started to completed", from: domain.StatusStarted, to: domain.StatusCompleted, adminComments: "Klar", sessionTime: "1:30:00", assigned: true, allowed: true},
		{name: "started to completed without session time", from: domain.StatusStarted, to: domain.StatusCompleted, adminComments: "Klar", assigned: true},
		{name: "started to completed without comment", from: domain.StatusStarted, to: domain.StatusCompleted, sessionTime: "1:30:00", assigned: true},
		{name: "pending to assigned without comment", from: domain.StatusPending, to: domain.StatusAssigned},
		{name: "pending to timedout", from: domain.StatusPending, to: domain.StatusTimedOut, adminComments: "Ingen tolk", allowed: true},
		{name: "withdrawafter24 to timedout", from: domain.StatusWithdrawAfter24, to: domain.StatusTimedOut, adminComments: "x", allowed: true},
		{name: "withdrawafter24 to pending", from: domain.StatusWithdrawAfter24, to: domain.StatusPending, adminComments: "x"},
		{name: "assigned to withdrawbefore24", from: domain.StatusAssigned, to: domain.StatusWithdrawBefore24, assigned: true, allowed: true},
		{name: "assigned to timedout without comment", from: domain.StatusAssigned, to: domain.StatusTimedOut, assigned: true},
		{name: "assigned to completed", from: domain.StatusAssigned, to: domain.StatusCompleted, adminComments: "x", assigned: true},
		{name: "withdrawbefore24 is final", from: domain.StatusWithdrawBefore24, to: domain.StatusPending, adminComments: "x"},
		{name: "not carried out is final", from: domain.StatusNotCarriedOutCustomer, to: domain.StatusTimedOut, adminComments: "x"},
		{name: "timedout to pending", from: domain.StatusTimedOut, to: domain.StatusPending, allowed: true},
		{name: "timedout to assigned", from: domain.StatusTimedOut, to: domain.StatusAssigned, allowed: true},
		{name: "unknown target", from: domain.StatusTimedOut, to: domain.Status("archived")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.seedJob(t, withStatus(tt.from))
			if tt.assigned {
				f.assign(t, job.ID, 2)
			}
			before := f.store.Jobs()
			assignmentsBefore := f.store.Assignments(job.ID)

			res, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{
				Status:        tt.to,
				AdminComments: tt.adminComments,
				SessionTime:   tt.sessionTime,
			})

			if !tt.allowed {
				var te *domain.TransitionError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.from, te.From)
				assert.Equal(t, tt.to, te.To)
				assert.Equal(t, domain.ResultConflict, domain.Failure(err).Status)

				assert.Equal(t, before, f.store.Jobs(), "rejected transition must not mutate")
				assert.Equal(t, assignmentsBefore, f.store.Assignments(job.ID))
				assert.Empty(t, f.rec.Intents())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, res.Job.Status)
			assert.Equal(t, tt.to, f.job(t, job.ID).Status)
			assert.LessOrEqual(t, len(f.active(job.ID)), 1)
		})
	}
}

func TestUpdateJob_SameStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusCompleted))

	res, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Job.Status)
	assert.Empty(t, f.rec.Intents())
}

func TestUpdateJob_StatusChangeKeepsAdminComments(t *testing.T) {
	tests := []struct {
		name     string
		from     domain.Status
		to       domain.Status
		comments string
		expected string
	}{
		{name: "timedout to pending without comment", from: domain.StatusTimedOut, to: domain.StatusPending, expected: "keep me"},
		{name: "assigned to withdrawbefore24 without comment", from: domain.StatusAssigned, to: domain.StatusWithdrawBefore24, expected: "keep me"},
		{name: "pending to timedout replaces comment", from: domain.StatusPending, to: domain.StatusTimedOut, comments: "Ingen tolk", expected: "Ingen tolk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.seedJob(t, withStatus(tt.from), func(j *domain.Job) { j.AdminComments = "keep me" })
			if tt.from == domain.StatusAssigned {
				f.assign(t, job.ID, 2)
			}

			_, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{
				Status:        tt.to,
				AdminComments: tt.comments,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.job(t, job.ID).AdminComments)
		})
	}
}

func TestUpdateJob_StartedToCompleted(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusStarted))
	f.assign(t, job.ID, 2)

	res, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{
		Status:        domain.StatusCompleted,
		AdminComments: "Avslutad av admin",
		SessionTime:   "1:45:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "1:45:00", res.Job.SessionTime)
	require.NotNil(t, res.Job.EndAt)
	assert.True(t, res.Job.EndAt.Equal(f.now))
	assert.Equal(t, "Avslutad av admin", res.Job.AdminComments)

	assignments := f.store.Assignments(job.ID)
	require.Len(t, assignments, 1)
	require.NotNil(t, assignments[0].CompletedAt)
	assert.Equal(t, adminID, *assignments[0].CompletedBy)

	emails := f.rec.OfKind(notify.KindEmail)
	require.Len(t, emails, 2)
	assert.Equal(t, "faktura", emails[0].Email.Data["for_text"])
	assert.Equal(t, "lön", emails[1].Email.Data["for_text"])
	assert.Equal(t, "1 tim 45 min", emails[1].Email.Data["session_time"])
}

func TestUpdateJob_TimedOutToPendingReopens(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusTimedOut))

	res, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{Status: domain.StatusPending})
	require.NoError(t, err)

	assert.True(t, res.Job.CreatedAt.Equal(f.now))
	assert.Len(t, f.rec.OfKind(notify.KindTranslatorPush), 1)

	emails := f.rec.OfKind(notify.KindEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "Vi har nu återöppnat er bokning av Arabiskatolk för bokning #1", emails[0].Email.Subject)
}

func TestUpdateJob_PendingToAssignedWithTranslator(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)

	res, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{
		TranslatorID:  2,
		Status:        domain.StatusAssigned,
		AdminComments: "Tilldelad manuellt",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAssigned, res.Job.Status)
	require.NotNil(t, res.Assignment)
	assert.Equal(t, int64(2), res.Assignment.TranslatorID)
	assert.Len(t, f.active(job.ID), 1)

	assert.ElementsMatch(t, []string{
		templateJobAccepted,
		templateChangedTranslatorNew,
		templateChangedTranslatorCust,
		templateChangedTranslatorNew,
	}, templates(f.rec.OfKind(notify.KindEmail)))

	var reminded []int64
	for _, in := range f.rec.OfKind(notify.KindPush) {
		assert.Equal(t, domain.NotificationSessionStartRemind, in.Push.NotificationType)
		assert.Contains(t, in.Push.Message, "Detta är en påminnelse om att du har en Arabiskatolkning (telefon)")
		reminded = append(reminded, in.Push.UserIDs...)
	}
	assert.ElementsMatch(t, []int64{customerID, 2}, reminded)
}

func TestUpdateJob_RejectedTransitionRollsBackTranslatorChange(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned))
	f.assign(t, job.ID, 2)
	before := f.store.Jobs()

	_, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{
		TranslatorID:  3,
		Status:        domain.StatusCompleted,
		AdminComments: "Byt tolk",
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	assert.Equal(t, before, f.store.Jobs())
	assignments := f.store.Assignments(job.ID)
	require.Len(t, assignments, 1)
	assert.Equal(t, int64(2), assignments[0].TranslatorID)
	assert.True(t, assignments[0].Active())
	assert.Empty(t, f.rec.Intents())
}

func TestUpdateJob_DueAndLanguageChange(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned))
	f.assign(t, job.ID, 2)

	newDue := job.Due.Add(2 * time.Hour)
	res, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{
		Due:            &newDue,
		FromLanguageID: 9,
	})
	require.NoError(t, err)

	assert.True(t, res.Job.Due.Equal(newDue))
	assert.Equal(t, int64(9), res.Job.FromLanguageID)

	emails := f.rec.OfKind(notify.KindEmail)
	assert.ElementsMatch(t, []string{
		templateChangedDate, templateChangedDate,
		templateChangedLanguage, templateChangedLanguage,
	}, templates(emails))
	for _, e := range emails {
		if e.Email.Template == templateChangedLanguage {
			assert.Equal(t, "Arabiska", e.Email.Data["old_lang"])
		}
	}
}

func TestUpdateJob_PastDueSendsNoChangeNotices(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned), dueIn(-3*time.Hour, f.now))
	f.assign(t, job.ID, 2)

	newDue := job.Due.Add(time.Hour)
	_, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, adminID), UpdateRequest{Due: &newDue, TranslatorID: 3})
	require.NoError(t, err)

	assert.Empty(t, f.rec.Intents())
	active := f.active(job.ID)
	require.Len(t, active, 1)
	assert.Equal(t, int64(3), active[0].TranslatorID)
}

func TestUpdateJob_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)

	_, err := f.svc.UpdateJob(context.Background(), job.ID, f.user(t, customerID), UpdateRequest{Status: domain.StatusTimedOut})
	assert.True(t, domain.IsValidation(err))
}

func TestCancelJob_Customer(t *testing.T) {
	tests := []struct {
		name     string
		lead     time.Duration
		expected domain.Status
	}{
		{"25 hours before due", 25 * time.Hour, domain.StatusWithdrawBefore24},
		{"exactly 24 hours before due", 24 * time.Hour, domain.StatusWithdrawBefore24},
		{"10 hours before due", 10 * time.Hour, domain.StatusWithdrawAfter24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.seedJob(t, withStatus(domain.StatusAssigned), dueIn(tt.lead, f.now))
			f.assign(t, job.ID, 2)

			res, err := f.svc.CancelJob(context.Background(), job.ID, f.user(t, customerID))
			require.NoError(t, err)

			assert.Equal(t, tt.expected, res.Job.Status)
			require.NotNil(t, res.Job.WithdrawAt)
			assert.True(t, res.Job.WithdrawAt.Equal(f.now))
			assert.Empty(t, f.active(job.ID))

			pushes := f.rec.OfKind(notify.KindPush)
			require.Len(t, pushes, 1)
			assert.Equal(t, []int64{2}, pushes[0].Push.UserIDs)
			assert.Equal(t, domain.NotificationJobCancelled, pushes[0].Push.NotificationType)
			assert.Contains(t, pushes[0].Push.Message, "Kunden har avbokat bokningen för Arabiskatolk")

			assert.ElementsMatch(t, []string{templateCancelledCustomer, templateCancelledTranslator},
				templates(f.rec.OfKind(notify.KindEmail)))
		})
	}
}

func TestCancelJob_CustomerPendingWithoutTranslator(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)

	res, err := f.svc.CancelJob(context.Background(), job.ID, f.user(t, customerID))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusWithdrawBefore24, res.Job.Status)
	assert.Empty(t, f.rec.OfKind(notify.KindPush))
}

func TestCancelJob_CustomerCannotCancelFinishedJob(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusCompleted))

	_, err := f.svc.CancelJob(context.Background(), job.ID, f.user(t, customerID))
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, domain.StatusCompleted, f.job(t, job.ID).Status)
}

func TestCancelJob_TranslatorTooLate(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned), dueIn(10*time.Hour, f.now))
	f.assign(t, job.ID, 2)
	before := f.store.Jobs()

	_, err := f.svc.CancelJob(context.Background(), job.ID, f.user(t, 2))

	var ce *domain.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Du kan inte avboka en bokning som sker inom 24 timmar genom DigitalTolk. Vänligen ring på +46 73 75 86 865 och gör din avbokning over telefon. Tack!", ce.Message)

	assert.Equal(t, before, f.store.Jobs())
	require.Len(t, f.active(job.ID), 1)
	assert.Empty(t, f.rec.Intents())
}

func TestCancelJob_TranslatorReopensJob(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned), dueIn(30*time.Hour, f.now))
	f.assign(t, job.ID, 2)

	res, err := f.svc.CancelJob(context.Background(), job.ID, f.user(t, 2))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, res.Job.Status)
	assert.True(t, res.Job.CreatedAt.Equal(f.now))
	assert.True(t, res.Job.WillExpireAt.Equal(f.now.Add(16*time.Hour)))
	assert.Empty(t, f.active(job.ID))
	assert.Len(t, f.store.Assignments(job.ID), 1, "the cancelled assignment is kept as history")

	pushes := f.rec.OfKind(notify.KindPush)
	require.Len(t, pushes, 1)
	assert.Equal(t, []int64{customerID}, pushes[0].Push.UserIDs)
	assert.Contains(t, pushes[0].Push.Message, "har avbokat tolkningen")

	fanOut := f.rec.OfKind(notify.KindTranslatorPush)
	require.Len(t, fanOut, 1)
	assert.Equal(t, []int64{2}, fanOut[0].FanOut.Exclude)
}

func TestCancelJob_StrangerRejected(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned))
	f.assign(t, job.ID, 2)

	_, err := f.svc.CancelJob(context.Background(), job.ID, f.user(t, 3))
	assert.True(t, domain.IsValidation(err))
	assert.Len(t, f.active(job.ID), 1)
}

func TestEndJob(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusStarted), dueIn(-(90*time.Minute + 15*time.Second), f.now))
	f.assign(t, job.ID, 2)

	res, err := f.svc.EndJob(context.Background(), job.ID, f.user(t, 2))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, res.Job.Status)
	assert.Equal(t, "1:30:15", res.Job.SessionTime)
	require.NotNil(t, res.Job.EndAt)
	require.NotNil(t, res.Assignment)
	require.NotNil(t, res.Assignment.CompletedBy)
	assert.Equal(t, int64(2), *res.Assignment.CompletedBy)
	assert.Empty(t, f.active(job.ID))

	emails := f.rec.OfKind(notify.KindEmail)
	require.Len(t, emails, 2)
	assert.Equal(t, "Information om avslutad tolkning för bokningsnummer # 1", emails[0].Email.Subject)
	assert.Equal(t, "kund@example.se", emails[0].Email.To)
	assert.Equal(t, "faktura", emails[0].Email.Data["for_text"])
	assert.Equal(t, "lön", emails[1].Email.Data["for_text"])
	assert.Equal(t, "1 tim 30 min", emails[0].Email.Data["session_time"])

	pushes := f.rec.OfKind(notify.KindPush)
	require.Len(t, pushes, 1)
	assert.Equal(t, []int64{customerID}, pushes[0].Push.UserIDs, "the customer did not end the session")
	assert.Equal(t, domain.NotificationSessionEnded, pushes[0].Push.NotificationType)
}

func TestEndJob_ByAdminNotifiesBothParties(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusStarted), dueIn(-time.Hour, f.now))
	f.assign(t, job.ID, 2)

	_, err := f.svc.EndJob(context.Background(), job.ID, f.user(t, adminID))
	require.NoError(t, err)

	pushes := f.rec.OfKind(notify.KindPush)
	require.Len(t, pushes, 1)
	assert.ElementsMatch(t, []int64{customerID, 2}, pushes[0].Push.UserIDs)
}

func TestEndJob_NotStarted(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusAssigned))
	f.assign(t, job.ID, 2)

	_, err := f.svc.EndJob(context.Background(), job.ID, f.user(t, 2))
	assert.True(t, domain.IsConflict(err))
	assert.Equal(t, domain.StatusAssigned, f.job(t, job.ID).Status)
	assert.Len(t, f.active(job.ID), 1)
}

func TestCustomerNotCall(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t, withStatus(domain.StatusStarted), dueIn(-20*time.Minute, f.now))
	f.assign(t, job.ID, 2)

	res, err := f.svc.CustomerNotCall(context.Background(), job.ID, f.user(t, adminID))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNotCarriedOutCustomer, res.Job.Status)
	assert.Equal(t, "0:20:0", res.Job.SessionTime)
	require.NotNil(t, res.Assignment.CompletedBy)
	assert.Equal(t, int64(2), *res.Assignment.CompletedBy, "completed on behalf of the translator")
}

func TestReopen(t *testing.T) {
	t.Run("resets the job in place", func(t *testing.T) {
		f := newFixture(t)
		job := f.seedJob(t, withStatus(domain.StatusWithdrawAfter24))

		res, err := f.svc.Reopen(context.Background(), job.ID, f.user(t, adminID))
		require.NoError(t, err)

		assert.Equal(t, "Tolk cancelled!", res.Message)
		assert.Equal(t, job.ID, res.Job.ID)
		assert.Equal(t, domain.StatusPending, f.job(t, job.ID).Status)
		assert.True(t, res.Job.CreatedAt.Equal(f.now))
		assert.Len(t, f.store.Jobs(), 1)

		require.NotNil(t, res.Assignment)
		assert.Equal(t, adminID, res.Assignment.TranslatorID)
		assert.False(t, res.Assignment.Active())

		fanOut := f.rec.OfKind(notify.KindTranslatorPush)
		require.Len(t, fanOut, 1)
		assert.Equal(t, job.ID, fanOut[0].FanOut.JobID)
	})

	t.Run("clones a timed out job", func(t *testing.T) {
		f := newFixture(t)
		job := f.seedJob(t, withStatus(domain.StatusTimedOut))

		res, err := f.svc.Reopen(context.Background(), job.ID, f.user(t, adminID))
		require.NoError(t, err)

		assert.NotEqual(t, job.ID, res.Job.ID)
		assert.Equal(t, domain.StatusPending, res.Job.Status)
		assert.Equal(t, "This booking is a reopening of booking #1", res.Job.AdminComments)
		assert.Equal(t, domain.StatusTimedOut, f.job(t, job.ID).Status)
		assert.Len(t, f.store.Jobs(), 2)

		assert.Len(t, f.store.Assignments(job.ID), 1)
		assert.Empty(t, f.store.Assignments(res.Job.ID))

		fanOut := f.rec.OfKind(notify.KindTranslatorPush)
		require.Len(t, fanOut, 1)
		assert.Equal(t, res.Job.ID, fanOut[0].FanOut.JobID)
	})

	t.Run("cancels the active assignment", func(t *testing.T) {
		f := newFixture(t)
		job := f.seedJob(t, withStatus(domain.StatusAssigned))
		f.assign(t, job.ID, 2)

		_, err := f.svc.Reopen(context.Background(), job.ID, f.user(t, adminID))
		require.NoError(t, err)

		assert.Empty(t, f.active(job.ID))
		assert.Len(t, f.store.Assignments(job.ID), 2)
	})
}

func TestReopen_Actor(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.User
		allowed bool
	}{
		{name: "job customer", actor: domain.User{ID: customerID, Role: domain.RoleCustomer}, allowed: true},
		{name: "admin", actor: domain.User{ID: adminID, Role: domain.RoleAdmin}, allowed: true},
		{name: "other customer", actor: domain.User{ID: 50, Role: domain.RoleCustomer}},
		{name: "translator", actor: domain.User{ID: 2, Role: domain.RoleTranslator}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.seedJob(t, withStatus(domain.StatusCompleted))

			_, err := f.svc.Reopen(context.Background(), job.ID, tt.actor)
			if !tt.allowed {
				assert.True(t, domain.IsValidation(err))
				assert.Equal(t, domain.StatusCompleted, f.job(t, job.ID).Status)
				assert.Empty(t, f.store.Assignments(job.ID))
				assert.Empty(t, f.rec.Intents())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, f.job(t, job.ID).Status)
		})
	}
}

func TestAtMostOneActiveAssignment(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)
	ctx := context.Background()

	steps := []struct {
		name string
		run  func() error
	}{
		{"accept", func() error { _, err := f.svc.AcceptJobWithID(ctx, job.ID, f.user(t, 2)); return err }},
		{"second accept loses", func() error {
			_, err := f.svc.AcceptJob(ctx, job.ID, f.user(t, 3))
			if domain.IsConflict(err) {
				return nil
			}
			return errors.Join(errors.New("expected conflict"), err)
		}},
		{"admin changes translator", func() error {
			_, err := f.svc.UpdateJob(ctx, job.ID, f.user(t, adminID), UpdateRequest{TranslatorID: 3})
			return err
		}},
		{"translator cancels", func() error { _, err := f.svc.CancelJob(ctx, job.ID, f.user(t, 3)); return err }},
		{"accept again", func() error { _, err := f.svc.AcceptJob(ctx, job.ID, f.user(t, 4)); return err }},
		{"customer cancels", func() error { _, err := f.svc.CancelJob(ctx, job.ID, f.user(t, customerID)); return err }},
		{"reopen", func() error { _, err := f.svc.Reopen(ctx, job.ID, f.user(t, adminID)); return err }},
		{"accept after reopen", func() error { _, err := f.svc.AcceptJobWithID(ctx, job.ID, f.user(t, 5)); return err }},
	}

	for _, step := range steps {
		require.NoError(t, step.run(), step.name)
		assert.LessOrEqual(t, len(f.active(job.ID)), 1, step.name)
	}

	active := f.active(job.ID)
	require.Len(t, active, 1)
	assert.Equal(t, int64(5), active[0].TranslatorID)
	assert.Equal(t, domain.StatusAssigned, f.job(t, job.ID).Status)
}

func TestGetPotentialJobs(t *testing.T) {
	f := newFixture(t)
	eligible := f.seedJob(t)
	f.seedJob(t, func(j *domain.Job) { j.FromLanguageID = 9 })
	f.seedJob(t, withStatus(domain.StatusAssigned))

	res, err := f.svc.GetPotentialJobs(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, res.Jobs, 1)
	assert.Equal(t, eligible.ID, res.Jobs[0].ID)

	_, err = f.svc.GetPotentialJobs(context.Background(), customerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResendNotifications(t *testing.T) {
	f := newFixture(t)
	job := f.seedJob(t)

	res, err := f.svc.ResendNotifications(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Push sent", res.Message)

	res, err = f.svc.ResendSMSNotifications(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "SMS sent", res.Message)

	assert.Len(t, f.rec.OfKind(notify.KindTranslatorPush), 1)
	assert.Len(t, f.rec.OfKind(notify.KindTranslatorSMS), 1)

	_, err = f.svc.ResendNotifications(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingSink struct{}

func (failingSink) Publish(context.Context, ...notify.Intent) error {
	return errors.New("broker unavailable")
}

func TestPublishFailureKeepsCommittedChange(t *testing.T) {
	f := newFixture(t)
	f.svc.sink = failingSink{}
	job := f.seedJob(t)

	_, err := f.svc.AcceptJobWithID(context.Background(), job.ID, f.user(t, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, f.job(t, job.ID).Status)
}

func TestSessionTimeFormatting(t *testing.T) {
	start := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2:5:9", sessionInterval(start, start.Add(2*time.Hour+5*time.Minute+9*time.Second)))
	assert.Equal(t, "26:0:0", sessionInterval(start, start.Add(26*time.Hour)))
	assert.Equal(t, "0:1:0", sessionInterval(start.Add(time.Minute), start))

	assert.Equal(t, "1 tim 45 min", sessionDisplay("1:45:00"))
	assert.Equal(t, "garbage", sessionDisplay("garbage"))

	assert.True(t, validSessionTime("1:45:00"))
	assert.True(t, validSessionTime("0:30"))
	assert.False(t, validSessionTime(""))
	assert.False(t, validSessionTime("1h30m"))
}
