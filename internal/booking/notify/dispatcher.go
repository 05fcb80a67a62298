package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/matcher"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
	dueLayout  = dateLayout + " " + timeLayout
)

// Plan is the recipient split for a translator push fan-out
type Plan struct {
	Job       domain.Job
	Immediate []domain.User
	Delayed   []domain.User
	Payload   Payload
}

// Empty reports whether nobody should be notified
func (p Plan) Empty() bool {
	return len(p.Immediate) == 0 && len(p.Delayed) == 0
}

// DispatcherConfig holds Dispatcher settings
type DispatcherConfig struct {
	Night    NightWindow
	Location *time.Location
}

// Dispatcher decides who receives a notification and whether it is delayed.
// It never delivers anything itself.
type Dispatcher struct {
	store    domain.Store
	clock    domain.Clock
	night    NightWindow
	location *time.Location
	logger   *slog.Logger
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(store domain.Store, clock domain.Clock, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	night := cfg.Night
	if night.Location == nil {
		night.Location = loc
	}
	return &Dispatcher{
		store:    store,
		clock:    clock,
		night:    night,
		location: loc,
		logger:   logger,
	}
}

// NightTime reports whether the current time is inside the night window
func (d *Dispatcher) NightTime() bool {
	return d.night.Contains(d.clock.Now())
}

// SendAfter is the time delayed pushes are released
func (d *Dispatcher) SendAfter() time.Time {
	return d.night.NextEnd(d.clock.Now())
}

// Split drops users who opted out of notifications and moves those who opted
// out of night pushes to the delayed bucket while it is night.
func (d *Dispatcher) Split(users []domain.User) (immediate, delayed []domain.User) {
	night := d.NightTime()
	for _, u := range users {
		switch {
		case u.NoNotifications:
			continue
		case night && u.NoNightTime:
			delayed = append(delayed, u)
		default:
			immediate = append(immediate, u)
		}
	}
	return immediate, delayed
}

// EligibleTranslators returns the active translators who pass the matcher and
// the customer's blacklist, minus exclude.
func (d *Dispatcher) EligibleTranslators(ctx context.Context, job domain.Job, exclude []int64) ([]domain.TranslatorProfile, error) {
	translators, err := d.store.ListActiveTranslators(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	blacklist, err := d.store.FindBlacklist(ctx, job.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}

	candidates := slices.DeleteFunc(translators, func(t domain.TranslatorProfile) bool {
		return slices.Contains(exclude, t.ID)
	})

	eligible := matcher.Filter(candidates, job, blacklist)

	// Earmarked jobs also need the translator to be free at that time
	if job.SpecificTranslatorID != nil {
		eligible, err = d.freeFor(ctx, job, eligible)
		if err != nil {
			return nil, err
		}
	}

	return eligible, nil
}

func (d *Dispatcher) freeFor(ctx context.Context, job domain.Job, translators []domain.TranslatorProfile) ([]domain.TranslatorProfile, error) {
	out := translators[:0]
	for _, t := range translators {
		busy, err := d.store.ListActiveTranslatorJobs(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs of translator %d: %w", t.ID, err)
		}
		if matcher.CanTakeSpecific(job, busy) {
			out = append(out, t)
		}
	}
	return out, nil
}

// PlanTranslatorPush selects the translators to push a new or reopened job to
func (d *Dispatcher) PlanTranslatorPush(ctx context.Context, job domain.Job, exclude []int64) (Plan, error) {
	eligible, err := d.EligibleTranslators(ctx, job, exclude)
	if err != nil {
		return Plan{}, err
	}

	users := make([]domain.User, 0, len(eligible))
	for _, t := range eligible {
		if job.Immediate && t.NoEmergency {
			continue
		}
		users = append(users, t.User)
	}

	immediate, delayed := d.Split(users)

	language := d.languageName(ctx, job.FromLanguageID)
	payload := d.Payload(job, language, domain.NotificationSuitableJob, JobOfferMessage(job, language, d.location))

	plan := Plan{Job: job, Immediate: immediate, Delayed: delayed, Payload: payload}

	d.logger.Info("Translator push planned",
		slog.Int64("job_id", job.ID),
		slog.Int("immediate", len(plan.Immediate)),
		slog.Int("delayed", len(plan.Delayed)),
		slog.Bool("night_time", d.NightTime()),
	)

	return plan, nil
}

// PlanTranslatorSMS builds one text per eligible translator with a mobile number
func (d *Dispatcher) PlanTranslatorSMS(ctx context.Context, job domain.Job, exclude []int64) ([]SMS, error) {
	eligible, err := d.EligibleTranslators(ctx, job, exclude)
	if err != nil {
		return nil, err
	}

	message := JobOfferSMS(job, d.location)

	var out []SMS
	for _, t := range eligible {
		if t.Mobile == "" {
			continue
		}
		out = append(out, SMS{Number: t.Mobile, Message: message})
	}
	return out, nil
}

// Payload builds the push payload for job
func (d *Dispatcher) Payload(job domain.Job, language, notificationType, message string) Payload {
	android, ios := Sounds(notificationType, job.Immediate)
	return Payload{
		JobID:            job.ID,
		Language:         language,
		Duration:         job.Duration,
		Due:              job.Due,
		Immediate:        job.Immediate,
		NotificationType: notificationType,
		Message:          message,
		AndroidSound:     android,
		IOSSound:         ios,
	}
}

func (d *Dispatcher) languageName(ctx context.Context, id int64) string {
	name, err := d.store.LanguageName(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("Failed to load language name",
				slog.Int64("language_id", id),
				slog.Any("error", err),
			)
		}
		return fmt.Sprintf("#%d", id)
	}
	return name
}

// JobOfferMessage is the push text for a job offered to translators
func JobOfferMessage(job domain.Job, language string, loc *time.Location) string {
	if job.Immediate {
		return fmt.Sprintf("Ny akutbokning för %stolk %dmin", language, job.Duration)
	}
	return fmt.Sprintf("Ny bokning för %stolk %dmin %s", language, job.Duration, job.Due.In(loc).Format(dueLayout))
}

// JobOfferSMS is the text message for a job offered to translators
func JobOfferSMS(job domain.Job, loc *time.Location) string {
	due := job.Due.In(loc)
	if job.RequiresPresence() {
		return fmt.Sprintf("Bokning #%d: tolkning på plats i %s %s kl %s, %d min. Logga in i appen för att acceptera uppdraget.",
			job.ID, job.Town, due.Format(dateLayout), due.Format(timeLayout), job.Duration)
	}
	return fmt.Sprintf("Bokning #%d: telefontolkning %s kl %s, %d min. Logga in i appen för att acceptera uppdraget.",
		job.ID, due.Format(dateLayout), due.Format(timeLayout), job.Duration)
}
