package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/interpreter-booking/internal/booking/assignment"
	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/expiry"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// DueLayout is the layout of due_date and due_time joined by a space
const DueLayout = "01/02/2006 15:04"

// Job-for tags of a booking request
const (
	JobForMale              = "male"
	JobForFemale            = "female"
	JobForNormal            = "normal"
	JobForCertified         = "certified"
	JobForCertifiedInLaw    = "certified_in_law"
	JobForCertifiedInHealth = "certified_in_health"
)

// CreateRequest is a new booking
type CreateRequest struct {
	Immediate            bool     `json:"immediate"`
	FromLanguageID       int64    `json:"from_language_id" validate:"required_unless=Immediate true"`
	Duration             int      `json:"duration" validate:"required_unless=Immediate true,gte=0"`
	DueDate              string   `json:"due_date" validate:"required_unless=Immediate true"`
	DueTime              string   `json:"due_time" validate:"required_unless=Immediate true"`
	CustomerPhoneType    bool     `json:"customer_phone_type"`
	CustomerPhysicalType bool     `json:"customer_physical_type"`
	JobFor               []string `json:"job_for" validate:"dive,oneof=male female normal certified certified_in_law certified_in_health"`
	Town                 string   `json:"town"`
	UserEmail            string   `json:"user_email" validate:"omitempty,email"`
	Reference            string   `json:"reference"`

	// Admin only: the customer the booking is made for and an optional preselected translator
	CustomerID      int64  `json:"customer_id"`
	TranslatorID    int64  `json:"translator_id"`
	TranslatorEmail string `json:"translator_email" validate:"omitempty,email"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into the user-facing message
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return domain.NewValidationError("", err.Error())
	}

	fe := errs[0]
	field := fe.Field()
	if field == "due_date" || field == "due_time" {
		field = "due_date or due_time"
	}

	switch fe.Tag() {
	case "required_unless", "required":
		return domain.NewValidationError(fe.Field(), fmt.Sprintf(msgMissingField, field))
	default:
		return domain.NewValidationError(fe.Field(), fmt.Sprintf("Ogiltigt värde för %s", fe.Field()))
	}
}

// Create books a new job for the acting customer. An admin books for req.CustomerID
// and may preselect a translator, in which case the job starts out assigned.
func (s *Service) Create(ctx context.Context, actor domain.User, req CreateRequest) (domain.Result, error) {
	if actor.Role == domain.RoleTranslator {
		return domain.Result{}, domain.NewValidationError("user", msgTranslatorCannotCreate)
	}

	if err := s.validate.Struct(req); err != nil {
		return domain.Result{}, validationError(err)
	}
	if !req.CustomerPhoneType && !req.CustomerPhysicalType {
		return domain.Result{}, domain.NewValidationError("customer_phone_type", msgMissingContactMode)
	}

	now := s.now()
	due, err := s.dueOf(req, now)
	if err != nil {
		return domain.Result{}, err
	}

	var (
		job    domain.Job
		active *domain.Assignment
	)

	err = s.inTx(ctx, func(tx domain.Store, out *outbox) error {
		customer, err := s.bookingCustomer(ctx, tx, actor, req)
		if err != nil {
			return err
		}

		gender, certified := jobFor(req.JobFor)
		town := strings.TrimSpace(req.Town)
		if town == "" {
			town = customer.City
		}

		job = domain.Job{
			CustomerID:           customer.ID,
			Status:               domain.StatusPending,
			Immediate:            req.Immediate,
			Due:                  due,
			Duration:             req.Duration,
			FromLanguageID:       req.FromLanguageID,
			Gender:               gender,
			Certified:            certified,
			JobType:              domain.JobTypeForConsumer(customer.ConsumerType),
			CustomerPhoneType:    req.CustomerPhoneType || req.Immediate,
			CustomerPhysicalType: req.CustomerPhysicalType,
			Town:                 town,
			UserEmail:            strings.TrimSpace(req.UserEmail),
			ByAdmin:              actor.Role == domain.RoleAdmin,
			CreatedAt:            now,
			WillExpireAt:         expiry.WillExpireAt(due, now),
			Reference:            req.Reference,
		}

		translatorReq := assignment.Request{TranslatorID: req.TranslatorID, Email: req.TranslatorEmail}
		if actor.Role == domain.RoleAdmin && !translatorReq.Empty() {
			job.Status = domain.StatusAssigned
		}

		job, err = tx.CreateJob(ctx, job)
		if err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}

		out.add(customerEmail(job, customer, subjectCreated(job.ID), templateJobCreated, nil))

		if job.Status == domain.StatusPending {
			out.add(notify.NewTranslatorPush(job.ID))
			return nil
		}

		outcome, err := s.resolver.With(tx).Resolve(ctx, job, nil, translatorReq, now)
		if err != nil {
			return err
		}
		if err := s.resolver.Apply(ctx, tx, &outcome); err != nil {
			return err
		}
		active = outcome.Active

		out.add(userEmail(job, *outcome.NewTranslator, subjectAccepted(job.ID), templateChangedTranslatorNew, nil))
		return nil
	})
	if err != nil {
		return domain.Result{}, err
	}

	s.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.Int64("customer_id", job.CustomerID),
		slog.String("status", string(job.Status)),
		slog.Bool("immediate", job.Immediate),
		slog.Time("due", job.Due),
	)

	return domain.Succeed("", &job, active), nil
}

func (s *Service) dueOf(req CreateRequest, now time.Time) (time.Time, error) {
	if req.Immediate {
		return now.Add(time.Duration(s.cfg.ImmediateMinutes) * time.Minute), nil
	}

	due, err := time.ParseInLocation(DueLayout, strings.TrimSpace(req.DueDate)+" "+strings.TrimSpace(req.DueTime), s.cfg.Location)
	if err != nil {
		return time.Time{}, domain.NewValidationError("due_date", fmt.Sprintf(msgMissingField, "due_date or due_time"))
	}
	if due.Before(now) {
		return time.Time{}, domain.NewValidationError("due_date", msgPastBooking)
	}
	return due, nil
}

func (s *Service) bookingCustomer(ctx context.Context, tx domain.UserStore, actor domain.User, req CreateRequest) (domain.User, error) {
	if actor.Role != domain.RoleAdmin {
		return actor, nil
	}
	if req.CustomerID == 0 {
		return domain.User{}, domain.NewValidationError("customer_id", fmt.Sprintf(msgMissingField, "customer_id"))
	}

	customer, err := tx.FindUser(ctx, req.CustomerID)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to load customer: %w", err)
	}
	if customer.Role != domain.RoleCustomer {
		return domain.User{}, domain.NewValidationError("customer_id", fmt.Sprintf("user %d is not a customer", customer.ID))
	}
	return customer, nil
}

// jobFor derives the gender and certification requirement from the job-for tags.
// Without any certification tag the job is for layman and course-trained translators.
func jobFor(tags []string) (domain.Gender, domain.Certification) {
	has := func(tag string) bool { return slices.Contains(tags, tag) }

	gender := domain.GenderNone
	switch {
	case has(JobForMale):
		gender = domain.GenderMale
	case has(JobForFemale):
		gender = domain.GenderFemale
	}

	certified := domain.CertifiedNormal
	normal := has(JobForNormal)
	switch {
	case has(JobForCertifiedInHealth):
		certified = domain.CertifiedHealth
		if normal {
			certified = domain.CertifiedNHealth
		}
	case has(JobForCertifiedInLaw):
		certified = domain.CertifiedLaw
		if normal {
			certified = domain.CertifiedNLaw
		}
	case has(JobForCertified):
		certified = domain.CertifiedYes
		if normal {
			certified = domain.CertifiedBoth
		}
	}

	return gender, certified
}
