package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

// ErrInvalidIntent is returned for intents whose payload does not match their kind
var ErrInvalidIntent = errors.New("invalid notification intent")

// Report counts delivery attempts. Transport failures are counted, never returned.
type Report struct {
	Sent   int
	Failed int
}

func (r *Report) add(o Report) {
	r.Sent += o.Sent
	r.Failed += o.Failed
}

// Transport is the full set of outbound channels
type Transport interface {
	EmailSender
	PushSender
	SMSSender
}

// Deliverer executes intents against the transports
type Deliverer struct {
	store      domain.Store
	dispatcher *Dispatcher
	transport  Transport
	logger     *slog.Logger
}

// NewDeliverer creates a new Deliverer
func NewDeliverer(store domain.Store, dispatcher *Dispatcher, transport Transport, logger *slog.Logger) *Deliverer {
	return &Deliverer{
		store:      store,
		dispatcher: dispatcher,
		transport:  transport,
		logger:     logger,
	}
}

// Deliver runs every intent. A failing intent never stops the others.
func (d *Deliverer) Deliver(ctx context.Context, intents []Intent) Report {
	var total Report
	for _, in := range intents {
		r, err := d.DeliverOne(ctx, in)
		if err != nil {
			d.logger.Error("Failed to deliver notification",
				slog.String("intent_id", in.ID),
				slog.String("kind", string(in.Kind)),
				slog.Any("error", err),
			)
		}
		total.add(r)
	}
	return total
}

// DeliverOne runs a single intent. It returns an error only when recipients
// could not be resolved, in which case nothing was sent and the intent may be retried.
func (d *Deliverer) DeliverOne(ctx context.Context, in Intent) (Report, error) {
	if !in.Valid() {
		return Report{}, fmt.Errorf("%w: %s %s", ErrInvalidIntent, in.Kind, in.ID)
	}

	switch in.Kind {
	case KindEmail:
		e := in.Email
		return d.attempt(in, "email", e.To, d.transport.SendEmail(ctx, e.To, e.Name, e.Subject, e.Template, e.Data)), nil

	case KindSMS:
		return d.attempt(in, "sms", in.SMS.Number, d.transport.SendSMS(ctx, in.SMS.Number, in.SMS.Message)), nil

	case KindPush:
		return d.deliverPush(ctx, in)

	case KindTranslatorPush:
		return d.deliverTranslatorPush(ctx, in)

	case KindTranslatorSMS:
		return d.deliverTranslatorSMS(ctx, in)
	}

	return Report{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidIntent, in.Kind)
}

func (d *Deliverer) attempt(in Intent, channel, target string, err error) Report {
	if err != nil {
		d.logger.Error("Notification transport failed",
			slog.String("intent_id", in.ID),
			slog.String("channel", channel),
			slog.String("target", target),
			slog.Any("error", err),
		)
		return Report{Failed: 1}
	}
	d.logger.Debug("Notification sent",
		slog.String("intent_id", in.ID),
		slog.String("channel", channel),
		slog.String("target", target),
	)
	return Report{Sent: 1}
}

func (d *Deliverer) deliverPush(ctx context.Context, in Intent) (Report, error) {
	p := in.Push

	var users []domain.User
	for _, id := range p.UserIDs {
		u, err := d.store.FindUser(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			d.logger.Warn("Push recipient not found", slog.Int64("user_id", id))
			continue
		}
		if err != nil {
			return Report{}, fmt.Errorf("failed to load push recipient: %w", err)
		}
		users = append(users, u)
	}

	job, err := d.store.LoadJob(ctx, p.JobID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load job for push: %w", err)
	}

	language := d.dispatcher.languageName(ctx, job.FromLanguageID)
	payload := d.dispatcher.Payload(job, language, p.NotificationType, p.Message)
	immediate, delayed := d.dispatcher.Split(users)

	return d.pushBuckets(ctx, in, job.ID, payload, immediate, delayed), nil
}

func (d *Deliverer) deliverTranslatorPush(ctx context.Context, in Intent) (Report, error) {
	job, err := d.store.LoadJob(ctx, in.FanOut.JobID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load job for fan-out: %w", err)
	}
	if job.Status != domain.StatusPending {
		d.logger.Info("Skipping translator push, job no longer pending",
			slog.Int64("job_id", job.ID),
			slog.String("status", string(job.Status)),
		)
		return Report{}, nil
	}

	plan, err := d.dispatcher.PlanTranslatorPush(ctx, job, in.FanOut.Exclude)
	if err != nil {
		return Report{}, err
	}

	return d.pushBuckets(ctx, in, job.ID, plan.Payload, plan.Immediate, plan.Delayed), nil
}

// pushBuckets sends one push per non-empty bucket
func (d *Deliverer) pushBuckets(ctx context.Context, in Intent, jobID int64, payload Payload, immediate, delayed []domain.User) Report {
	var r Report
	if len(immediate) > 0 {
		target := fmt.Sprintf("%d users", len(immediate))
		r.add(d.attempt(in, "push", target, d.transport.SendPush(ctx, recipientsOf(immediate), jobID, payload, false)))
	}
	if len(delayed) > 0 {
		sendAfter := d.dispatcher.SendAfter()
		payload.SendAfter = &sendAfter
		target := fmt.Sprintf("%d delayed users", len(delayed))
		r.add(d.attempt(in, "push", target, d.transport.SendPush(ctx, recipientsOf(delayed), jobID, payload, true)))
	}
	return r
}

func (d *Deliverer) deliverTranslatorSMS(ctx context.Context, in Intent) (Report, error) {
	job, err := d.store.LoadJob(ctx, in.FanOut.JobID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load job for sms fan-out: %w", err)
	}

	messages, err := d.dispatcher.PlanTranslatorSMS(ctx, job, in.FanOut.Exclude)
	if err != nil {
		return Report{}, err
	}

	var r Report
	for _, m := range messages {
		r.add(d.attempt(in, "sms", m.Number, d.transport.SendSMS(ctx, m.Number, m.Message)))
	}

	d.logger.Info("Translator SMS sent",
		slog.Int64("job_id", job.ID),
		slog.Int("sent", r.Sent),
		slog.Int("failed", r.Failed),
	)

	return r, nil
}
