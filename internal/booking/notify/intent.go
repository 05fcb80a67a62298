// Package notify turns lifecycle side effects into deliveries.
//
// The lifecycle emits Intents after a command commits. A Sink carries them
// either straight to a Deliverer or through the notification queue to the
// worker, and the Deliverer resolves recipients with the Dispatcher before
// calling the transports.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what an intent asks for
type Kind string

const (
	KindEmail Kind = "email"
	// KindPush targets named users; preferences and night-time delay are applied at delivery
	KindPush Kind = "push"
	KindSMS  Kind = "sms"
	// KindTranslatorPush pushes a job to every eligible translator
	KindTranslatorPush Kind = "translator_push"
	// KindTranslatorSMS texts every eligible translator about a job
	KindTranslatorSMS Kind = "translator_sms"
)

// Email is a templated message to one address
type Email struct {
	To       string         `json:"to"`
	Name     string         `json:"name"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// Push is a push notification to specific users
type Push struct {
	UserIDs          []int64 `json:"user_ids"`
	JobID            int64   `json:"job_id"`
	NotificationType string  `json:"notification_type"`
	Message          string  `json:"message"`
}

// SMS is a text message to one number
type SMS struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

// FanOut asks for all translators eligible for a job, minus Exclude
type FanOut struct {
	JobID   int64   `json:"job_id"`
	Exclude []int64 `json:"exclude,omitempty"`
}

// Intent is one requested notification. Exactly one of the payload fields is set, matching Kind.
type Intent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	Email     *Email    `json:"email,omitempty"`
	Push      *Push     `json:"push,omitempty"`
	SMS       *SMS      `json:"sms,omitempty"`
	FanOut    *FanOut   `json:"fan_out,omitempty"`
}

func newIntent(kind Kind) Intent {
	return Intent{ID: uuid.NewString(), Kind: kind, CreatedAt: time.Now().UTC()}
}

// NewEmail creates an email intent
func NewEmail(to, name, subject, template string, data map[string]any) Intent {
	in := newIntent(KindEmail)
	in.Email = &Email{To: to, Name: name, Subject: subject, Template: template, Data: data}
	return in
}

// NewPush creates a push intent for the given users
func NewPush(jobID int64, notificationType, message string, userIDs ...int64) Intent {
	in := newIntent(KindPush)
	in.Push = &Push{UserIDs: userIDs, JobID: jobID, NotificationType: notificationType, Message: message}
	return in
}

// NewSMS creates an SMS intent
func NewSMS(number, message string) Intent {
	in := newIntent(KindSMS)
	in.SMS = &SMS{Number: number, Message: message}
	return in
}

// NewTranslatorPush creates a push fan-out intent for a job
func NewTranslatorPush(jobID int64, exclude ...int64) Intent {
	in := newIntent(KindTranslatorPush)
	in.FanOut = &FanOut{JobID: jobID, Exclude: exclude}
	return in
}

// NewTranslatorSMS creates an SMS fan-out intent for a job
func NewTranslatorSMS(jobID int64, exclude ...int64) Intent {
	in := newIntent(KindTranslatorSMS)
	in.FanOut = &FanOut{JobID: jobID, Exclude: exclude}
	return in
}

// Valid reports whether the payload field matching Kind is present
func (in Intent) Valid() bool {
	switch in.Kind {
	case KindEmail:
		return in.Email != nil && in.Email.To != ""
	case KindPush:
		return in.Push != nil && len(in.Push.UserIDs) > 0
	case KindSMS:
		return in.SMS != nil && in.SMS.Number != ""
	case KindTranslatorPush, KindTranslatorSMS:
		return in.FanOut != nil && in.FanOut.JobID != 0
	default:
		return false
	}
}
