package notify

import (
	"context"
	"errors"
	"time"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
)

// ErrTransportNotConfigured is returned when a channel has no sender
var ErrTransportNotConfigured = errors.New("transport not configured")

// Recipient is one push target
type Recipient struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
}

// Payload is the data attached to a push
type Payload struct {
	JobID            int64      `json:"job_id"`
	Language         string     `json:"language,omitempty"`
	Duration         int        `json:"duration,omitempty"`
	Due              time.Time  `json:"due,omitzero"`
	Immediate        bool       `json:"immediate"`
	NotificationType string     `json:"notification_type"`
	Message          string     `json:"message"`
	AndroidSound     string     `json:"android_sound"`
	IOSSound         string     `json:"ios_sound"`
	SendAfter        *time.Time `json:"send_after,omitempty"`
}

// EmailSender delivers templated email
type EmailSender interface {
	SendEmail(ctx context.Context, to, name, subject, template string, data map[string]any) error
}

// PushSender delivers push notifications. delay asks the provider to hold the
// push until payload.SendAfter.
type PushSender interface {
	SendPush(ctx context.Context, recipients []Recipient, jobID int64, payload Payload, delay bool) error
}

// SMSSender delivers text messages
type SMSSender interface {
	SendSMS(ctx context.Context, number, message string) error
}

// Transports bundles the channel senders. A nil sender fails its channel with ErrTransportNotConfigured.
type Transports struct {
	Email EmailSender
	Push  PushSender
	SMS   SMSSender
}

func (t Transports) SendEmail(ctx context.Context, to, name, subject, template string, data map[string]any) error {
	if t.Email == nil {
		return ErrTransportNotConfigured
	}
	return t.Email.SendEmail(ctx, to, name, subject, template, data)
}

func (t Transports) SendPush(ctx context.Context, recipients []Recipient, jobID int64, payload Payload, delay bool) error {
	if t.Push == nil {
		return ErrTransportNotConfigured
	}
	return t.Push.SendPush(ctx, recipients, jobID, payload, delay)
}

func (t Transports) SendSMS(ctx context.Context, number, message string) error {
	if t.SMS == nil {
		return ErrTransportNotConfigured
	}
	return t.SMS.SendSMS(ctx, number, message)
}

// Sounds returns the android and ios sounds of a push
func Sounds(notificationType string, immediate bool) (string, string) {
	if notificationType != domain.NotificationSuitableJob {
		return "default", "default"
	}
	if immediate {
		return "emergency_booking", "emergency_booking.mp3"
	}
	return "normal_booking", "normal_booking.mp3"
}

func recipientsOf(users []domain.User) []Recipient {
	out := make([]Recipient, 0, len(users))
	for _, u := range users {
		out = append(out, Recipient{UserID: u.ID, Email: u.Email})
	}
	return out
}
