package domain

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// IntentMessage is a decoded notification intent together with the delivery it came in
type IntentMessage struct {
	Intent   notify.Intent
	Delivery amqp.Delivery
}

// ID returns the intent id
func (m *IntentMessage) ID() string {
	return m.Intent.ID
}
