package transport

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/interpreter-booking/internal/booking/domain"
	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
	"github.com/cuongbtq/interpreter-booking/internal/config"
)

// FromConfig builds every channel sender from the notification settings
func FromConfig(cfg config.NotificationConfig, logger *slog.Logger) notify.Transports {
	return notify.Transports{
		Email: NewMailgun(MailgunConfig{
			Domain:  cfg.Mailgun.Domain,
			APIKey:  cfg.Mailgun.APIKey,
			APIBase: cfg.Mailgun.APIBase,
			From:    cfg.Mailgun.From,
		}, logger),
		Push: NewOneSignal(OneSignalConfig{
			AppID:   cfg.OneSignal.AppID,
			APIKey:  cfg.OneSignal.APIKey,
			URL:     cfg.OneSignal.URL,
			Timeout: cfg.OneSignal.Timeout,
		}, logger),
		SMS: NewSMSGateway(SMSConfig{
			URL:     cfg.SMS.URL,
			APIKey:  cfg.SMS.APIKey,
			Sender:  cfg.SMS.Sender,
			Timeout: cfg.SMS.Timeout,
		}, logger),
	}
}

// NewDeliverer wires the dispatcher and the configured transports into a notify.Deliverer
func NewDeliverer(store domain.Store, clock domain.Clock, cfg *config.Config, logger *slog.Logger) (*notify.Deliverer, error) {
	loc, err := cfg.Booking.Location()
	if err != nil {
		return nil, err
	}

	night := notify.DefaultNightWindow(loc)
	if cfg.Notification.NightStart != "" || cfg.Notification.NightEnd != "" {
		night, err = notify.ParseNightWindow(cfg.Notification.NightStart, cfg.Notification.NightEnd, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse night window: %w", err)
		}
	}

	dispatcher := notify.NewDispatcher(store, clock, notify.DispatcherConfig{Night: night, Location: loc}, logger)
	return notify.NewDeliverer(store, dispatcher, FromConfig(cfg.Notification, logger), logger), nil
}
