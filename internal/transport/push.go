package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cuongbtq/interpreter-booking/internal/booking/notify"
)

// DefaultOneSignalURL is the OneSignal create-notification endpoint
const DefaultOneSignalURL = "https://onesignal.com/api/v1/notifications"

const pushTitle = "DigitalTolk"

// OneSignalConfig holds the push transport settings
type OneSignalConfig struct {
	AppID   string
	APIKey  string
	URL     string
	Timeout time.Duration
	Breaker BreakerConfig
}

// OneSignal sends push notifications to users tagged with their email
type OneSignal struct {
	cfg     OneSignalConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewOneSignal creates a new OneSignal sender
func NewOneSignal(cfg OneSignalConfig, logger *slog.Logger) *OneSignal {
	if cfg.URL == "" {
		cfg.URL = DefaultOneSignalURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &OneSignal{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("onesignal", cfg.Breaker, logger),
		logger:  logger,
	}
}

type pushFilter struct {
	Field    string `json:"field,omitempty"`
	Key      string `json:"key,omitempty"`
	Relation string `json:"relation,omitempty"`
	Value    string `json:"value,omitempty"`
	Operator string `json:"operator,omitempty"`
}

type pushRequest struct {
	AppID         string            `json:"app_id"`
	Filters       []pushFilter      `json:"filters"`
	Data          notify.Payload    `json:"data"`
	Title         map[string]string `json:"headings"`
	Contents      map[string]string `json:"contents"`
	IOSBadgeType  string            `json:"ios_badgeType"`
	IOSBadgeCount int               `json:"ios_badgeCount"`
	AndroidSound  string            `json:"android_sound"`
	IOSSound      string            `json:"ios_sound"`
	SendAfter     string            `json:"send_after,omitempty"`
}

// emailFilters targets each recipient by its email tag, OR-ed together
func emailFilters(recipients []notify.Recipient) []pushFilter {
	filters := make([]pushFilter, 0, 2*len(recipients))
	for i, r := range recipients {
		if i > 0 {
			filters = append(filters, pushFilter{Operator: "OR"})
		}
		filters = append(filters, pushFilter{Field: "tag", Key: "email", Relation: "=", Value: r.Email})
	}
	return filters
}

func (o *OneSignal) request(recipients []notify.Recipient, jobID int64, payload notify.Payload, delay bool) pushRequest {
	payload.JobID = jobID

	req := pushRequest{
		AppID:         o.cfg.AppID,
		Filters:       emailFilters(recipients),
		Data:          payload,
		Title:         map[string]string{"en": pushTitle},
		Contents:      map[string]string{"en": payload.Message},
		IOSBadgeType:  "Increase",
		IOSBadgeCount: 1,
		AndroidSound:  payload.AndroidSound,
		IOSSound:      payload.IOSSound,
	}
	if delay && payload.SendAfter != nil {
		req.SendAfter = payload.SendAfter.UTC().Format("2006-01-02 15:04:05 GMT-0000")
	}
	return req
}

// SendPush posts one notification covering every recipient
func (o *OneSignal) SendPush(ctx context.Context, recipients []notify.Recipient, jobID int64, payload notify.Payload, delay bool) error {
	if len(recipients) == 0 {
		return nil
	}

	body, err := json.Marshal(o.request(recipients, jobID, payload, delay))
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	_, err = o.breaker.Execute(func() (interface{}, error) {
		return nil, o.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("failed to send push for job %d: %w", jobID, err)
	}

	o.logger.Debug("Push sent",
		slog.Int64("job_id", jobID),
		slog.Int("recipients", len(recipients)),
		slog.Bool("delayed", delay),
	)
	return nil
}

func (o *OneSignal) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+o.cfg.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("onesignal", resp.StatusCode)
	}
	return nil
}
