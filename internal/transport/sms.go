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
)

// SMSConfig holds the SMS gateway settings
type SMSConfig struct {
	URL     string
	APIKey  string
	Sender  string
	Timeout time.Duration
	Breaker BreakerConfig
}

// SMSGateway sends text messages through an HTTP gateway that accepts
// {"from","to","message"} JSON with a bearer token.
type SMSGateway struct {
	cfg     SMSConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewSMSGateway creates a new SMSGateway
func NewSMSGateway(cfg SMSConfig, logger *slog.Logger) *SMSGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &SMSGateway{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newBreaker("sms", cfg.Breaker, logger),
		logger:  logger,
	}
}

type smsRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// SendSMS sends one message to number
func (s *SMSGateway) SendSMS(ctx context.Context, number, message string) error {
	body, err := json.Marshal(smsRequest{From: s.cfg.Sender, To: number, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	s.logger.Debug("SMS sent", slog.String("to", number))
	return nil
}

func (s *SMSGateway) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("sms gateway", resp.StatusCode)
	}
	return nil
}
