package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrStatus is returned when a provider answers with a non-2xx status
var ErrStatus = errors.New("unexpected provider status")

// BreakerConfig controls when a provider is considered down
type BreakerConfig struct {
	// Failures in a row that open the breaker
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial request
	OpenTimeout time.Duration
}

func newBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Transport circuit breaker changed state",
				slog.String("transport", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

func statusError(provider string, code int) error {
	return fmt.Errorf("%w: %s returned %d", ErrStatus, provider, code)
}
