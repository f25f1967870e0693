package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("llm provider unavailable")

// GuardConfig configures Guard.
type GuardConfig struct {
	// Name labels the breaker in logs.
	Name string

	// RequestsPerMinute caps the call rate. Defaults to 60.
	RequestsPerMinute int

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Defaults to 5.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open. Defaults to one minute.
	OpenTimeout time.Duration

	Logger *slog.Logger
}

// Guard wraps fn with a token bucket limiter and a circuit breaker.
func Guard(fn Func, c GuardConfig) Func {
	rpm := c.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	threshold := c.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := c.OpenTimeout
	if openTimeout == 0 {
		openTimeout = time.Minute
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limiter := rate.NewLimiter(rate.Limit(float64(rpm)/60.0), max(1, rpm/10))
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-" + c.Name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return func(ctx context.Context, prompt string) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}

		out, err := breaker.Execute(func() (interface{}, error) {
			return fn(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return "", err
		}
		return out.(string), nil
	}
}
