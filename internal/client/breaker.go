package client

import (
	"errors"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/techdesk/internal/config"
	apperrors "github.com/spec-kit/techdesk/pkg/util/errorutil"
)

// availabilityBreaker stops hammering an availability endpoint that keeps
// failing. An open breaker reads as a transport failure, which the engine
// treats as "availability unknown".
type availabilityBreaker struct {
	cb *gobreaker.CircuitBreaker[bool]
}

func newAvailabilityBreaker(cfg config.BreakerConfig, logger *zap.Logger) *availabilityBreaker {
	if !cfg.Enabled {
		return nil
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	settings := gobreaker.Settings{
		Name:    "availability",
		Timeout: cfg.OpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Only an unanswered call counts against the backend. A 404 is an answer.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsUnavailable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &availabilityBreaker{cb: gobreaker.NewCircuitBreaker[bool](settings)}
}

func (b *availabilityBreaker) execute(op string, fn func() (bool, error)) (bool, error) {
	if b == nil {
		return fn()
	}
	available, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false, apperrors.NewTransportError(op, err)
	}
	return available, err
}

func (b *availabilityBreaker) state() gobreaker.State {
	if b == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}
