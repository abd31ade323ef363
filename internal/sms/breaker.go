package sms

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSender corta los envios mientras el gateway falla de forma consecutiva.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

func NewBreakerSender(next Sender, settings BreakerSettings, logger *zap.Logger) *BreakerSender {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	st := gobreaker.Settings{
		Name:        "sms",
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state", zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &BreakerSender{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

func (s *BreakerSender) SendOTP(ctx context.Context, phoneNumber string, code string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.SendOTP(ctx, phoneNumber, code)
	})
	return err
}
