package sms

import (
	"context"
	"errors"
)

// Sender entrega codigos OTP por SMS. La entrega es best-effort: no reintenta.
type Sender interface {
	SendOTP(ctx context.Context, phoneNumber string, code string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendOTP(_ context.Context, _ string, _ string) error {
	if s.reason == "" {
		return errors.New("sms sender disabled")
	}
	return errors.New(s.reason)
}
