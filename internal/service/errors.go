package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOTPNotFound          = errors.New("otp not found")
	ErrOTPExpired           = errors.New("otp expired")
	ErrOTPNotYetRefreshable = errors.New("otp not yet refreshable")
	ErrOTPNotVerified       = errors.New("otp not verified")
	ErrDeliveryFailed       = errors.New("otp delivery failed")
	ErrRateLimited          = errors.New("rate limited")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrPhoneTaken         = errors.New("phone number already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrInvalidRequestType = errors.New("invalid request type")
	ErrAccountInactive    = errors.New("account inactive")
	ErrAccountActive      = errors.New("account already active")

	ErrAdminTokenRequired  = errors.New("admin token required")
	ErrAdminTokenInvalid   = errors.New("admin token invalid")
	ErrNoSubscriptions     = errors.New("subscription list must be non-empty")
	ErrInvalidSubscription = errors.New("invalid subscription")
	ErrInvalidNotification = errors.New("title and body are required")
	ErrPushDeliveryFailed  = errors.New("push delivery failed")
)

// RefreshWaitError indica cuanto falta para poder refrescar el OTP.
type RefreshWaitError struct {
	Remaining time.Duration
}

func (e *RefreshWaitError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrOTPNotYetRefreshable, e.Remaining.Round(time.Second))
}

func (e *RefreshWaitError) Is(target error) bool {
	return target == ErrOTPNotYetRefreshable
}

// InactiveAccountError acompaña a un login de cuenta inactiva con el OTP de activacion emitido.
type InactiveAccountError struct {
	RegisterID  string
	DeliveryErr error
}

func (e *InactiveAccountError) Error() string {
	return ErrAccountInactive.Error()
}

func (e *InactiveAccountError) Is(target error) bool {
	return target == ErrAccountInactive
}
