package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/funlifew/Push-Notification-Server/internal/phone"
)

type OTPRequestType string

const (
	OTPSignup            OTPRequestType = "signup"
	OTPPasswordReset     OTPRequestType = "password_reset"
	OTPPhoneVerification OTPRequestType = "phone_verification"
)

func (t OTPRequestType) Valid() bool {
	switch t {
	case OTPSignup, OTPPasswordReset, OTPPhoneVerification:
		return true
	}
	return false
}

const (
	DefaultOTPTTL          = 5 * time.Minute
	DefaultOTPRefreshAfter = 2 * time.Minute
	otpCodeLength          = 6
)

// OTPWindows define cuanto vive un codigo y cuando puede reemplazarse.
// TTL debe ser mayor que RefreshAfter.
type OTPWindows struct {
	TTL          time.Duration
	RefreshAfter time.Duration
}

func DefaultOTPWindows() OTPWindows {
	return OTPWindows{TTL: DefaultOTPTTL, RefreshAfter: DefaultOTPRefreshAfter}
}

func (w OTPWindows) Validate() error {
	if w.RefreshAfter <= 0 {
		return fmt.Errorf("otp refresh window must be positive, got %s", w.RefreshAfter)
	}
	if w.TTL <= w.RefreshAfter {
		return fmt.Errorf("otp ttl %s must exceed refresh window %s", w.TTL, w.RefreshAfter)
	}
	return nil
}

// OTPRequest es un ciclo de codigo pendiente identificado por RegisterID.
type OTPRequest struct {
	RegisterID    string         `json:"register_id"`
	PhoneNumber   phone.Number   `json:"phone_number"`
	Code          string         `json:"-"`
	RequestType   OTPRequestType `json:"request_type"`
	Verified      bool           `json:"is_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	RefreshableAt time.Time      `json:"refreshable_at"`
}

// NewOTPRequest crea un ciclo nuevo. Si code es vacio se genera uno aleatorio.
func NewOTPRequest(number phone.Number, requestType OTPRequestType, code string, now time.Time, w OTPWindows) (OTPRequest, error) {
	if number.IsZero() {
		return OTPRequest{}, fmt.Errorf("otp request requires a phone number")
	}
	if !requestType.Valid() {
		return OTPRequest{}, fmt.Errorf("invalid otp request type %q", requestType)
	}
	if err := w.Validate(); err != nil {
		return OTPRequest{}, err
	}
	if code == "" {
		generated, err := GenerateOTPCode()
		if err != nil {
			return OTPRequest{}, err
		}
		code = generated
	}
	if !IsValidOTPCode(code) {
		return OTPRequest{}, fmt.Errorf("otp code must be %d digits", otpCodeLength)
	}

	now = now.UTC()
	return OTPRequest{
		RegisterID:    uuid.NewString(),
		PhoneNumber:   number,
		Code:          code,
		RequestType:   requestType,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(w.TTL),
		RefreshableAt: now.Add(w.RefreshAfter),
	}, nil
}

func (o OTPRequest) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsRefreshable exige now estrictamente posterior al umbral.
func (o OTPRequest) IsRefreshable(now time.Time) bool {
	return now.After(o.RefreshableAt)
}

// RefreshWait devuelve cuanto falta para poder refrescar; cero si ya se puede.
func (o OTPRequest) RefreshWait(now time.Time) time.Duration {
	if o.IsRefreshable(now) {
		return 0
	}
	return o.RefreshableAt.Sub(now)
}

// Refresh inicia un ciclo nuevo: codigo nuevo, ventanas desde now y verified en false.
func (o *OTPRequest) Refresh(now time.Time, w OTPWindows) error {
	if err := w.Validate(); err != nil {
		return err
	}
	code, err := GenerateOTPCode()
	if err != nil {
		return err
	}
	now = now.UTC()
	o.Code = code
	o.Verified = false
	o.UpdatedAt = now
	o.ExpiresAt = now.Add(w.TTL)
	o.RefreshableAt = now.Add(w.RefreshAfter)
	return nil
}

func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func IsValidOTPCode(code string) bool {
	if len(code) != otpCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
