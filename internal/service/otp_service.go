package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/metrics"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
	"github.com/funlifew/Push-Notification-Server/internal/sms"
)

const defaultSMSDispatchTimeout = 10 * time.Second

// errUnchanged aborta la transaccion de Update sin escribir; no sale del paquete.
var errUnchanged = errors.New("otp unchanged")

// OTPPolicy agrupa las ventanas del ciclo y si se permiten varios ciclos abiertos por telefono.
type OTPPolicy struct {
	Windows             domain.OTPWindows
	AllowConcurrentOTPs bool
}

func DefaultOTPPolicy() OTPPolicy {
	return OTPPolicy{Windows: domain.DefaultOTPWindows(), AllowConcurrentOTPs: true}
}

// IssuedOTP es un ciclo ya persistido. DeliveryErr informa un fallo de SMS que no
// invalida la solicitud: el usuario puede pedir refresh.
type IssuedOTP struct {
	Request     domain.OTPRequest
	DeliveryErr error
}

// OTPService gestiona el ciclo de vida de los codigos: emision, verificacion y refresh.
type OTPService struct {
	logger          *zap.Logger
	otps            repository.OTPRepository
	normalizer      *phone.Normalizer
	sender          sms.Sender
	limiter         OTPRateLimiter
	policy          OTPPolicy
	dispatchTimeout time.Duration
	now             func() time.Time
}

func NewOTPService(logger *zap.Logger, otps repository.OTPRepository, normalizer *phone.Normalizer, sender sms.Sender, limiter OTPRateLimiter, policy OTPPolicy) (*OTPService, error) {
	if otps == nil || normalizer == nil {
		return nil, errors.New("otp service requires a repository and a phone normalizer")
	}
	if err := policy.Windows.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = sms.NewDisabledSender("sms sender not configured")
	}
	return &OTPService{
		logger:          logger,
		otps:            otps,
		normalizer:      normalizer,
		sender:          sender,
		limiter:         limiter,
		policy:          policy,
		dispatchTimeout: defaultSMSDispatchTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create emite un ciclo nuevo para el telefono y envia el codigo por SMS tras confirmar la escritura.
func (s *OTPService) Create(ctx context.Context, rawPhone string, requestType domain.OTPRequestType) (IssuedOTP, error) {
	if !requestType.Valid() {
		return IssuedOTP{}, ErrInvalidRequestType
	}
	number, err := s.normalizer.Normalize(rawPhone)
	if err != nil {
		return IssuedOTP{}, err
	}
	if s.limiter != nil && !s.limiter.Allow(ctx, number.String()) {
		return IssuedOTP{}, ErrRateLimited
	}

	otp, err := domain.NewOTPRequest(number, requestType, "", s.now(), s.policy.Windows)
	if err != nil {
		return IssuedOTP{}, err
	}
	if s.policy.AllowConcurrentOTPs {
		err = s.otps.Create(ctx, otp)
	} else {
		err = s.otps.ReplacePending(ctx, otp)
	}
	if err != nil {
		return IssuedOTP{}, err
	}
	metrics.RecordOTPIssued(string(requestType), "create")
	s.logger.Info("otp issued",
		zap.String("register_id", otp.RegisterID),
		zap.String("request_type", string(requestType)),
	)

	return IssuedOTP{Request: otp, DeliveryErr: s.dispatch(ctx, otp)}, nil
}

// Verify comprueba codigo y tipo. Un ciclo vencido nunca se acepta, aunque ya estuviera verificado.
func (s *OTPService) Verify(ctx context.Context, registerID, code string, expectedType *domain.OTPRequestType) (domain.OTPRequest, error) {
	if _, err := uuid.Parse(registerID); err != nil || !domain.IsValidOTPCode(code) {
		metrics.RecordOTPVerification("not_found")
		return domain.OTPRequest{}, ErrOTPNotFound
	}

	var current domain.OTPRequest
	updated, err := s.otps.Update(ctx, registerID, func(otp *domain.OTPRequest) error {
		if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
			return ErrOTPNotFound
		}
		if expectedType != nil && otp.RequestType != *expectedType {
			return ErrOTPNotFound
		}
		now := s.now()
		if otp.IsExpired(now) {
			return ErrOTPExpired
		}
		if otp.Verified {
			current = *otp
			return errUnchanged
		}
		if err := s.renormalize(otp); err != nil {
			return err
		}
		otp.Verified = true
		otp.UpdatedAt = now
		return nil
	})
	switch {
	case err == nil:
		metrics.RecordOTPVerification("verified")
		return updated, nil
	case errors.Is(err, errUnchanged):
		metrics.RecordOTPVerification("already_verified")
		return current, nil
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, ErrOTPNotFound):
		metrics.RecordOTPVerification("not_found")
		return domain.OTPRequest{}, ErrOTPNotFound
	case errors.Is(err, ErrOTPExpired):
		metrics.RecordOTPVerification("expired")
		return domain.OTPRequest{}, ErrOTPExpired
	}
	return domain.OTPRequest{}, err
}

// Refresh reemplaza el codigo de un ciclo existente cuando ya paso la ventana de espera.
func (s *OTPService) Refresh(ctx context.Context, registerID string) (IssuedOTP, error) {
	if _, err := uuid.Parse(registerID); err != nil {
		return IssuedOTP{}, ErrOTPNotFound
	}
	otp, err := s.otps.Update(ctx, registerID, func(otp *domain.OTPRequest) error {
		now := s.now()
		if !otp.IsRefreshable(now) {
			return &RefreshWaitError{Remaining: otp.RefreshWait(now)}
		}
		if err := s.renormalize(otp); err != nil {
			return err
		}
		return otp.Refresh(now, s.policy.Windows)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IssuedOTP{}, ErrOTPNotFound
		}
		return IssuedOTP{}, err
	}
	metrics.RecordOTPIssued(string(otp.RequestType), "refresh")
	s.logger.Info("otp refreshed", zap.String("register_id", otp.RegisterID))

	return IssuedOTP{Request: otp, DeliveryErr: s.dispatch(ctx, otp)}, nil
}

// Lookup devuelve el ciclo sin modificarlo.
func (s *OTPService) Lookup(ctx context.Context, registerID string) (domain.OTPRequest, error) {
	if _, err := uuid.Parse(registerID); err != nil {
		return domain.OTPRequest{}, ErrOTPNotFound
	}
	otp, err := s.otps.GetByRegisterID(ctx, registerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OTPRequest{}, ErrOTPNotFound
		}
		return domain.OTPRequest{}, err
	}
	return otp, nil
}

// Discard elimina un ciclo ya consumido.
func (s *OTPService) Discard(ctx context.Context, registerID string) error {
	return s.otps.Delete(ctx, registerID)
}

// ClearPhone elimina todos los ciclos de un numero, por ejemplo al reemplazarlo.
func (s *OTPService) ClearPhone(ctx context.Context, number phone.Number) error {
	if number.IsZero() {
		return nil
	}
	return s.otps.DeleteByPhone(ctx, number.String())
}

func (s *OTPService) IsExpired(otp domain.OTPRequest) bool {
	return otp.IsExpired(s.now())
}

func (s *OTPService) IsRefreshable(otp domain.OTPRequest) bool {
	return otp.IsRefreshable(s.now())
}

func (s *OTPService) renormalize(otp *domain.OTPRequest) error {
	number, err := s.normalizer.Normalize(otp.PhoneNumber.String())
	if err != nil {
		return err
	}
	otp.PhoneNumber = number
	return nil
}

func (s *OTPService) dispatch(ctx context.Context, otp domain.OTPRequest) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	if err := s.sender.SendOTP(ctx, otp.PhoneNumber.String(), otp.Code); err != nil {
		metrics.RecordSMSDelivery(false)
		s.logger.Warn("send otp sms failed",
			zap.Error(err),
			zap.String("register_id", otp.RegisterID),
		)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	metrics.RecordSMSDelivery(true)
	return nil
}
