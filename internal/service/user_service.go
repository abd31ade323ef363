package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/phone"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
)

const minPasswordLength = 8

// UserService coordina registro, login y mantenimiento de cuentas sobre el ciclo de OTP.
type UserService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	otps       *OTPService
	identities *IdentityResolver
	normalizer *phone.Normalizer
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, otps *OTPService, normalizer *phone.Normalizer) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger:     logger,
		users:      users,
		otps:       otps,
		identities: NewIdentityResolver(users, normalizer),
		normalizer: normalizer,
	}
}

type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Password    string
}

type RegisterResult struct {
	User domain.User
	OTP  IssuedOTP
}

// Register crea la cuenta inactiva y emite el OTP de alta.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	email, err := validateEmail(input.Email)
	if err != nil {
		return RegisterResult{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return RegisterResult{}, err
	}
	number, err := s.normalizer.Normalize(input.PhoneNumber)
	if err != nil {
		return RegisterResult{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return RegisterResult{}, err
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		PhoneNumber:  number,
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: string(hash),
		DateJoined:   now,
		DateUpdated:  now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return RegisterResult{}, ErrUserExists
		}
		return RegisterResult{}, err
	}

	issued, err := s.otps.Create(ctx, number.String(), domain.OTPSignup)
	if err != nil {
		return RegisterResult{User: user}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return RegisterResult{User: user, OTP: issued}, nil
}

// Login valida credenciales. Una cuenta inactiva recibe un OTP de alta nuevo y
// devuelve *InactiveAccountError con el register_id.
func (s *UserService) Login(ctx context.Context, identifier, password string) (domain.User, error) {
	user, found, err := s.identities.Resolve(ctx, domain.ParseIdentifier(identifier))
	if err != nil {
		return domain.User{}, err
	}
	if !found || user.PasswordHash == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		issued, err := s.otps.Create(ctx, user.PhoneNumber.String(), domain.OTPSignup)
		if err != nil {
			return domain.User{}, err
		}
		return domain.User{}, &InactiveAccountError{
			RegisterID:  issued.Request.RegisterID,
			DeliveryErr: issued.DeliveryErr,
		}
	}
	return user, nil
}

// VerifyAccount confirma un OTP de alta o de cambio de numero y activa la cuenta.
func (s *UserService) VerifyAccount(ctx context.Context, registerID, code string) (domain.User, error) {
	pending, err := s.otps.Lookup(ctx, registerID)
	if err != nil {
		return domain.User{}, err
	}
	if pending.RequestType == domain.OTPPasswordReset {
		return domain.User{}, ErrOTPNotFound
	}
	otp, err := s.otps.Verify(ctx, registerID, code, &pending.RequestType)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByPhone(ctx, otp.PhoneNumber.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if !user.IsActive {
		if err := s.users.SetActive(ctx, user.ID, true); err != nil {
			return domain.User{}, err
		}
		user.IsActive = true
		s.logger.Info("account activated", zap.String("user_id", user.ID))
	}
	return user, nil
}

func (s *UserService) RefreshOTP(ctx context.Context, registerID string) (IssuedOTP, error) {
	return s.otps.Refresh(ctx, registerID)
}

// RequestPasswordReset emite un OTP de recuperacion si el numero pertenece a una cuenta.
// Para un numero desconocido responde igual, con un register_id que no existe y sin SMS.
func (s *UserService) RequestPasswordReset(ctx context.Context, rawPhone string) (IssuedOTP, error) {
	if !s.normalizer.LooksLikeMobile(rawPhone) {
		return IssuedOTP{}, phone.ErrInvalidFormat
	}
	number, err := s.normalizer.Normalize(rawPhone)
	if err != nil {
		return IssuedOTP{}, err
	}
	if _, err := s.users.GetByPhone(ctx, number.String()); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Info("password reset requested for unknown number")
			return IssuedOTP{Request: domain.OTPRequest{
				RegisterID:  uuid.NewString(),
				PhoneNumber: number,
				RequestType: domain.OTPPasswordReset,
			}}, nil
		}
		return IssuedOTP{}, err
	}
	return s.otps.Create(ctx, number.String(), domain.OTPPasswordReset)
}

func (s *UserService) VerifyPasswordReset(ctx context.Context, registerID, code string) (domain.OTPRequest, error) {
	reset := domain.OTPPasswordReset
	return s.otps.Verify(ctx, registerID, code, &reset)
}

// ResetPassword consume un OTP de recuperacion ya verificado y vigente.
func (s *UserService) ResetPassword(ctx context.Context, registerID, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	otp, err := s.otps.Lookup(ctx, registerID)
	if err != nil {
		return err
	}
	if otp.RequestType != domain.OTPPasswordReset {
		return ErrOTPNotFound
	}
	if s.otps.IsExpired(otp) {
		return ErrOTPExpired
	}
	if !otp.Verified {
		return ErrOTPNotVerified
	}

	user, err := s.users.GetByPhone(ctx, otp.PhoneNumber.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if err := s.setPassword(ctx, user.ID, newPassword); err != nil {
		return err
	}
	if err := s.otps.Discard(ctx, otp.RegisterID); err != nil {
		s.logger.Warn("discard reset otp failed", zap.Error(err), zap.String("register_id", otp.RegisterID))
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, user.ID, newPassword)
}

// ChangePhoneNumber mueve una cuenta autenticada a otro numero; la cuenta queda
// inactiva hasta verificar el OTP enviado al numero nuevo.
func (s *UserService) ChangePhoneNumber(ctx context.Context, userID, rawPhone string) (IssuedOTP, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return IssuedOTP{}, err
	}
	return s.movePhone(ctx, user, rawPhone, domain.OTPPhoneVerification)
}

// EditPhoneNumber corrige el numero de una cuenta aun no activada.
func (s *UserService) EditPhoneNumber(ctx context.Context, oldPhone, newPhone string, requestType domain.OTPRequestType) (IssuedOTP, error) {
	if !requestType.Valid() {
		return IssuedOTP{}, ErrInvalidRequestType
	}
	oldNumber, err := s.normalizer.Normalize(oldPhone)
	if err != nil {
		return IssuedOTP{}, err
	}
	user, err := s.users.GetByPhone(ctx, oldNumber.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IssuedOTP{}, ErrUserNotFound
		}
		return IssuedOTP{}, err
	}
	if user.IsActive {
		return IssuedOTP{}, ErrAccountActive
	}
	return s.movePhone(ctx, user, newPhone, requestType)
}

func (s *UserService) Profile(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// UpdateProfile solo toca nombre y apellido; telefono y email tienen flujos propios.
func (s *UserService) UpdateProfile(ctx context.Context, userID, firstName, lastName string) (domain.User, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if utf8.RuneCountInString(firstName) > 50 || utf8.RuneCountInString(lastName) > 50 {
		return domain.User{}, fmt.Errorf("%w: names must be at most 50 characters", ErrInvalidProfile)
	}
	if err := s.users.UpdateProfile(ctx, userID, firstName, lastName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return s.Profile(ctx, userID)
}

// GrantSuperuser promueve una cuenta existente; es la via para crear el primer superusuario.
func (s *UserService) GrantSuperuser(ctx context.Context, rawPhone string) (domain.User, error) {
	number, err := s.normalizer.Normalize(rawPhone)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetByPhone(ctx, number.String())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if err := s.users.SetSuperuser(ctx, user.ID, true); err != nil {
		return domain.User{}, err
	}
	user.IsSuperuser = true
	user.IsStaff = true
	s.logger.Info("superuser granted", zap.String("user_id", user.ID))
	return user, nil
}

func (s *UserService) movePhone(ctx context.Context, user domain.User, rawPhone string, requestType domain.OTPRequestType) (IssuedOTP, error) {
	number, err := s.normalizer.Normalize(rawPhone)
	if err != nil {
		return IssuedOTP{}, err
	}
	if _, err := s.users.GetByPhone(ctx, number.String()); err == nil {
		return IssuedOTP{}, ErrPhoneTaken
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return IssuedOTP{}, err
	}

	if err := s.otps.ClearPhone(ctx, user.PhoneNumber); err != nil {
		return IssuedOTP{}, err
	}
	if err := s.users.UpdatePhone(ctx, user.ID, number.String()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return IssuedOTP{}, ErrPhoneTaken
		}
		return IssuedOTP{}, err
	}
	s.logger.Info("phone number changed",
		zap.String("user_id", user.ID),
		zap.String("request_type", string(requestType)),
	)
	return s.otps.Create(ctx, number.String(), requestType)
}

func (s *UserService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

func validateEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, minPasswordLength)
	}
	return nil
}
