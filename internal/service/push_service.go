package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
	"github.com/funlifew/Push-Notification-Server/internal/metrics"
	"github.com/funlifew/Push-Notification-Server/internal/push"
	"github.com/funlifew/Push-Notification-Server/internal/repository"
)

const (
	adminTokenNameLength = 20
	adminTokenAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultPushFanOut    = 16
	defaultPushTimeout   = 30 * time.Second
)

// PushService autoriza por admin token y reparte notificaciones web push.
type PushService struct {
	logger     *zap.Logger
	tokens     repository.AdminTokenRepository
	dispatcher push.Dispatcher
	fanOut     int
	timeout    time.Duration
}

func NewPushService(logger *zap.Logger, tokens repository.AdminTokenRepository, dispatcher push.Dispatcher) *PushService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushService{
		logger:     logger,
		tokens:     tokens,
		dispatcher: dispatcher,
		fanOut:     defaultPushFanOut,
		timeout:    defaultPushTimeout,
	}
}

// GenerateAdminToken crea un token nuevo. La comprobacion de superusuario se hace en el borde HTTP.
func (s *PushService) GenerateAdminToken(ctx context.Context) (domain.AdminToken, error) {
	name, err := randomName(adminTokenNameLength)
	if err != nil {
		return domain.AdminToken{}, err
	}
	token := domain.AdminToken{
		Token:     uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return domain.AdminToken{}, err
	}
	s.logger.Info("admin token generated", zap.String("name", token.Name))
	return token, nil
}

func (s *PushService) Authorize(ctx context.Context, adminToken string) error {
	adminToken = strings.TrimSpace(adminToken)
	if adminToken == "" {
		return ErrAdminTokenRequired
	}
	if _, err := uuid.Parse(adminToken); err != nil {
		return ErrAdminTokenInvalid
	}
	ok, err := s.tokens.Exists(ctx, adminToken)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAdminTokenInvalid
	}
	return nil
}

func (s *PushService) SendSingle(ctx context.Context, adminToken string, sub domain.PushSubscription, n domain.Notification) error {
	if err := s.Authorize(ctx, adminToken); err != nil {
		return err
	}
	if !sub.Valid() {
		return ErrInvalidSubscription
	}
	payload, err := encodePayload(n)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err = s.dispatcher.Send(ctx, sub, payload)
	metrics.RecordPushDelivery("single", err == nil)
	if err != nil {
		s.logger.Warn("push delivery failed", zap.Error(err), zap.String("endpoint", sub.Endpoint))
		return fmt.Errorf("%w: %w", ErrPushDeliveryFailed, err)
	}
	return nil
}

// SendGroup envia a todas las suscripciones en paralelo; un fallo individual queda
// en el reporte y no corta el resto.
func (s *PushService) SendGroup(ctx context.Context, adminToken string, subs []domain.PushSubscription, n domain.Notification) (domain.GroupDeliveryReport, error) {
	if err := s.Authorize(ctx, adminToken); err != nil {
		return domain.GroupDeliveryReport{}, err
	}
	if len(subs) == 0 {
		return domain.GroupDeliveryReport{}, ErrNoSubscriptions
	}
	payload, err := encodePayload(n)
	if err != nil {
		return domain.GroupDeliveryReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok := make([]bool, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanOut)
	for i, sub := range subs {
		g.Go(func() error {
			if !sub.Valid() {
				return nil
			}
			if err := s.dispatcher.Send(gctx, sub, payload); err != nil {
				s.logger.Warn("push delivery failed", zap.Error(err), zap.String("endpoint", sub.Endpoint))
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	report := domain.GroupDeliveryReport{
		Success: []string{},
		Error:   []string{},
		Total:   len(subs),
	}
	for i, sub := range subs {
		endpoint := sub.Endpoint
		if endpoint == "" {
			endpoint = "unknown"
		}
		metrics.RecordPushDelivery("group", ok[i])
		if ok[i] {
			report.Success = append(report.Success, endpoint)
		} else {
			report.Error = append(report.Error, endpoint)
		}
	}
	report.SuccessCount = len(report.Success)
	report.ErrorCount = len(report.Error)
	return report, nil
}

func encodePayload(n domain.Notification) ([]byte, error) {
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Body) == "" {
		return nil, ErrInvalidNotification
	}
	payload, err := json.Marshal(n.Payload())
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	return payload, nil
}

func randomName(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("name length must be positive")
	}
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(adminTokenAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(adminTokenAlphabet[n.Int64()])
	}
	return b.String(), nil
}
