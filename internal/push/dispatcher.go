package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/funlifew/Push-Notification-Server/internal/config"
	"github.com/funlifew/Push-Notification-Server/internal/domain"
)

var ErrDeliveryRejected = errors.New("push delivery rejected")

// Dispatcher entrega un payload ya serializado a una suscripcion.
type Dispatcher interface {
	Send(ctx context.Context, sub domain.PushSubscription, payload []byte) error
}

// WebPushDispatcher firma con VAPID y cifra segun RFC 8291 via webpush-go.
type WebPushDispatcher struct {
	cfg    config.VAPIDConfig
	client *http.Client
}

func NewWebPushDispatcher(cfg config.VAPIDConfig) (*WebPushDispatcher, error) {
	if strings.TrimSpace(cfg.PublicKey) == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("vapid key pair is required")
	}
	if strings.TrimSpace(cfg.Subject) == "" {
		return nil, fmt.Errorf("vapid subject is required")
	}
	if cfg.TTLSeconds <= 0 {
		cfg.TTLSeconds = 86400
	}
	return &WebPushDispatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (d *WebPushDispatcher) Send(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	if !sub.Valid() {
		return fmt.Errorf("%w: incomplete subscription", ErrDeliveryRejected)
	}
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      d.client,
		Subscriber:      strings.TrimPrefix(d.cfg.Subject, "mailto:"),
		VAPIDPublicKey:  d.cfg.PublicKey,
		VAPIDPrivateKey: d.cfg.PrivateKey,
		TTL:             d.cfg.TTLSeconds,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: status=%d body=%q", ErrDeliveryRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type disabledDispatcher struct {
	reason string
}

// NewDisabledDispatcher rechaza todo envio; sirve cuando faltan las claves VAPID.
func NewDisabledDispatcher(reason string) Dispatcher {
	return &disabledDispatcher{reason: reason}
}

func (d *disabledDispatcher) Send(_ context.Context, _ domain.PushSubscription, _ []byte) error {
	if d.reason == "" {
		return fmt.Errorf("%w: push dispatcher disabled", ErrDeliveryRejected)
	}
	return fmt.Errorf("%w: %s", ErrDeliveryRejected, d.reason)
}
