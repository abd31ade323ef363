package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/funlifew/Push-Notification-Server/internal/domain"
)

func newTestPushService(t *testing.T, failing ...string) (*PushService, *mockAdminTokenRepo, *mockDispatcher, string) {
	t.Helper()
	tokens := newMockAdminTokenRepo()
	dispatcher := newMockDispatcher(failing...)
	svc := NewPushService(zap.NewNop(), tokens, dispatcher)
	token, err := svc.GenerateAdminToken(context.Background())
	if err != nil {
		t.Fatalf("generate admin token: %v", err)
	}
	return svc, tokens, dispatcher, token.Token
}

func testSubscription(endpoint string) domain.PushSubscription {
	return domain.PushSubscription{
		Endpoint: endpoint,
		Keys:     domain.PushSubscriptionKeys{P256dh: "p256dh-key", Auth: "auth-key"},
	}
}

func TestPushServiceGenerateAdminToken(t *testing.T) {
	_, tokens, _, token := newTestPushService(t)
	stored, ok := tokens.tokens[token]
	if !ok {
		t.Fatalf("expected token persisted")
	}
	if len(stored.Name) != adminTokenNameLength {
		t.Fatalf("expected %d char name, got %q", adminTokenNameLength, stored.Name)
	}
}

func TestPushServiceAuthorize(t *testing.T) {
	svc, _, _, token := newTestPushService(t)
	ctx := context.Background()

	if err := svc.Authorize(ctx, ""); !errors.Is(err, ErrAdminTokenRequired) {
		t.Fatalf("expected ErrAdminTokenRequired, got %v", err)
	}
	if err := svc.Authorize(ctx, "not-a-uuid"); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Fatalf("expected ErrAdminTokenInvalid, got %v", err)
	}
	if err := svc.Authorize(ctx, "5b0c5f9e-3a3f-4c1e-9a59-3f1c2f3f7b10"); !errors.Is(err, ErrAdminTokenInvalid) {
		t.Fatalf("expected ErrAdminTokenInvalid for unknown token, got %v", err)
	}
	if err := svc.Authorize(ctx, token); err != nil {
		t.Fatalf("authorize: %v", err)
	}
}

func TestPushServiceSendSingle(t *testing.T) {
	svc, _, dispatcher, token := newTestPushService(t, "https://push.example/gone")
	ctx := context.Background()
	n := domain.Notification{Title: "Hello", Body: "World", URL: "https://example.com/a"}

	if err := svc.SendSingle(ctx, token, testSubscription("https://push.example/1"), n); err != nil {
		t.Fatalf("send single: %v", err)
	}
	var payload domain.NotificationPayload
	if err := json.Unmarshal(dispatcher.payloads["https://push.example/1"], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Title != "Hello" || !payload.RequireInteraction || payload.Data.URL != "https://example.com/a" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	if err := svc.SendSingle(ctx, token, testSubscription("https://push.example/gone"), n); !errors.Is(err, errEndpointGone) {
		t.Fatalf("expected delivery error, got %v", err)
	}
	if err := svc.SendSingle(ctx, token, domain.PushSubscription{}, n); !errors.Is(err, ErrInvalidSubscription) {
		t.Fatalf("expected ErrInvalidSubscription, got %v", err)
	}
	if err := svc.SendSingle(ctx, token, testSubscription("https://push.example/1"), domain.Notification{Title: "x"}); !errors.Is(err, ErrInvalidNotification) {
		t.Fatalf("expected ErrInvalidNotification, got %v", err)
	}
	if err := svc.SendSingle(ctx, "", testSubscription("https://push.example/1"), n); !errors.Is(err, ErrAdminTokenRequired) {
		t.Fatalf("expected ErrAdminTokenRequired, got %v", err)
	}
}

func TestPushServiceSendGroupPartialFailure(t *testing.T) {
	svc, _, _, token := newTestPushService(t, "https://push.example/gone")
	subs := []domain.PushSubscription{
		testSubscription("https://push.example/1"),
		testSubscription("https://push.example/gone"),
		testSubscription("https://push.example/2"),
		{},
	}

	report, err := svc.SendGroup(context.Background(), token, subs, domain.Notification{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("send group: %v", err)
	}
	if report.Total != 4 || report.SuccessCount != 2 || report.ErrorCount != 2 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.Success[0] != "https://push.example/1" || report.Success[1] != "https://push.example/2" {
		t.Fatalf("unexpected success list %v", report.Success)
	}
	if report.Error[0] != "https://push.example/gone" || report.Error[1] != "unknown" {
		t.Fatalf("unexpected error list %v", report.Error)
	}
}

func TestPushServiceSendGroupRequiresSubscriptions(t *testing.T) {
	svc, _, _, token := newTestPushService(t)
	if _, err := svc.SendGroup(context.Background(), token, nil, domain.Notification{Title: "t", Body: "b"}); !errors.Is(err, ErrNoSubscriptions) {
		t.Fatalf("expected ErrNoSubscriptions, got %v", err)
	}
}
