package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

type fakeTelegramService struct {
	err     error
	updates []tgbotapi.Update
}

func (f *fakeTelegramService) HandleUpdate(_ context.Context, update tgbotapi.Update) error {
	f.updates = append(f.updates, update)
	return f.err
}

func telegramUpdateRequest(secret string) *http.Request {
	body := `{"update_id":42,"message":{"message_id":1,"chat":{"id":1001},"text":"/credits"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	return req
}

func TestTelegramWebhook_Success(t *testing.T) {
	svc := &fakeTelegramService{}
	handler := TelegramWebhook(svc, "tg-secret", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, telegramUpdateRequest("tg-secret"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.updates) != 1 {
		t.Fatalf("expected one handled update, got %d", len(svc.updates))
	}
	if svc.updates[0].UpdateID != 42 {
		t.Fatalf("expected update id 42, got %d", svc.updates[0].UpdateID)
	}
}

func TestTelegramWebhook_WrongSecret(t *testing.T) {
	svc := &fakeTelegramService{}
	handler := TelegramWebhook(svc, "tg-secret", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, telegramUpdateRequest("not-the-secret"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.updates) != 0 {
		t.Fatalf("service should not be invoked with a wrong secret")
	}
}

func TestTelegramWebhook_MissingSecret(t *testing.T) {
	svc := &fakeTelegramService{}
	handler := TelegramWebhook(svc, "tg-secret", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, telegramUpdateRequest(""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestTelegramWebhook_UnconfiguredSecret(t *testing.T) {
	svc := &fakeTelegramService{}
	handler := TelegramWebhook(svc, "", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, telegramUpdateRequest(""))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when secret unset, got %d", rec.Code)
	}
	if len(svc.updates) != 0 {
		t.Fatalf("service should not be invoked without configuration")
	}
}

func TestTelegramWebhook_BadJSON(t *testing.T) {
	svc := &fakeTelegramService{}
	handler := TelegramWebhook(svc, "tg-secret", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/telegram", strings.NewReader("{"))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "tg-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestTelegramWebhook_HandlerError(t *testing.T) {
	svc := &fakeTelegramService{err: pkgerrors.New(pkgerrors.CodeInternal, "handler blew up")}
	handler := TelegramWebhook(svc, "tg-secret", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, telegramUpdateRequest("tg-secret"))

	// Telegram retries on non-2xx; the failure has to surface.
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d (%s)", rec.Code, rec.Body.String())
	}
}
