package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/api/middleware"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

type fakeCreditsService struct {
	account    *models.CreditAccount
	accountErr error
	consume    *credits.ConsumeResult
	consumeErr error

	consumeInputs []credits.ConsumeInput
	grantCalls    []grantCall
	resetCalls    []uuid.UUID
}

type grantCall struct {
	userID uuid.UUID
	amount int
	reason string
}

func (f *fakeCreditsService) GetAccount(_ context.Context, _ uuid.UUID) (*models.CreditAccount, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

func (f *fakeCreditsService) Consume(_ context.Context, input credits.ConsumeInput) (*credits.ConsumeResult, error) {
	f.consumeInputs = append(f.consumeInputs, input)
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.consume, nil
}

func (f *fakeCreditsService) Grant(_ context.Context, userID uuid.UUID, amount int, reason string) (*models.CreditAccount, error) {
	f.grantCalls = append(f.grantCalls, grantCall{userID: userID, amount: amount, reason: reason})
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

func (f *fakeCreditsService) ResetUsage(_ context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	f.resetCalls = append(f.resetCalls, userID)
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	return f.account, nil
}

// authedJSONRequest builds a request carrying the authenticated user id the
// way the auth middleware would.
func authedJSONRequest(t *testing.T, method, target string, body any, userID uuid.UUID) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		req = httptest.NewRequest(method, target, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := middleware.WithUserID(req.Context(), userID.String())
	return req.WithContext(ctx)
}

func TestGetCredits_Success(t *testing.T) {
	userID := uuid.New()
	lastUpdated := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	svc := &fakeCreditsService{account: &models.CreditAccount{
		UserID:      userID,
		DailyLimit:  10,
		UsedToday:   3,
		LastUpdated: lastUpdated,
	}}
	handler := GetCredits(svc, nil)

	req := authedJSONRequest(t, http.MethodGet, "/api/v1/credits", nil, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data creditAccountView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.DailyLimit != 10 || envelope.Data.UsedToday != 3 || envelope.Data.Remaining != 7 {
		t.Fatalf("unexpected view: %+v", envelope.Data)
	}
	if envelope.Data.LastUpdated != "2026-03-14T09:30:00Z" {
		t.Fatalf("expected RFC3339 timestamp, got %q", envelope.Data.LastUpdated)
	}
}

func TestGetCredits_MissingUserContext(t *testing.T) {
	svc := &fakeCreditsService{account: &models.CreditAccount{}}
	handler := GetCredits(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/credits", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user context, got %d", rec.Code)
	}
}

func TestConsumeCredits_Success(t *testing.T) {
	userID := uuid.New()
	svc := &fakeCreditsService{consume: &credits.ConsumeResult{
		Consumed:   2,
		UsedToday:  5,
		DailyLimit: 10,
		Remaining:  5,
	}}
	handler := ConsumeCredits(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/credits/consume", map[string]any{
		"amount": 2,
		"note":   "prompt run",
	}, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.consumeInputs) != 1 {
		t.Fatalf("expected one consume call, got %d", len(svc.consumeInputs))
	}
	input := svc.consumeInputs[0]
	if input.UserID != userID || input.Amount != 2 || input.Note != "prompt run" {
		t.Fatalf("unexpected consume input: %+v", input)
	}

	var envelope struct {
		Data credits.ConsumeResult `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Remaining != 5 || envelope.Data.Consumed != 2 {
		t.Fatalf("unexpected result: %+v", envelope.Data)
	}
}

// An omitted amount reaches the service as zero, which it defaults to one
// unit; only explicit invalid amounts are rejected at the boundary.
func TestConsumeCredits_OmittedAmountPassesThrough(t *testing.T) {
	userID := uuid.New()
	svc := &fakeCreditsService{consume: &credits.ConsumeResult{
		Consumed:   1,
		UsedToday:  1,
		DailyLimit: 10,
		Remaining:  9,
	}}
	handler := ConsumeCredits(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/credits/consume", map[string]any{}, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.consumeInputs) != 1 {
		t.Fatalf("expected one consume call, got %d", len(svc.consumeInputs))
	}
	if got := svc.consumeInputs[0].Amount; got != 0 {
		t.Fatalf("expected zero amount forwarded for service-side default, got %d", got)
	}
}

func TestConsumeCredits_NegativeAmountRejected(t *testing.T) {
	svc := &fakeCreditsService{}
	handler := ConsumeCredits(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/credits/consume", map[string]any{
		"amount": -1,
	}, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.consumeInputs) != 0 {
		t.Fatalf("service should not be called on invalid amount")
	}
}

func TestConsumeCredits_Insufficient(t *testing.T) {
	svc := &fakeCreditsService{
		consumeErr: pkgerrors.New(pkgerrors.CodeInsufficient, "daily limit reached").
			WithDetails(credits.InsufficientDetails{Remaining: 1, Required: 3}),
	}
	handler := ConsumeCredits(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/credits/consume", map[string]any{
		"amount": 3,
	}, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficient) {
		t.Fatalf("expected INSUFFICIENT_CREDITS code, got %q", envelope.Error.Code)
	}
}

func TestConsumeCredits_NilService(t *testing.T) {
	handler := ConsumeCredits(nil, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/credits/consume", map[string]any{"amount": 1}, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
