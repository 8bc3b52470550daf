package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

type fakeSubscriptionsService struct {
	plans    []models.Plan
	plansErr error
	sub      *models.Subscription
	subErr   error

	suspendCalls   []suspendCall
	unsuspendCalls []uuid.UUID
	suspendErr     error
}

type suspendCall struct {
	userID uuid.UUID
	reason string
}

func (f *fakeSubscriptionsService) ListPlans(_ context.Context) ([]models.Plan, error) {
	if f.plansErr != nil {
		return nil, f.plansErr
	}
	return f.plans, nil
}

func (f *fakeSubscriptionsService) GetForUser(_ context.Context, _ uuid.UUID) (*models.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

func (f *fakeSubscriptionsService) Upgrade(_ context.Context, _ subscriptions.UpgradeInput) (*models.Subscription, error) {
	return f.sub, nil
}

func (f *fakeSubscriptionsService) Cancel(_ context.Context, _ uuid.UUID, _ string) (*models.Subscription, error) {
	return f.sub, nil
}

func (f *fakeSubscriptionsService) Suspend(_ context.Context, userID uuid.UUID, reason string) error {
	f.suspendCalls = append(f.suspendCalls, suspendCall{userID: userID, reason: reason})
	return f.suspendErr
}

func (f *fakeSubscriptionsService) Unsuspend(_ context.Context, userID uuid.UUID) error {
	f.unsuspendCalls = append(f.unsuspendCalls, userID)
	return f.suspendErr
}

func (f *fakeSubscriptionsService) ExpireDue(_ context.Context, _ time.Time, _ int) (int, error) {
	return 0, nil
}

type fakeCheckoutService struct {
	session    *subscriptions.CheckoutSessionView
	sessionErr error
	canceled   *models.Subscription
	cancelErr  error

	startInputs []subscriptions.StartCheckoutInput
	cancelCalls []uuid.UUID
}

func (f *fakeCheckoutService) StartCheckout(_ context.Context, input subscriptions.StartCheckoutInput) (*subscriptions.CheckoutSessionView, error) {
	f.startInputs = append(f.startInputs, input)
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return f.session, nil
}

func (f *fakeCheckoutService) CancelForUser(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	f.cancelCalls = append(f.cancelCalls, userID)
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return f.canceled, nil
}

func TestListPlans_Success(t *testing.T) {
	svc := &fakeSubscriptionsService{plans: []models.Plan{
		{Tier: enums.PlanTierFree, DailyLimit: 10},
		{Tier: enums.PlanTierPro, DailyLimit: 100},
	}}
	handler := ListPlans(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []models.Plan `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(envelope.Data))
	}
}

func TestGetMySubscription_Success(t *testing.T) {
	userID := uuid.New()
	svc := &fakeSubscriptionsService{sub: &models.Subscription{
		UserID:       userID,
		PlanTier:     enums.PlanTierPro,
		IsSubscribed: true,
		Status:       enums.SubscriptionStatusActive,
	}}
	handler := GetMySubscription(svc, nil)

	req := authedJSONRequest(t, http.MethodGet, "/api/v1/subscriptions/me", nil, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data models.Subscription `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.PlanTier != enums.PlanTierPro || !envelope.Data.IsSubscribed {
		t.Fatalf("unexpected subscription: %+v", envelope.Data)
	}
}

func TestGetMySubscription_NotFound(t *testing.T) {
	svc := &fakeSubscriptionsService{subErr: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	handler := GetMySubscription(svc, nil)

	req := authedJSONRequest(t, http.MethodGet, "/api/v1/subscriptions/me", nil, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestStartCheckout_Success(t *testing.T) {
	userID := uuid.New()
	svc := &fakeCheckoutService{session: &subscriptions.CheckoutSessionView{
		SessionID: "cs_test_123",
		URL:       "https://checkout.stripe.com/c/pay/cs_test_123",
	}}
	handler := StartCheckout(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/subscriptions/checkout", map[string]string{
		"tier":        "pro",
		"success_url": "https://app.example.com/billing/success",
		"cancel_url":  "https://app.example.com/billing/cancel",
	}, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.startInputs) != 1 {
		t.Fatalf("expected one checkout call, got %d", len(svc.startInputs))
	}
	input := svc.startInputs[0]
	if input.UserID != userID || input.Tier != enums.PlanTierPro {
		t.Fatalf("unexpected checkout input: %+v", input)
	}

	var envelope struct {
		Data subscriptions.CheckoutSessionView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SessionID != "cs_test_123" {
		t.Fatalf("expected session id in response, got %+v", envelope.Data)
	}
}

func TestStartCheckout_RejectsFreeTier(t *testing.T) {
	svc := &fakeCheckoutService{}
	handler := StartCheckout(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/subscriptions/checkout", map[string]string{
		"tier":        "free",
		"success_url": "https://app.example.com/billing/success",
		"cancel_url":  "https://app.example.com/billing/cancel",
	}, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.startInputs) != 0 {
		t.Fatalf("service should not be called for the free tier")
	}
}

func TestCancelSubscription_Success(t *testing.T) {
	userID := uuid.New()
	svc := &fakeCheckoutService{canceled: &models.Subscription{
		UserID:   userID,
		PlanTier: enums.PlanTierFree,
		Status:   enums.SubscriptionStatusCanceled,
	}}
	handler := CancelSubscription(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/subscriptions/cancel", nil, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.cancelCalls) != 1 || svc.cancelCalls[0] != userID {
		t.Fatalf("expected cancel for caller, got %v", svc.cancelCalls)
	}
}

func TestCancelSubscription_StateConflict(t *testing.T) {
	svc := &fakeCheckoutService{cancelErr: pkgerrors.New(pkgerrors.CodeStateConflict, "already on the free tier")}
	handler := CancelSubscription(svc, nil)

	req := authedJSONRequest(t, http.MethodPost, "/api/v1/subscriptions/cancel", nil, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}
