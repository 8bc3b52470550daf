package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/internal/usage"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
)

type fakeUsageService struct {
	history *usage.History
	err     error

	userIDs []uuid.UUID
	days    []int
}

func (f *fakeUsageService) History(_ context.Context, userID uuid.UUID, days int) (*usage.History, error) {
	f.userIDs = append(f.userIDs, userID)
	f.days = append(f.days, days)
	if f.err != nil {
		return nil, f.err
	}
	return f.history, nil
}

func TestGetUsageHistory_DefaultWindow(t *testing.T) {
	userID := uuid.New()
	svc := &fakeUsageService{history: &usage.History{
		Days: 7,
		Totals: []usage.DayTotal{
			{Day: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), PromptCount: 4},
		},
		Overall: 4,
	}}
	handler := GetUsageHistory(svc, nil)

	req := authedJSONRequest(t, http.MethodGet, "/api/v1/usage/history", nil, userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.days) != 1 || svc.days[0] != 7 {
		t.Fatalf("expected default window of 7 days, got %v", svc.days)
	}
	if svc.userIDs[0] != userID {
		t.Fatalf("expected caller id %s, got %s", userID, svc.userIDs[0])
	}

	var envelope struct {
		Data usage.History `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Overall != 4 || len(envelope.Data.Totals) != 1 {
		t.Fatalf("unexpected history: %+v", envelope.Data)
	}
}

func TestGetUsageHistory_CustomWindow(t *testing.T) {
	svc := &fakeUsageService{history: &usage.History{Days: 30}}
	handler := GetUsageHistory(svc, nil)

	req := authedJSONRequest(t, http.MethodGet, "/api/v1/usage/history?days=30", nil, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(svc.days) != 1 || svc.days[0] != 30 {
		t.Fatalf("expected 30 day window, got %v", svc.days)
	}
}

func TestGetUsageHistory_WindowOutOfRange(t *testing.T) {
	svc := &fakeUsageService{history: &usage.History{}}
	handler := GetUsageHistory(svc, nil)

	for _, raw := range []string{"0", "91", "abc"} {
		req := authedJSONRequest(t, http.MethodGet, "/api/v1/usage/history?days="+raw, nil, uuid.New())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("days=%s: expected 400, got %d (%s)", raw, rec.Code, rec.Body.String())
		}
	}
	if len(svc.days) != 0 {
		t.Fatalf("service should not be called for invalid windows, got %v", svc.days)
	}
}

func TestGetUsageHistory_ServiceError(t *testing.T) {
	svc := &fakeUsageService{err: pkgerrors.New(pkgerrors.CodeNotFound, "account not found")}
	handler := GetUsageHistory(svc, nil)

	req := authedJSONRequest(t, http.MethodGet, "/api/v1/usage/history", nil, uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", rec.Code, rec.Body.String())
	}
}
