package router

import (
	"context"
	"testing"
	"time"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

func TestCreditConsumedHandlerBuildsRow(t *testing.T) {
	writer := &fakeWriter{}
	handler := newCreditConsumedHandler(writer, logger.New(logger.Options{ServiceName: "handler-test"}))

	userID := uuid.New()
	consumedAt := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	env := types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventCreditConsumed,
		OccurredAt: consumedAt.Add(time.Second),
	}
	event := &payloads.CreditConsumedEvent{
		UserID:     userID,
		Amount:     3,
		Remaining:  7,
		DailyLimit: 10,
		ConsumedAt: consumedAt,
	}

	if err := handler.Handle(context.Background(), env, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.UserID == nil || *row.UserID != userID.String() {
		t.Fatalf("unexpected user id: %v", row.UserID)
	}
	if row.Amount == nil || *row.Amount != 3 {
		t.Fatalf("unexpected amount: %v", row.Amount)
	}
	if row.Remaining == nil || *row.Remaining != 7 {
		t.Fatalf("unexpected remaining: %v", row.Remaining)
	}
	if row.DailyLimit == nil || *row.DailyLimit != 10 {
		t.Fatalf("unexpected daily limit: %v", row.DailyLimit)
	}
	if !row.OccurredAt.Equal(consumedAt) {
		t.Fatalf("expected consumed_at to win over envelope time, got %v", row.OccurredAt)
	}
	if !row.Payload.Valid {
		t.Fatal("expected payload json to be recorded")
	}
}

func TestCreditConsumedHandlerRejectsWrongPayload(t *testing.T) {
	writer := &fakeWriter{}
	handler := newCreditConsumedHandler(writer, logger.New(logger.Options{ServiceName: "handler-test"}))

	err := handler.Handle(context.Background(), types.Envelope{}, &payloads.CreditGrantedEvent{})
	if err == nil {
		t.Fatal("expected error for wrong payload type")
	}
	if len(writer.inserted) != 0 {
		t.Fatal("expected no rows written")
	}
}

func TestCreditGrantedHandlerBuildsRow(t *testing.T) {
	writer := &fakeWriter{}
	handler := newCreditGrantedHandler(writer, logger.New(logger.Options{ServiceName: "handler-test"}))

	occurred := time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC)
	env := types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventCreditGranted,
		OccurredAt: occurred,
	}
	event := &payloads.CreditGrantedEvent{
		UserID:     uuid.New(),
		Amount:     25,
		DailyLimit: 35,
		Reason:     "goodwill",
	}

	if err := handler.Handle(context.Background(), env, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.Amount == nil || *row.Amount != 25 {
		t.Fatalf("unexpected amount: %v", row.Amount)
	}
	if !row.OccurredAt.Equal(occurred) {
		t.Fatalf("expected envelope time fallback, got %v", row.OccurredAt)
	}
}

func TestCreditResetHandlerBuildsRow(t *testing.T) {
	writer := &fakeWriter{}
	handler := newCreditResetHandler(writer, logger.New(logger.Options{ServiceName: "handler-test"}))

	resetAt := time.Date(2026, 3, 5, 0, 0, 1, 0, time.UTC)
	env := types.Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.AnalyticsEventCreditReset,
	}
	event := &payloads.CreditResetEvent{
		UserID:  uuid.New(),
		ResetAt: resetAt,
	}

	if err := handler.Handle(context.Background(), env, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	if !writer.inserted[0].OccurredAt.Equal(resetAt) {
		t.Fatalf("expected reset_at as occurred_at, got %v", writer.inserted[0].OccurredAt)
	}
}
