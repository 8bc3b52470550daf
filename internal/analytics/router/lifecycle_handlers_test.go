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

func TestSubscriptionChangedHandlerBuildsRow(t *testing.T) {
	writer := &fakeWriter{}
	handler := newSubscriptionChangedHandler(writer, logger.New(logger.Options{ServiceName: "handler-test"}))

	env := types.Envelope{
		EventID:    uuid.NewString(),
		EventType:  enums.AnalyticsEventSubscriptionChanged,
		OccurredAt: time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC),
	}
	event := &payloads.SubscriptionChangedEvent{
		UserID:       uuid.New(),
		FromTier:     enums.PlanTierFree,
		ToTier:       enums.PlanTierPro,
		Status:       enums.SubscriptionStatusActive,
		IsSubscribed: true,
		DailyLimit:   100,
	}

	if err := handler.Handle(context.Background(), env, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.FromTier == nil || *row.FromTier != string(enums.PlanTierFree) {
		t.Fatalf("unexpected from tier: %v", row.FromTier)
	}
	if row.ToTier == nil || *row.ToTier != string(enums.PlanTierPro) {
		t.Fatalf("unexpected to tier: %v", row.ToTier)
	}
	if row.DailyLimit == nil || *row.DailyLimit != 100 {
		t.Fatalf("unexpected daily limit: %v", row.DailyLimit)
	}
}

func TestOfferClaimedHandlerBuildsRow(t *testing.T) {
	writer := &fakeWriter{}
	handler := newOfferClaimedHandler(writer, logger.New(logger.Options{ServiceName: "handler-test"}))

	offerID := uuid.New()
	claimedAt := time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC)
	env := types.Envelope{
		EventID:   uuid.NewString(),
		EventType: enums.AnalyticsEventOfferClaimed,
	}
	event := &payloads.OfferClaimedEvent{
		OfferID:   offerID,
		UserID:    uuid.New(),
		OfferType: enums.OfferTypeCreditBonus,
		ClaimedAt: claimedAt,
	}

	if err := handler.Handle(context.Background(), env, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.inserted) != 1 {
		t.Fatalf("expected one row, got %d", len(writer.inserted))
	}
	row := writer.inserted[0]
	if row.OfferID == nil || *row.OfferID != offerID.String() {
		t.Fatalf("unexpected offer id: %v", row.OfferID)
	}
	if row.OfferType == nil || *row.OfferType != string(enums.OfferTypeCreditBonus) {
		t.Fatalf("unexpected offer type: %v", row.OfferType)
	}
	if !row.OccurredAt.Equal(claimedAt) {
		t.Fatalf("expected claimed_at as occurred_at, got %v", row.OccurredAt)
	}
}
