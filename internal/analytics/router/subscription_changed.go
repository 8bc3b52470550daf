package router

import (
	"context"
	"fmt"
	"time"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

type subscriptionChangedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newSubscriptionChangedHandler(writer Writer, logg *logger.Logger) Handler {
	return &subscriptionChangedHandler{writer: writer, logg: logg}
}

func (h *subscriptionChangedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.SubscriptionChangedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for subscription_changed")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"user_id":    event.UserID,
		"from_tier":  event.FromTier,
		"to_tier":    event.ToTier,
		"status":     event.Status,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildUsageRow(envelope, event.UserID.String(), time.Time{}, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build usage row", err)
		return err
	}
	row.FromTier = stringPtr(string(event.FromTier))
	row.ToTier = stringPtr(string(event.ToTier))
	row.DailyLimit = int64Ptr(int64(event.DailyLimit))

	if err := h.writer.InsertUsage(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert usage row", err)
		return err
	}

	h.logg.Info(logCtx, "subscription_changed handler inserted usage row")
	return nil
}
