package router

import (
	"context"
	"fmt"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

type creditConsumedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCreditConsumedHandler(writer Writer, logg *logger.Logger) Handler {
	return &creditConsumedHandler{writer: writer, logg: logg}
}

func (h *creditConsumedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.CreditConsumedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for credit_consumed")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"user_id":    event.UserID,
		"amount":     event.Amount,
		"remaining":  event.Remaining,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildUsageRow(envelope, event.UserID.String(), event.ConsumedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build usage row", err)
		return err
	}
	row.Amount = int64Ptr(int64(event.Amount))
	row.Remaining = int64Ptr(int64(event.Remaining))
	row.DailyLimit = int64Ptr(int64(event.DailyLimit))

	if err := h.writer.InsertUsage(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert usage row", err)
		return err
	}

	h.logg.Info(logCtx, "credit_consumed handler inserted usage row")
	return nil
}
