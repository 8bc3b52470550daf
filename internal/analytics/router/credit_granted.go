package router

import (
	"context"
	"fmt"
	"time"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

type creditGrantedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCreditGrantedHandler(writer Writer, logg *logger.Logger) Handler {
	return &creditGrantedHandler{writer: writer, logg: logg}
}

func (h *creditGrantedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.CreditGrantedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for credit_granted")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"user_id":    event.UserID,
		"amount":     event.Amount,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildUsageRow(envelope, event.UserID.String(), time.Time{}, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build usage row", err)
		return err
	}
	row.Amount = int64Ptr(int64(event.Amount))
	row.DailyLimit = int64Ptr(int64(event.DailyLimit))

	if err := h.writer.InsertUsage(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert usage row", err)
		return err
	}

	h.logg.Info(logCtx, "credit_granted handler inserted usage row")
	return nil
}
