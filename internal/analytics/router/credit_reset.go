package router

import (
	"context"
	"fmt"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

type creditResetHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newCreditResetHandler(writer Writer, logg *logger.Logger) Handler {
	return &creditResetHandler{writer: writer, logg: logg}
}

func (h *creditResetHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.CreditResetEvent)
	if !ok {
		return fmt.Errorf("invalid payload for credit_reset")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"user_id":    event.UserID,
		"reset_at":   event.ResetAt,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildUsageRow(envelope, event.UserID.String(), event.ResetAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build usage row", err)
		return err
	}

	if err := h.writer.InsertUsage(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert usage row", err)
		return err
	}

	h.logg.Info(logCtx, "credit_reset handler inserted usage row")
	return nil
}
