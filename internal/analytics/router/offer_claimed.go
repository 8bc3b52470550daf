package router

import (
	"context"
	"fmt"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

type offerClaimedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOfferClaimedHandler(writer Writer, logg *logger.Logger) Handler {
	return &offerClaimedHandler{writer: writer, logg: logg}
}

func (h *offerClaimedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OfferClaimedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for offer_claimed")
	}
	fields := map[string]any{
		"event_type": envelope.EventType,
		"user_id":    event.UserID,
		"offer_id":   event.OfferID,
		"offer_type": event.OfferType,
	}
	logCtx := h.logg.WithFields(ctx, fields)

	row, err := buildUsageRow(envelope, event.UserID.String(), event.ClaimedAt, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build usage row", err)
		return err
	}
	row.OfferID = stringPtr(event.OfferID.String())
	row.OfferType = stringPtr(string(event.OfferType))

	if err := h.writer.InsertUsage(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert usage row", err)
		return err
	}

	h.logg.Info(logCtx, "offer_claimed handler inserted usage row")
	return nil
}
