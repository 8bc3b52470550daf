package router

import (
	"fmt"
	"time"

	"github.com/taskiq-ai/taskiq-backend/internal/analytics/types"
	analyticswriter "github.com/taskiq-ai/taskiq-backend/internal/analytics/writer"
)

func buildUsageRow(envelope types.Envelope, userID string, occurred time.Time, payload any) (types.UsageEventRow, error) {
	if occurred.IsZero() {
		occurred = envelope.OccurredAt
	}

	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.UsageEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}

	return types.UsageEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: occurred.UTC(),
		UserID:     stringPtr(userID),
		Payload:    payloadJSON,
	}, nil
}
