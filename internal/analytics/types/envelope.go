package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Envelope is the analytics message shape published on the usage topic. The
// outbox publisher produces it; the analytics worker decodes it and routes
// rows into BigQuery.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.AnalyticsEventType  `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// PayloadMap decodes the raw payload for keyed access. Empty or null payloads
// come back as an empty map rather than nil so routers can index freely.
func (e Envelope) PayloadMap() (map[string]any, error) {
	if len(bytes.TrimSpace(e.Payload)) == 0 {
		return map[string]any{}, nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
