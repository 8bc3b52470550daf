package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// UsageEventRow mirrors the usage_events BigQuery schema.
type UsageEventRow struct {
	EventID    string             `bigquery:"event_id"`
	EventType  string             `bigquery:"event_type"`
	OccurredAt time.Time          `bigquery:"occurred_at"`
	UserID     *string            `bigquery:"user_id"`
	Amount     *int64             `bigquery:"amount"`
	Remaining  *int64             `bigquery:"remaining"`
	DailyLimit *int64             `bigquery:"daily_limit"`
	FromTier   *string            `bigquery:"from_tier"`
	ToTier     *string            `bigquery:"to_tier"`
	OfferID    *string            `bigquery:"offer_id"`
	OfferType  *string            `bigquery:"offer_type"`
	Payload    cbigquery.NullJSON `bigquery:"payload"`
}
