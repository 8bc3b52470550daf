package types

import "time"

// UsageQueryRequest carries the input parameters for usage analytics queries.
type UsageQueryRequest struct {
	Start time.Time
	End   time.Time
}

// TimeSeriesPoint describes a single date/value pair returned by the query service.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// LabelValue represents a top-N entry such as user or offer.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// UsageQueryResponse wraps the usage KPIs for the admin dashboard.
type UsageQueryResponse struct {
	ConsumedSeries []TimeSeriesPoint `json:"consumed"`
	ActiveUsers    []TimeSeriesPoint `json:"active_users"`
	TopConsumers   []LabelValue      `json:"top_consumers"`
	ClaimsByOffer  []LabelValue      `json:"claims_by_offer"`
	TotalConsumed  int64             `json:"total_consumed"`
}
