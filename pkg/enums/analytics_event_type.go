package enums

import "fmt"

// AnalyticsEventType is the canonical event_type for analytics routing.
type AnalyticsEventType string

const (
	AnalyticsEventCreditConsumed      AnalyticsEventType = "credit_consumed"
	AnalyticsEventCreditGranted       AnalyticsEventType = "credit_granted"
	AnalyticsEventCreditReset         AnalyticsEventType = "credit_reset"
	AnalyticsEventSubscriptionChanged AnalyticsEventType = "subscription_changed"
	AnalyticsEventOfferClaimed        AnalyticsEventType = "offer_claimed"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventCreditConsumed,
	AnalyticsEventCreditGranted,
	AnalyticsEventCreditReset,
	AnalyticsEventSubscriptionChanged,
	AnalyticsEventOfferClaimed,
}

// IsValid reports whether the value matches the canonical analytics event_type enum.
func (a AnalyticsEventType) IsValid() bool {
	for _, candidate := range validAnalyticsEventTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAnalyticsEventType converts raw input into an AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	for _, candidate := range validAnalyticsEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid analytics event type %q", value)
}
