package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateCreditAccount OutboxAggregateType = "credit_account"
	AggregateSubscription  OutboxAggregateType = "subscription"
	AggregateOffer         OutboxAggregateType = "offer"
	AggregateUser          OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateCreditAccount,
	AggregateSubscription,
	AggregateOffer,
	AggregateUser,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventCreditConsumed      OutboxEventType = "credit_consumed"
	EventCreditGranted       OutboxEventType = "credit_granted"
	EventCreditReset         OutboxEventType = "credit_reset"
	EventSubscriptionChanged OutboxEventType = "subscription_changed"
	EventOfferClaimed        OutboxEventType = "offer_claimed"
	EventUserSuspended       OutboxEventType = "user_suspended"
	EventUserUnsuspended     OutboxEventType = "user_unsuspended"
)

var validOutboxEventTypes = []OutboxEventType{
	EventCreditConsumed,
	EventCreditGranted,
	EventCreditReset,
	EventSubscriptionChanged,
	EventOfferClaimed,
	EventUserSuspended,
	EventUserUnsuspended,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
