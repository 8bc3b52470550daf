package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// CreditConsumedEvent is emitted for every successful debit at the gate.
type CreditConsumedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Amount     int       `json:"amount"`
	Remaining  int       `json:"remaining"`
	DailyLimit int       `json:"daily_limit"`
	Note       string    `json:"note,omitempty"`
	ConsumedAt time.Time `json:"consumed_at"`
}

// CreditGrantedEvent reports an administrative or promotional allowance bump.
type CreditGrantedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Amount     int       `json:"amount"`
	DailyLimit int       `json:"daily_limit"`
	Reason     string    `json:"reason,omitempty"`
}

// CreditResetEvent reports a usage counter being zeroed outside the lazy path.
type CreditResetEvent struct {
	UserID  uuid.UUID `json:"user_id"`
	ResetAt time.Time `json:"reset_at"`
}

// SubscriptionChangedEvent is emitted on every plan lifecycle transition.
type SubscriptionChangedEvent struct {
	UserID       uuid.UUID                `json:"user_id"`
	FromTier     enums.PlanTier           `json:"from_tier"`
	ToTier       enums.PlanTier           `json:"to_tier"`
	Status       enums.SubscriptionStatus `json:"status"`
	IsSubscribed bool                     `json:"is_subscribed"`
	DailyLimit   int                      `json:"daily_limit"`
	EndsAt       *time.Time               `json:"ends_at,omitempty"`
}

// OfferClaimedEvent is emitted when a claim row is successfully inserted.
type OfferClaimedEvent struct {
	OfferID   uuid.UUID       `json:"offer_id"`
	UserID    uuid.UUID       `json:"user_id"`
	OfferType enums.OfferType `json:"offer_type"`
	ClaimedAt time.Time       `json:"claimed_at"`
}

// UserSuspendedEvent reports an administrative suspension or reinstatement.
type UserSuspendedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Suspended bool      `json:"suspended"`
	Reason    string    `json:"reason,omitempty"`
}
