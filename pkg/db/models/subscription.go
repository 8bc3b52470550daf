package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Subscription persists the plan state for a single user, 1:1.
// IsSubscribed is kept consistent with (PlanTier, Status) inside the same
// transaction as every lifecycle write; it is never updated on its own.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	PlanTier             enums.PlanTier           `gorm:"column:plan_tier;type:plan_tier_enum;not null;default:'free'"`
	IsSubscribed         bool                     `gorm:"column:is_subscribed;not null;default:false"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'active'"`
	StartedAt            time.Time                `gorm:"column:started_at;not null"`
	EndsAt               *time.Time               `gorm:"column:ends_at"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	CancelReason         *string                  `gorm:"column:cancel_reason"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
