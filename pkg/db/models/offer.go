package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Offer is a promotional grant claimable at most once per user.
type Offer struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title        string          `gorm:"column:title;not null"`
	Description  *string         `gorm:"column:description"`
	Type         enums.OfferType `gorm:"column:type;type:offer_type_enum;not null"`
	BonusCredits int             `gorm:"column:bonus_credits;not null;default:0"`
	TrialTier    *enums.PlanTier `gorm:"column:trial_tier;type:plan_tier_enum"`
	TrialDays    int             `gorm:"column:trial_days;not null;default:0"`
	Enabled      bool            `gorm:"column:enabled;not null;default:true"`
	ExpiresAt    *time.Time      `gorm:"column:expires_at"`
	TotalClaimed int             `gorm:"column:total_claimed;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// OfferClaim records that a user redeemed an offer. The composite unique
// index is what enforces claim-once; inserts racing on the same pair lose
// with a constraint violation, never a double grant.
type OfferClaim struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID   uuid.UUID `gorm:"column:offer_id;type:uuid;not null;uniqueIndex:idx_offer_claims_offer_user"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_offer_claims_offer_user"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
