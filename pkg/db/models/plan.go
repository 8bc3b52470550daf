package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Plan is the canonical tier definition: one row per PlanTier, carrying the
// daily credit allowance and billing terms. Seeded by migration, edited only
// through the admin surface.
type Plan struct {
	Tier       enums.PlanTier        `gorm:"column:tier;type:plan_tier_enum;primaryKey"`
	Name       string                `gorm:"column:name;not null"`
	Status     enums.PlanStatus      `gorm:"column:status;type:plan_status_enum;not null;default:'active'"`
	DailyLimit int                   `gorm:"column:daily_limit;not null"`
	Interval   enums.BillingInterval `gorm:"column:interval;type:billing_interval_enum;not null;default:'monthly'"`
	Price      decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Currency   string                `gorm:"column:currency;not null;default:'USD'"`
	TrialDays  int                   `gorm:"column:trial_days;not null;default:0"`
	IsDefault  bool                  `gorm:"column:is_default;not null;default:false"`
	// StripePriceID is nil for tiers that are never billed (the free tier).
	StripePriceID *string        `gorm:"column:stripe_price_id"`
	Features      pq.StringArray `gorm:"column:features;type:text[];not null;default:ARRAY[]::text[]"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
