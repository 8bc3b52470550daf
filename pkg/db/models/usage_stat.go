package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageStat is the derived per-day prompt counter behind the usage dashboard.
// It is written in the same transaction as the credit debit it mirrors and is
// never treated as authoritative.
type UsageStat struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_usage_stats_user_day"`
	Day         time.Time `gorm:"column:day;type:date;not null;uniqueIndex:idx_usage_stats_user_day"`
	PromptCount int       `gorm:"column:prompt_count;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
