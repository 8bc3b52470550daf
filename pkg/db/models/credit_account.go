package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditAccount tracks the per-day usage allowance for a single user.
// UsedToday only counts consumption since the start of the current calendar
// day (UTC); LastUpdated is the watermark the daily reset compares against.
type CreditAccount struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DailyLimit  int       `gorm:"column:daily_limit;not null;default:10"`
	UsedToday   int       `gorm:"column:used_today;not null;default:0"`
	LastUpdated time.Time `gorm:"column:last_updated;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Remaining returns the balance still consumable today. Administrative edits
// can push DailyLimit below UsedToday, so clamp at zero.
func (c CreditAccount) Remaining() int {
	remaining := c.DailyLimit - c.UsedToday
	if remaining < 0 {
		return 0
	}
	return remaining
}
