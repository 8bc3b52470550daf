package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
)

// DayTotal is one aggregated row of the usage history.
type DayTotal struct {
	Day         time.Time `json:"day"`
	PromptCount int       `json:"prompt_count"`
}

// Repository manages persistence for the derived per-day usage counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	IncrementDay(ctx context.Context, userID uuid.UUID, day time.Time, delta int) error
	TotalsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]DayTotal, error)
	TotalForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a usage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// IncrementDay upserts the (user, day) counter. Runs inside the same
// transaction as the credit debit it mirrors, so the derived count can never
// drift from the source of truth.
func (r *repository) IncrementDay(ctx context.Context, userID uuid.UUID, day time.Time, delta int) error {
	stat := models.UsageStat{
		UserID:      userID,
		Day:         day,
		PromptCount: delta,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]any{
				"prompt_count": gorm.Expr("usage_stats.prompt_count + ?", delta),
				"updated_at":   gorm.Expr("NOW()"),
			}),
		}).
		Create(&stat).Error
}

func (r *repository) TotalsSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]DayTotal, error) {
	var totals []DayTotal
	if err := r.db.WithContext(ctx).
		Model(&models.UsageStat{}).
		Select("day", "prompt_count").
		Where("user_id = ? AND day >= ?", userID, since).
		Order("day ASC").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repository) TotalForDay(ctx context.Context, userID uuid.UUID, day time.Time) (int, error) {
	var stat models.UsageStat
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		First(&stat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return stat.PromptCount, nil
}
