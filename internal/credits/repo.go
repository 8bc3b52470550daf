package credits

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
)

// Repository manages persistence for credit accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.CreditAccount) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
	ResetWindow(ctx context.Context, userID uuid.UUID, now time.Time) error
	ConsumeIfAvailable(ctx context.Context, userID uuid.UUID, amount int, now time.Time) (bool, error)
	SetAllowance(ctx context.Context, userID uuid.UUID, dailyLimit int, zeroUsage bool, now time.Time) error
	AddToAllowance(ctx context.Context, userID uuid.UUID, delta int, now time.Time) error
	SweepStale(ctx context.Context, dayStart time.Time, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credit account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.CreditAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ResetWindow zeroes the usage counter and stamps the watermark. Callers are
// expected to have decided the account is stale; re-running it on a fresh
// account is harmless but loses nothing either.
func (r *repository) ResetWindow(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"used_today":   0,
			"last_updated": now,
		}).Error
}

// ConsumeIfAvailable debits amount only when the allowance still covers it.
// The guard lives in the WHERE clause, so two racing consumers serialize on
// the row and the loser sees zero rows affected instead of a lost update.
func (r *repository) ConsumeIfAvailable(ctx context.Context, userID uuid.UUID, amount int, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ? AND used_today + ? <= daily_limit", userID, amount).
		Updates(map[string]any{
			"used_today":   gorm.Expr("used_today + ?", amount),
			"last_updated": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetAllowance(ctx context.Context, userID uuid.UUID, dailyLimit int, zeroUsage bool, now time.Time) error {
	updates := map[string]any{
		"daily_limit":  dailyLimit,
		"last_updated": now,
	}
	if zeroUsage {
		updates["used_today"] = 0
	}
	return r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
}

func (r *repository) AddToAllowance(ctx context.Context, userID uuid.UUID, delta int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"daily_limit":  gorm.Expr("daily_limit + ?", delta),
			"last_updated": now,
		}).Error
}

// SweepStale resets every account whose watermark predates the current day.
// Belt and braces alongside the lazy per-request reset; the cron worker runs
// it shortly after midnight UTC.
func (r *repository) SweepStale(ctx context.Context, dayStart time.Time, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("last_updated < ? AND used_today > 0", dayStart).
		Updates(map[string]any{
			"used_today":   0,
			"last_updated": now,
		})
	return result.RowsAffected, result.Error
}
