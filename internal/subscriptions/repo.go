package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Repository manages persistence for subscription rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", stripeID).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// Upsert writes the whole lifecycle state keyed on user_id, so callers can
// express every transition as one statement inside their transaction.
func (r *repository) Upsert(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"plan_tier",
				"is_subscribed",
				"status",
				"started_at",
				"ends_at",
				"stripe_subscription_id",
				"canceled_at",
				"cancel_reason",
				"updated_at",
			}),
		}).
		Create(sub).Error
}

// ListExpired returns entitling subscriptions whose paid window has lapsed.
func (r *repository) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.WithContext(ctx).
		Where("ends_at IS NOT NULL AND ends_at <= ?", asOf).
		Where("status IN ?", []enums.SubscriptionStatus{
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusTrialing,
		}).
		Where("plan_tier <> ?", enums.PlanTierFree).
		Order("ends_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}
