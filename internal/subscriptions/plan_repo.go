package subscriptions

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// PlanRepository reads the canonical tier catalog.
type PlanRepository interface {
	WithTx(tx *gorm.DB) PlanRepository
	FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error)
	ListActive(ctx context.Context) ([]models.Plan, error)
}

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository returns a plan repository bound to the provided database.
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) WithTx(tx *gorm.DB) PlanRepository {
	if tx == nil {
		return r
	}
	return &planRepository{db: tx}
}

func (r *planRepository) FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.WithContext(ctx).Where("tier = ?", tier).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.PlanStatusActive).
		Order("daily_limit ASC").
		Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
