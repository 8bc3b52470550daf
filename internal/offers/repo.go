package offers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
)

// Repository persists offers and their claims.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	ListEnabled(ctx context.Context) ([]models.Offer, error)
	Update(ctx context.Context, offer *models.Offer) error
	Delete(ctx context.Context, id uuid.UUID) error
	CreateClaim(ctx context.Context, claim *models.OfferClaim) error
	IncrementClaimed(ctx context.Context, offerID uuid.UUID, now time.Time) error
	ClaimedOfferIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed offer repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListEnabled(ctx context.Context) ([]models.Offer, error) {
	var out []models.Offer
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) Update(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Save(offer).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Offer{}, "id = ?", id).Error
}

// CreateClaim inserts the claim row. The composite unique index on
// (offer_id, user_id) is what rejects a second claim; callers map the
// violation to a conflict.
func (r *repository) CreateClaim(ctx context.Context, claim *models.OfferClaim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

func (r *repository) IncrementClaimed(ctx context.Context, offerID uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", offerID).
		Updates(map[string]any{
			"total_claimed": gorm.Expr("total_claimed + 1"),
			"updated_at":    now,
		}).Error
}

func (r *repository) ClaimedOfferIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OfferClaim{}).
		Where("user_id = ?", userID).
		Pluck("offer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	claimed := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		claimed[id] = struct{}{}
	}
	return claimed, nil
}
