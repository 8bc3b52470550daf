package offers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	pkgdb "github.com/taskiq-ai/taskiq-backend/pkg/db"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

const claimUniqueConstraint = "idx_offer_claims_offer_user"

// defaultTrialDays applies when a trial offer does not set its own window.
const defaultTrialDays = 7

// OfferView is an offer enriched with per-user state for listing.
type OfferView struct {
	Offer   models.Offer `json:"offer"`
	Claimed bool         `json:"claimed"`
	Expired bool         `json:"expired"`
}

// Service grants one-time promotional benefits. Claim-once is enforced by the
// claims table's unique constraint, not a read-then-insert check, so racing
// claims cannot double-grant.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]OfferView, error)
	Claim(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error)
	Create(ctx context.Context, offer *models.Offer) error
	Update(ctx context.Context, offer *models.Offer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the offer service.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Plans   subscriptions.PlanRepository
	Subs    subscriptions.Repository
	Credits credits.Repository
	Audit   audit.Service
	Outbox  outboxEmitter
	Now     func() time.Time
}

type service struct {
	db      txRunner
	repo    Repository
	plans   subscriptions.PlanRepository
	subs    subscriptions.Repository
	credits credits.Repository
	audit   audit.Service
	outbox  outboxEmitter
	now     func() time.Time
}

// NewService builds the offer application service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("offer repository is required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan repository is required")
	}
	if params.Subs == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		db:      params.DB,
		repo:    params.Repo,
		plans:   params.Plans,
		subs:    params.Subs,
		credits: params.Credits,
		audit:   params.Audit,
		outbox:  params.Outbox,
		now:     now,
	}, nil
}

// ListForUser returns enabled offers flagged with the caller's claim state.
// Expired offers stay listed (flagged) so the UI can gray them out.
func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]OfferView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	enabled, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list offers")
	}

	claimed, err := s.repo.ClaimedOfferIDs(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list claims")
	}

	now := s.now().UTC()
	views := make([]OfferView, 0, len(enabled))
	for _, offer := range enabled {
		_, hasClaim := claimed[offer.ID]
		views = append(views, OfferView{
			Offer:   offer,
			Claimed: hasClaim,
			Expired: offer.ExpiresAt != nil && !offer.ExpiresAt.After(now),
		})
	}
	return views, nil
}

// Claim redeems the offer for the user: claim row, counter bump, and the
// type-specific benefit all land in one transaction.
func (s *service) Claim(ctx context.Context, offerID, userID uuid.UUID) (*models.Offer, error) {
	if offerID == uuid.Nil || userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer id and user id are required")
	}

	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offer")
	}
	if offer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}

	now := s.now().UTC()
	if !offer.Enabled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer is not active")
	}
	if offer.ExpiresAt != nil && !offer.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer has expired")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateClaim(ctx, &models.OfferClaim{OfferID: offerID, UserID: userID}); err != nil {
			if pkgdb.IsUniqueViolation(err, claimUniqueConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "offer already claimed")
			}
			return err
		}
		if err := repo.IncrementClaimed(ctx, offerID, now); err != nil {
			return err
		}
		if err := s.applyBenefit(ctx, tx, offer, userID, now); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  userID,
			Type:    enums.AuditTypeSuccess,
			Content: fmt.Sprintf("claimed offer %q (%s)", offer.Title, offer.Type),
		}); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOfferClaimed,
				AggregateType: enums.AggregateOffer,
				AggregateID:   offerID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data: payloads.OfferClaimedEvent{
					OfferID:   offerID,
					UserID:    userID,
					OfferType: offer.Type,
					ClaimedAt: now,
				},
				Version:    1,
				OccurredAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	offer.TotalClaimed++
	return offer, nil
}

func (s *service) applyBenefit(ctx context.Context, tx *gorm.DB, offer *models.Offer, userID uuid.UUID, now time.Time) error {
	switch offer.Type {
	case enums.OfferTypeCreditBonus:
		return s.credits.WithTx(tx).AddToAllowance(ctx, userID, offer.BonusCredits, now)
	case enums.OfferTypeTrial:
		return s.applyTrial(ctx, tx, offer, userID, now)
	case enums.OfferTypeDiscount, enums.OfferTypePromo:
		// Redeemed at checkout by the billing flow; the claim row is the grant.
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown offer type %q", offer.Type))
	}
}

func (s *service) applyTrial(ctx context.Context, tx *gorm.DB, offer *models.Offer, userID uuid.UUID, now time.Time) error {
	tier := enums.PlanTierPro
	if offer.TrialTier != nil {
		tier = *offer.TrialTier
	}
	plan, err := s.plans.WithTx(tx).FindByTier(ctx, tier)
	if err != nil {
		return err
	}
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("trial plan %q not found", tier))
	}

	days := offer.TrialDays
	if days <= 0 {
		days = defaultTrialDays
	}
	endsAt := now.AddDate(0, 0, days)

	current, err := s.subs.WithTx(tx).FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if current == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	if current.PlanTier.IsPaid() && current.Status.Entitles() {
		return pkgerrors.New(pkgerrors.CodeValidation, "trial offers apply to free accounts only")
	}

	next := &models.Subscription{
		ID:           current.ID,
		UserID:       userID,
		PlanTier:     tier,
		IsSubscribed: true,
		Status:       enums.SubscriptionStatusTrialing,
		StartedAt:    now,
		EndsAt:       &endsAt,
	}
	if err := s.subs.WithTx(tx).Upsert(ctx, next); err != nil {
		return err
	}
	return s.credits.WithTx(tx).SetAllowance(ctx, userID, plan.DailyLimit, false, now)
}

func (s *service) Create(ctx context.Context, offer *models.Offer) error {
	if offer == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer is required")
	}
	if offer.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer title is required")
	}
	if !offer.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid offer type %q", offer.Type))
	}
	if err := s.repo.Create(ctx, offer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create offer")
	}
	return nil
}

func (s *service) Update(ctx context.Context, offer *models.Offer) error {
	if offer == nil || offer.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}
	existing, err := s.repo.FindByID(ctx, offer.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load offer")
	}
	if existing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
	}
	if err := s.repo.Update(ctx, offer); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update offer")
	}
	return nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "offer id is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete offer")
	}
	return nil
}
