package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

// Service moves users between plan tiers. Every transition writes the
// subscription row and the dependent credit allowance in one transaction, so
// the two entities can never drift apart on a partial failure.
type Service interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Upgrade(ctx context.Context, input UpgradeInput) (*models.Subscription, error)
	Cancel(ctx context.Context, userID uuid.UUID, reason string) (*models.Subscription, error)
	Suspend(ctx context.Context, userID uuid.UUID, reason string) error
	Unsuspend(ctx context.Context, userID uuid.UUID) error
	ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// UpgradeInput describes a plan change request.
type UpgradeInput struct {
	UserID               uuid.UUID
	Tier                 enums.PlanTier
	StripeSubscriptionID *string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userStatusStore interface {
	SetStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.UserStatus) error
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Plans   PlanRepository
	Credits credits.Repository
	Users   userStatusStore
	Audit   audit.Service
	Outbox  outboxEmitter
	Now     func() time.Time
}

type service struct {
	db      txRunner
	repo    Repository
	plans   PlanRepository
	credits credits.Repository
	users   userStatusStore
	audit   audit.Service
	outbox  outboxEmitter
	now     func() time.Time
}

// NewService builds a subscription lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repository is required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan repository is required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit repository is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
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
		credits: params.Credits,
		users:   params.Users,
		audit:   params.Audit,
		outbox:  params.Outbox,
		now:     now,
	}, nil
}

func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	return s.plans.ListActive(ctx)
}

func (s *service) GetForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// Upgrade moves the user onto the target tier. Upgrading to free is routed
// through Cancel so there is exactly one downgrade path.
func (s *service) Upgrade(ctx context.Context, input UpgradeInput) (*models.Subscription, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid plan tier %q", input.Tier))
	}
	if input.Tier == enums.PlanTierFree {
		return s.Cancel(ctx, input.UserID, "downgraded to free")
	}

	plan, err := s.loadPlan(ctx, input.Tier)
	if err != nil {
		return nil, err
	}

	current, err := s.GetForUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	endsAt := addInterval(now, plan.Interval)
	next := &models.Subscription{
		ID:                   current.ID,
		UserID:               input.UserID,
		PlanTier:             plan.Tier,
		IsSubscribed:         true,
		Status:               enums.SubscriptionStatusActive,
		StartedAt:            now,
		EndsAt:               &endsAt,
		StripeSubscriptionID: input.StripeSubscriptionID,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, next); err != nil {
			return err
		}
		if err := s.credits.WithTx(tx).SetAllowance(ctx, input.UserID, plan.DailyLimit, false, now); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  input.UserID,
			Type:    enums.AuditTypeSuccess,
			Content: fmt.Sprintf("subscription upgraded to %s (daily limit %d)", plan.Tier, plan.DailyLimit),
			Premium: true,
		}); err != nil {
			return err
		}
		return s.emitChange(ctx, tx, next, current.PlanTier, plan.DailyLimit, now)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Cancel forces the account back to the free tier and resets the allowance.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, reason string) (*models.Subscription, error) {
	current, err := s.GetForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	freePlan, err := s.loadPlan(ctx, enums.PlanTierFree)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next := &models.Subscription{
		ID:           current.ID,
		UserID:       userID,
		PlanTier:     enums.PlanTierFree,
		IsSubscribed: false,
		Status:       enums.SubscriptionStatusCanceled,
		StartedAt:    current.StartedAt,
		EndsAt:       &now,
		CanceledAt:   &now,
	}
	if reason != "" {
		next.CancelReason = &reason
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Upsert(ctx, next); err != nil {
			return err
		}
		if err := s.credits.WithTx(tx).SetAllowance(ctx, userID, freePlan.DailyLimit, true, now); err != nil {
			return err
		}
		content := "subscription canceled"
		if reason != "" {
			content = fmt.Sprintf("subscription canceled: %s", reason)
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  userID,
			Type:    enums.AuditTypeInfo,
			Content: content,
		}); err != nil {
			return err
		}
		return s.emitChange(ctx, tx, next, current.PlanTier, freePlan.DailyLimit, now)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// Suspend locks the account: zero allowance, no entitlements, user flagged.
func (s *service) Suspend(ctx context.Context, userID uuid.UUID, reason string) error {
	current, err := s.GetForUser(ctx, userID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	next := *current
	next.IsSubscribed = false
	next.Status = enums.SubscriptionStatusSuspended
	next.EndsAt = &now

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.SetStatusTx(ctx, tx, userID, enums.UserStatusSuspended); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Upsert(ctx, &next); err != nil {
			return err
		}
		if err := s.credits.WithTx(tx).SetAllowance(ctx, userID, 0, true, now); err != nil {
			return err
		}
		content := "account suspended"
		if reason != "" {
			content = fmt.Sprintf("account suspended: %s", reason)
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  userID,
			Type:    enums.AuditTypeWarning,
			Content: content,
		}); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventUserSuspended,
				AggregateType: enums.AggregateUser,
				AggregateID:   userID,
				Data:          payloads.UserSuspendedEvent{UserID: userID, Suspended: true, Reason: reason},
				Version:       1,
				OccurredAt:    now,
			})
		}
		return nil
	})
}

// Unsuspend reinstates the account. The allowance is derived from the plan
// still stored on the subscription row, not a fixed default, so a paid user
// comes back with the limit they were entitled to.
func (s *service) Unsuspend(ctx context.Context, userID uuid.UUID) error {
	current, err := s.GetForUser(ctx, userID)
	if err != nil {
		return err
	}

	plan, err := s.loadPlan(ctx, current.PlanTier)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	next := *current
	stillPaid := current.PlanTier.IsPaid() && current.EndsAt != nil && current.EndsAt.After(now)
	if stillPaid {
		next.Status = enums.SubscriptionStatusActive
		next.IsSubscribed = true
	} else {
		next.PlanTier = enums.PlanTierFree
		next.Status = enums.SubscriptionStatusActive
		next.IsSubscribed = false
		next.EndsAt = nil
	}

	allowance := plan.DailyLimit
	if !stillPaid {
		freePlan, err := s.loadPlan(ctx, enums.PlanTierFree)
		if err != nil {
			return err
		}
		allowance = freePlan.DailyLimit
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.users.SetStatusTx(ctx, tx, userID, enums.UserStatusActive); err != nil {
			return err
		}
		if err := s.repo.WithTx(tx).Upsert(ctx, &next); err != nil {
			return err
		}
		if err := s.credits.WithTx(tx).SetAllowance(ctx, userID, allowance, true, now); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  userID,
			Type:    enums.AuditTypeInfo,
			Content: fmt.Sprintf("account reinstated on %s (daily limit %d)", next.PlanTier, allowance),
		}); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventUserUnsuspended,
				AggregateType: enums.AggregateUser,
				AggregateID:   userID,
				Data:          payloads.UserSuspendedEvent{UserID: userID, Suspended: false},
				Version:       1,
				OccurredAt:    now,
			})
		}
		return nil
	})
}

// ExpireDue downgrades entitling subscriptions whose paid window lapsed.
// Used by the cron worker; each subscription is settled in its own
// transaction so one bad row cannot wedge the sweep.
func (s *service) ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	expired, err := s.repo.ListExpired(ctx, asOf, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, sub := range expired {
		if _, err := s.Cancel(ctx, sub.UserID, "subscription expired"); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (s *service) loadPlan(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	plan, err := s.plans.FindByTier(ctx, tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("plan %q not found", tier))
	}
	return plan, nil
}

func (s *service) emitChange(ctx context.Context, tx *gorm.DB, sub *models.Subscription, fromTier enums.PlanTier, dailyLimit int, now time.Time) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionChanged,
		AggregateType: enums.AggregateSubscription,
		AggregateID:   sub.UserID,
		Actor:         &outbox.ActorRef{UserID: sub.UserID},
		Data: payloads.SubscriptionChangedEvent{
			UserID:       sub.UserID,
			FromTier:     fromTier,
			ToTier:       sub.PlanTier,
			Status:       sub.Status,
			IsSubscribed: sub.IsSubscribed,
			DailyLimit:   dailyLimit,
			EndsAt:       sub.EndsAt,
		},
		Version:    1,
		OccurredAt: now,
	})
}

func addInterval(from time.Time, interval enums.BillingInterval) time.Time {
	if interval == enums.BillingIntervalYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}
