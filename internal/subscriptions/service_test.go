package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeSubRepo struct {
	byUser map[uuid.UUID]*models.Subscription
}

func (f *fakeSubRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeSubRepo) Create(ctx context.Context, sub *models.Subscription) error {
	f.byUser[sub.UserID] = sub
	return nil
}

func (f *fakeSubRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, ok := f.byUser[userID]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeSubRepo) FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	for _, sub := range f.byUser {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == stripeID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSubRepo) Upsert(ctx context.Context, sub *models.Subscription) error {
	copied := *sub
	f.byUser[sub.UserID] = &copied
	return nil
}

func (f *fakeSubRepo) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range f.byUser {
		if sub.PlanTier != enums.PlanTierFree && sub.Status.Entitles() && sub.EndsAt != nil && !sub.EndsAt.After(asOf) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

type fakePlanRepo struct {
	plans map[enums.PlanTier]*models.Plan
}

func (f *fakePlanRepo) WithTx(tx *gorm.DB) PlanRepository { return f }

func (f *fakePlanRepo) FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	return f.plans[tier], nil
}

func (f *fakePlanRepo) ListActive(ctx context.Context) ([]models.Plan, error) {
	var out []models.Plan
	for _, plan := range f.plans {
		out = append(out, *plan)
	}
	return out, nil
}

type fakeCreditStore struct {
	account *models.CreditAccount
}

func (f *fakeCreditStore) WithTx(tx *gorm.DB) credits.Repository { return f }

func (f *fakeCreditStore) Create(ctx context.Context, account *models.CreditAccount) error {
	f.account = account
	return nil
}

func (f *fakeCreditStore) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	return f.account, nil
}

func (f *fakeCreditStore) ResetWindow(ctx context.Context, userID uuid.UUID, now time.Time) error {
	f.account.UsedToday = 0
	f.account.LastUpdated = now
	return nil
}

func (f *fakeCreditStore) ConsumeIfAvailable(ctx context.Context, userID uuid.UUID, amount int, now time.Time) (bool, error) {
	return false, nil
}

func (f *fakeCreditStore) SetAllowance(ctx context.Context, userID uuid.UUID, dailyLimit int, zeroUsage bool, now time.Time) error {
	f.account.DailyLimit = dailyLimit
	if zeroUsage {
		f.account.UsedToday = 0
	}
	f.account.LastUpdated = now
	return nil
}

func (f *fakeCreditStore) AddToAllowance(ctx context.Context, userID uuid.UUID, delta int, now time.Time) error {
	f.account.DailyLimit += delta
	return nil
}

func (f *fakeCreditStore) SweepStale(ctx context.Context, dayStart time.Time, now time.Time) (int64, error) {
	return 0, nil
}

type fakeUserStore struct {
	statuses map[uuid.UUID]enums.UserStatus
}

func (f *fakeUserStore) SetStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.UserStatus) error {
	if f.statuses == nil {
		f.statuses = map[uuid.UUID]enums.UserStatus{}
	}
	f.statuses[id] = status
	return nil
}

type fakeAuditService struct {
	entries []audit.RecordInput
}

func (f *fakeAuditService) Record(ctx context.Context, tx *gorm.DB, input audit.RecordInput) (*models.AuditEntry, error) {
	f.entries = append(f.entries, input)
	return &models.AuditEntry{}, nil
}

func (f *fakeAuditService) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	return nil, nil
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fixture struct {
	svc     Service
	subs    *fakeSubRepo
	credits *fakeCreditStore
	users   *fakeUserStore
	audit   *fakeAuditService
	outbox  *fakeOutbox
	now     time.Time
}

func defaultPlans() map[enums.PlanTier]*models.Plan {
	return map[enums.PlanTier]*models.Plan{
		enums.PlanTierFree:       {Tier: enums.PlanTierFree, DailyLimit: 10, Interval: enums.BillingIntervalMonthly, IsDefault: true},
		enums.PlanTierPro:        {Tier: enums.PlanTierPro, DailyLimit: 100, Interval: enums.BillingIntervalMonthly},
		enums.PlanTierEnterprise: {Tier: enums.PlanTierEnterprise, DailyLimit: 1000, Interval: enums.BillingIntervalYearly},
	}
}

func newFixture(t *testing.T, sub *models.Subscription, account *models.CreditAccount) fixture {
	t.Helper()

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	subs := &fakeSubRepo{byUser: map[uuid.UUID]*models.Subscription{sub.UserID: sub}}
	creditStore := &fakeCreditStore{account: account}
	userStore := &fakeUserStore{}
	auditSvc := &fakeAuditService{}
	ob := &fakeOutbox{}

	svc, err := NewService(ServiceParams{
		DB:      fakeTxRunner{},
		Repo:    subs,
		Plans:   &fakePlanRepo{plans: defaultPlans()},
		Credits: creditStore,
		Users:   userStore,
		Audit:   auditSvc,
		Outbox:  ob,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewService returned unexpected error: %v", err)
	}
	return fixture{svc: svc, subs: subs, credits: creditStore, users: userStore, audit: auditSvc, outbox: ob, now: now}
}

func proSubscription(userID uuid.UUID, now time.Time) *models.Subscription {
	endsAt := now.AddDate(0, 1, 0)
	return &models.Subscription{
		ID:           uuid.New(),
		UserID:       userID,
		PlanTier:     enums.PlanTierPro,
		IsSubscribed: true,
		Status:       enums.SubscriptionStatusActive,
		StartedAt:    now.AddDate(0, 0, -10),
		EndsAt:       &endsAt,
	}
}

func TestCancel_ResetsAllowanceToFree(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, proSubscription(userID, now), &models.CreditAccount{UserID: userID, DailyLimit: 100, UsedToday: 40})

	sub, err := f.svc.Cancel(context.Background(), userID, "too expensive")
	if err != nil {
		t.Fatalf("Cancel returned unexpected error: %v", err)
	}
	if sub.PlanTier != enums.PlanTierFree || sub.IsSubscribed {
		t.Fatalf("expected free unsubscribed state, got %+v", sub)
	}
	if f.credits.account.DailyLimit != 10 || f.credits.account.UsedToday != 0 {
		t.Fatalf("expected allowance 10/0, got %d/%d", f.credits.account.DailyLimit, f.credits.account.UsedToday)
	}
	stored := f.subs.byUser[userID]
	if stored.CancelReason == nil || *stored.CancelReason != "too expensive" {
		t.Fatalf("expected cancel reason persisted, got %+v", stored.CancelReason)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventSubscriptionChanged {
		t.Fatalf("expected subscription_changed event, got %+v", f.outbox.events)
	}
}

func TestUpgrade_SetsPlanAndAllowanceTogether(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	free := &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanTier:  enums.PlanTierFree,
		Status:    enums.SubscriptionStatusActive,
		StartedAt: now.AddDate(0, -2, 0),
	}
	f := newFixture(t, free, &models.CreditAccount{UserID: userID, DailyLimit: 10, UsedToday: 4})

	stripeID := "sub_123"
	sub, err := f.svc.Upgrade(context.Background(), UpgradeInput{
		UserID:               userID,
		Tier:                 enums.PlanTierPro,
		StripeSubscriptionID: &stripeID,
	})
	if err != nil {
		t.Fatalf("Upgrade returned unexpected error: %v", err)
	}
	if sub.PlanTier != enums.PlanTierPro || !sub.IsSubscribed {
		t.Fatalf("expected subscribed pro state, got %+v", sub)
	}
	if sub.EndsAt == nil || !sub.EndsAt.Equal(now.AddDate(0, 1, 0)) {
		t.Fatalf("expected ends_at one month out, got %v", sub.EndsAt)
	}
	if f.credits.account.DailyLimit != 100 {
		t.Fatalf("expected daily limit 100, got %d", f.credits.account.DailyLimit)
	}
	if f.credits.account.UsedToday != 4 {
		t.Fatalf("expected usage preserved on upgrade, got %d", f.credits.account.UsedToday)
	}
}

func TestUpgrade_YearlyPlanExtendsOneYear(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, proSubscription(userID, now), &models.CreditAccount{UserID: userID, DailyLimit: 100})

	sub, err := f.svc.Upgrade(context.Background(), UpgradeInput{UserID: userID, Tier: enums.PlanTierEnterprise})
	if err != nil {
		t.Fatalf("Upgrade returned unexpected error: %v", err)
	}
	if sub.EndsAt == nil || !sub.EndsAt.Equal(now.AddDate(1, 0, 0)) {
		t.Fatalf("expected ends_at one year out, got %v", sub.EndsAt)
	}
	if f.credits.account.DailyLimit != 1000 {
		t.Fatalf("expected daily limit 1000, got %d", f.credits.account.DailyLimit)
	}
}

func TestUpgrade_ToFreeRoutesThroughCancel(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, proSubscription(userID, now), &models.CreditAccount{UserID: userID, DailyLimit: 100, UsedToday: 12})

	sub, err := f.svc.Upgrade(context.Background(), UpgradeInput{UserID: userID, Tier: enums.PlanTierFree})
	if err != nil {
		t.Fatalf("Upgrade returned unexpected error: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled status, got %s", sub.Status)
	}
	if f.credits.account.DailyLimit != 10 || f.credits.account.UsedToday != 0 {
		t.Fatalf("expected free allowance reset, got %d/%d", f.credits.account.DailyLimit, f.credits.account.UsedToday)
	}
}

func TestUpgrade_RejectsInvalidTier(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, proSubscription(userID, now), &models.CreditAccount{UserID: userID, DailyLimit: 100})

	_, err := f.svc.Upgrade(context.Background(), UpgradeInput{UserID: userID, Tier: enums.PlanTier("platinum")})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestSuspend_LocksAccount(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, proSubscription(userID, now), &models.CreditAccount{UserID: userID, DailyLimit: 100, UsedToday: 30})

	if err := f.svc.Suspend(context.Background(), userID, "chargeback"); err != nil {
		t.Fatalf("Suspend returned unexpected error: %v", err)
	}
	if f.users.statuses[userID] != enums.UserStatusSuspended {
		t.Fatalf("expected user suspended, got %s", f.users.statuses[userID])
	}
	if f.credits.account.DailyLimit != 0 || f.credits.account.UsedToday != 0 {
		t.Fatalf("expected zeroed allowance, got %d/%d", f.credits.account.DailyLimit, f.credits.account.UsedToday)
	}
	stored := f.subs.byUser[userID]
	if stored.IsSubscribed || stored.Status != enums.SubscriptionStatusSuspended {
		t.Fatalf("expected suspended subscription, got %+v", stored)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Type != enums.AuditTypeWarning {
		t.Fatalf("expected warning audit entry, got %+v", f.audit.entries)
	}
}

func TestUnsuspend_RestoresPlanDerivedAllowance(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.AddDate(0, 0, 14)
	suspended := &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanTier:  enums.PlanTierPro,
		Status:    enums.SubscriptionStatusSuspended,
		StartedAt: now.AddDate(0, 0, -16),
		EndsAt:    &endsAt,
	}
	f := newFixture(t, suspended, &models.CreditAccount{UserID: userID, DailyLimit: 0, UsedToday: 0})

	if err := f.svc.Unsuspend(context.Background(), userID); err != nil {
		t.Fatalf("Unsuspend returned unexpected error: %v", err)
	}
	if f.users.statuses[userID] != enums.UserStatusActive {
		t.Fatalf("expected user active, got %s", f.users.statuses[userID])
	}
	if f.credits.account.DailyLimit != 100 {
		t.Fatalf("expected plan-derived allowance 100, got %d", f.credits.account.DailyLimit)
	}
	stored := f.subs.byUser[userID]
	if !stored.IsSubscribed || stored.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected reinstated pro subscription, got %+v", stored)
	}
}

func TestUnsuspend_LapsedPaidFallsBackToFree(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.AddDate(0, 0, -2)
	suspended := &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		PlanTier:  enums.PlanTierPro,
		Status:    enums.SubscriptionStatusSuspended,
		StartedAt: now.AddDate(0, -2, 0),
		EndsAt:    &endsAt,
	}
	f := newFixture(t, suspended, &models.CreditAccount{UserID: userID, DailyLimit: 0, UsedToday: 0})

	if err := f.svc.Unsuspend(context.Background(), userID); err != nil {
		t.Fatalf("Unsuspend returned unexpected error: %v", err)
	}
	if f.credits.account.DailyLimit != 10 {
		t.Fatalf("expected free allowance 10, got %d", f.credits.account.DailyLimit)
	}
	stored := f.subs.byUser[userID]
	if stored.IsSubscribed || stored.PlanTier != enums.PlanTierFree {
		t.Fatalf("expected free fallback, got %+v", stored)
	}
}

func TestExpireDue_DowngradesLapsedSubscriptions(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.AddDate(0, 0, -1)
	lapsed := proSubscription(userID, now)
	lapsed.EndsAt = &endsAt
	f := newFixture(t, lapsed, &models.CreditAccount{UserID: userID, DailyLimit: 100, UsedToday: 9})

	processed, err := f.svc.ExpireDue(context.Background(), now, 100)
	if err != nil {
		t.Fatalf("ExpireDue returned unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	stored := f.subs.byUser[userID]
	if stored.PlanTier != enums.PlanTierFree || stored.Status != enums.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled free subscription, got %+v", stored)
	}
	if f.credits.account.DailyLimit != 10 || f.credits.account.UsedToday != 0 {
		t.Fatalf("expected free allowance reset, got %d/%d", f.credits.account.DailyLimit, f.credits.account.UsedToday)
	}
}

func TestGetForUser_Missing(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, proSubscription(userID, now), &models.CreditAccount{UserID: userID, DailyLimit: 100})

	_, err := f.svc.GetForUser(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
