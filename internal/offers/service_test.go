package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type claimKey struct {
	offerID uuid.UUID
	userID  uuid.UUID
}

type fakeOfferRepo struct {
	offers map[uuid.UUID]*models.Offer
	claims map[claimKey]struct{}
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{
		offers: map[uuid.UUID]*models.Offer{},
		claims: map[claimKey]struct{}{},
	}
}

func (f *fakeOfferRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOfferRepo) Create(ctx context.Context, offer *models.Offer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeOfferRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, ok := f.offers[id]
	if !ok {
		return nil, nil
	}
	copied := *offer
	return &copied, nil
}

func (f *fakeOfferRepo) ListEnabled(ctx context.Context) ([]models.Offer, error) {
	var out []models.Offer
	for _, offer := range f.offers {
		if offer.Enabled {
			out = append(out, *offer)
		}
	}
	return out, nil
}

func (f *fakeOfferRepo) Update(ctx context.Context, offer *models.Offer) error {
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeOfferRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.offers, id)
	return nil
}

// CreateClaim mirrors the unique constraint: a duplicate pair fails with the
// same message shape gorm surfaces from Postgres.
func (f *fakeOfferRepo) CreateClaim(ctx context.Context, claim *models.OfferClaim) error {
	key := claimKey{offerID: claim.OfferID, userID: claim.UserID}
	if _, exists := f.claims[key]; exists {
		return errors.New(`duplicate key value violates unique constraint "idx_offer_claims_offer_user"`)
	}
	f.claims[key] = struct{}{}
	return nil
}

func (f *fakeOfferRepo) IncrementClaimed(ctx context.Context, offerID uuid.UUID, now time.Time) error {
	f.offers[offerID].TotalClaimed++
	return nil
}

func (f *fakeOfferRepo) ClaimedOfferIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	out := map[uuid.UUID]struct{}{}
	for key := range f.claims {
		if key.userID == userID {
			out[key.offerID] = struct{}{}
		}
	}
	return out, nil
}

type fakePlanRepo struct {
	plans map[enums.PlanTier]*models.Plan
}

func (f *fakePlanRepo) WithTx(tx *gorm.DB) subscriptions.PlanRepository { return f }

func (f *fakePlanRepo) FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error) {
	return f.plans[tier], nil
}

func (f *fakePlanRepo) ListActive(ctx context.Context) ([]models.Plan, error) {
	return nil, nil
}

type fakeSubRepo struct {
	byUser map[uuid.UUID]*models.Subscription
}

func (f *fakeSubRepo) WithTx(tx *gorm.DB) subscriptions.Repository { return f }

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
	return nil, nil
}

func (f *fakeSubRepo) Upsert(ctx context.Context, sub *models.Subscription) error {
	copied := *sub
	f.byUser[sub.UserID] = &copied
	return nil
}

func (f *fakeSubRepo) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]models.Subscription, error) {
	return nil, nil
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
	return nil
}

func (f *fakeCreditStore) AddToAllowance(ctx context.Context, userID uuid.UUID, delta int, now time.Time) error {
	f.account.DailyLimit += delta
	return nil
}

func (f *fakeCreditStore) SweepStale(ctx context.Context, dayStart time.Time, now time.Time) (int64, error) {
	return 0, nil
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
	repo    *fakeOfferRepo
	subs    *fakeSubRepo
	credits *fakeCreditStore
	audit   *fakeAuditService
	outbox  *fakeOutbox
	now     time.Time
}

func newFixture(t *testing.T, userID uuid.UUID) fixture {
	t.Helper()

	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeOfferRepo()
	subs := &fakeSubRepo{byUser: map[uuid.UUID]*models.Subscription{
		userID: {
			ID:        uuid.New(),
			UserID:    userID,
			PlanTier:  enums.PlanTierFree,
			Status:    enums.SubscriptionStatusActive,
			StartedAt: now.AddDate(0, -1, 0),
		},
	}}
	creditStore := &fakeCreditStore{account: &models.CreditAccount{UserID: userID, DailyLimit: 10, UsedToday: 3}}
	auditSvc := &fakeAuditService{}
	ob := &fakeOutbox{}

	svc, err := NewService(ServiceParams{
		DB:   fakeTxRunner{},
		Repo: repo,
		Plans: &fakePlanRepo{plans: map[enums.PlanTier]*models.Plan{
			enums.PlanTierFree: {Tier: enums.PlanTierFree, DailyLimit: 10},
			enums.PlanTierPro:  {Tier: enums.PlanTierPro, DailyLimit: 100},
		}},
		Subs:    subs,
		Credits: creditStore,
		Audit:   auditSvc,
		Outbox:  ob,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewService returned unexpected error: %v", err)
	}
	return fixture{svc: svc, repo: repo, subs: subs, credits: creditStore, audit: auditSvc, outbox: ob, now: now}
}

func bonusOffer() *models.Offer {
	return &models.Offer{
		ID:           uuid.New(),
		Title:        "launch week bonus",
		Type:         enums.OfferTypeCreditBonus,
		BonusCredits: 50,
		Enabled:      true,
	}
}

func TestClaim_CreditBonusRaisesLimit(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	offer := bonusOffer()
	f.repo.offers[offer.ID] = offer

	claimed, err := f.svc.Claim(context.Background(), offer.ID, userID)
	if err != nil {
		t.Fatalf("Claim returned unexpected error: %v", err)
	}
	if f.credits.account.DailyLimit != 60 {
		t.Fatalf("expected daily limit 60, got %d", f.credits.account.DailyLimit)
	}
	if claimed.TotalClaimed != 1 {
		t.Fatalf("expected total claimed 1, got %d", claimed.TotalClaimed)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Type != enums.AuditTypeSuccess {
		t.Fatalf("expected success audit entry, got %+v", f.audit.entries)
	}
	if len(f.outbox.events) != 1 || f.outbox.events[0].EventType != enums.EventOfferClaimed {
		t.Fatalf("expected offer_claimed event, got %+v", f.outbox.events)
	}
}

func TestClaim_SecondAttemptConflictsWithoutDoubleCount(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	offer := bonusOffer()
	f.repo.offers[offer.ID] = offer

	if _, err := f.svc.Claim(context.Background(), offer.ID, userID); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	_, err := f.svc.Claim(context.Background(), offer.ID, userID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT on duplicate claim, got %v", err)
	}
	if f.repo.offers[offer.ID].TotalClaimed != 1 {
		t.Fatalf("expected total claimed to stay at 1, got %d", f.repo.offers[offer.ID].TotalClaimed)
	}
	if f.credits.account.DailyLimit != 60 {
		t.Fatalf("expected daily limit unchanged at 60, got %d", f.credits.account.DailyLimit)
	}
}

func TestClaim_TrialUpgradesSubscription(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	trialTier := enums.PlanTierPro
	offer := &models.Offer{
		ID:        uuid.New(),
		Title:     "7 day pro trial",
		Type:      enums.OfferTypeTrial,
		TrialTier: &trialTier,
		TrialDays: 7,
		Enabled:   true,
	}
	f.repo.offers[offer.ID] = offer

	if _, err := f.svc.Claim(context.Background(), offer.ID, userID); err != nil {
		t.Fatalf("Claim returned unexpected error: %v", err)
	}

	sub := f.subs.byUser[userID]
	if sub.PlanTier != enums.PlanTierPro || sub.Status != enums.SubscriptionStatusTrialing || !sub.IsSubscribed {
		t.Fatalf("expected trialing pro subscription, got %+v", sub)
	}
	if sub.EndsAt == nil || !sub.EndsAt.Equal(f.now.AddDate(0, 0, 7)) {
		t.Fatalf("expected 7 day trial window, got %v", sub.EndsAt)
	}
	if f.credits.account.DailyLimit != 100 {
		t.Fatalf("expected trial allowance 100, got %d", f.credits.account.DailyLimit)
	}
	if f.credits.account.UsedToday != 3 {
		t.Fatalf("expected usage preserved, got %d", f.credits.account.UsedToday)
	}
}

func TestClaim_TrialRejectedForPaidAccount(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	endsAt := f.now.AddDate(0, 1, 0)
	f.subs.byUser[userID].PlanTier = enums.PlanTierPro
	f.subs.byUser[userID].IsSubscribed = true
	f.subs.byUser[userID].EndsAt = &endsAt

	trialTier := enums.PlanTierPro
	offer := &models.Offer{
		ID:        uuid.New(),
		Title:     "trial",
		Type:      enums.OfferTypeTrial,
		TrialTier: &trialTier,
		Enabled:   true,
	}
	f.repo.offers[offer.ID] = offer

	_, err := f.svc.Claim(context.Background(), offer.ID, userID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for paid account, got %v", err)
	}
}

func TestClaim_PromoOnlyRecordsClaim(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	offer := &models.Offer{ID: uuid.New(), Title: "checkout promo", Type: enums.OfferTypePromo, Enabled: true}
	f.repo.offers[offer.ID] = offer

	if _, err := f.svc.Claim(context.Background(), offer.ID, userID); err != nil {
		t.Fatalf("Claim returned unexpected error: %v", err)
	}
	if f.credits.account.DailyLimit != 10 {
		t.Fatalf("expected ledger untouched, got daily limit %d", f.credits.account.DailyLimit)
	}
	if f.repo.offers[offer.ID].TotalClaimed != 1 {
		t.Fatalf("expected claim recorded, got %d", f.repo.offers[offer.ID].TotalClaimed)
	}
}

func TestClaim_Rejections(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	disabled := bonusOffer()
	disabled.Enabled = false
	f.repo.offers[disabled.ID] = disabled

	yesterday := f.now.AddDate(0, 0, -1)
	expired := bonusOffer()
	expired.ExpiresAt = &yesterday
	f.repo.offers[expired.ID] = expired

	cases := []struct {
		name    string
		offerID uuid.UUID
		want    pkgerrors.Code
	}{
		{name: "unknown offer", offerID: uuid.New(), want: pkgerrors.CodeNotFound},
		{name: "disabled offer", offerID: disabled.ID, want: pkgerrors.CodeValidation},
		{name: "expired offer", offerID: expired.ID, want: pkgerrors.CodeValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Claim(context.Background(), tc.offerID, userID)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.want {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestListForUser_FlagsClaimedAndExpired(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	claimed := bonusOffer()
	f.repo.offers[claimed.ID] = claimed
	f.repo.claims[claimKey{offerID: claimed.ID, userID: userID}] = struct{}{}

	yesterday := f.now.AddDate(0, 0, -1)
	lapsed := bonusOffer()
	lapsed.ExpiresAt = &yesterday
	f.repo.offers[lapsed.ID] = lapsed

	hidden := bonusOffer()
	hidden.Enabled = false
	f.repo.offers[hidden.ID] = hidden

	views, err := f.svc.ListForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListForUser returned unexpected error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 visible offers, got %d", len(views))
	}
	byID := map[uuid.UUID]OfferView{}
	for _, view := range views {
		byID[view.Offer.ID] = view
	}
	if !byID[claimed.ID].Claimed {
		t.Fatalf("expected claimed flag set for %s", claimed.ID)
	}
	if !byID[lapsed.ID].Expired {
		t.Fatalf("expected expired flag set for %s", lapsed.ID)
	}
}
