package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/usage"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/metrics"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox"
	"github.com/taskiq-ai/taskiq-backend/pkg/outbox/payloads"
)

// DefaultDailyLimit is the allowance every account starts with.
const DefaultDailyLimit = 10

// Service is the credit ledger: the daily reset policy plus the consumption
// gate, and the administrative grant/reset paths that share the same account.
type Service interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
	Consume(ctx context.Context, input ConsumeInput) (*ConsumeResult, error)
	Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.CreditAccount, error)
	ResetUsage(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error)
}

// ConsumeInput describes one debit request at the gate.
type ConsumeInput struct {
	UserID uuid.UUID
	Amount int
	Note   string
}

// ConsumeResult reports the account state after a successful debit.
type ConsumeResult struct {
	Consumed   int `json:"consumed"`
	UsedToday  int `json:"used_today"`
	DailyLimit int `json:"daily_limit"`
	Remaining  int `json:"remaining"`
}

// InsufficientDetails is attached to the rejection so callers can render the
// shortfall without a second round trip.
type InsufficientDetails struct {
	Remaining int `json:"remaining"`
	Required  int `json:"required"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the credit service.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Usage   usage.Repository
	Audit   audit.Service
	Outbox  outboxEmitter
	Metrics *metrics.CreditMetrics
	Now     func() time.Time
}

type service struct {
	db      txRunner
	repo    Repository
	usage   usage.Repository
	audit   audit.Service
	outbox  outboxEmitter
	metrics *metrics.CreditMetrics
	now     func() time.Time
}

// NewService builds the credit ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db runner is required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("credit repository is required")
	}
	if params.Usage == nil {
		return nil, fmt.Errorf("usage repository is required")
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
		usage:   params.Usage,
		audit:   params.Audit,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// GetAccount returns the account with the daily window already settled, so
// callers never see yesterday's usage.
func (s *service) GetAccount(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	account, err := s.loadAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWindow(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Consume debits input.Amount (default 1) if the remaining allowance covers
// it. The availability check and the debit are a single conditional UPDATE;
// concurrent requests for the same account serialize on the row instead of
// both passing a stale read.
func (s *service) Consume(ctx context.Context, input ConsumeInput) (*ConsumeResult, error) {
	amount := input.Amount
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	account, err := s.loadAccount(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureWindow(ctx, account); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var result *ConsumeResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := repo.ConsumeIfAvailable(ctx, input.UserID, amount, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := repo.FindByUserID(ctx, input.UserID)
			if err != nil {
				return err
			}
			remaining := 0
			if current != nil {
				remaining = current.Remaining()
			}
			return pkgerrors.New(pkgerrors.CodeInsufficient, "insufficient credits").
				WithDetails(InsufficientDetails{Remaining: remaining, Required: amount})
		}

		updated, err := repo.FindByUserID(ctx, input.UserID)
		if err != nil {
			return err
		}
		if updated == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "credit account vanished mid-transaction")
		}

		day := truncateToDay(now)
		if err := s.usage.WithTx(tx).IncrementDay(ctx, input.UserID, day, amount); err != nil {
			return err
		}

		content := fmt.Sprintf("consumed %d credit(s), %d remaining", amount, updated.Remaining())
		if input.Note != "" {
			content = fmt.Sprintf("%s: %s", content, input.Note)
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  input.UserID,
			Type:    enums.AuditTypeInfo,
			Content: content,
		}); err != nil {
			return err
		}

		if s.outbox != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventCreditConsumed,
				AggregateType: enums.AggregateCreditAccount,
				AggregateID:   updated.ID,
				Actor:         &outbox.ActorRef{UserID: input.UserID},
				Data: payloads.CreditConsumedEvent{
					UserID:     input.UserID,
					Amount:     amount,
					Remaining:  updated.Remaining(),
					DailyLimit: updated.DailyLimit,
					Note:       input.Note,
					ConsumedAt: now,
				},
				Version:    1,
				OccurredAt: now,
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}

		result = &ConsumeResult{
			Consumed:   amount,
			UsedToday:  updated.UsedToday,
			DailyLimit: updated.DailyLimit,
			Remaining:  updated.Remaining(),
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficient {
			s.metrics.IncInsufficient()
		}
		return nil, err
	}

	s.metrics.AddConsumed(amount)
	return result, nil
}

// Grant raises the daily limit by amount (administrative/bonus path).
func (s *service) Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) (*models.CreditAccount, error) {
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if _, err := s.loadAccount(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var updated *models.CreditAccount
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.AddToAllowance(ctx, userID, amount, now); err != nil {
			return err
		}
		account, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "credit account vanished mid-transaction")
		}
		updated = account

		content := fmt.Sprintf("granted %d bonus credit(s), daily limit now %d", amount, account.DailyLimit)
		if reason != "" {
			content = fmt.Sprintf("%s (%s)", content, reason)
		}
		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  userID,
			Type:    enums.AuditTypeSuccess,
			Content: content,
		}); err != nil {
			return err
		}

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCreditGranted,
				AggregateType: enums.AggregateCreditAccount,
				AggregateID:   account.ID,
				Data: payloads.CreditGrantedEvent{
					UserID:     userID,
					Amount:     amount,
					DailyLimit: account.DailyLimit,
					Reason:     reason,
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
	return updated, nil
}

// ResetUsage zeroes used_today immediately (administrative path).
func (s *service) ResetUsage(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	if _, err := s.loadAccount(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var updated *models.CreditAccount
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.ResetWindow(ctx, userID, now); err != nil {
			return err
		}
		account, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "credit account vanished mid-transaction")
		}
		updated = account

		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  userID,
			Type:    enums.AuditTypeInfo,
			Content: "daily usage reset by administrator",
		}); err != nil {
			return err
		}

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCreditReset,
				AggregateType: enums.AggregateCreditAccount,
				AggregateID:   account.ID,
				Data:          payloads.CreditResetEvent{UserID: userID, ResetAt: now},
				Version:       1,
				OccurredAt:    now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) loadAccount(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	account, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load credit account")
	}
	if account == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "credit account not found")
	}
	return account, nil
}

// ensureWindow settles the daily window before anything reads or debits the
// account. A zero LastUpdated counts as stale so legacy rows reset too.
// Calendar-date equality in UTC, not a rolling 24h window.
func (s *service) ensureWindow(ctx context.Context, account *models.CreditAccount) error {
	now := s.now().UTC()
	if sameCalendarDay(account.LastUpdated, now) {
		return nil
	}
	if err := s.repo.ResetWindow(ctx, account.UserID, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset daily window")
	}
	account.UsedToday = 0
	account.LastUpdated = now
	s.metrics.IncReset()
	return nil
}

func sameCalendarDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
