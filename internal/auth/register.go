package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/internal/credits"
	"github.com/taskiq-ai/taskiq-backend/internal/subscriptions"
	"github.com/taskiq-ai/taskiq-backend/internal/users"
	"github.com/taskiq-ai/taskiq-backend/pkg/config"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	"github.com/taskiq-ai/taskiq-backend/pkg/security"
)

// RegisterRequest contains the payload required for onboarding a new account.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	AcceptTOS bool   `json:"accept_tos"`
}

// RegisterService handles the onboarding transaction: user, free-plan
// subscription, and credit account are created together or not at all.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type registerTxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type registerUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
}

type registerSubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
}

type registerPlanRepository interface {
	FindByTier(ctx context.Context, tier enums.PlanTier) (*models.Plan, error)
}

type registerCreditRepository interface {
	Create(ctx context.Context, account *models.CreditAccount) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
// Repositories are built per transaction so every write shares the same tx.
type RegisterServiceParams struct {
	TxRunner            registerTxRunner
	UserRepoFactory     func(tx *gorm.DB) registerUserRepository
	SubscriptionFactory func(tx *gorm.DB) registerSubscriptionRepository
	PlanRepoFactory     func(tx *gorm.DB) registerPlanRepository
	CreditFactory       func(tx *gorm.DB) registerCreditRepository
	Audit               audit.Service
	PasswordConfig      config.PasswordConfig
	Clock               func() time.Time
}

type registerService struct {
	tx          registerTxRunner
	userRepo    func(tx *gorm.DB) registerUserRepository
	subRepo     func(tx *gorm.DB) registerSubscriptionRepository
	planRepo    func(tx *gorm.DB) registerPlanRepository
	creditRepo  func(tx *gorm.DB) registerCreditRepository
	audit       audit.Service
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit service required")
	}
	userRepo := params.UserRepoFactory
	if userRepo == nil {
		userRepo = func(tx *gorm.DB) registerUserRepository { return users.NewRepository(tx) }
	}
	subRepo := params.SubscriptionFactory
	if subRepo == nil {
		subRepo = func(tx *gorm.DB) registerSubscriptionRepository { return subscriptions.NewRepository(tx) }
	}
	planRepo := params.PlanRepoFactory
	if planRepo == nil {
		planRepo = func(tx *gorm.DB) registerPlanRepository { return subscriptions.NewPlanRepository(tx) }
	}
	creditRepo := params.CreditFactory
	if creditRepo == nil {
		creditRepo = func(tx *gorm.DB) registerCreditRepository { return credits.NewRepository(tx) }
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &registerService{
		tx:          params.TxRunner,
		userRepo:    userRepo,
		subRepo:     subRepo,
		planRepo:    planRepo,
		creditRepo:  creditRepo,
		audit:       params.Audit,
		passwordCfg: params.PasswordConfig,
		now:         now,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !req.AcceptTOS {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "accept_tos must be true")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.userRepo(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		now := s.now().UTC()
		if err := s.subRepo(tx).Create(ctx, &models.Subscription{
			UserID:    user.ID,
			PlanTier:  enums.PlanTierFree,
			Status:    enums.SubscriptionStatusActive,
			StartedAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create subscription")
		}

		allowance := credits.DefaultDailyLimit
		if plan, err := s.planRepo(tx).FindByTier(ctx, enums.PlanTierFree); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load free plan")
		} else if plan != nil {
			allowance = plan.DailyLimit
		}

		if err := s.creditRepo(tx).Create(ctx, &models.CreditAccount{
			UserID:      user.ID,
			DailyLimit:  allowance,
			UsedToday:   0,
			LastUpdated: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create credit account")
		}

		if _, err := s.audit.Record(ctx, tx, audit.RecordInput{
			UserID:  user.ID,
			Type:    enums.AuditTypeSuccess,
			Content: "account created on the free plan",
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record registration")
		}

		created = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users.FromModel(created), nil
}
