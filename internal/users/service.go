package users

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/pkg/config"
	"github.com/taskiq-ai/taskiq-backend/pkg/db"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgerrors "github.com/taskiq-ai/taskiq-backend/pkg/errors"
	pkgpagination "github.com/taskiq-ai/taskiq-backend/pkg/pagination"
	"github.com/taskiq-ai/taskiq-backend/pkg/security"
)

const (
	emailUniqueConstraint = "idx_users_email"
	defaultCacheTTL       = 30 * time.Second
	cacheGenView          = "users:gen"
)

// Service is the admin back office over accounts: CRUD, the filtered list
// with aggregate stats, and the CSV export. List and stats reads go through
// a short-TTL Redis cache that is invalidated on every write.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*UserDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Stats(ctx context.Context) (*Stats, error)
	Create(ctx context.Context, input CreateInput) (*UserDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*UserDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExportCSV(ctx context.Context, w io.Writer) error
}

// CreateInput is an admin-created account.
type CreateInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Role      string `json:"role" validate:"omitempty,oneof=member admin"`
}

// UpdateInput carries optional admin edits.
type UpdateInput struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role" validate:"omitempty,oneof=member admin"`
}

type adminRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, dto CreateUserDTO) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, dto UpdateUserDTO) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts listQuery) ([]listRow, error)
	CountByStatus(ctx context.Context) (map[enums.UserStatus]int64, error)
	CountByPlan(ctx context.Context) (map[enums.PlanTier]int64, error)
	ExportRows(ctx context.Context) ([]ExportRow, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	AdminCacheKey(view string) string
}

// ServiceParams groups dependencies for the admin user service.
type ServiceParams struct {
	Repo           adminRepository
	Audit          audit.Service
	Cache          cacheStore
	CacheTTL       time.Duration
	PasswordConfig config.PasswordConfig
}

type service struct {
	repo     adminRepository
	audit    audit.Service
	cache    cacheStore
	cacheTTL time.Duration
	pwCfg    config.PasswordConfig
}

// NewService builds the admin user service. Cache is optional; without it
// every read goes to the database.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service is required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{
		repo:     params.Repo,
		audit:    params.Audit,
		cache:    params.Cache,
		cacheTTL: ttl,
		pwCfg:    params.PasswordConfig,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return FromModel(user), nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	view := listCacheView(params)
	if cached, ok := s.cacheRead(ctx, view); ok {
		var result ListResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			return &result, nil
		}
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		status:   params.Status,
		planTier: params.PlanTier,
		search:   params.Search,
		limit:    pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	items := make([]ListItem, len(rows))
	for i, row := range rows {
		items[i] = toListItem(row)
	}
	result := &ListResult{Items: items, Cursor: nextCursor}
	s.cacheWrite(ctx, view, result)
	return result, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	if cached, ok := s.cacheRead(ctx, "users:stats"); ok {
		var stats Stats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return &stats, nil
		}
	}

	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count by status")
	}
	byPlan, err := s.repo.CountByPlan(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count by plan")
	}
	var total int64
	for _, count := range byStatus {
		total += count
	}
	stats := &Stats{Total: total, ByStatus: byStatus, ByPlan: byPlan}
	s.cacheWrite(ctx, "users:stats", stats)
	return stats, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*UserDTO, error) {
	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	role := enums.UserRoleMember
	if input.Role != "" {
		parsed, err := enums.ParseUserRole(input.Role)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		role = parsed
	}

	user, err := s.repo.Create(ctx, CreateUserDTO{
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
	})
	if err != nil {
		if db.IsUniqueViolation(err, emailUniqueConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}

	_, _ = s.audit.Record(ctx, nil, audit.RecordInput{
		UserID:  user.ID,
		Type:    enums.AuditTypeInfo,
		Content: "account created by admin",
	})
	s.invalidate(ctx)
	return FromModel(user), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*UserDTO, error) {
	dto := UpdateUserDTO{
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}
	if input.Role != nil {
		role, err := enums.ParseUserRole(*input.Role)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
		}
		dto.Role = &role
	}

	if err := s.repo.Update(ctx, id, dto); err != nil {
		if db.IsUniqueViolation(err, emailUniqueConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	s.invalidate(ctx)
	return FromModel(user), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	s.invalidate(ctx)
	return nil
}

var exportHeader = []string{
	"id", "email", "first_name", "last_name", "role", "status",
	"plan_tier", "subscription_status", "daily_limit", "used_today", "created_at",
}

// ExportCSV writes every account with its subscription and credit columns.
func (s *service) ExportCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.repo.ExportRows(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "export users")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv header")
	}
	for _, row := range rows {
		tier := row.PlanTier
		if tier == "" {
			tier = enums.PlanTierFree
		}
		record := []string{
			row.ID.String(),
			row.Email,
			row.FirstName,
			row.LastName,
			string(row.Role),
			string(row.Status),
			string(tier),
			row.SubStatus,
			strconv.Itoa(row.DailyLimit),
			strconv.Itoa(row.UsedToday),
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write csv row")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flush csv")
	}
	return nil
}

// Cached keys embed a generation counter; invalidation bumps the counter and
// stale entries age out on their TTL.
func (s *service) cacheRead(ctx context.Context, view string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	value, err := s.cache.Get(ctx, s.cachedKey(ctx, view))
	if err != nil || value == "" {
		return "", false
	}
	return value, true
}

func (s *service) cacheWrite(ctx context.Context, view string, payload any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, s.cachedKey(ctx, view), string(raw), s.cacheTTL)
}

func (s *service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_, _ = s.cache.Incr(ctx, s.cache.AdminCacheKey(cacheGenView))
}

func (s *service) cachedKey(ctx context.Context, view string) string {
	gen := "0"
	value, err := s.cache.Get(ctx, s.cache.AdminCacheKey(cacheGenView))
	if err == nil && value != "" {
		gen = value
	} else if err != nil && !errors.Is(err, redislib.Nil) {
		// Treat an unreadable generation as a miss rather than serving stale data.
		gen = uuid.NewString()
	}
	return s.cache.AdminCacheKey(view + ":" + gen)
}

func listCacheView(params ListParams) string {
	status := ""
	if params.Status != nil {
		status = string(*params.Status)
	}
	tier := ""
	if params.PlanTier != nil {
		tier = string(*params.PlanTier)
	}
	return fmt.Sprintf("users:list:%s:%s:%s:%d:%s", status, tier, params.Search, params.Limit, params.Cursor)
}
