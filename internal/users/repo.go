package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to the supplied transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByTelegramChat loads the user linked to a Telegram chat, if any.
func (r *Repository) FindByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("telegram_chat_id = ?", chatID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// SetStatus flips the account status (active/suspended).
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.UserStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

// SetStatusTx is SetStatus joined to the supplied transaction when non-nil.
func (r *Repository) SetStatusTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, status enums.UserStatus) error {
	return r.WithTx(tx).SetStatus(ctx, id, status)
}

// SetTelegramChat links (or with nil unlinks) a Telegram chat to the user.
func (r *Repository) SetTelegramChat(ctx context.Context, id uuid.UUID, chatID *int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("telegram_chat_id", chatID).Error
}

// Update applies the non-nil fields of the DTO.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, dto UpdateUserDTO) error {
	updates := dto.ToUpdates()
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete removes a user; dependent rows cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}

// List returns one page of users joined with their plan tier, newest first.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]listRow, error) {
	query := r.db.WithContext(ctx).Model(&models.User{}).
		Select("users.*, subscriptions.plan_tier AS plan_tier").
		Joins("LEFT JOIN subscriptions ON subscriptions.user_id = users.id")

	if opts.status != nil {
		query = query.Where("users.status = ?", *opts.status)
	}
	if opts.planTier != nil {
		query = query.Where("subscriptions.plan_tier = ?", *opts.planTier)
	}
	if opts.search != "" {
		pattern := "%" + opts.search + "%"
		query = query.Where(
			"users.email ILIKE ? OR users.first_name ILIKE ? OR users.last_name ILIKE ?",
			pattern, pattern, pattern,
		)
	}
	if opts.cursor != nil {
		query = query.Where(
			"(users.created_at < ?) OR (users.created_at = ? AND users.id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID,
		)
	}

	query = query.Order("users.created_at DESC").Order("users.id DESC").Limit(opts.limit)

	var rows []listRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type statusCount struct {
	Status enums.UserStatus `gorm:"column:status"`
	Count  int64            `gorm:"column:count"`
}

type planCount struct {
	PlanTier enums.PlanTier `gorm:"column:plan_tier"`
	Count    int64          `gorm:"column:count"`
}

// CountByStatus aggregates accounts per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.UserStatus]int64, error) {
	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.UserStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountByPlan aggregates accounts per plan tier.
func (r *Repository) CountByPlan(ctx context.Context) (map[enums.PlanTier]int64, error) {
	var rows []planCount
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("subscriptions.plan_tier, COUNT(*) AS count").
		Joins("LEFT JOIN subscriptions ON subscriptions.user_id = users.id").
		Group("subscriptions.plan_tier").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.PlanTier]int64, len(rows))
	for _, row := range rows {
		tier := row.PlanTier
		if tier == "" {
			tier = enums.PlanTierFree
		}
		counts[tier] += row.Count
	}
	return counts, nil
}

// ExportRows streams every user joined with subscription and credit columns
// for the CSV export, oldest first so successive exports diff cleanly.
func (r *Repository) ExportRows(ctx context.Context) ([]ExportRow, error) {
	var rows []ExportRow
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select(`users.id, users.email, users.first_name, users.last_name,
			users.role, users.status, users.created_at,
			subscriptions.plan_tier AS plan_tier,
			subscriptions.status AS sub_status,
			credit_accounts.daily_limit AS daily_limit,
			credit_accounts.used_today AS used_today`).
		Joins("LEFT JOIN subscriptions ON subscriptions.user_id = users.id").
		Joins("LEFT JOIN credit_accounts ON credit_accounts.user_id = users.id").
		Order("users.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
