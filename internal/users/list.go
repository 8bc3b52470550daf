package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
	pkgpagination "github.com/taskiq-ai/taskiq-backend/pkg/pagination"
)

// ListParams filter the admin user list.
type ListParams struct {
	Status   *enums.UserStatus
	PlanTier *enums.PlanTier
	Search   string
	pkgpagination.Params
}

// ListResult is one page of the admin user list.
type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor"`
}

// ListItem is a user row joined with its current plan tier.
type ListItem struct {
	ID             uuid.UUID        `json:"id"`
	Email          string           `json:"email"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Role           enums.UserRole   `json:"role"`
	Status         enums.UserStatus `json:"status"`
	PlanTier       enums.PlanTier   `json:"plan_tier"`
	TelegramLinked bool             `json:"telegram_linked"`
	LastLoginAt    *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Stats aggregates account counts for the admin dashboard.
type Stats struct {
	Total    int64                      `json:"total"`
	ByStatus map[enums.UserStatus]int64 `json:"by_status"`
	ByPlan   map[enums.PlanTier]int64   `json:"by_plan"`
}

// ExportRow is one line of the CSV export: the user plus its subscription
// and credit columns.
type ExportRow struct {
	ID         uuid.UUID        `gorm:"column:id"`
	Email      string           `gorm:"column:email"`
	FirstName  string           `gorm:"column:first_name"`
	LastName   string           `gorm:"column:last_name"`
	Role       enums.UserRole   `gorm:"column:role"`
	Status     enums.UserStatus `gorm:"column:status"`
	PlanTier   enums.PlanTier   `gorm:"column:plan_tier"`
	SubStatus  string           `gorm:"column:sub_status"`
	DailyLimit int              `gorm:"column:daily_limit"`
	UsedToday  int              `gorm:"column:used_today"`
	CreatedAt  time.Time        `gorm:"column:created_at"`
}

type listQuery struct {
	status   *enums.UserStatus
	planTier *enums.PlanTier
	search   string
	limit    int
	cursor   *pkgpagination.Cursor
}

type listRow struct {
	models.User
	PlanTier enums.PlanTier `gorm:"column:plan_tier"`
}

func toListItem(row listRow) ListItem {
	tier := row.PlanTier
	if tier == "" {
		tier = enums.PlanTierFree
	}
	return ListItem{
		ID:             row.ID,
		Email:          row.Email,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		Role:           row.Role,
		Status:         row.Status,
		PlanTier:       tier,
		TelegramLinked: row.TelegramChatID != nil,
		LastLoginAt:    row.LastLoginAt,
		CreatedAt:      row.CreatedAt,
	}
}
