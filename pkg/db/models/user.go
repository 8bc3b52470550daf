package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID             uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string           `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash   string           `gorm:"column:password_hash;not null"`
	FirstName      string           `gorm:"column:first_name;not null"`
	LastName       string           `gorm:"column:last_name;not null"`
	Role           enums.UserRole   `gorm:"column:role;type:user_role_enum;not null;default:'member'"`
	Status         enums.UserStatus `gorm:"column:status;type:user_status_enum;not null;default:'active'"`
	TelegramChatID *int64           `gorm:"column:telegram_chat_id;uniqueIndex"`
	LastLoginAt    *time.Time       `gorm:"column:last_login_at"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
