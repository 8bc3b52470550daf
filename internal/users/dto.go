package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID             uuid.UUID        `json:"id"`
	Email          string           `json:"email"`
	FirstName      string           `json:"first_name"`
	LastName       string           `json:"last_name"`
	Role           enums.UserRole   `json:"role"`
	Status         enums.UserStatus `json:"status"`
	TelegramLinked bool             `json:"telegram_linked"`
	LastLoginAt    *time.Time       `json:"last_login_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         enums.UserRole
	Status       enums.UserStatus
}

// UpdateUserDTO carries optional admin edits; nil fields are left untouched.
type UpdateUserDTO struct {
	Email     *string
	FirstName *string
	LastName  *string
	Role      *enums.UserRole
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		Status:         u.Status,
		TelegramLinked: u.TelegramChatID != nil,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleMember
	}
	status := c.Status
	if status == "" {
		status = enums.UserStatusActive
	}

	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Role:         role,
		Status:       status,
	}
}

// ToUpdates flattens the DTO into a column map for GORM.
func (u UpdateUserDTO) ToUpdates() map[string]any {
	updates := map[string]any{}
	if u.Email != nil {
		updates["email"] = *u.Email
	}
	if u.FirstName != nil {
		updates["first_name"] = *u.FirstName
	}
	if u.LastName != nil {
		updates["last_name"] = *u.LastName
	}
	if u.Role != nil {
		updates["role"] = *u.Role
	}
	return updates
}
