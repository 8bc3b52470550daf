package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// AuditEntry is an append-only record of account activity. Rows are pruned
// only by the retention cron job.
type AuditEntry struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	Type      enums.AuditType `gorm:"column:type;type:audit_type_enum;not null"`
	Content   string          `gorm:"column:content;not null"`
	Premium   bool            `gorm:"column:premium;not null;default:false"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}
