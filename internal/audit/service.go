package audit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
	"github.com/taskiq-ai/taskiq-backend/pkg/enums"
)

// Service defines operations that record and read account activity.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditEntry, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error)
}

// RecordInput captures the immutable data an audit entry requires.
type RecordInput struct {
	UserID  uuid.UUID       `json:"user_id"`
	Type    enums.AuditType `json:"type"`
	Content string          `json:"content"`
	Premium bool            `json:"premium"`
}

type service struct {
	repo Repository
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends an entry, joining the caller's transaction when one is
// supplied so the entry commits or rolls back with the mutation it describes.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.AuditEntry, error) {
	if input.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid audit type %q", input.Type)
	}
	if input.Content == "" {
		return nil, fmt.Errorf("content is required")
	}

	entry := &models.AuditEntry{
		UserID:  input.UserID,
		Type:    input.Type,
		Content: input.Content,
		Premium: input.Premium,
	}

	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
