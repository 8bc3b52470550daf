package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskiq-ai/taskiq-backend/internal/audit"
	"github.com/taskiq-ai/taskiq-backend/pkg/db/models"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
	recentEntryLimit   = 20
)

// History bundles the trailing usage aggregation with recent activity.
type History struct {
	Days    int                 `json:"days"`
	Totals  []DayTotal          `json:"totals"`
	Recent  []models.AuditEntry `json:"recent"`
	Overall int                 `json:"overall"`
}

// Service aggregates historical usage for dashboards.
type Service interface {
	History(ctx context.Context, userID uuid.UUID, days int) (*History, error)
}

// ServiceParams groups dependencies for the usage service.
type ServiceParams struct {
	Repo  Repository
	Audit audit.Repository
	Now   func() time.Time
}

type service struct {
	repo  Repository
	audit audit.Repository
	now   func() time.Time
}

// NewService builds a usage history service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("usage repository required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, audit: params.Audit, now: now}, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, days int) (*History, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required")
	}
	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	now := s.now().UTC()
	since := now.AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)

	totals, err := s.repo.TotalsSince(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	recent, err := s.audit.ListByUser(ctx, userID, recentEntryLimit)
	if err != nil {
		return nil, err
	}

	overall := 0
	for _, total := range totals {
		overall += total.PromptCount
	}

	return &History{
		Days:    days,
		Totals:  totals,
		Recent:  recent,
		Overall: overall,
	}, nil
}
