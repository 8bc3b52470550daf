package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const defaultAuditMaxAge = 90 * 24 * time.Hour

// AuditRetentionJobParams configure the audit log trim.
type AuditRetentionJobParams struct {
	Logger *logger.Logger
	Audit  auditRetentionRepo
	MaxAge time.Duration
}

type auditRetentionRepo interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewAuditRetentionJob builds the job that trims audit entries past the
// retention window.
func NewAuditRetentionJob(params AuditRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultAuditMaxAge
	}
	return &auditRetentionJob{
		logg:   params.Logger,
		audit:  params.Audit,
		maxAge: maxAge,
		now:    time.Now,
	}, nil
}

type auditRetentionJob struct {
	logg   *logger.Logger
	audit  auditRetentionRepo
	maxAge time.Duration
	now    func() time.Time
}

func (j *auditRetentionJob) Name() string { return "audit-retention" }

func (j *auditRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	deleted, err := j.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("audit retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "audit retention cleanup complete")
	return nil
}
