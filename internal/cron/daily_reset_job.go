package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

// DailyResetJobParams configure the credit sweep job.
type DailyResetJobParams struct {
	Logger  *logger.Logger
	Credits creditSweeper
}

type creditSweeper interface {
	SweepStale(ctx context.Context, dayStart time.Time, now time.Time) (int64, error)
}

// NewDailyResetJob builds the job that zeroes stale usage counters. The
// per-request lazy reset already covers active accounts; this sweep catches
// the ones nobody touched since the last UTC midnight.
func NewDailyResetJob(params DailyResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Credits == nil {
		return nil, fmt.Errorf("credit repository required")
	}
	return &dailyResetJob{
		logg:    params.Logger,
		credits: params.Credits,
		now:     time.Now,
	}, nil
}

type dailyResetJob struct {
	logg    *logger.Logger
	credits creditSweeper
	now     func() time.Time
}

func (j *dailyResetJob) Name() string { return "daily-credit-reset" }

func (j *dailyResetJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	dayStart := now.Truncate(24 * time.Hour)
	swept, err := j.credits.SweepStale(ctx, dayStart, now)
	if err != nil {
		return fmt.Errorf("daily credit reset: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"day_start":      dayStart,
		"accounts_swept": swept,
	})
	j.logg.Info(logCtx, "daily credit reset complete")
	return nil
}
