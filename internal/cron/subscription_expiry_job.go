package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

const defaultExpiryBatch = 500

// SubscriptionExpiryJobParams configure the expiry sweep.
type SubscriptionExpiryJobParams struct {
	Logger        *logger.Logger
	Subscriptions subscriptionExpirer
	Batch         int
}

type subscriptionExpirer interface {
	ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// NewSubscriptionExpiryJob builds the job that downgrades paid subscriptions
// whose window has lapsed back to the free plan.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &subscriptionExpiryJob{
		logg:  params.Logger,
		subs:  params.Subscriptions,
		batch: batch,
		now:   time.Now,
	}, nil
}

type subscriptionExpiryJob struct {
	logg  *logger.Logger
	subs  subscriptionExpirer
	batch int
	now   func() time.Time
}

func (j *subscriptionExpiryJob) Name() string { return "subscription-expiry" }

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	total := 0
	// Keep sweeping until a batch comes back short; a long outage can leave
	// more lapsed rows than one batch covers.
	for {
		processed, err := j.subs.ExpireDue(ctx, asOf, j.batch)
		if err != nil {
			return fmt.Errorf("subscription expiry: %w", err)
		}
		total += processed
		if processed < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":      asOf,
		"downgraded": total,
	})
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return nil
}
