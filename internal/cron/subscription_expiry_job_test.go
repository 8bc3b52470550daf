package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

func TestSubscriptionExpiryJobSweepsUntilShortBatch(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 30, 0, 0, time.UTC)
	expirer := &fakeSubscriptionExpirer{batches: []int{3, 3, 1}}
	job := newSubscriptionExpiryJob(t, expirer, 3)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", expirer.calls)
	}
	if !expirer.lastAsOf.Equal(now) {
		t.Fatalf("expected as-of %s, got %s", now, expirer.lastAsOf)
	}
	if expirer.lastLimit != 3 {
		t.Fatalf("expected batch size 3, got %d", expirer.lastLimit)
	}
}

func TestSubscriptionExpiryJobStopsAfterEmptySweep(t *testing.T) {
	expirer := &fakeSubscriptionExpirer{batches: []int{0}}
	job := newSubscriptionExpiryJob(t, expirer, 100)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.calls != 1 {
		t.Fatalf("expected 1 sweep, got %d", expirer.calls)
	}
}

func TestSubscriptionExpiryJobPropagatesError(t *testing.T) {
	expirer := &fakeSubscriptionExpirer{err: errors.New("boom")}
	job := newSubscriptionExpiryJob(t, expirer, 100)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newSubscriptionExpiryJob(t *testing.T, expirer *fakeSubscriptionExpirer, batch int) *subscriptionExpiryJob {
	t.Helper()
	jobIface, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Subscriptions: expirer,
		Batch:         batch,
	})
	if err != nil {
		t.Fatalf("NewSubscriptionExpiryJob: %v", err)
	}
	job, ok := jobIface.(*subscriptionExpiryJob)
	if !ok {
		t.Fatalf("expected subscriptionExpiryJob, got %T", jobIface)
	}
	return job
}

type fakeSubscriptionExpirer struct {
	batches   []int
	calls     int
	lastAsOf  time.Time
	lastLimit int
	err       error
}

func (f *fakeSubscriptionExpirer) ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	f.lastAsOf = asOf
	f.lastLimit = limit
	if f.err != nil {
		return 0, f.err
	}
	if f.calls >= len(f.batches) {
		f.calls++
		return 0, nil
	}
	processed := f.batches[f.calls]
	f.calls++
	return processed, nil
}
