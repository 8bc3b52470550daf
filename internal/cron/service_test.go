package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/taskiq-ai/taskiq-backend/pkg/logger"
)

type stubLock struct {
	held    bool
	denied  bool
	cycles  int
	release int
}

func (l *stubLock) Acquire(context.Context) (bool, error) {
	if l.denied || l.held {
		return false, nil
	}
	l.held = true
	l.cycles++
	return true, nil
}

func (l *stubLock) Release(context.Context) error {
	l.held = false
	l.release++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newCronService(t *testing.T, registry *Registry, lock Lock) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	healthy := &countingJob{name: "daily-usage-reset"}
	broken := &countingJob{name: "subscription-expiry", err: errors.New("boom")}
	trailing := &countingJob{name: "audit-retention"}
	service := newCronService(t, NewRegistry(healthy, broken, trailing), &stubLock{})

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	for _, job := range []*countingJob{healthy, broken, trailing} {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times, expected 1", job.name, job.runs)
		}
	}
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &countingJob{name: "daily-usage-reset"}
	lock := &stubLock{denied: true}
	service := newCronService(t, NewRegistry(job), lock)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("jobs must not run without the lock, ran %d times", job.runs)
	}
}

func TestRunCycleReleasesLock(t *testing.T) {
	lock := &stubLock{}
	service := newCronService(t, NewRegistry(&countingJob{name: "audit-retention"}), lock)

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if lock.release != 1 {
		t.Fatalf("expected exactly one release, got %d", lock.release)
	}
	if lock.held {
		t.Fatalf("lock still held after cycle")
	}
}
