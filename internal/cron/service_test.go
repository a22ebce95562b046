package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/dcastellon/staybook-backend/pkg/logger"
)

type fakeLock struct {
	acquired   bool
	renewals   int
	renewFails bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Renew(context.Context) (bool, error) {
	f.renewals++
	if f.renewFails {
		return false, nil
	}
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	jobs := []*testJob{
		{name: "success"},
		{name: "fail", err: errors.New("boom")},
		{name: "last"},
	}
	registry := NewRegistry()
	for _, job := range jobs {
		registry.Register(job)
	}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	for _, job := range jobs {
		if job.runs != 1 {
			t.Fatalf("job %s ran %d times", job.name, job.runs)
		}
	}
	if lock.renewals != len(jobs) {
		t.Fatalf("expected a renewal after each job, got %d", lock.renewals)
	}
	if lock.acquired {
		t.Fatal("lock should be released after the cycle")
	}
}

func TestServiceStopsWhenLockIsLost(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	jobs := []*testJob{{name: "first"}, {name: "second"}}
	registry := NewRegistry()
	for _, job := range jobs {
		registry.Register(job)
	}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{renewFails: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if jobs[0].runs != 1 {
		t.Fatalf("first job should run, ran %d", jobs[0].runs)
	}
	if jobs[1].runs != 0 {
		t.Fatalf("second job must not run after the lock is lost, ran %d", jobs[1].runs)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &testJob{name: "solo"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job must not run without the lock, ran %d", job.runs)
	}
}
