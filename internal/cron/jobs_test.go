package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/sudsyhq/sudsy-backend/internal/billing"
	"github.com/sudsyhq/sudsy-backend/internal/drops"
	"github.com/sudsyhq/sudsy-backend/internal/sla"
)

type fakeSLASweeper struct {
	result *sla.Result
	err    error
	calls  int
}

func (f *fakeSLASweeper) Sweep(context.Context) (*sla.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeDunningSweeper struct {
	result *billing.DunningResult
	err    error
}

func (f *fakeDunningSweeper) Sweep(context.Context) (*billing.DunningResult, error) {
	return f.result, f.err
}

type fakeReminderSweeper struct {
	result *drops.ReminderResult
	err    error
}

func (f *fakeReminderSweeper) Sweep(context.Context) (*drops.ReminderResult, error) {
	return f.result, f.err
}

func TestSLASweepJob(t *testing.T) {
	sweeper := &fakeSLASweeper{result: &sla.Result{Scanned: 3, Stuck: 1, TicketsCreated: 1}}
	job, err := NewSLASweepJob(SLASweepJobParams{Logger: testCronLogger(), Sweeper: sweeper})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if job.Name() != "sla-sweep" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep, got %d", sweeper.calls)
	}
}

func TestSLASweepJobPropagatesError(t *testing.T) {
	sweeper := &fakeSLASweeper{err: errors.New("db down")}
	job, err := NewSLASweepJob(SLASweepJobParams{Logger: testCronLogger(), Sweeper: sweeper})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestDunningJob(t *testing.T) {
	sweeper := &fakeDunningSweeper{result: &billing.DunningResult{Scanned: 2, Day3Sent: 1}}
	job, err := NewDunningJob(DunningJobParams{Logger: testCronLogger(), Sweeper: sweeper})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if job.Name() != "dunning" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestPickupReminderJob(t *testing.T) {
	sweeper := &fakeReminderSweeper{result: &drops.ReminderResult{Scanned: 5, Sent: 2}}
	job, err := NewPickupReminderJob(PickupReminderJobParams{Logger: testCronLogger(), Sweeper: sweeper})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	if job.Name() != "pickup-reminders" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestJobConstructorsValidateDependencies(t *testing.T) {
	if _, err := NewSLASweepJob(SLASweepJobParams{Logger: testCronLogger()}); err == nil {
		t.Fatal("expected sweeper requirement")
	}
	if _, err := NewDunningJob(DunningJobParams{Sweeper: &fakeDunningSweeper{}}); err == nil {
		t.Fatal("expected logger requirement")
	}
	if _, err := NewPickupReminderJob(PickupReminderJobParams{Logger: testCronLogger()}); err == nil {
		t.Fatal("expected sweeper requirement")
	}
}
