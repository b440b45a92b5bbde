package drops

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
)

func newReminderFixture(t *testing.T) (*fixture, *ReminderSweeper) {
	t.Helper()
	f := newFixture(t)
	sweeper, err := NewReminderSweeper(f.repo, f.members, f.dispatcher, testLogger())
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}
	return f, sweeper
}

func seedReadyDrop(t *testing.T, f *fixture, tag string, readyFor time.Duration, reminded bool) *models.Drop {
	t.Helper()
	drop := &models.Drop{
		ID:                 uuid.New(),
		Tag:                tag,
		MemberID:           f.member.ID,
		Status:             enums.DropStatusReady,
		StatusChangedAt:    time.Now().UTC().Add(-readyFor),
		PickupReminderSent: reminded,
	}
	if _, err := f.repo.Create(context.Background(), drop); err != nil {
		t.Fatalf("seed drop: %v", err)
	}
	return drop
}

func TestReminderSweepSendsOncePerDrop(t *testing.T) {
	f, sweeper := newReminderFixture(t)

	due := seedReadyDrop(t, f, "B020", 60*time.Hour, false)
	seedReadyDrop(t, f, "B021", 30*time.Hour, false)  // inside the 48h grace window
	seedReadyDrop(t, f, "B022", 60*time.Hour, true)   // already reminded
	f.seedDrop(t, "B023", enums.DropStatusAtLaundry)  // not ready

	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Scanned != 1 || result.Sent != 1 {
		t.Fatalf("expected 1 scanned / 1 sent, got %d / %d", result.Scanned, result.Sent)
	}
	if len(f.dispatcher.sent) != 1 || f.dispatcher.sent[0].EntityID != "B020" {
		t.Fatalf("unexpected dispatches: %+v", f.dispatcher.sent)
	}

	stored, _ := f.repo.FindByID(context.Background(), due.ID)
	if !stored.PickupReminderSent {
		t.Fatal("expected reminder flag set")
	}

	// Second sweep observes the flag and sends nothing.
	result, err = sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Sent != 0 || len(f.dispatcher.sent) != 1 {
		t.Fatalf("expected no further sends, got %d dispatches", len(f.dispatcher.sent))
	}
}

func TestReminderSweepIsolatesFailures(t *testing.T) {
	f, sweeper := newReminderFixture(t)

	orphan := seedReadyDrop(t, f, "B030", 72*time.Hour, false)
	orphan.MemberID = uuid.New() // member lookup will fail
	f.repo.drops[orphan.ID].MemberID = orphan.MemberID
	seedReadyDrop(t, f, "B031", 72*time.Hour, false)

	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Scanned != 2 {
		t.Fatalf("expected 2 scanned, got %d", result.Scanned)
	}
	if result.Sent != 1 {
		t.Fatalf("expected healthy drop still reminded, got %d sent", result.Sent)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 per-item error, got %v", result.Errors)
	}
}
