package audit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
	"github.com/sudsyhq/sudsy-backend/pkg/pagination"
)

type stubAuditRepo struct {
	created []models.AuditLogEntry
	create  func(ctx context.Context, entry *models.AuditLogEntry) error
}

func (s *stubAuditRepo) Create(ctx context.Context, entry *models.AuditLogEntry) error {
	if s.create != nil {
		return s.create(ctx, entry)
	}
	s.created = append(s.created, *entry)
	return nil
}

func (s *stubAuditRepo) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.AuditLogEntry, string, error) {
	return s.created, "", nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRecordAssignsTimestamp(t *testing.T) {
	repo := &stubAuditRepo{}
	recorder, err := NewRecorder(repo, testLogger())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return fixed }

	err = recorder.Record(context.Background(), Entry{
		EntityType: EntityDrop,
		EntityID:   "drop-1",
		Action:     ActionStatusChanged,
		OldValue:   "dropped",
		NewValue:   "in_transit",
		Operator:   "op-7",
		Source:     SourceCheckpoint,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.created))
	}
	got := repo.created[0]
	if !got.RecordedAt.Equal(fixed) {
		t.Fatalf("expected recorded_at %v, got %v", fixed, got.RecordedAt)
	}
	if got.OldValue != "dropped" || got.NewValue != "in_transit" {
		t.Fatalf("unexpected values: %q -> %q", got.OldValue, got.NewValue)
	}
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	recorder, err := NewRecorder(&stubAuditRepo{}, testLogger())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	cases := []struct {
		name  string
		entry Entry
	}{
		{"missing entity", Entry{Action: ActionCreated, Source: SourceAdmin}},
		{"missing action", Entry{EntityType: EntityDrop, EntityID: "d1", Source: SourceAdmin}},
		{"missing source", Entry{EntityType: EntityDrop, EntityID: "d1", Action: ActionCreated}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := recorder.Record(context.Background(), tc.entry); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewRecorderRequiresDependencies(t *testing.T) {
	if _, err := NewRecorder(nil, testLogger()); err == nil {
		t.Fatal("expected error for nil repository")
	}
	if _, err := NewRecorder(&stubAuditRepo{}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
