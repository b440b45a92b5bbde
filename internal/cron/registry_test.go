package cron

import (
	"context"
	"testing"
	"time"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresEntries(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA, time.Hour)
	registry.Register(jobB, 24*time.Hour)

	entries := registry.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Job != jobA || entries[1].Job != jobB {
		t.Fatalf("entries returned out of order")
	}
	if entries[0].Every != time.Hour || entries[1].Every != 24*time.Hour {
		t.Fatalf("cadences lost: %+v", entries)
	}

	// ensure caller cannot mutate internal slice
	entries[0].Job = nil
	if registry.Entries()[0].Job == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsInvalidEntries(t *testing.T) {
	registry := NewRegistry()
	registry.Register(nil, time.Hour)
	registry.Register(&stubJob{name: "zero"}, 0)
	if len(registry.Entries()) != 0 {
		t.Fatalf("invalid entries must be dropped, got %+v", registry.Entries())
	}
}
