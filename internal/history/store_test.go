package history

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	rec := Record{
		ID:         "b-1",
		Target:     "html",
		Status:     "success",
		Trigger:    "manual",
		Commit:     "abc123",
		StartedAt:  time.Now().Truncate(time.Second),
		Duration:   1500 * time.Millisecond,
		OutputPath: "build/html",
	}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.ID != rec.ID || got.Target != rec.Target || got.Status != rec.Status {
		t.Errorf("record mismatch: %+v", got)
	}
	if got.Commit != "abc123" {
		t.Errorf("expected commit abc123, got %s", got.Commit)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", got.Duration)
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("expected started_at %v, got %v", rec.StartedAt, got.StartedAt)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 3; i++ {
		rec := Record{
			ID:        string(rune('a' + i)),
			Target:    "html",
			Status:    "success",
			Trigger:   "scheduled",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	records, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(records))
	}
	if records[0].ID != "c" || records[1].ID != "b" {
		t.Errorf("expected newest first (c, b), got (%s, %s)", records[0].ID, records[1].ID)
	}
}

func TestByTarget(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()

	for _, target := range []string{"html", "latex", "html"} {
		rec := Record{
			ID:        target + "-" + time.Now().Format("150405.000000000"),
			Target:    target,
			Status:    "failed",
			Trigger:   "manual",
			StartedAt: time.Now(),
			Error:     "sphinx execution failed",
		}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := store.ByTarget(ctx, "html", 10)
	if err != nil {
		t.Fatalf("by target: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 html records, got %d", len(records))
	}
	for _, rec := range records {
		if rec.Target != "html" {
			t.Errorf("unexpected target %s", rec.Target)
		}
		if rec.Error == "" {
			t.Error("expected error message to round-trip")
		}
	}
}
