package service

import (
	"context"
	"testing"
	"time"

	"github.com/aperturelab/proofing/cmd/proofing/models"
)

func TestHistoryAppendBumpsCollidingTimestamps(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Test", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	// Clock never advances, so every append lands on the same second
	// and must be bumped forward.
	kinds := []models.EventKind{models.EventPublished, models.EventImagesUpdated, models.EventApproved}
	var times []int64
	for _, kind := range kinds {
		e, err := env.history.Append(ctx, c.ID, kind, "", nil)
		if err != nil {
			t.Fatalf("Append(%s): %v", kind, err)
		}
		times = append(times, e.Time)
	}

	base := env.clock().Unix()
	for i, ts := range times {
		if want := base + int64(i); ts != want {
			t.Errorf("event %d: time = %d, want %d", i, ts, want)
		}
	}

	// Newest first, matching insertion order reversed
	events, err := env.history.Events(ctx, c.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != len(kinds) {
		t.Fatalf("got %d events, want %d", len(events), len(kinds))
	}
	for i, e := range events {
		if want := kinds[len(kinds)-1-i]; e.Event != want {
			t.Errorf("events[%d] = %s, want %s", i, e.Event, want)
		}
	}
}

func TestHistoryAppendTouchesCollection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Test", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	env.advance(90 * 24 * time.Hour)
	e, err := env.history.Append(ctx, c.ID, models.EventPublished, "", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := env.lifecycle.Collection(ctx, c.ID)
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if got.UpdatedAt.Unix() != e.Time {
		t.Errorf("UpdatedAt = %d, want %d", got.UpdatedAt.Unix(), e.Time)
	}
}

func TestHistoryLastEventEmptyLogSentinel(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Test", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	e, err := env.history.LastEvent(ctx, c.ID)
	if err != nil {
		t.Fatalf("LastEvent: %v", err)
	}
	if e.Event != models.EventLastModified {
		t.Errorf("empty log event = %s, want %s", e.Event, models.EventLastModified)
	}

	if _, err := env.history.Append(ctx, c.ID, models.EventPublished, "", nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	e, err = env.history.LastEvent(ctx, c.ID)
	if err != nil {
		t.Fatalf("LastEvent: %v", err)
	}
	if e.Event != models.EventPublished {
		t.Errorf("event = %s, want %s", e.Event, models.EventPublished)
	}
}

func TestHistoryHasBeenClosed(t *testing.T) {
	tests := []struct {
		name   string
		events []models.EventKind
		want   bool
	}{
		{"empty log", nil, false},
		{"only published", []models.EventKind{models.EventPublished}, false},
		{"approved", []models.EventKind{models.EventPublished, models.EventApproved}, true},
		{"expired", []models.EventKind{models.EventPublished, models.EventExpired}, true},
		{"closed manually", []models.EventKind{models.EventPublished, models.EventClosedManually}, true},
		{"closed then reopened still counts", []models.EventKind{models.EventExpired, models.EventReopened}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			ctx := context.Background()

			c, err := env.lifecycle.CreateCollection(ctx, "Test", []string{"1"})
			if err != nil {
				t.Fatalf("CreateCollection: %v", err)
			}
			for _, kind := range tt.events {
				if _, err := env.history.Append(ctx, c.ID, kind, "", nil); err != nil {
					t.Fatalf("Append(%s): %v", kind, err)
				}
			}

			got, err := env.history.HasBeenClosed(ctx, c.ID)
			if err != nil {
				t.Fatalf("HasBeenClosed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasBeenClosed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHistoryTimeOfLast(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	c, err := env.lifecycle.CreateCollection(ctx, "Test", []string{"1"})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	first, err := env.history.Append(ctx, c.ID, models.EventSentToNewClient, "", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	env.advance(time.Hour)
	second, err := env.history.Append(ctx, c.ID, models.EventSentToNewClient, "", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.Time <= first.Time {
		t.Fatalf("expected strictly increasing keys, got %d then %d", first.Time, second.Time)
	}

	got, err := env.history.TimeOfLast(ctx, c.ID, models.EventSentToNewClient)
	if err != nil {
		t.Fatalf("TimeOfLast: %v", err)
	}
	if got.Unix() != second.Time {
		t.Errorf("TimeOfLast = %d, want %d", got.Unix(), second.Time)
	}

	got, err = env.history.TimeOfLast(ctx, c.ID, models.EventDelivered)
	if err != nil {
		t.Fatalf("TimeOfLast: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("TimeOfLast for absent kind = %v, want zero", got)
	}
}
