package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-order-backend/internal/domain"
)

func TestCreateGroup_AndLookup(t *testing.T) {
	db := newTestDB(t, &domain.Group{})

	g := &domain.Group{ExternalID: "grp-1", Name: "Morning Orders"}
	if err := CreateGroup(context.Background(), db, g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	got, err := GetGroupByExternalID(context.Background(), db, "grp-1")
	if err != nil {
		t.Fatalf("GetGroupByExternalID: %v", err)
	}
	if got.ID != g.ID || got.Name != "Morning Orders" || !got.IsActive {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.LastMessageAt != nil {
		t.Fatalf("LastMessageAt should start nil, got %v", got.LastMessageAt)
	}
}

func TestCreateGroup_Duplicate(t *testing.T) {
	db := newTestDB(t, &domain.Group{})
	if err := CreateGroup(context.Background(), db, &domain.Group{ExternalID: "grp-1", Name: "A"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := CreateGroup(context.Background(), db, &domain.Group{ExternalID: "grp-1", Name: "B"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestTouchGroup_MonotonicAdvance(t *testing.T) {
	db := newTestDB(t, &domain.Group{})

	g := &domain.Group{ExternalID: "grp-1", Name: "A"}
	if err := CreateGroup(context.Background(), db, g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := TouchGroup(context.Background(), db, g.ID, t1); err != nil {
		t.Fatalf("TouchGroup: %v", err)
	}
	got, _ := GetGroupByExternalID(context.Background(), db, "grp-1")
	if got.LastMessageAt == nil || !got.LastMessageAt.Equal(t1) {
		t.Fatalf("LastMessageAt = %v, want %v", got.LastMessageAt, t1)
	}

	// An older message replayed later must not rewind the marker.
	if err := TouchGroup(context.Background(), db, g.ID, t1.Add(-time.Hour)); err != nil {
		t.Fatalf("TouchGroup (older): %v", err)
	}
	got, _ = GetGroupByExternalID(context.Background(), db, "grp-1")
	if !got.LastMessageAt.Equal(t1) {
		t.Fatalf("marker rewound to %v", got.LastMessageAt)
	}

	t2 := t1.Add(time.Hour)
	if err := TouchGroup(context.Background(), db, g.ID, t2); err != nil {
		t.Fatalf("TouchGroup (newer): %v", err)
	}
	got, _ = GetGroupByExternalID(context.Background(), db, "grp-1")
	if !got.LastMessageAt.Equal(t2) {
		t.Fatalf("marker not advanced, got %v", got.LastMessageAt)
	}
}
