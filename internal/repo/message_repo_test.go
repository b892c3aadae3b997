package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-order-backend/internal/domain"
)

func testMessage(id string) *domain.Message {
	return &domain.Message{
		MessageID:  id,
		GroupID:    "grp-1",
		SenderID:   "ch-1",
		SenderName: "Asha",
		Content:    "need 2 kg rice",
		Timestamp:  time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestCreateMessage_SetsDefaultsAndPersists(t *testing.T) {
	db := newTestDB(t, &domain.Message{})

	m := testMessage("wa-1")
	if err := CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if m.ID == "" || m.MessageType != "text" || m.CreatedAt.IsZero() {
		t.Fatalf("defaults not applied: %+v", m)
	}

	got, err := GetMessageByExternalID(context.Background(), db, "wa-1")
	if err != nil {
		t.Fatalf("GetMessageByExternalID: %v", err)
	}
	if got.Content != "need 2 kg rice" || got.IsProcessed || got.IsOrder {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateMessage_DuplicateExternalID(t *testing.T) {
	db := newTestDB(t, &domain.Message{})

	if err := CreateMessage(context.Background(), db, testMessage("wa-1")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := CreateMessage(context.Background(), db, testMessage("wa-1"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if !IsDuplicate(err) {
		t.Fatal("IsDuplicate must report true")
	}

	var count int64
	db.Model(&domain.Message{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", count)
	}
}

func TestSetMessageOutcome_AndMarkProcessed(t *testing.T) {
	db := newTestDB(t, &domain.Message{})

	m := testMessage("wa-1")
	if err := CreateMessage(context.Background(), db, m); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if err := SetMessageOutcome(context.Background(), db, m.ID, true, []byte(`{"is_order":true}`)); err != nil {
		t.Fatalf("SetMessageOutcome: %v", err)
	}
	if err := MarkMessageProcessed(context.Background(), db, m.ID); err != nil {
		t.Fatalf("MarkMessageProcessed: %v", err)
	}

	got, err := GetMessageByExternalID(context.Background(), db, "wa-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.IsOrder || !got.IsProcessed || len(got.Extracted) == 0 {
		t.Fatalf("outcome not persisted: %+v", got)
	}
}

func TestSetMessageOutcome_Missing(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	if err := SetMessageOutcome(context.Background(), db, "absent", true, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := MarkMessageProcessed(context.Background(), db, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListUnprocessedMessages(t *testing.T) {
	db := newTestDB(t, &domain.Message{})
	since := time.Now().UTC().Add(-24 * time.Hour)

	stuck := testMessage("wa-stuck")
	if err := CreateMessage(context.Background(), db, stuck); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SetMessageOutcome(context.Background(), db, stuck.ID, true, nil); err != nil {
		t.Fatalf("outcome: %v", err)
	}

	done := testMessage("wa-done")
	if err := CreateMessage(context.Background(), db, done); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SetMessageOutcome(context.Background(), db, done.ID, true, nil); err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if err := MarkMessageProcessed(context.Background(), db, done.ID); err != nil {
		t.Fatalf("processed: %v", err)
	}

	// Failed before classification ever ran: no outcome, no snapshot.
	unclassified := testMessage("wa-unclassified")
	if err := CreateMessage(context.Background(), db, unclassified); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := ListUnprocessedMessages(context.Background(), db, since)
	if err != nil {
		t.Fatalf("ListUnprocessedMessages: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both unfinished messages, got %+v", out)
	}
	got := map[string]bool{}
	for _, m := range out {
		got[m.MessageID] = true
	}
	if !got["wa-stuck"] || !got["wa-unclassified"] {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

func TestDeleteStaleMessages(t *testing.T) {
	db := newTestDB(t, &domain.Message{})

	old := testMessage("wa-old")
	old.CreatedAt = time.Now().UTC().Add(-40 * 24 * time.Hour)
	if err := CreateMessage(context.Background(), db, old); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := MarkMessageProcessed(context.Background(), db, old.ID); err != nil {
		t.Fatalf("processed: %v", err)
	}

	keepOrder := testMessage("wa-order")
	keepOrder.CreatedAt = old.CreatedAt
	if err := CreateMessage(context.Background(), db, keepOrder); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SetMessageOutcome(context.Background(), db, keepOrder.ID, true, nil); err != nil {
		t.Fatalf("outcome: %v", err)
	}
	if err := MarkMessageProcessed(context.Background(), db, keepOrder.ID); err != nil {
		t.Fatalf("processed: %v", err)
	}

	fresh := testMessage("wa-fresh")
	if err := CreateMessage(context.Background(), db, fresh); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := DeleteStaleMessages(context.Background(), db, time.Now().UTC().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteStaleMessages: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if _, err := GetMessageByExternalID(context.Background(), db, "wa-order"); err != nil {
		t.Fatalf("order message must survive cleanup: %v", err)
	}
	if _, err := GetMessageByExternalID(context.Background(), db, "wa-fresh"); err != nil {
		t.Fatalf("fresh message must survive cleanup: %v", err)
	}
}
