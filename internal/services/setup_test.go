package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/repo"
)

// newTestDB opens a throwaway SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services_test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newOrderService(t *testing.T, db *gorm.DB) *OrderService {
	t.Helper()
	return NewOrderService(db, zerolog.Nop())
}

func newIngestService(t *testing.T, db *gorm.DB) *IngestService {
	t.Helper()
	return NewIngestService(db, newOrderService(t, db), zerolog.Nop())
}

// seedIdentity inserts one customer and one group for tests that bypass
// resolution.
func seedIdentity(t *testing.T, db *gorm.DB) (*domain.Customer, *domain.Group) {
	t.Helper()
	ctx := context.Background()
	c := &domain.Customer{Name: "Asha Rao", Phone: "+15550100", ChannelID: "chan-asha"}
	if err := repo.CreateCustomer(ctx, db, c); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	g := &domain.Group{ExternalID: "grp-1", Name: "Morning Orders"}
	if err := repo.CreateGroup(ctx, db, g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	return c, g
}

// seedOrder inserts a pending order with the given lines, at the given
// creation time, for the seeded identity.
func seedOrder(t *testing.T, db *gorm.DB, customerID, groupID, messageID string, createdAt time.Time, lines ...domain.OrderLine) *domain.Order {
	t.Helper()
	ctx := context.Background()
	o := &domain.Order{
		CustomerID: customerID,
		GroupID:    groupID,
		MessageID:  messageID,
		OrderDate:  createdAt,
		OrderTime:  "09:30 AM",
		CreatedAt:  createdAt,
	}
	if err := repo.CreateOrder(ctx, db, o); err != nil {
		t.Fatalf("CreateOrder(%s): %v", messageID, err)
	}
	for i := range lines {
		lines[i].OrderID = o.ID
	}
	if err := repo.CreateOrderLines(ctx, db, lines); err != nil {
		t.Fatalf("CreateOrderLines(%s): %v", messageID, err)
	}
	o.Lines = lines
	return o
}

func orderEvent(id, content string) MessageEvent {
	return MessageEvent{
		MessageID:   id,
		GroupID:     "grp-1",
		SenderID:    "chan-asha",
		SenderName:  "Asha Rao",
		Content:     content,
		MessageType: "text",
		Timestamp:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
	}
}
