package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-order-backend/internal/domain"
)

func TestCreateCustomer_AndLookups(t *testing.T) {
	db := newTestDB(t, &domain.Customer{})

	c := &domain.Customer{Name: "Asha", Phone: "+9100001", ChannelID: "ch-1"}
	if err := CreateCustomer(context.Background(), db, c); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if c.ID == "" || !c.IsActive {
		t.Fatalf("defaults not applied: %+v", c)
	}

	byChannel, err := GetCustomerByChannelID(context.Background(), db, "ch-1")
	if err != nil || byChannel.ID != c.ID {
		t.Fatalf("GetCustomerByChannelID: %v %+v", err, byChannel)
	}
	byPhone, err := GetCustomerByPhone(context.Background(), db, "+9100001")
	if err != nil || byPhone.ID != c.ID {
		t.Fatalf("GetCustomerByPhone: %v %+v", err, byPhone)
	}
	byID, err := GetCustomer(context.Background(), db, c.ID)
	if err != nil || byID.Name != "Asha" {
		t.Fatalf("GetCustomer: %v %+v", err, byID)
	}
}

func TestCreateCustomer_DuplicateChannelID(t *testing.T) {
	db := newTestDB(t, &domain.Customer{})

	if err := CreateCustomer(context.Background(), db, &domain.Customer{Name: "A", Phone: "+1", ChannelID: "ch-1"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := CreateCustomer(context.Background(), db, &domain.Customer{Name: "B", Phone: "+2", ChannelID: "ch-1"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on channel collision, got %v", err)
	}
	err = CreateCustomer(context.Background(), db, &domain.Customer{Name: "C", Phone: "+1", ChannelID: "ch-2"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on phone collision, got %v", err)
	}
}

func TestGetCustomerByChannelID_Missing(t *testing.T) {
	db := newTestDB(t, &domain.Customer{})
	if _, err := GetCustomerByChannelID(context.Background(), db, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecountCustomerOrders(t *testing.T) {
	db := newTestDB(t)
	c, g := seedCustomerGroup(t, db)

	for i, msgID := range []string{"wa-1", "wa-2", "wa-3"} {
		o := &domain.Order{
			CustomerID: c.ID,
			GroupID:    g.ID,
			MessageID:  msgID,
			OrderDate:  time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		if err := CreateOrder(context.Background(), db, o); err != nil {
			t.Fatalf("seed order %s: %v", msgID, err)
		}
	}

	total, err := RecountCustomerOrders(context.Background(), db, c.ID)
	if err != nil {
		t.Fatalf("RecountCustomerOrders: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	got, err := GetCustomer(context.Background(), db, c.ID)
	if err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	if got.TotalOrders != 3 {
		t.Fatalf("TotalOrders = %d, want 3", got.TotalOrders)
	}
}
