package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-order-backend/internal/domain"
)

func TestFindProductByFuzzyName(t *testing.T) {
	db := newTestDB(t, &domain.Product{})

	seed := []domain.Product{
		{ID: uuid.NewString(), Name: "Basmati Rice", Price: "₹120", Category: "grains", IsActive: true},
		{ID: uuid.NewString(), Name: "Brown Bread", Price: "$2.50", Category: "bakery", IsActive: true},
		{ID: uuid.NewString(), Name: "Rice Flour", Price: "80", Category: "grains", IsActive: false},
	}
	for _, p := range seed {
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed %s: %v", p.Name, err)
		}
	}

	got, err := FindProductByFuzzyName(context.Background(), db, "rice")
	if err != nil {
		t.Fatalf("FindProductByFuzzyName: %v", err)
	}
	// "Rice Flour" also matches but is inactive; "Basmati Rice" wins.
	if got.Name != "Basmati Rice" {
		t.Fatalf("matched %q", got.Name)
	}

	if _, err := FindProductByFuzzyName(context.Background(), db, "caviar"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := FindProductByFuzzyName(context.Background(), db, "  "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank name must be ErrNotFound, got %v", err)
	}
}

func TestCreateAndGetSummary(t *testing.T) {
	db := newTestDB(t, &domain.Summary{})

	s := &domain.Summary{
		Kind:        domain.SummaryDaily,
		SummaryDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		TotalOrders: 2, TotalCustomers: 1, TotalItems: 6,
		Payload: []byte(`{"total_orders":2}`),
	}
	if err := CreateSummary(context.Background(), db, s); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}
	got, err := GetSummary(context.Background(), db, s.ID)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if got.Kind != domain.SummaryDaily || got.TotalItems != 6 || len(got.Payload) == 0 {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	if _, err := GetSummary(context.Background(), db, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
