// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Order and
// OrderLine rows: materialization primitives, the queries behind the
// duplicate merger and the lifecycle sweep, and the bounded scans consumed
// by the aggregation engine.
//
// The uniqueness invariant "at most one Order per external message id" is
// enforced here via the ux_orders_message index; CreateOrder maps the
// violation to ErrDuplicate so the materializer can short-circuit to the
// existing row.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// GetOrder fetches an order by primary key, lines preloaded, or ErrNotFound.
func GetOrder(ctx context.Context, db *gorm.DB, id string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Lines").
		First(&o, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrderByMessageID fetches the order materialized from a given external
// message id, or ErrNotFound. This is the idempotency short-circuit lookup.
func GetOrderByMessageID(ctx context.Context, db *gorm.DB, messageID string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Lines").
		Where("message_id = ?", messageID).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder inserts an order header. ErrDuplicate when an order already
// exists for the same external message id.
func CreateOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// CreateOrderLines inserts the given lines for an order in one batch.
func CreateOrderLines(ctx context.Context, db *gorm.DB, lines []domain.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.NewString()
		}
		if lines[i].CreatedAt.IsZero() {
			lines[i].CreatedAt = now
		}
	}
	return db.WithContext(ctx).Create(&lines).Error
}

// ListPendingOrdersSince returns a customer's pending orders created at or
// after cutoff, oldest first. The duplicate merger designates the first
// element as the primary order.
func ListPendingOrdersSince(ctx context.Context, db *gorm.DB, customerID string, cutoff time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Lines").
		Where("customer_id = ? AND status = ? AND created_at >= ?", customerID, domain.StatusPending, cutoff).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// ReassignOrderLines moves every line of fromOrderID onto toOrderID.
func ReassignOrderLines(ctx context.Context, db *gorm.DB, fromOrderID, toOrderID string) error {
	return db.WithContext(ctx).
		Model(&domain.OrderLine{}).
		Where("order_id = ?", fromOrderID).
		Update("order_id", toOrderID).Error
}

// DeleteOrder hard-deletes an order row. Only the duplicate merger calls
// this, after its lines have been reassigned.
func DeleteOrder(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Unscoped().
		Delete(&domain.Order{}, "id = ?", id).Error
}

// ListStalePending returns orders still pending whose creation time is at
// or before cutoff — the candidates for auto-confirmation.
func ListStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", domain.StatusPending, cutoff).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// UpdateOrderStatus sets status and notes on an order. Transition
// legality is the service layer's concern; this is plain persistence.
func UpdateOrderStatus(ctx context.Context, db *gorm.DB, id, status, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "notes": notes})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateOrderTotals persists recomputed denormalized totals.
func UpdateOrderTotals(ctx context.Context, db *gorm.DB, id string, totalItems int, totalAmount float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(map[string]any{"total_items": totalItems, "total_amount": totalAmount})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListOrdersForDate returns orders whose order_date falls on the given UTC
// calendar day, optionally restricted to one group, lines and customers
// preloaded, in creation order.
func ListOrdersForDate(ctx context.Context, db *gorm.DB, day time.Time, groupID string) ([]domain.Order, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	q := db.WithContext(ctx).
		Preload("Lines").
		Preload("Customer").
		Where("order_date >= ? AND order_date < ?", start, end)
	if groupID != "" {
		q = q.Where("group_id = ?", groupID)
	}
	var out []domain.Order
	err := q.Order("created_at asc").Find(&out).Error
	return out, err
}

// ListOrdersBetween returns orders with order_date in [start, end),
// optionally restricted to one group, lines preloaded, in creation order.
func ListOrdersBetween(ctx context.Context, db *gorm.DB, start, end time.Time, groupID string) ([]domain.Order, error) {
	q := db.WithContext(ctx).
		Preload("Lines").
		Where("order_date >= ? AND order_date < ?", start, end)
	if groupID != "" {
		q = q.Where("group_id = ?", groupID)
	}
	var out []domain.Order
	err := q.Order("created_at asc").Find(&out).Error
	return out, err
}

// ListOrdersForCustomerSince returns a customer's orders with order_date at
// or after cutoff, newest first, lines preloaded.
func ListOrdersForCustomerSince(ctx context.Context, db *gorm.DB, customerID string, cutoff time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := db.WithContext(ctx).
		Preload("Lines").
		Where("customer_id = ? AND order_date >= ?", customerID, cutoff).
		Order("order_date desc").
		Find(&out).Error
	return out, err
}

// ListLinesSince returns every order line whose parent order has order_date
// at or after cutoff, parent preloaded for customer attribution. Feeds the
// product summary.
func ListLinesSince(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.OrderLine, error) {
	var out []domain.OrderLine
	err := db.WithContext(ctx).
		Preload("Order").
		Joins("JOIN orders ON orders.id = order_lines.order_id").
		Where("orders.order_date >= ? AND orders.deleted_at IS NULL", cutoff).
		Order("order_lines.created_at asc").
		Find(&out).Error
	return out, err
}
