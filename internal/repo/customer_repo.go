// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Customer
// identity records.
//
// Customers carry two uniquely-indexed identity keys (channel id and phone
// number). CreateCustomer surfaces ErrDuplicate on a constraint collision
// so the resolver can re-run its lookup and adopt the winning row instead
// of crashing — the storage layer, not the application, arbitrates
// concurrent first-contact creation.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// GetCustomerByChannelID fetches a customer by external channel id, or
// ErrNotFound.
func GetCustomerByChannelID(ctx context.Context, db *gorm.DB, channelID string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomerByPhone fetches a customer by phone number, or ErrNotFound.
func GetCustomerByPhone(ctx context.Context, db *gorm.DB, phone string) (*domain.Customer, error) {
	var c domain.Customer
	err := db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCustomer fetches a customer by primary key, or ErrNotFound.
func GetCustomer(ctx context.Context, db *gorm.DB, id string) (*domain.Customer, error) {
	var c domain.Customer
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a new customer row. On a uniqueness collision
// (channel id or phone already taken by a concurrent creation) it returns
// ErrDuplicate.
func CreateCustomer(ctx context.Context, db *gorm.DB, c *domain.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.IsActive = true
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// RecountCustomerOrders recomputes total_orders from the orders table and
// persists the result. The count is derived, never incrementally trusted.
func RecountCustomerOrders(ctx context.Context, db *gorm.DB, customerID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	err = db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("id = ?", customerID).
		Update("total_orders", total).Error
	return total, err
}
