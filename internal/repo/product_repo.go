// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the catalog lookups used by order
// enhancement.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// FindProductByFuzzyName returns the first active catalog product whose
// name contains the given free-text name (case-insensitive), or
// ErrNotFound. Line names come straight from chat text, so exact matches
// are the exception.
func FindProductByFuzzyName(ctx context.Context, db *gorm.DB, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	var p domain.Product
	err := db.WithContext(ctx).
		Where("is_active = ? AND LOWER(name) LIKE ?", true, "%"+strings.ToLower(name)+"%").
		Order("name asc").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
