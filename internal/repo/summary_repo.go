// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists aggregation snapshots. Summary rows
// are written once and never updated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// CreateSummary inserts a snapshot row.
func CreateSummary(ctx context.Context, db *gorm.DB, s *domain.Summary) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(s).Error
}

// GetSummary fetches a snapshot by id, or ErrNotFound.
func GetSummary(ctx context.Context, db *gorm.DB, id string) (*domain.Summary, error) {
	var s domain.Summary
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
