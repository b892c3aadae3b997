// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for conversation
// Group records, which are created lazily on first reference.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// GetGroupByExternalID fetches a group by its external channel id, or
// ErrNotFound.
func GetGroupByExternalID(ctx context.Context, db *gorm.DB, groupID string) (*domain.Group, error) {
	var g domain.Group
	err := db.WithContext(ctx).
		Where("group_id = ?", groupID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGroup inserts a new group row; ErrDuplicate when the external id is
// already present (two messages for a brand-new group racing).
func CreateGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	g.IsActive = true
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// TouchGroup advances last_message_at to ts, but only forward — an older
// message replayed out of order never rewinds the marker.
func TouchGroup(ctx context.Context, db *gorm.DB, id string, ts time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("id = ? AND (last_message_at IS NULL OR last_message_at < ?)", id, ts).
		Update("last_message_at", ts).Error
}
