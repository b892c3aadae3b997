// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// ledger — the table that records every inbound chat message exactly once
// and anchors pipeline idempotency.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - A missing record yields ErrNotFound (gorm.ErrRecordNotFound).
//   - CreateMessage returns ErrDuplicate when the external message id was
//     already recorded; callers treat that as the idempotent-skip signal.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/domain"
)

// CreateMessage inserts a ledger row for an inbound message event. The
// external message id carries a unique index; a re-delivered event returns
// ErrDuplicate without touching the database.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MessageType == "" {
		m.MessageType = "text"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetMessageByExternalID fetches a ledger row by its external message id,
// or ErrNotFound.
func GetMessageByExternalID(ctx context.Context, db *gorm.DB, messageID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMessageOutcome stores the classification flag and the normalized
// extraction snapshot for a message. Returns ErrNotFound when the row is
// missing.
func SetMessageOutcome(ctx context.Context, db *gorm.DB, id string, isOrder bool, extracted []byte) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_order":  isOrder,
			"extracted": extracted,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkMessageProcessed flips the processed flag once the full pipeline has
// completed for the message.
func MarkMessageProcessed(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Update("is_processed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListUnprocessedMessages returns messages that never completed the
// pipeline, created at or after since. This deliberately includes rows
// that failed before classification ran (is_order still false, no
// snapshot); re-running them is safe because extraction is deterministic
// and materialization short-circuits on the existing order. Ordering is
// oldest-first so retries roughly preserve arrival order.
func ListUnprocessedMessages(ctx context.Context, db *gorm.DB, since time.Time) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("is_processed = ? AND created_at >= ?", false, since).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// DeleteStaleMessages removes processed, non-order ledger rows created
// before cutoff and reports how many were deleted. Order messages are kept
// indefinitely for audit.
func DeleteStaleMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("created_at < ? AND is_processed = ? AND is_order = ?", cutoff, true, false).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}

// IsDuplicate reports whether err is the ledger's duplicate signal.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }
