// Package services – IngestService
//
// This file implements IngestService, the entry point of the pipeline. It
// owns the message ledger (the idempotency gate), runs extraction and the
// validation gate, and hands classified orders to the OrderService for
// materialization.
//
// Delivery is at-least-once: the same message event may arrive twice, or a
// batch may replay after a partial failure. The ledger's unique external
// message id makes every path through ProcessMessage idempotent — the
// second delivery short-circuits to a "skipped" result before any
// extraction work happens.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the external message id.
package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/repo"
)

// Result status values reported to the task orchestrator.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// MessageEvent is one raw message as delivered by the chat-reading
// collaborator. The struct mirrors the event source's payload; the pipeline
// treats it as immutable input.
type MessageEvent struct {
	MessageID   string    `json:"message_id"`
	GroupID     string    `json:"group_id"`
	SenderID    string    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	Content     string    `json:"content"`
	MessageType string    `json:"message_type"`
	Timestamp   time.Time `json:"timestamp"`
}

// Result is the structured outcome of processing one message event.
type Result struct {
	Status     string `json:"status"`
	MessageID  string `json:"message_id"`
	Reason     string `json:"reason,omitempty"`
	IsOrder    bool   `json:"is_order"`
	OrderID    string `json:"order_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	ItemCount  int    `json:"item_count,omitempty"`
}

// IngestService coordinates the ledger, the extraction engine, and order
// materialization.
type IngestService struct {
	DB     *gorm.DB
	Orders *OrderService
	Log    zerolog.Logger
}

// NewIngestService constructs an IngestService.
func NewIngestService(db *gorm.DB, orders *OrderService, log zerolog.Logger) *IngestService {
	return &IngestService{DB: db, Orders: orders, Log: log.With().Str("component", "ingest").Logger()}
}

// ProcessMessage runs one event through the full pipeline: ledger insert,
// extraction, validation, and — for classified orders — materialization.
//
// Outcomes:
//   - re-delivered message id: Result{Status: skipped}, nil error
//   - missing required fields: Result{Status: error}, ErrMissingFields
//   - non-order chatter: Result{Status: success, IsOrder: false}
//   - order: Result{Status: success, IsOrder: true, OrderID: ...}
//
// On a mid-pipeline failure the ledger row is left unprocessed so the
// reprocessing sweep can pick the message up again; re-execution is safe
// because materialization short-circuits on the existing order.
func (s *IngestService) ProcessMessage(ctx context.Context, ev MessageEvent) (Result, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "ProcessMessage",
		trace.WithAttributes(attribute.String("message.id", ev.MessageID)),
	)
	defer span.End()

	if err := validateEvent(ev); err != nil {
		s.Log.Warn().Str("message_id", ev.MessageID).Err(err).Msg("rejected malformed event")
		return Result{Status: StatusError, MessageID: ev.MessageID, Reason: err.Error()}, err
	}

	msg := &domain.Message{
		MessageID:   ev.MessageID,
		GroupID:     ev.GroupID,
		SenderID:    ev.SenderID,
		SenderName:  ev.SenderName,
		Content:     ev.Content,
		MessageType: ev.MessageType,
		Timestamp:   ev.Timestamp.UTC(),
	}
	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		if repo.IsDuplicate(err) {
			s.Log.Debug().Str("message_id", ev.MessageID).Msg("message already processed")
			return Result{Status: StatusSkipped, MessageID: ev.MessageID, Reason: "already_processed"}, nil
		}
		return Result{Status: StatusError, MessageID: ev.MessageID, Reason: err.Error()}, err
	}

	return s.classifyAndMaterialize(ctx, msg)
}

// classifyAndMaterialize runs extraction on an already-recorded ledger row.
// It is shared between first delivery and the reprocessing sweep.
func (s *IngestService) classifyAndMaterialize(ctx context.Context, msg *domain.Message) (Result, error) {
	cand := extract.Normalize(extract.Extract(msg.Content, msg.SenderName))

	snapshot, err := json.Marshal(cand)
	if err != nil {
		return Result{Status: StatusError, MessageID: msg.MessageID, Reason: err.Error()}, err
	}
	if err := repo.SetMessageOutcome(ctx, s.DB, msg.ID, cand.IsOrder, snapshot); err != nil {
		return Result{Status: StatusError, MessageID: msg.MessageID, Reason: err.Error()}, err
	}

	if !cand.IsOrder {
		if err := repo.MarkMessageProcessed(ctx, s.DB, msg.ID); err != nil {
			return Result{Status: StatusError, MessageID: msg.MessageID, Reason: err.Error()}, err
		}
		s.Log.Info().Str("message_id", msg.MessageID).Msg("message processed, no order found")
		return Result{Status: StatusSuccess, MessageID: msg.MessageID, IsOrder: false}, nil
	}

	order, err := s.Orders.Materialize(ctx, msg, cand)
	if err != nil {
		// Ledger row stays unprocessed; the sweep will retry.
		s.Log.Error().Str("message_id", msg.MessageID).Err(err).Msg("order materialization failed")
		return Result{Status: StatusError, MessageID: msg.MessageID, Reason: err.Error()}, err
	}
	if err := repo.MarkMessageProcessed(ctx, s.DB, msg.ID); err != nil {
		return Result{Status: StatusError, MessageID: msg.MessageID, Reason: err.Error()}, err
	}

	s.Log.Info().
		Str("message_id", msg.MessageID).
		Str("order_id", order.ID).
		Int("items", len(order.Lines)).
		Msg("order materialized")
	return Result{
		Status:     StatusSuccess,
		MessageID:  msg.MessageID,
		IsOrder:    true,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		ItemCount:  len(order.Lines),
	}, nil
}

// ProcessBatch fans a bulk delivery out to ProcessMessage, one result per
// event, in input order. Individual failures do not abort the batch.
func (s *IngestService) ProcessBatch(ctx context.Context, events []MessageEvent) []Result {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "ProcessBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(events))),
	)
	defer span.End()

	out := make([]Result, 0, len(events))
	for _, ev := range events {
		res, err := s.ProcessMessage(ctx, ev)
		if err != nil && res.Status == "" {
			res = Result{Status: StatusError, MessageID: ev.MessageID, Reason: err.Error()}
		}
		out = append(out, res)
	}
	return out
}

// ReprocessFailed re-runs classification for messages that never completed
// the pipeline, looking back over the given window. Rows that failed before
// classification even ran are included; re-execution is safe because
// extraction is deterministic and materialization short-circuits on the
// existing order. Returns the per-message results.
func (s *IngestService) ReprocessFailed(ctx context.Context, lookback time.Duration) ([]Result, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "ReprocessFailed")
	defer span.End()

	stuck, err := repo.ListUnprocessedMessages(ctx, s.DB, time.Now().UTC().Add(-lookback))
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(stuck))
	for i := range stuck {
		res, err := s.classifyAndMaterialize(ctx, &stuck[i])
		if err != nil {
			s.Log.Warn().Str("message_id", stuck[i].MessageID).Err(err).Msg("reprocess attempt failed")
		}
		out = append(out, res)
	}
	return out, nil
}

// CleanupStaleMessages drops processed non-order ledger rows older than the
// retention window and reports the deleted count.
func (s *IngestService) CleanupStaleMessages(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := repo.DeleteStaleMessages(ctx, s.DB, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info().Int64("deleted", n).Msg("cleaned up stale messages")
	}
	return n, nil
}

// validateEvent enforces the required event fields.
func validateEvent(ev MessageEvent) error {
	if strings.TrimSpace(ev.MessageID) == "" ||
		strings.TrimSpace(ev.GroupID) == "" ||
		strings.TrimSpace(ev.SenderID) == "" ||
		strings.TrimSpace(ev.Content) == "" ||
		ev.Timestamp.IsZero() {
		return ErrMissingFields
	}
	return nil
}
