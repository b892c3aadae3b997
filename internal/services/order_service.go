// Package services – OrderService
//
// This file implements OrderService, which owns everything that happens to
// an order after classification: customer and group resolution, atomic
// materialization, duplicate merging, lifecycle transitions (including the
// auto-confirm timeout sweep), totals recomputation, and catalog
// enhancement.
//
// Concurrency model: identity resolution relies on the storage layer's
// uniqueness constraints rather than application locks — when two workers
// race to create the same customer, exactly one insert wins and the loser
// re-runs its lookup. Materialization and merging each run inside a single
// transaction so partial orders (header without lines, or lines pointing
// at a deleted order) are never observable.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/repo"
)

// OrderService provides order-level operations on top of the repositories.
type OrderService struct {
	DB  *gorm.DB
	Log zerolog.Logger

	// nameCaser tidies display names for auto-created records.
	nameCaser cases.Caser
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, log zerolog.Logger) *OrderService {
	return &OrderService{
		DB:        db,
		Log:       log.With().Str("component", "orders").Logger(),
		nameCaser: cases.Title(language.Und, cases.NoLower),
	}
}

// MergeOutcome describes the result of a duplicate-merge pass.
type MergeOutcome struct {
	PrimaryOrderID string   `json:"primary_order_id,omitempty"`
	MergedOrderIDs []string `json:"merged_order_ids,omitempty"`
	MergedCount    int      `json:"merged_count"`
}

// Materialize turns a validated candidate plus its ledger row into a
// persisted order with lines, atomically. If an order already exists for
// the message id the existing order is returned unchanged — re-execution
// after a retry is a no-op by construction.
func (s *OrderService) Materialize(ctx context.Context, msg *domain.Message, cand extract.Candidate) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Materialize",
		trace.WithAttributes(attribute.String("message.id", msg.MessageID)),
	)
	defer span.End()

	if len(cand.Items) == 0 {
		return nil, ErrNoValidItems
	}

	// Idempotency short-circuit before any side effects.
	if existing, err := repo.GetOrderByMessageID(ctx, s.DB, msg.MessageID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// Customers and groups are persisted immediately, outside the order
	// transaction: a rolled-back order may still leave the identity behind,
	// which is harmless and keeps creation races short.
	customer, err := s.ResolveCustomer(ctx, msg.SenderID, "", firstNonBlank(cand.CustomerName, msg.SenderName))
	if err != nil {
		return nil, err
	}
	group, err := s.ResolveGroup(ctx, msg.GroupID)
	if err != nil {
		return nil, err
	}

	orderTime := cand.OrderTime
	if orderTime == "" {
		orderTime = msg.Timestamp.UTC().Format("03:04 PM")
	}

	order := &domain.Order{
		CustomerID:  customer.ID,
		GroupID:     group.ID,
		MessageID:   msg.MessageID,
		OrderDate:   msg.Timestamp.UTC(),
		OrderTime:   orderTime,
		Notes:       cand.Err, // extraction annotation, usually empty
		RawMessage:  msg.Content,
		IsProcessed: true,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		lines := make([]domain.OrderLine, 0, len(cand.Items))
		for _, it := range cand.Items {
			lines = append(lines, domain.OrderLine{
				OrderID:     order.ID,
				ProductName: it.Name,
				Quantity:    it.Quantity,
				Unit:        it.Unit,
				Notes:       it.Notes,
			})
		}
		if err := repo.CreateOrderLines(ctx, tx, lines); err != nil {
			return err
		}
		order.Lines = lines
		if _, err := repo.RecountCustomerOrders(ctx, tx, customer.ID); err != nil {
			return err
		}
		return repo.TouchGroup(ctx, tx, group.ID, msg.Timestamp.UTC())
	})
	if err != nil {
		// A concurrent worker may have materialized the same message
		// between the short-circuit check and our insert.
		if repo.IsDuplicate(err) {
			return repo.GetOrderByMessageID(ctx, s.DB, msg.MessageID)
		}
		return nil, err
	}

	if err := s.RecalculateTotals(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// ResolveCustomer maps a sender identity to a durable customer record,
// creating one when absent. Resolution order: channel id, then phone
// number, then creation with best-effort fallbacks (a synthesized phone
// derived from the channel id, and a generated display name).
//
// When creation loses a uniqueness race the lookup is re-run and the
// winner's row is adopted.
func (s *OrderService) ResolveCustomer(ctx context.Context, channelID, phone, name string) (*domain.Customer, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, ErrCustomerUnresolved
	}

	if c, err := repo.GetCustomerByChannelID(ctx, s.DB, channelID); err == nil {
		return c, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if phone != "" {
		if c, err := repo.GetCustomerByPhone(ctx, s.DB, phone); err == nil {
			return c, nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	displayName := strings.TrimSpace(name)
	if displayName == "" {
		displayName = "Customer " + channelID
	} else {
		displayName = s.nameCaser.String(displayName)
	}
	c := &domain.Customer{
		Name:      displayName,
		Phone:     firstNonBlank(phone, "+"+channelID),
		ChannelID: channelID,
	}
	err := repo.CreateCustomer(ctx, s.DB, c)
	if err == nil {
		s.Log.Info().Str("customer_id", c.ID).Str("channel_id", channelID).Msg("created customer")
		return c, nil
	}
	if !repo.IsDuplicate(err) {
		return nil, err
	}

	// Lost the creation race: adopt the winner.
	if c, err := repo.GetCustomerByChannelID(ctx, s.DB, channelID); err == nil {
		return c, nil
	}
	if phone != "" {
		if c, err := repo.GetCustomerByPhone(ctx, s.DB, phone); err == nil {
			return c, nil
		}
	}
	return nil, ErrCustomerUnresolved
}

// ResolveGroup maps an external group id to a group record, creating one
// lazily on first reference. Creation races resolve the same way as
// customers.
func (s *OrderService) ResolveGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, ErrGroupUnresolved
	}
	if g, err := repo.GetGroupByExternalID(ctx, s.DB, groupID); err == nil {
		return g, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	g := &domain.Group{
		ExternalID:  groupID,
		Name:        "Group " + groupID,
		Description: "Auto-created from message processing",
	}
	err := repo.CreateGroup(ctx, s.DB, g)
	if err == nil {
		return g, nil
	}
	if !repo.IsDuplicate(err) {
		return nil, err
	}
	if g, err := repo.GetGroupByExternalID(ctx, s.DB, groupID); err == nil {
		return g, nil
	}
	return nil, ErrGroupUnresolved
}

// MergeDuplicates folds a customer's pending orders created within the
// trailing window into the earliest one. Lines are reassigned, notes are
// appended with provenance, and the emptied order rows are deleted — all
// in one transaction. Fewer than two orders in the window is a no-op.
func (s *OrderService) MergeDuplicates(ctx context.Context, customerID string, window time.Duration) (MergeOutcome, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "MergeDuplicates",
		trace.WithAttributes(attribute.String("customer.id", customerID)),
	)
	defer span.End()

	var outcome MergeOutcome
	cutoff := time.Now().UTC().Add(-window)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recent, err := repo.ListPendingOrdersSince(ctx, tx, customerID, cutoff)
		if err != nil {
			return err
		}
		if len(recent) < 2 {
			return nil
		}

		primary := recent[0]
		notes := primary.Notes
		for _, dupe := range recent[1:] {
			if err := repo.ReassignOrderLines(ctx, tx, dupe.ID, primary.ID); err != nil {
				return err
			}
			if strings.TrimSpace(dupe.Notes) != "" {
				notes = strings.TrimSpace(notes + "\nMerged: " + dupe.Notes)
			}
			if err := repo.DeleteOrder(ctx, tx, dupe.ID); err != nil {
				return err
			}
			outcome.MergedOrderIDs = append(outcome.MergedOrderIDs, dupe.ID)
		}
		if notes != primary.Notes {
			if err := tx.Model(&domain.Order{}).Where("id = ?", primary.ID).
				Update("notes", notes).Error; err != nil {
				return err
			}
		}
		if _, err := repo.RecountCustomerOrders(ctx, tx, customerID); err != nil {
			return err
		}
		outcome.PrimaryOrderID = primary.ID
		outcome.MergedCount = len(outcome.MergedOrderIDs)
		return nil
	})
	if err != nil {
		return MergeOutcome{}, err
	}

	if outcome.MergedCount > 0 {
		if err := s.RecalculateTotals(ctx, outcome.PrimaryOrderID); err != nil {
			return outcome, err
		}
		s.Log.Info().
			Str("customer_id", customerID).
			Str("primary_order_id", outcome.PrimaryOrderID).
			Int("merged", outcome.MergedCount).
			Msg("merged duplicate orders")
	}
	return outcome, nil
}

// AutoConfirmStale moves orders still pending past the timeout to
// auto_confirmed, annotating the notes so staff can tell timeouts from
// genuine confirmations. Returns the ids of the orders it flipped.
func (s *OrderService) AutoConfirmStale(ctx context.Context, timeout time.Duration) ([]string, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "AutoConfirmStale")
	defer span.End()

	stale, err := repo.ListStalePending(ctx, s.DB, time.Now().UTC().Add(-timeout))
	if err != nil {
		return nil, err
	}
	var flipped []string
	for _, o := range stale {
		if !domain.CanTransition(o.Status, domain.StatusAutoConfirmed) {
			continue
		}
		notes := strings.TrimSpace(o.Notes + "\n" + fmt.Sprintf("[AUTO] Confirmed after %s timeout", timeout))
		if err := repo.UpdateOrderStatus(ctx, s.DB, o.ID, domain.StatusAutoConfirmed, notes); err != nil {
			s.Log.Error().Str("order_id", o.ID).Err(err).Msg("auto-confirm failed")
			continue
		}
		flipped = append(flipped, o.ID)
	}
	if len(flipped) > 0 {
		s.Log.Info().Int("count", len(flipped)).Msg("auto-confirmed stale orders")
	}
	return flipped, nil
}

// UpdateStatus applies a lifecycle transition requested by an operator.
// Illegal moves return ErrInvalidTransition; the note, when non-empty,
// replaces the order notes.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status, note string) (*domain.Order, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !domain.CanTransition(o.Status, status) {
		return nil, ErrInvalidTransition
	}
	notes := o.Notes
	if strings.TrimSpace(note) != "" {
		notes = note
	}
	if err := repo.UpdateOrderStatus(ctx, s.DB, orderID, status, notes); err != nil {
		return nil, err
	}
	o.Status = status
	o.Notes = notes
	return o, nil
}

// RecalculateTotals recomputes the denormalized totals for an order.
// Total items is the sum of line quantities. Total amount sums parsed
// unit price × quantity; lines whose price does not parse are logged and
// excluded from the amount, but still count toward item totals.
func (s *OrderService) RecalculateTotals(ctx context.Context, orderID string) error {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	totalItems := 0
	totalAmount := 0.0
	for _, line := range o.Lines {
		totalItems += line.Quantity
		if line.UnitPrice == "" {
			continue
		}
		price, ok := parsePrice(line.UnitPrice)
		if !ok {
			s.Log.Warn().
				Str("order_id", orderID).
				Str("line_id", line.ID).
				Str("unit_price", line.UnitPrice).
				Msg("could not parse unit price")
			continue
		}
		totalAmount += price * float64(line.Quantity)
	}
	return repo.UpdateOrderTotals(ctx, s.DB, orderID, totalItems, totalAmount)
}

// EnhanceOrder backfills catalog matches onto an order's lines: a fuzzy
// product-name match links the line to the product and, when the line has
// no price yet, adopts the catalog price. Totals are recomputed afterwards.
func (s *OrderService) EnhanceOrder(ctx context.Context, orderID string) error {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "EnhanceOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	for _, line := range o.Lines {
		p, err := repo.FindProductByFuzzyName(ctx, s.DB, line.ProductName)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			return err
		}
		updates := map[string]any{"product_id": p.ID}
		if line.UnitPrice == "" && p.Price != "" {
			updates["unit_price"] = p.Price
		}
		if err := s.DB.WithContext(ctx).
			Model(&domain.OrderLine{}).
			Where("id = ?", line.ID).
			Updates(updates).Error; err != nil {
			return err
		}
	}
	return s.RecalculateTotals(ctx, orderID)
}

// currencyRunes are stripped from the front of price strings before
// numeric parsing. Unrecognized formats simply fail to parse and are
// excluded from amounts (logged, not fatal).
var currencyReplacer = strings.NewReplacer("₹", "", "$", "", "€", "", "£", "", ",", "")

// parsePrice converts display text like "₹120" or "$3.50" to a number.
func parsePrice(raw string) (float64, bool) {
	cleaned := strings.TrimSpace(currencyReplacer.Replace(raw))
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// firstNonBlank returns the first string that is not blank after trimming.
func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
