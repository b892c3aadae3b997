// Package handlers provides HTTP handler implementations for the ops API.
//
// This file implements the message-ingest webhook. The chat-reading
// collaborator POSTs message events here, singly or in bulk; each delivery
// is enqueued onto the task pool and answered with 202 plus the task id(s)
// the caller can poll. Delivery is at-least-once by contract, so replays
// of the same external message id are harmless: the pipeline's ledger
// reports them as skipped.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/tasks"
)

// WebhookHandler enqueues inbound message events for processing.
//
// MergeWindow bounds the duplicate-order merge that follows a successful
// materialization: pending orders the same customer placed within the
// window collapse into one.
type WebhookHandler struct {
	Ingest      *services.IngestService
	Orders      *services.OrderService
	Pool        *tasks.Pool
	Log         zerolog.Logger
	MergeWindow time.Duration
}

// enqueueResponse is returned for a single accepted event.
type enqueueResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// enqueueBatchResponse is returned for an accepted bulk delivery.
type enqueueBatchResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// PostMessage accepts one message event and enqueues it.
//
//	POST /webhook/messages
func (h *WebhookHandler) PostMessage(c *gin.Context) {
	var ev services.MessageEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid message event payload")
		return
	}

	id, err := h.Pool.Submit(tasks.QueueMessages, "process_message", func(ctx context.Context) (any, error) {
		res, err := h.Ingest.ProcessMessage(ctx, ev)
		if err != nil {
			return res, classify(err)
		}
		h.followUp(res)
		return res, nil
	})
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeEnqueueFailed, "could not enqueue message")
		return
	}
	ok(c, http.StatusAccepted, enqueueResponse{TaskID: id, Status: tasks.TaskQueued})
}

// PostBatch accepts a bulk delivery of message events as one unit of work.
//
//	POST /webhook/messages/batch
func (h *WebhookHandler) PostBatch(c *gin.Context) {
	var events []services.MessageEvent
	if err := c.ShouldBindJSON(&events); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid batch payload")
		return
	}
	if len(events) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "batch must contain at least one event")
		return
	}

	id, err := h.Pool.Submit(tasks.QueueMessages, "process_batch", func(ctx context.Context) (any, error) {
		results := h.Ingest.ProcessBatch(ctx, events)
		for _, res := range results {
			h.followUp(res)
		}
		return results, nil
	})
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeEnqueueFailed, "could not enqueue batch")
		return
	}
	ok(c, http.StatusAccepted, enqueueBatchResponse{TaskID: id, Status: tasks.TaskQueued, Count: len(events)})
}

// followUp enqueues the post-materialization work for a newly created
// order: catalog enrichment, then a duplicate merge for the customer.
// Both are best-effort; a full pool drops them and the next sweep or
// delivery catches up, but a drop is still worth a log line.
func (h *WebhookHandler) followUp(res services.Result) {
	if res.Status != services.StatusSuccess || res.OrderID == "" {
		return
	}
	orderID, customerID := res.OrderID, res.CustomerID
	if _, err := h.Pool.Submit(tasks.QueueOrders, "enhance_order", func(ctx context.Context) (any, error) {
		return nil, classify(h.Orders.EnhanceOrder(ctx, orderID))
	}); err != nil {
		h.Log.Warn().Str("order_id", orderID).Err(err).Msg("enhance follow-up not enqueued")
	}
	if _, err := h.Pool.Submit(tasks.QueueOrders, "merge_duplicates", func(ctx context.Context) (any, error) {
		n, err := h.Orders.MergeDuplicates(ctx, customerID, h.MergeWindow)
		return n, classify(err)
	}); err != nil {
		h.Log.Warn().Str("customer_id", customerID).Err(err).Msg("merge follow-up not enqueued")
	}
}
