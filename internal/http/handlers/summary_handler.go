// Package handlers – summary endpoints.
//
// These endpoints expose the aggregation engine read-only. Dates are UTC
// calendar days in "2006-01-02" form; omitted dates default to today
// (daily) or the current week's Monday (weekly).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/tasks"
	"github.com/tbourn/go-order-backend/internal/utils"
)

// SummaryHandler serves aggregation queries and snapshot generation.
type SummaryHandler struct {
	Summaries *services.SummaryService
	Pool      *tasks.Pool
}

// GetDaily returns the daily summary.
//
//	GET /summaries/daily?date=2006-01-02&group_id=...
func (h *SummaryHandler) GetDaily(c *gin.Context) {
	day, okDate := parseDateParam(c, "date", time.Now().UTC())
	if !okDate {
		return
	}
	out, err := h.Summaries.Daily(c.Request.Context(), day, c.Query("group_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSummaryFailed, "could not build daily summary")
		return
	}
	ok(c, http.StatusOK, out)
}

// GetWeekly returns the weekly summary.
//
//	GET /summaries/weekly?week_start=2006-01-02&group_id=...
func (h *SummaryHandler) GetWeekly(c *gin.Context) {
	now := time.Now().UTC()
	// Default to the Monday of the current week.
	monday := now.AddDate(0, 0, -((int(now.Weekday()) + 6) % 7))
	start, okDate := parseDateParam(c, "week_start", monday)
	if !okDate {
		return
	}
	out, err := h.Summaries.Weekly(c.Request.Context(), start, c.Query("group_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSummaryFailed, "could not build weekly summary")
		return
	}
	ok(c, http.StatusOK, out)
}

// GetCustomer returns one customer's trailing-window analysis.
//
//	GET /summaries/customers/:id?days_back=30
func (h *SummaryHandler) GetCustomer(c *gin.Context) {
	daysBack := utils.AtoiDefault(c.Query("days_back"), 30)
	if daysBack < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "days_back must be >= 1")
		return
	}
	out, err := h.Summaries.Customer(c.Request.Context(), c.Param("id"), daysBack)
	if err != nil {
		if errors.Is(err, services.ErrCustomerNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "customer not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeSummaryFailed, "could not build customer summary")
		return
	}
	ok(c, http.StatusOK, out)
}

// GetProducts returns product popularity over a trailing window.
//
//	GET /summaries/products?days_back=30
func (h *SummaryHandler) GetProducts(c *gin.Context) {
	daysBack := utils.AtoiDefault(c.Query("days_back"), 30)
	if daysBack < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "days_back must be >= 1")
		return
	}
	out, err := h.Summaries.Product(c.Request.Context(), daysBack)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSummaryFailed, "could not build product summary")
		return
	}
	ok(c, http.StatusOK, out)
}

// generateRequest is the body for POST /summaries/generate.
type generateRequest struct {
	Date    string `json:"date"` // 2006-01-02; empty = today
	GroupID string `json:"group_id"`
}

// PostGenerate enqueues a persisted daily snapshot and returns the task id.
//
//	POST /summaries/generate
func (h *SummaryHandler) PostGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid generate payload")
		return
	}
	day := time.Now().UTC()
	if req.Date != "" {
		d, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be formatted as 2006-01-02")
			return
		}
		day = d
	}

	groupID := req.GroupID
	id, err := h.Pool.Submit(tasks.QueueSummaries, "generate_summary", func(ctx context.Context) (any, error) {
		snap, _, err := h.Summaries.SaveDaily(ctx, day, groupID)
		if err != nil {
			return nil, classify(err)
		}
		return map[string]string{"summary_id": snap.ID}, nil
	})
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeEnqueueFailed, "could not enqueue summary generation")
		return
	}
	ok(c, http.StatusAccepted, enqueueResponse{TaskID: id, Status: tasks.TaskQueued})
}

// parseDateParam reads a "2006-01-02" query param, falling back to def when
// absent. On a malformed value it writes a 400 and reports false.
func parseDateParam(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be formatted as 2006-01-02")
		return time.Time{}, false
	}
	return d, true
}
