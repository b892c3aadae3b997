package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/services"
)

// OrderHandler exposes operator actions on orders.
type OrderHandler struct {
	Orders *services.OrderService
}

// statusUpdateRequest is the body for PUT /orders/:id/status.
type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// UpdateStatus applies a lifecycle transition. Illegal moves (backwards,
// out of a terminal state, or skipping confirmation) yield 409.
//
//	PUT /orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status is required")
		return
	}

	o, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "order not found")
		case errors.Is(err, services.ErrInvalidTransition):
			fail(c, http.StatusConflict, ErrCodeConflict, "illegal status transition")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update order")
		}
		return
	}
	ok(c, http.StatusOK, o)
}
