package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/tasks"
)

// TaskHandler exposes the orchestrator's task status store.
type TaskHandler struct {
	Pool *tasks.Pool
}

// GetTask returns the status, attempts, failure reason, and result of a
// submitted task. Unknown ids (never submitted, or evicted from the
// retention window) yield 404.
//
//	GET /tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	info, found := h.Pool.Status(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
		return
	}
	ok(c, http.StatusOK, info)
}
