package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"yaadmarket_backend/internal/allocation/service"
	"yaadmarket_backend/internal/allocation/transport"
	"yaadmarket_backend/platform/httpkit"
	"yaadmarket_backend/platform/validator"
)

// Handler handles admin HTTP requests for the allocation engine.
type Handler struct {
	allocator *service.Allocator
	val       *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid request ID"
)

// New creates a new allocation handler.
func New(allocator *service.Allocator, val *validator.Validator) *Handler {
	return &Handler{allocator: allocator, val: val}
}

// Dashboard returns the allocation overview.
// GET /api/v1/admin/allocation/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	result, err := h.allocator.Dashboard(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Queue returns the ranked rotation of eligible agents.
// GET /api/v1/admin/allocation/queue
func (h *Handler) Queue(c *gin.Context) {
	result, err := h.allocator.Queue(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// AutoAssign runs the round-robin allocation for one request.
// POST /api/v1/admin/allocation/requests/:id/auto-assign
func (h *Handler) AutoAssign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.allocator.AutoAssign(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ManualAssign assigns a chosen agent to a request.
// POST /api/v1/admin/allocation/requests/:id/assign
func (h *Handler) ManualAssign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid agent ID", nil)
		return
	}

	result, err := h.allocator.ManualAssign(c.Request.Context(), id, agentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Release puts an assigned request back in the pool and re-circulates it.
// POST /api/v1/admin/allocation/requests/:id/release
func (h *Handler) Release(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.allocator.Release(c.Request.Context(), id, nil)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Sweep runs one pass over the unassigned backlog.
// POST /api/v1/admin/allocation/sweep
func (h *Handler) Sweep(c *gin.Context) {
	result, err := h.allocator.SweepUnassigned(c.Request.Context(), 0)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
