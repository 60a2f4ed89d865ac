package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shwehr/approval-engine/internal/application/engine"
	"github.com/shwehr/approval-engine/internal/application/port"
	"github.com/shwehr/approval-engine/internal/application/service"
	"github.com/shwehr/approval-engine/internal/application/template"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine  engine.Engine
	reports service.ReportService
	clock   port.Clock
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(eng engine.Engine, reports service.ReportService, clock port.Clock, logger Logger) *Handlers {
	return &Handlers{
		engine:  eng,
		reports: reports,
		clock:   clock,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ActorRequest carries the acting user on mutating requests
type ActorRequest struct {
	ActorID   string   `json:"actorId" binding:"required"`
	ActorName string   `json:"actorName"`
	Roles     []string `json:"roles"`
}

func (a ActorRequest) actor() engine.Actor {
	return engine.Actor{ID: a.ActorID, Name: a.ActorName, Roles: a.Roles}
}

// CreateLeaveRequest represents the leave workflow creation payload
type CreateLeaveRequest struct {
	ActorRequest
	RequestID    string `json:"requestId" binding:"required"`
	RequestedFor string `json:"requestedFor" binding:"required"`
	LeaveType    string `json:"leaveType" binding:"required"`
	DurationDays int    `json:"durationDays" binding:"required"`
}

// CreatePromotionRequest represents the promotion workflow creation payload
type CreatePromotionRequest struct {
	ActorRequest
	RequestID    string `json:"requestId" binding:"required"`
	RequestedFor string `json:"requestedFor" binding:"required"`
	FromGrade    int    `json:"fromGrade" binding:"required"`
	ToGrade      int    `json:"toGrade" binding:"required"`
}

// CreateTransferRequest represents the transfer workflow creation payload
type CreateTransferRequest struct {
	ActorRequest
	RequestID      string `json:"requestId" binding:"required"`
	RequestedFor   string `json:"requestedFor" binding:"required"`
	FromDepartment string `json:"fromDepartment" binding:"required"`
	ToDepartment   string `json:"toDepartment" binding:"required"`
}

// ActionRequest represents approve/reject/withdraw/escalate/resume payloads
type ActionRequest struct {
	ActorRequest
	Comments string `json:"comments"`
	Reason   string `json:"reason"`
}

// DelegateRequest represents the delegation payload
type DelegateRequest struct {
	ActorRequest
	DelegatedTo     string     `json:"delegatedTo" binding:"required"`
	DelegatedToName string     `json:"delegatedToName"`
	Reason          string     `json:"reason" binding:"required"`
	IsTemporary     bool       `json:"isTemporary"`
	ExpiryDate      *time.Time `json:"expiryDate"`
}

// ProgressResponse represents the derived progress view of a workflow
type ProgressResponse struct {
	WorkflowID      string `json:"workflowId"`
	Status          string `json:"status"`
	CurrentLevel    int    `json:"currentLevel"`
	TotalLevels     int    `json:"totalLevels"`
	ProgressPercent int    `json:"progressPercent"`
	IsOverdue       bool   `json:"isOverdue"`
	TimeRemaining   string `json:"timeRemaining,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateLeaveWorkflow handles POST /api/workflows/leave
func (h *Handlers) CreateLeaveWorkflow(c *gin.Context) {
	var req CreateLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	draft := template.NewLeaveWorkflow(template.LeaveParams{
		RequestID:    req.RequestID,
		RequestedBy:  req.ActorID,
		RequestedFor: req.RequestedFor,
		LeaveType:    req.LeaveType,
		DurationDays: req.DurationDays,
	}, h.clock.Now())

	wf, err := h.engine.Create(c.Request.Context(), draft, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// CreatePromotionWorkflow handles POST /api/workflows/promotion
func (h *Handlers) CreatePromotionWorkflow(c *gin.Context) {
	var req CreatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	draft := template.NewPromotionWorkflow(template.PromotionParams{
		RequestID:    req.RequestID,
		RequestedBy:  req.ActorID,
		RequestedFor: req.RequestedFor,
		FromGrade:    req.FromGrade,
		ToGrade:      req.ToGrade,
	}, h.clock.Now())

	wf, err := h.engine.Create(c.Request.Context(), draft, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// CreateTransferWorkflow handles POST /api/workflows/transfer
func (h *Handlers) CreateTransferWorkflow(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	draft := template.NewTransferWorkflow(template.TransferParams{
		RequestID:      req.RequestID,
		RequestedBy:    req.ActorID,
		RequestedFor:   req.RequestedFor,
		FromDepartment: req.FromDepartment,
		ToDepartment:   req.ToDepartment,
	}, h.clock.Now())

	wf, err := h.engine.Create(c.Request.Context(), draft, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: wf})
}

// GetWorkflow handles GET /api/workflows/:id
func (h *Handlers) GetWorkflow(c *gin.Context) {
	wf, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// GetProgress handles GET /api/workflows/:id/progress
func (h *Handlers) GetProgress(c *gin.Context) {
	wf, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.engineError(c, err)
		return
	}

	resp := ProgressResponse{
		WorkflowID:      wf.ID,
		Status:          wf.Status,
		CurrentLevel:    wf.CurrentLevel,
		TotalLevels:     wf.TotalLevels,
		ProgressPercent: engine.ProgressPercent(wf),
		IsOverdue:       h.engine.IsOverdue(wf),
	}
	if remaining, ok := h.engine.TimeRemaining(wf); ok {
		resp.TimeRemaining = remaining.String()
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// ListUserWorkflows handles GET /api/workflows?userId=&status=
func (h *Handlers) ListUserWorkflows(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.badRequest(c, fmt.Errorf("userId query parameter is required"))
		return
	}

	workflows, err := h.engine.FetchUserWorkflows(
		c.Request.Context(),
		userID,
		c.QueryArray("role"),
		c.Query("status"),
	)
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: workflows})
}

// Approve handles POST /api/workflows/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Approve(c.Request.Context(), c.Param("id"), req.Comments, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// Reject handles POST /api/workflows/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Reject(c.Request.Context(), c.Param("id"), req.Reason, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// Delegate handles POST /api/workflows/:id/delegate
func (h *Handlers) Delegate(c *gin.Context) {
	var req DelegateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Delegate(c.Request.Context(), c.Param("id"), engine.DelegationRequest{
		DelegatedTo:     req.DelegatedTo,
		DelegatedToName: req.DelegatedToName,
		Reason:          req.Reason,
		IsTemporary:     req.IsTemporary,
		ExpiryDate:      req.ExpiryDate,
	}, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// Withdraw handles POST /api/workflows/:id/withdraw.
// Only the original requester may withdraw.
func (h *Handlers) Withdraw(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	id := c.Param("id")
	current, err := h.engine.Get(c.Request.Context(), id)
	if err != nil {
		h.engineError(c, err)
		return
	}
	if current.RequestedBy != req.ActorID {
		c.JSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "only the requester may withdraw a workflow",
		})
		return
	}

	wf, err := h.engine.Withdraw(c.Request.Context(), id, req.Reason, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// Escalate handles POST /api/workflows/:id/escalate
func (h *Handlers) Escalate(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Escalate(c.Request.Context(), c.Param("id"), req.Reason, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// Resume handles POST /api/workflows/:id/resume
func (h *Handlers) Resume(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	wf, err := h.engine.Resume(c.Request.Context(), c.Param("id"), req.Reason, req.actor())
	if err != nil {
		h.engineError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// ExportReport handles GET /api/workflows/:id/report
func (h *Handlers) ExportReport(c *gin.Context) {
	id := c.Param("id")

	var buf bytes.Buffer
	if err := h.reports.ExportAuditReport(c.Request.Context(), id, &buf); err != nil {
		h.engineError(c, err)
		return
	}

	filename := fmt.Sprintf("workflow-%s-audit.xlsx", id)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Error("Invalid request", "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   err.Error(),
	})
}

// engineError maps the engine error taxonomy onto HTTP status codes
func (h *Handlers) engineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrWorkflowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidOperation):
		status = http.StatusConflict
	case errors.Is(err, port.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Engine operation failed", "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   err.Error(),
	})
}
