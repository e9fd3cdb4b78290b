package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jmwangi/schoolflow/internal/application/port"
	appwf "github.com/jmwangi/schoolflow/internal/application/workflow"
	"github.com/jmwangi/schoolflow/internal/domain/entity"
	domainwf "github.com/jmwangi/schoolflow/internal/domain/workflow"
	"github.com/jmwangi/schoolflow/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine    appwf.Engine
	actionLog port.ActionLogger
	pageSize  PageConfig
	logger    Logger
}

// PageConfig caps list pagination
type PageConfig struct {
	Default int
	Max     int
}

// NewHandlers creates a new Handlers instance
func NewHandlers(engine appwf.Engine, actionLog port.ActionLogger, pageSize PageConfig, logger Logger) *Handlers {
	if pageSize.Default <= 0 {
		pageSize.Default = 20
	}
	if pageSize.Max < pageSize.Default {
		pageSize.Max = 100
	}
	return &Handlers{
		engine:    engine,
		actionLog: actionLog,
		pageSize:  pageSize,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// InstanceResponse represents a workflow instance in API responses
type InstanceResponse struct {
	ID           string         `json:"id"`
	ProcessType  string         `json:"process_type"`
	EntityType   string         `json:"entity_type"`
	EntityID     int64          `json:"entity_id"`
	CurrentStage string         `json:"current_stage"`
	Status       string         `json:"status"`
	Payload      entity.Payload `json:"payload"`
	Version      int64          `json:"version"`
	CreatedBy    string         `json:"created_by"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// HistoryResponse represents one transition ledger entry in API responses
type HistoryResponse struct {
	ID          string `json:"id"`
	FromStage   string `json:"from_stage,omitempty"`
	ToStage     string `json:"to_stage"`
	ActionCode  string `json:"action_code"`
	PerformedBy string `json:"performed_by"`
	OccurredAt  string `json:"occurred_at"`
}

// ActionRequest is the body for every stage action and start endpoint
type ActionRequest struct {
	ActorID string          `json:"actor_id" binding:"required"`
	Data    entity.Fragment `json:"data"`
}

// ListRequest represents query parameters for listing instances
type ListRequest struct {
	ProcessType string `form:"process_type" binding:"required"`
	Stage       string `form:"stage"`
	Limit       int    `form:"limit"`
	Offset      int    `form:"offset"`
}

// StartFunc opens a new workflow instance
type StartFunc func(ctx context.Context, initiatorID string, data entity.Fragment) (*entity.WorkflowInstance, error)

// ActionFunc executes one stage action on an existing instance
type ActionFunc func(ctx context.Context, instanceID, actorID string, data entity.Fragment) (*entity.WorkflowInstance, error)

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// GetInstance handles GET /api/workflows/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	instance, err := h.engine.GetInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInstanceResponse(instance),
	})
}

// GetHistory handles GET /api/workflows/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	entries, err := h.engine.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	responses := make([]HistoryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, HistoryResponse{
			ID:          entry.ID,
			FromStage:   entry.FromStage.String(),
			ToStage:     entry.ToStage.String(),
			ActionCode:  entry.ActionCode,
			PerformedBy: entry.PerformedBy,
			OccurredAt:  entry.OccurredAt.UTC().Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// GetPermittedStages handles GET /api/workflows/:id/stages
func (h *Handlers) GetPermittedStages(c *gin.Context) {
	stages, err := h.engine.PermittedStages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	names := make([]string, 0, len(stages))
	for _, stage := range stages {
		names = append(names, stage.String())
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    names,
	})
}

// ListInstances handles GET /api/workflows
func (h *Handlers) ListInstances(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success:   false,
			Error:     "invalid query parameters",
			ErrorKind: "invalid_value",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > h.pageSize.Max {
		req.Limit = h.pageSize.Default
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	processType := domainwf.ProcessType(req.ProcessType)
	var instances []*entity.WorkflowInstance
	var err error
	if req.Stage != "" {
		instances, err = h.engine.ListByStage(c.Request.Context(), processType,
			domainwf.Stage(req.Stage), req.Limit, req.Offset)
	} else {
		instances, err = h.engine.List(c.Request.Context(), processType, req.Limit, req.Offset)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	responses := make([]InstanceResponse, 0, len(instances))
	for _, instance := range instances {
		responses = append(responses, toInstanceResponse(instance))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responses,
	})
}

// Start wraps a process start function as a gin handler
func (h *Handlers) Start(start StartFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := h.bindAction(c)
		if !ok {
			return
		}

		instance, err := start(c.Request.Context(), req.ActorID, req.Data)
		if err != nil {
			h.fail(c, err)
			return
		}

		h.audit(c, req.ActorID, "workflow_started", instance)

		c.JSON(http.StatusCreated, Response{
			Success: true,
			Data:    toInstanceResponse(instance),
		})
	}
}

// Action wraps a stage action function as a gin handler
func (h *Handlers) Action(name string, action ActionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := h.bindAction(c)
		if !ok {
			return
		}

		instance, err := action(c.Request.Context(), c.Param("id"), req.ActorID, req.Data)
		if err != nil {
			h.fail(c, err)
			return
		}

		h.audit(c, req.ActorID, name, instance)

		c.JSON(http.StatusOK, Response{
			Success: true,
			Data:    toInstanceResponse(instance),
		})
	}
}

func (h *Handlers) bindAction(c *gin.Context) (*ActionRequest, bool) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success:   false,
			Error:     "invalid request body: actor_id is required",
			ErrorKind: "invalid_value",
		})
		return nil, false
	}
	if err := utils.ValidateActorID(req.ActorID); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success:   false,
			Error:     err.Error(),
			ErrorKind: "invalid_value",
		})
		return nil, false
	}
	return &req, true
}

// audit writes an advisory action log entry. Failures are logged and
// swallowed; the transition already committed.
func (h *Handlers) audit(c *gin.Context, actorID, action string, instance *entity.WorkflowInstance) {
	entry := &entity.ActionLogEntry{
		ActorID:    actorID,
		Action:     action,
		EntityType: "workflow_instance",
		EntityID:   instance.ID,
		Detail:     instance.ProcessType.String() + " -> " + instance.CurrentStage.String(),
		OccurredAt: time.Now(),
	}
	if err := h.actionLog.Log(c.Request.Context(), entry); err != nil {
		h.logger.Error("Failed to write action log", "error", err)
	}
}

// fail maps a domain error to the HTTP status and error kind callers switch on
func (h *Handlers) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "error", err)
		c.JSON(status, Response{
			Success:   false,
			Error:     "internal error",
			ErrorKind: kind,
		})
		return
	}

	c.JSON(status, Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: kind,
	})
}

func classify(err error) (int, string) {
	var (
		alreadyTerminal *domainwf.AlreadyTerminalError
		illegal         *domainwf.IllegalTransitionError
		wrongStage      *domainwf.WrongStageError
		missing         *domainwf.MissingFieldsError
		invalid         *domainwf.InvalidValueError
		insufficient    *domainwf.InsufficientAuthorityError
	)

	switch {
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domainwf.ErrUnknownProcessType):
		return http.StatusBadRequest, "unknown_process"
	case errors.Is(err, domainwf.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &alreadyTerminal):
		return http.StatusConflict, "already_terminal"
	case errors.As(err, &illegal):
		return http.StatusUnprocessableEntity, "illegal_transition"
	case errors.As(err, &wrongStage):
		return http.StatusConflict, "wrong_stage"
	case errors.As(err, &missing):
		return http.StatusBadRequest, "missing_fields"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "invalid_value"
	case errors.As(err, &insufficient):
		return http.StatusForbidden, "insufficient_authority"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// toInstanceResponse converts domain entity to API response
func toInstanceResponse(instance *entity.WorkflowInstance) InstanceResponse {
	return InstanceResponse{
		ID:           instance.ID,
		ProcessType:  instance.ProcessType.String(),
		EntityType:   instance.Reference.EntityType,
		EntityID:     instance.Reference.EntityID,
		CurrentStage: instance.CurrentStage.String(),
		Status:       instance.Status.String(),
		Payload:      instance.Payload,
		Version:      instance.Version,
		CreatedBy:    instance.CreatedBy,
		CreatedAt:    instance.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    instance.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
