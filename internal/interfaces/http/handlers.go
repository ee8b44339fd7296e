package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/medallion-bpm/internal/application/workflow"
	domainwf "github.com/garyjia/medallion-bpm/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Deps
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, logger Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger,
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
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// CreateCaseRequest opens a case of the type with the given prefix
type CreateCaseRequest struct {
	CaseType string `json:"case_type" binding:"required"`
}

// StepDataRequest is the body of a step process call
type StepDataRequest struct {
	StepID string          `json:"step_id" binding:"required"`
	Data   json.RawMessage `json:"data"`
}

// ReassignCaseRequest hands a case's current step to a user or a role
type ReassignCaseRequest struct {
	CaseNo          string `json:"case_no" binding:"required"`
	UserID          *int64 `json:"user_id"`
	RoleID          *int64 `json:"role_id"`
	CurrentStepOnly bool   `json:"current_step_only"`
}

// PageRequest represents the paging query parameters of list endpoints
type PageRequest struct {
	Page    int `form:"page"`
	PerPage int `form:"per_page"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.Health != nil {
		response.Components = h.deps.Health()
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateCase handles POST /api/bpm/case
func (h *Handlers) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	actor := actorFrom(c)
	created, err := h.deps.Engine.CreateCase(c.Request.Context(), req.CaseType, actor)
	if err != nil {
		h.fail(c, "Failed to create case", err, "case_type", req.CaseType)
		return
	}

	view, err := h.deps.Steps.CaseView(c.Request.Context(), created.CaseNo, nil, actor)
	if err != nil {
		h.fail(c, "Failed to load new case", err, "case_no", created.CaseNo)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    view,
	})
}

// ProcessStep handles POST /api/bpm/case/:case_no
func (h *Handlers) ProcessStep(c *gin.Context) {
	caseNo := c.Param("case_no")

	var req StepDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	result, err := h.deps.Steps.ProcessStep(c.Request.Context(), caseNo, req.StepID, req.Data, actorFrom(c))
	if err != nil {
		h.fail(c, "Failed to process step", err, "case_no", caseNo, "step_id", req.StepID)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// MoveCase handles POST /api/bpm/case/:case_no/move. Without step_id the
// case advances, closing it at the final step.
func (h *Handlers) MoveCase(c *gin.Context) {
	caseNo := c.Param("case_no")
	stepID := c.Query("step_id")
	actor := actorFrom(c)

	var (
		result *workflow.MoveResult
		err    error
	)
	if stepID == "" {
		result, err = h.deps.Engine.Advance(c.Request.Context(), caseNo, actor)
	} else {
		result, err = h.deps.Engine.MoveToStep(c.Request.Context(), caseNo, stepID, actor)
	}
	if err != nil {
		h.fail(c, "Failed to move case", err, "case_no", caseNo, "step_id", stepID)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// GetCase handles GET /api/bpm/case/:case_no
func (h *Handlers) GetCase(c *gin.Context) {
	caseNo := c.Param("case_no")

	view, err := h.deps.Steps.CaseView(c.Request.Context(), caseNo, queryParams(c), actorFrom(c))
	if err != nil {
		h.fail(c, "Failed to load case", err, "case_no", caseNo)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    view,
	})
}

// FetchStep handles GET /api/bpm/case/:case_no/:step_id
func (h *Handlers) FetchStep(c *gin.Context) {
	caseNo := c.Param("case_no")
	stepID := c.Param("step_id")

	data, err := h.deps.Steps.FetchStep(c.Request.Context(), caseNo, stepID, queryParams(c), actorFrom(c))
	if err != nil {
		h.fail(c, "Failed to fetch step", err, "case_no", caseNo, "step_id", stepID)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// CaseAudit handles GET /api/bpm/case/:case_no/audit
func (h *Handlers) CaseAudit(c *gin.Context) {
	caseNo := c.Param("case_no")

	if _, err := h.deps.Engine.GetCase(c.Request.Context(), caseNo); err != nil {
		h.fail(c, "Failed to load case", err, "case_no", caseNo)
		return
	}
	entries, err := h.deps.Audit.ListByCase(c.Request.Context(), caseNo)
	if err != nil {
		h.fail(c, "Failed to list audit trail", err, "case_no", caseNo)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    entries,
	})
}

// CaseHistory handles GET /api/bpm/case-history/:case_no
func (h *Handlers) CaseHistory(c *gin.Context) {
	caseNo := c.Param("case_no")

	history, err := h.deps.Engine.History(c.Request.Context(), caseNo)
	if err != nil {
		h.fail(c, "Failed to load case history", err, "case_no", caseNo)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    history,
	})
}

// CasesByType handles GET /api/bpm/cases/by-type/:prefix
func (h *Handlers) CasesByType(c *gin.Context) {
	prefix := c.Param("prefix")

	var req PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	page, err := h.deps.Cases.ByType(c.Request.Context(), prefix, req.Page, req.PerPage)
	if err != nil {
		h.fail(c, "Failed to list cases", err, "prefix", prefix)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// Workbasket handles GET /api/bpm/cases/workbasket
func (h *Handlers) Workbasket(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	actor := actorFrom(c)
	page, err := h.deps.Cases.Workbasket(c.Request.Context(), actor, req.Page, req.PerPage)
	if err != nil {
		h.fail(c, "Failed to list workbasket", err, "user_id", actor.UserID)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page,
	})
}

// ReassignCase handles PUT /api/bpm/reassign-case
func (h *Handlers) ReassignCase(c *gin.Context) {
	var req ReassignCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	result, err := h.deps.Engine.Reassign(c.Request.Context(), workflow.ReassignRequest{
		CaseNo:          req.CaseNo,
		NewUserID:       req.UserID,
		NewRoleID:       req.RoleID,
		CurrentStepOnly: req.CurrentStepOnly,
		Actor:           actorFrom(c),
	})
	if err != nil {
		h.fail(c, "Failed to reassign case", err, "case_no", req.CaseNo)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error("Invalid request", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   msg + ": " + err.Error(),
	})
}

// fail logs err and writes it with the status its sentinel maps to
func (h *Handlers) fail(c *gin.Context, msg string, err error, keysAndValues ...interface{}) {
	status := StatusFor(err)
	h.logger.Error(msg, append(keysAndValues, "status", status, "error", err)...)

	body := err.Error()
	if status == http.StatusInternalServerError && !isConfigurationError(err) {
		body = "internal error"
	}
	c.JSON(status, Response{
		Success: false,
		Error:   body,
	})
}

// StatusFor maps workflow errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domainwf.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrCaseNotFound),
		errors.Is(err, domainwf.ErrCaseTypeNotFound),
		errors.Is(err, domainwf.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrCaseClosed),
		errors.Is(err, domainwf.ErrTerminalStep),
		errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrDuplicateCaseNumber):
		return http.StatusConflict
	case errors.Is(err, domainwf.ErrInvalidPayload),
		errors.Is(err, domainwf.ErrInvalidReassignment),
		errors.Is(err, domainwf.ErrHandlerNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isConfigurationError reports errors caused by step configuration, whose
// messages are safe and useful to show
func isConfigurationError(err error) bool {
	return errors.Is(err, domainwf.ErrFirstStepNotConfigured) ||
		errors.Is(err, domainwf.ErrCycleDetected) ||
		errors.Is(err, domainwf.ErrDuplicateHandler)
}

func queryParams(c *gin.Context) map[string]string {
	values := c.Request.URL.Query()
	params := make(map[string]string, len(values))
	for k := range values {
		params[k] = values.Get(k)
	}
	return params
}
