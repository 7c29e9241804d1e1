package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-po-approvals/internal/engine"
	"github.com/pesio-ai/be-po-approvals/internal/errors"
	"github.com/pesio-ai/be-po-approvals/internal/repository"
	"github.com/pesio-ai/be-po-approvals/internal/service"
)

// Approvals is the service surface the HTTP layer consumes.
type Approvals interface {
	RegisterDocument(ctx context.Context, docType, docNumber string) (*repository.Document, error)
	Submit(ctx context.Context, documentID, workflowID, submittedBy string) (*repository.Document, error)
	Approve(ctx context.Context, documentID, actorID, actorRoleID string, comment *string) (*service.DecisionResponse, error)
	Reject(ctx context.Context, documentID, actorID, actorRoleID, comment string) (*service.DecisionResponse, error)
	GetDocument(ctx context.Context, documentID string) (*repository.Document, error)
	GetPendingStep(ctx context.Context, documentID string) (*engine.PendingStep, error)
	GetDisplayStatus(ctx context.Context, documentID string) (engine.DisplayStatus, error)
	GetTrail(ctx context.Context, documentID string) ([]engine.TrailEntry, error)
	ListPendingForRole(ctx context.Context, roleID string) ([]*repository.Document, error)
	CreateWorkflowDefinition(ctx context.Context, name string, steps []engine.Step) (*repository.WorkflowDefinition, error)
	GetWorkflowDefinition(ctx context.Context, id string) (*repository.WorkflowDefinition, error)
	ListWorkflowDefinitions(ctx context.Context, activeOnly bool) ([]*repository.WorkflowDefinition, error)
}

// HTTPHandler exposes the approval service over HTTP.
type HTTPHandler struct {
	service Approvals
	log     zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(service Approvals, log zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, log: log}
}

// RegisterRoutes mounts all routes on the given router.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/documents", h.RegisterDocument)
		api.GET("/documents/:id", h.GetDocument)
		api.POST("/documents/:id/submit", h.SubmitDocument)
		api.POST("/documents/:id/approve", h.ApproveDocument)
		api.POST("/documents/:id/reject", h.RejectDocument)
		api.GET("/documents/:id/pending-step", h.GetPendingStep)
		api.GET("/documents/:id/status", h.GetDisplayStatus)
		api.GET("/documents/:id/trail", h.GetTrail)

		api.GET("/approvals/pending", h.ListPendingApprovals)

		api.POST("/workflows", h.CreateWorkflow)
		api.GET("/workflows", h.ListWorkflows)
		api.GET("/workflows/:id", h.GetWorkflow)
	}
}

// ── Documents ─────────────────────────────────────────────────────────────────

type registerDocumentRequest struct {
	DocType   string `json:"doc_type" binding:"required"`
	DocNumber string `json:"doc_number" binding:"required"`
}

// RegisterDocument records a purchasing document with the approval service.
func (h *HTTPHandler) RegisterDocument(c *gin.Context) {
	var req registerDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	doc, err := h.service.RegisterDocument(c.Request.Context(), req.DocType, req.DocNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, documentResponse(doc))
}

// GetDocument returns a document with its cached display status.
func (h *HTTPHandler) GetDocument(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponse(doc))
}

type submitRequest struct {
	WorkflowID  string `json:"workflow_id"`
	SubmittedBy string `json:"submitted_by" binding:"required"`
}

// SubmitDocument submits a document into an approval workflow.
func (h *HTTPHandler) SubmitDocument(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	doc, err := h.service.Submit(c.Request.Context(), c.Param("id"), req.WorkflowID, req.SubmittedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentResponse(doc))
}

// TODO: derive actor_id and actor_role_id from the gateway auth token once
// the platform identity service forwards role claims; until then the
// caller supplies them and the engine enforces role gating on the stored
// workflow state.
type decisionRequest struct {
	ActorID     string  `json:"actor_id" binding:"required"`
	ActorRoleID string  `json:"actor_role_id" binding:"required"`
	Comment     *string `json:"comment"`
}

// ApproveDocument records an approval at the current pending level.
func (h *HTTPHandler) ApproveDocument(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Approve(c.Request.Context(), c.Param("id"), req.ActorID, req.ActorRoleID, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RejectDocument records a rejection at the current pending level. The
// comment is mandatory; rejection terminates the chain.
func (h *HTTPHandler) RejectDocument(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	comment := ""
	if req.Comment != nil {
		comment = *req.Comment
	}

	resp, err := h.service.Reject(c.Request.Context(), c.Param("id"), req.ActorID, req.ActorRoleID, comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPendingStep returns the step awaiting a decision, or a terminal
// marker when no further decisions are accepted.
func (h *HTTPHandler) GetPendingStep(c *gin.Context) {
	pending, err := h.service.GetPendingStep(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if pending == nil {
		c.JSON(http.StatusOK, gin.H{"terminal": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"terminal":    false,
		"sequence_no": pending.SequenceNo,
		"role_id":     pending.RoleID,
		"ordinal":     pending.Ordinal,
	})
}

// GetDisplayStatus recomputes and returns the display status.
func (h *HTTPHandler) GetDisplayStatus(c *gin.Context) {
	status, err := h.service.GetDisplayStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// GetTrail returns the document's approval history oldest-first.
func (h *HTTPHandler) GetTrail(c *gin.Context) {
	trail, err := h.service.GetTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trail": trail})
}

// ── Approval queue ────────────────────────────────────────────────────────────

// ListPendingApprovals lists documents awaiting a decision from a role.
func (h *HTTPHandler) ListPendingApprovals(c *gin.Context) {
	docs, err := h.service.ListPendingForRole(c.Request.Context(), c.Query("role_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		out = append(out, documentResponse(doc))
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

// ── Workflow definitions ──────────────────────────────────────────────────────

type createWorkflowRequest struct {
	Name  string        `json:"name" binding:"required"`
	Steps []engine.Step `json:"steps" binding:"required"`
}

// CreateWorkflow creates a workflow definition.
func (h *HTTPHandler) CreateWorkflow(c *gin.Context) {
	var req createWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	def, err := h.service.CreateWorkflowDefinition(c.Request.Context(), req.Name, req.Steps)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, def)
}

// GetWorkflow returns a workflow definition by id.
func (h *HTTPHandler) GetWorkflow(c *gin.Context) {
	def, err := h.service.GetWorkflowDefinition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// ListWorkflows returns all workflow definitions.
func (h *HTTPHandler) ListWorkflows(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	defs, err := h.service.ListWorkflowDefinitions(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": defs})
}

// ── Response helpers ──────────────────────────────────────────────────────────

func documentResponse(doc *repository.Document) gin.H {
	return gin.H{
		"id":                 doc.ID,
		"doc_type":           doc.DocType,
		"doc_number":         doc.DocNumber,
		"workflow_id":        doc.WorkflowID,
		"next_level_role_id": doc.NextLevelRoleID,
		"status":             doc.Status,
		"is_finalized":       doc.IsFinalized,
		"submitted_by":       doc.SubmittedBy,
		"created_at":         doc.CreatedAt,
		"updated_at":         doc.UpdatedAt,
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{"code": errors.ErrCodeInvalidInput, "message": err.Error()},
	})
}

// respondError maps application error codes to HTTP statuses so the UI
// can show the precise reason instead of a generic failure.
func respondError(c *gin.Context, err error) {
	code := errors.Code(err)

	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		status = http.StatusForbidden
	case errors.ErrCodeEmptyComment, errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeAlreadyTerminal, errors.ErrCodeConflict:
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"error": gin.H{"code": code, "message": errors.Message(err)},
	})
}
