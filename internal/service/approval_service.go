package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-po-approvals/internal/engine"
	"github.com/pesio-ai/be-po-approvals/internal/errors"
	"github.com/pesio-ai/be-po-approvals/internal/repository"
)

// DocumentStore is the persistence surface the service needs for
// documents and their approval trails.
type DocumentStore interface {
	Create(ctx context.Context, doc *repository.Document) error
	GetByID(ctx context.Context, id string) (*repository.Document, error)
	LoadTrail(ctx context.Context, documentID string) ([]engine.TrailEntry, *string, error)
	PersistSubmission(ctx context.Context, documentID string, workflowID *string, entry engine.TrailEntry, submittedBy string, nextRoleID *string, status engine.DisplayStatus) error
	PersistDecision(ctx context.Context, documentID string, entry engine.TrailEntry, expectedTrailLen int, nextRoleID *string, status engine.DisplayStatus) error
	ListPendingForRole(ctx context.Context, roleID string) ([]*repository.Document, error)
}

// WorkflowStore resolves and manages workflow definitions.
type WorkflowStore interface {
	Create(ctx context.Context, def *repository.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*repository.WorkflowDefinition, error)
	Resolve(ctx context.Context, id string) ([]engine.Step, error)
	List(ctx context.Context, activeOnly bool) ([]*repository.WorkflowDefinition, error)
}

// DirectoryClientInterface resolves roles to user ids for notification
// fan-out.
type DirectoryClientInterface interface {
	GetUsersWithRole(ctx context.Context, roleID string) ([]string, error)
}

// NotificationPublisherInterface publishes approval events; publishing is
// best-effort and never fails an operation.
type NotificationPublisherInterface interface {
	PublishDocumentEvent(ctx context.Context, eventType, documentID, docType, actorID string, recipients []string, payload map[string]interface{})
}

// DecisionResponse is returned from Approve and Reject: the recomputed
// display status, the role allowed to act next (nil when terminal), and
// whether the workflow completed on this decision.
type DecisionResponse struct {
	Status          engine.DisplayStatus `json:"status"`
	NextLevelRoleID *string              `json:"next_level_role_id,omitempty"`
	Complete        bool                 `json:"complete"`
}

// ApprovalService orchestrates the sequential approval workflow over
// purchasing documents: submission, approve/reject decisions, and the
// queries backing approval-queue and list screens.
type ApprovalService struct {
	docs      DocumentStore
	workflows WorkflowStore
	directory DirectoryClientInterface
	notifier  NotificationPublisherInterface
	log       zerolog.Logger
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	docs DocumentStore,
	workflows WorkflowStore,
	directory DirectoryClientInterface,
	notifier NotificationPublisherInterface,
	log zerolog.Logger,
) *ApprovalService {
	return &ApprovalService{
		docs:      docs,
		workflows: workflows,
		directory: directory,
		notifier:  notifier,
		log:       log,
	}
}

// ── Document registration and submission ──────────────────────────────────────

// RegisterDocument records a purchasing document with the approval
// service. The document starts outside any workflow.
func (s *ApprovalService) RegisterDocument(ctx context.Context, docType, docNumber string) (*repository.Document, error) {
	if docType != repository.DocTypePurchaseOrder && docType != repository.DocTypePurchaseReturn {
		return nil, errors.InvalidInput("doc_type", "must be purchase_order or purchase_return")
	}
	if docNumber == "" {
		return nil, errors.InvalidInput("doc_number", "is required")
	}

	doc := &repository.Document{
		DocType:   docType,
		DocNumber: docNumber,
		Status:    string(engine.StatusNoWorkflow),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", doc.ID).
		Str("doc_type", doc.DocType).
		Str("doc_number", doc.DocNumber).
		Msg("Document registered")

	return doc, nil
}

// Submit binds a document to a workflow definition and writes the initial
// created trail entry. An empty workflowID submits the document without a
// workflow, which is immediately terminal by convention. Double submission
// yields Conflict.
func (s *ApprovalService) Submit(ctx context.Context, documentID, workflowID, submittedBy string) (*repository.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	entry := engine.NewCreatedEntry()

	var (
		boundWorkflow *string
		nextRoleID    *string
		steps         []engine.Step
	)
	if workflowID != "" {
		steps, err = s.workflows.Resolve(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if len(steps) == 0 {
			return nil, errors.InvalidInput("workflow_id", "workflow has no steps")
		}
		boundWorkflow = &workflowID
		nextRoleID = &steps[0].RoleID
	}

	status := engine.Project([]engine.TrailEntry{entry}, steps)
	if err := s.docs.PersistSubmission(ctx, documentID, boundWorkflow, entry, submittedBy, nextRoleID, status); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", documentID).
		Str("workflow_id", workflowID).
		Int("steps", len(steps)).
		Msg("Document submitted into approval workflow")

	s.notifyRole(ctx, "document_submitted", doc, submittedBy, nextRoleID, map[string]interface{}{
		"doc_number": doc.DocNumber,
	})

	return s.docs.GetByID(ctx, documentID)
}

// ── Decisions ─────────────────────────────────────────────────────────────────

// Approve applies an approval by the active role. On a stale view the
// repository reports Conflict; the service reloads and recomputes once
// before surfacing the error.
func (s *ApprovalService) Approve(ctx context.Context, documentID, actorID, actorRoleID string, comment *string) (*DecisionResponse, error) {
	return s.decide(ctx, documentID, func(trail []engine.TrailEntry, steps []engine.Step) (*engine.Decision, error) {
		return engine.Approve(trail, steps, actorID, actorRoleID, comment)
	}, actorID)
}

// Reject applies a rejection by the active role. The comment is mandatory
// and the chain becomes terminal: no role may act afterwards.
func (s *ApprovalService) Reject(ctx context.Context, documentID, actorID, actorRoleID, comment string) (*DecisionResponse, error) {
	return s.decide(ctx, documentID, func(trail []engine.TrailEntry, steps []engine.Step) (*engine.Decision, error) {
		return engine.Reject(trail, steps, actorID, actorRoleID, comment)
	}, actorID)
}

// decide runs the load-compute-persist cycle for a decision, retrying a
// single time when the trail advanced between load and persist.
func (s *ApprovalService) decide(
	ctx context.Context,
	documentID string,
	compute func(trail []engine.TrailEntry, steps []engine.Step) (*engine.Decision, error),
	actorID string,
) (*DecisionResponse, error) {
	const attempts = 2

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		trail, workflowID, err := s.docs.LoadTrail(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if workflowID == nil {
			return nil, errors.New(errors.ErrCodeAlreadyTerminal, "document is not in an approval workflow")
		}

		steps, err := s.workflows.Resolve(ctx, *workflowID)
		if err != nil {
			return nil, err
		}

		dec, err := compute(trail, steps)
		if err != nil {
			return nil, err
		}

		err = s.docs.PersistDecision(ctx, documentID, dec.Entry, len(trail), dec.NextRoleID, dec.Status)
		if errors.HasCode(err, errors.ErrCodeConflict) {
			lastErr = err
			s.log.Warn().
				Str("document_id", documentID).
				Int("attempt", attempt+1).
				Msg("Approval trail advanced during decision; recomputing")
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publishDecisionEvents(ctx, documentID, dec, actorID)

		return &DecisionResponse{
			Status:          dec.Status,
			NextLevelRoleID: dec.NextRoleID,
			Complete:        dec.Complete,
		}, nil
	}

	return nil, lastErr
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetDocument returns a document with its cached display status.
func (s *ApprovalService) GetDocument(ctx context.Context, documentID string) (*repository.Document, error) {
	return s.docs.GetByID(ctx, documentID)
}

// GetPendingStep returns the step awaiting a decision, or nil when the
// chain is terminal (rejected, completed, or no workflow bound).
func (s *ApprovalService) GetPendingStep(ctx context.Context, documentID string) (*engine.PendingStep, error) {
	trail, workflowID, err := s.docs.LoadTrail(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if workflowID == nil {
		return nil, nil
	}

	steps, err := s.workflows.Resolve(ctx, *workflowID)
	if err != nil {
		return nil, err
	}

	pending, ok := engine.CurrentPendingStep(trail, steps)
	if !ok {
		return nil, nil
	}
	return &pending, nil
}

// GetDisplayStatus recomputes the display status from the trail. The
// cached document status is a convenience copy; this is the authority.
func (s *ApprovalService) GetDisplayStatus(ctx context.Context, documentID string) (engine.DisplayStatus, error) {
	trail, workflowID, err := s.docs.LoadTrail(ctx, documentID)
	if err != nil {
		return "", err
	}

	var steps []engine.Step
	if workflowID != nil {
		steps, err = s.workflows.Resolve(ctx, *workflowID)
		if err != nil {
			return "", err
		}
	}
	return engine.Project(trail, steps), nil
}

// GetTrail returns the document's full approval history oldest-first.
func (s *ApprovalService) GetTrail(ctx context.Context, documentID string) ([]engine.TrailEntry, error) {
	trail, _, err := s.docs.LoadTrail(ctx, documentID)
	return trail, err
}

// ListPendingForRole returns all documents awaiting a decision from the
// given role, backing the approval-queue screens.
func (s *ApprovalService) ListPendingForRole(ctx context.Context, roleID string) ([]*repository.Document, error) {
	if roleID == "" {
		return nil, errors.InvalidInput("role_id", "is required")
	}
	return s.docs.ListPendingForRole(ctx, roleID)
}

// ── Workflow definition administration ────────────────────────────────────────

// CreateWorkflowDefinition creates a workflow definition after validating
// its step chain.
func (s *ApprovalService) CreateWorkflowDefinition(ctx context.Context, name string, steps []engine.Step) (*repository.WorkflowDefinition, error) {
	if name == "" {
		return nil, errors.InvalidInput("name", "is required")
	}

	def := &repository.WorkflowDefinition{
		Name:     name,
		Steps:    steps,
		IsActive: true,
	}
	if err := s.workflows.Create(ctx, def); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("workflow_id", def.ID).
		Str("name", def.Name).
		Int("steps", len(def.Steps)).
		Msg("Workflow definition created")

	return def, nil
}

// GetWorkflowDefinition returns a workflow definition by id.
func (s *ApprovalService) GetWorkflowDefinition(ctx context.Context, id string) (*repository.WorkflowDefinition, error) {
	return s.workflows.GetByID(ctx, id)
}

// ListWorkflowDefinitions returns all workflow definitions.
func (s *ApprovalService) ListWorkflowDefinitions(ctx context.Context, activeOnly bool) ([]*repository.WorkflowDefinition, error) {
	return s.workflows.List(ctx, activeOnly)
}

// ── Notification fan-out ──────────────────────────────────────────────────────

// publishDecisionEvents notifies the audience affected by a decision:
// the next role's users when the chain advanced, the submitter when it
// terminated.
func (s *ApprovalService) publishDecisionEvents(ctx context.Context, documentID string, dec *engine.Decision, actorID string) {
	if s.notifier == nil {
		return
	}

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		s.log.Warn().Err(err).Str("document_id", documentID).Msg("Could not load document for notification")
		return
	}

	payload := map[string]interface{}{
		"doc_number": doc.DocNumber,
		"status":     string(dec.Status),
	}

	switch {
	case dec.Entry.Status == engine.ActionRejected:
		s.notifySubmitter(ctx, "document_rejected", doc, actorID, payload)
	case dec.Complete:
		s.notifySubmitter(ctx, "document_approved", doc, actorID, payload)
	default:
		s.notifyRole(ctx, "approval_required", doc, actorID, dec.NextRoleID, payload)
	}
}

// notifyRole fans an event out to every user holding the given role.
func (s *ApprovalService) notifyRole(ctx context.Context, eventType string, doc *repository.Document, actorID string, roleID *string, payload map[string]interface{}) {
	if s.notifier == nil || roleID == nil {
		return
	}

	recipients, err := s.directoryUsers(ctx, *roleID)
	if err != nil {
		s.log.Warn().Err(err).Str("role_id", *roleID).Msg("Could not resolve role recipients; skipping notification")
		return
	}
	s.notifier.PublishDocumentEvent(ctx, eventType, doc.ID, doc.DocType, actorID, recipients, payload)
}

// notifySubmitter sends a terminal-outcome event to the user who submitted
// the document.
func (s *ApprovalService) notifySubmitter(ctx context.Context, eventType string, doc *repository.Document, actorID string, payload map[string]interface{}) {
	if s.notifier == nil || doc.SubmittedBy == nil || *doc.SubmittedBy == "" {
		return
	}
	s.notifier.PublishDocumentEvent(ctx, eventType, doc.ID, doc.DocType, actorID, []string{*doc.SubmittedBy}, payload)
}

func (s *ApprovalService) directoryUsers(ctx context.Context, roleID string) ([]string, error) {
	if s.directory == nil {
		return nil, nil
	}
	return s.directory.GetUsersWithRole(ctx, roleID)
}
