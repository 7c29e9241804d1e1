package repository

import (
	"time"

	"github.com/pesio-ai/be-po-approvals/internal/engine"
)

// ── Domain types for the approval workflow ───────────────────────────────────

// WorkflowDefinition is an ordered chain of approver roles. A document
// binds to a definition by id on submission; the steps it sees are a
// snapshot for the lifetime of its approval.
type WorkflowDefinition struct {
	ID        string
	Name      string
	Steps     []engine.Step
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document carries the approval-side view of a purchasing document. The
// document body (lines, amounts, vendor) is owned by the purchasing
// services; this service stores only the workflow pointers and the cached
// display status recomputed after every decision.
type Document struct {
	ID              string
	DocType         string // purchase_order | purchase_return
	DocNumber       string
	WorkflowID      *string
	NextLevelRoleID *string
	Status          string // cached engine.DisplayStatus; authoritative state is the trail
	IsFinalized     bool
	SubmittedBy     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Document types accepted by the service.
const (
	DocTypePurchaseOrder  = "purchase_order"
	DocTypePurchaseReturn = "purchase_return"
)
