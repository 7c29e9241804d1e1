// Package engine implements the sequential multi-level approval workflow:
// pending-step computation, role-gated approve/reject decisions, and the
// display-status projection. Everything in this package is a pure
// computation over a document's approval trail and the ordered steps of
// its workflow definition; persistence lives in the repository layer.
package engine

import "time"

// Action is the outcome recorded by a single trail entry.
type Action string

const (
	ActionCreated  Action = "created"
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

// Step is one level of a workflow definition: the role that must approve
// at the given sequence number. Steps are ordered by SequenceNo ascending;
// gaps are allowed, duplicates are not.
type Step struct {
	SequenceNo int    `json:"sequence_no"`
	RoleID     string `json:"role_id"`
}

// TrailEntry is one immutable record in a document's approval trail.
// ActorID is nil only for the initial created entry, which is written by
// the system on submission. Comment is required when Status is rejected.
type TrailEntry struct {
	SequenceNo  int       `json:"sequence_no"`
	Status      Action    `json:"status"`
	ActorID     *string   `json:"actor_id,omitempty"`
	Comment     *string   `json:"comment,omitempty"`
	IsFinalized bool      `json:"is_finalized"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingStep identifies the step currently awaiting a decision.
// Ordinal is the 1-indexed position of the step within the workflow
// definition, used for display; SequenceNo is the raw step key.
type PendingStep struct {
	SequenceNo int    `json:"sequence_no"`
	RoleID     string `json:"role_id"`
	Ordinal    int    `json:"ordinal"`
}

// Decision is the outcome of applying an approve or reject to a trail:
// the entry to append, the role that may act next (nil when the chain is
// now terminal), the resulting display status, and whether the workflow
// completed on this decision.
type Decision struct {
	Entry      TrailEntry
	NextRoleID *string
	Status     DisplayStatus
	Complete   bool
}
