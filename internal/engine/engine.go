package engine

import (
	"time"

	"github.com/pesio-ai/be-po-approvals/internal/errors"
)

// CurrentPendingStep computes the step awaiting a decision: the lowest
// SequenceNo in steps with no approved trail entry. The second return is
// false when the chain is terminal — a rejected entry exists, an entry is
// finalized, or every step has been approved.
func CurrentPendingStep(trail []TrailEntry, steps []Step) (PendingStep, bool) {
	if len(steps) == 0 || isTerminal(trail) {
		return PendingStep{}, false
	}

	approved := make(map[int]bool, len(trail))
	for _, e := range trail {
		if e.Status == ActionApproved {
			approved[e.SequenceNo] = true
		}
	}

	for i, step := range steps {
		if !approved[step.SequenceNo] {
			return PendingStep{
				SequenceNo: step.SequenceNo,
				RoleID:     step.RoleID,
				Ordinal:    i + 1,
			}, true
		}
	}

	// Every step approved.
	return PendingStep{}, false
}

// CanAct reports whether a user holding actorRoleID is the active approver:
// the chain is non-terminal and the pending step's role matches. This is
// the authorization gate; it must be evaluated server-side, never trusted
// from client input.
func CanAct(actorRoleID string, trail []TrailEntry, steps []Step) bool {
	pending, ok := CurrentPendingStep(trail, steps)
	return ok && pending.RoleID == actorRoleID
}

// Approve produces the trail entry recording an approval at the current
// pending step. Approving the last step finalizes the chain and yields
// the completed status; otherwise the decision carries the next step's
// role and a pending status for the following level.
func Approve(trail []TrailEntry, steps []Step, actorID, actorRoleID string, comment *string) (*Decision, error) {
	pending, ok := CurrentPendingStep(trail, steps)
	if !ok {
		return nil, errors.New(errors.ErrCodeAlreadyTerminal, "approval chain is already terminal")
	}
	if pending.RoleID != actorRoleID {
		return nil, errors.Newf(errors.ErrCodeUnauthorized,
			"role %q is not the active approver (expected %q)", actorRoleID, pending.RoleID)
	}

	last := pending.Ordinal == len(steps)
	entry := TrailEntry{
		SequenceNo:  pending.SequenceNo,
		Status:      ActionApproved,
		ActorID:     &actorID,
		Comment:     comment,
		IsFinalized: last,
		CreatedAt:   time.Now().UTC(),
	}

	if last {
		return &Decision{
			Entry:    entry,
			Status:   StatusCompleted,
			Complete: true,
		}, nil
	}

	next := steps[pending.Ordinal] // ordinal is 1-indexed, so this is the following step
	return &Decision{
		Entry:      entry,
		NextRoleID: &next.RoleID,
		Status:     PendingStatus(pending.Ordinal + 1),
	}, nil
}

// Reject produces the trail entry recording a rejection at the current
// pending step. A non-empty comment is mandatory. Rejection terminates
// the chain: no role may act afterwards and there is no roll-back to a
// prior level.
func Reject(trail []TrailEntry, steps []Step, actorID, actorRoleID, comment string) (*Decision, error) {
	if isTerminal(trail) || len(steps) == 0 {
		return nil, errors.New(errors.ErrCodeAlreadyTerminal, "approval chain is already terminal")
	}
	if comment == "" {
		return nil, errors.New(errors.ErrCodeEmptyComment, "a reason is required to reject")
	}

	pending, ok := CurrentPendingStep(trail, steps)
	if !ok {
		return nil, errors.New(errors.ErrCodeAlreadyTerminal, "approval chain is already terminal")
	}
	if pending.RoleID != actorRoleID {
		return nil, errors.Newf(errors.ErrCodeUnauthorized,
			"role %q is not the active approver (expected %q)", actorRoleID, pending.RoleID)
	}

	entry := TrailEntry{
		SequenceNo: pending.SequenceNo,
		Status:     ActionRejected,
		ActorID:    &actorID,
		Comment:    &comment,
		CreatedAt:  time.Now().UTC(),
	}

	return &Decision{
		Entry:  entry,
		Status: RejectedStatus(pending.Ordinal),
	}, nil
}

// NewCreatedEntry is the initial trail entry written when a document is
// submitted into a workflow. It carries no actor.
func NewCreatedEntry() TrailEntry {
	return TrailEntry{
		SequenceNo: 0,
		Status:     ActionCreated,
		CreatedAt:  time.Now().UTC(),
	}
}

// isTerminal reports whether the trail already contains a rejection or a
// finalized approval. Once either exists no further entries are accepted.
func isTerminal(trail []TrailEntry) bool {
	for _, e := range trail {
		if e.Status == ActionRejected || e.IsFinalized {
			return true
		}
	}
	return false
}
