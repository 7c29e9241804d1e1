package engine

import "fmt"

// DisplayStatus is the human-readable status shown in list screens and
// badges. It is always derived from the trail and workflow steps, never
// stored as an independently authoritative field.
type DisplayStatus string

const (
	// StatusNoWorkflow marks a document with no bound workflow; by
	// convention it is immediately actionable without approvals.
	StatusNoWorkflow DisplayStatus = "No Workflow"
	// StatusCreated is shown before any approval has been recorded.
	StatusCreated DisplayStatus = "Created"
	// StatusCompleted marks a fully approved, finalized chain.
	StatusCompleted DisplayStatus = "Completed"
)

// PendingStatus renders the status for a chain awaiting approval at the
// given 1-indexed level.
func PendingStatus(level int) DisplayStatus {
	return DisplayStatus(fmt.Sprintf("Level %d Approval Pending", level))
}

// RejectedStatus renders the terminal status for a chain rejected at the
// given 1-indexed level.
func RejectedStatus(level int) DisplayStatus {
	return DisplayStatus(fmt.Sprintf("Level %d Approval Rejected", level))
}

// Project derives the display status from a trail and workflow steps.
// Deterministic and side-effect-free: list screens call it on every fetch.
//
// Priority order: no workflow, rejected, completed, pending/created.
func Project(trail []TrailEntry, steps []Step) DisplayStatus {
	if len(steps) == 0 {
		return StatusNoWorkflow
	}

	for _, e := range trail {
		if e.Status == ActionRejected {
			return RejectedStatus(ordinalOf(e.SequenceNo, steps))
		}
	}
	for _, e := range trail {
		if e.IsFinalized {
			return StatusCompleted
		}
	}

	pending, ok := CurrentPendingStep(trail, steps)
	if !ok {
		// Every step approved; reachable only when the finalized flag
		// was never stamped, still a completed chain.
		return StatusCompleted
	}
	if pending.Ordinal == 1 {
		return StatusCreated
	}
	return PendingStatus(pending.Ordinal)
}

// ordinalOf returns the 1-indexed position of sequenceNo within steps.
// Entries that no longer match a step fall back to the raw sequence number.
func ordinalOf(sequenceNo int, steps []Step) int {
	for i, s := range steps {
		if s.SequenceNo == sequenceNo {
			return i + 1
		}
	}
	return sequenceNo
}
