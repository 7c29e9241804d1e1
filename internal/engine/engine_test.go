package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-po-approvals/internal/errors"
)

var twoSteps = []Step{
	{SequenceNo: 0, RoleID: "PURCHASE_MANAGER"},
	{SequenceNo: 1, RoleID: "FINANCE_MANAGER"},
}

var threeSteps = []Step{
	{SequenceNo: 10, RoleID: "STORE_KEEPER"},
	{SequenceNo: 20, RoleID: "PURCHASE_MANAGER"},
	{SequenceNo: 30, RoleID: "FINANCE_MANAGER"},
}

func strPtr(s string) *string { return &s }

func createdTrail() []TrailEntry {
	return []TrailEntry{NewCreatedEntry()}
}

func approvedAt(seq int) TrailEntry {
	return TrailEntry{SequenceNo: seq, Status: ActionApproved, ActorID: strPtr("u-1")}
}

func rejectedAt(seq int) TrailEntry {
	return TrailEntry{SequenceNo: seq, Status: ActionRejected, ActorID: strPtr("u-1"), Comment: strPtr("no")}
}

func TestCurrentPendingStep(t *testing.T) {
	tests := []struct {
		name     string
		trail    []TrailEntry
		steps    []Step
		wantSeq  int
		wantRole string
		wantOrd  int
		terminal bool
	}{
		{
			name:     "empty trail yields first step",
			trail:    nil,
			steps:    twoSteps,
			wantSeq:  0,
			wantRole: "PURCHASE_MANAGER",
			wantOrd:  1,
		},
		{
			name:     "created entry does not consume a step",
			trail:    createdTrail(),
			steps:    twoSteps,
			wantSeq:  0,
			wantRole: "PURCHASE_MANAGER",
			wantOrd:  1,
		},
		{
			name:     "first approval advances to second step",
			trail:    append(createdTrail(), approvedAt(0)),
			steps:    twoSteps,
			wantSeq:  1,
			wantRole: "FINANCE_MANAGER",
			wantOrd:  2,
		},
		{
			name:     "gapped sequence numbers resolve by order",
			trail:    append(createdTrail(), approvedAt(10)),
			steps:    threeSteps,
			wantSeq:  20,
			wantRole: "PURCHASE_MANAGER",
			wantOrd:  2,
		},
		{
			name:     "rejection is terminal",
			trail:    append(createdTrail(), rejectedAt(0)),
			steps:    twoSteps,
			terminal: true,
		},
		{
			name: "finalized entry is terminal",
			trail: append(createdTrail(), approvedAt(0),
				TrailEntry{SequenceNo: 1, Status: ActionApproved, IsFinalized: true}),
			steps:    twoSteps,
			terminal: true,
		},
		{
			name:     "no steps is terminal",
			trail:    createdTrail(),
			steps:    nil,
			terminal: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pending, ok := CurrentPendingStep(tc.trail, tc.steps)
			if tc.terminal {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.wantSeq, pending.SequenceNo)
			assert.Equal(t, tc.wantRole, pending.RoleID)
			assert.Equal(t, tc.wantOrd, pending.Ordinal)
		})
	}
}

func TestCanAct(t *testing.T) {
	trail := createdTrail()

	assert.True(t, CanAct("PURCHASE_MANAGER", trail, twoSteps))
	assert.False(t, CanAct("FINANCE_MANAGER", trail, twoSteps))

	// After a rejection no role can act.
	rejected := append(createdTrail(), rejectedAt(0))
	assert.False(t, CanAct("PURCHASE_MANAGER", rejected, twoSteps))
	assert.False(t, CanAct("FINANCE_MANAGER", rejected, twoSteps))
}

func TestApproveAdvancesChain(t *testing.T) {
	trail := createdTrail()

	dec, err := Approve(trail, twoSteps, "u-alice", "PURCHASE_MANAGER", nil)
	require.NoError(t, err)

	assert.Equal(t, ActionApproved, dec.Entry.Status)
	assert.Equal(t, 0, dec.Entry.SequenceNo)
	assert.False(t, dec.Entry.IsFinalized)
	assert.False(t, dec.Complete)
	require.NotNil(t, dec.NextRoleID)
	assert.Equal(t, "FINANCE_MANAGER", *dec.NextRoleID)
	assert.Equal(t, PendingStatus(2), dec.Status)
	assert.Equal(t, DisplayStatus("Level 2 Approval Pending"), dec.Status)
}

func TestApproveLastStepFinalizes(t *testing.T) {
	trail := append(createdTrail(), approvedAt(0))

	dec, err := Approve(trail, twoSteps, "u-bob", "FINANCE_MANAGER", strPtr("lgtm"))
	require.NoError(t, err)

	assert.True(t, dec.Entry.IsFinalized)
	assert.True(t, dec.Complete)
	assert.Nil(t, dec.NextRoleID)
	assert.Equal(t, StatusCompleted, dec.Status)
}

func TestApproveOutOfTurnIsUnauthorized(t *testing.T) {
	trail := createdTrail()

	_, err := Approve(trail, twoSteps, "u-bob", "FINANCE_MANAGER", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.Code(err))
}

func TestApproveTerminalChain(t *testing.T) {
	rejected := append(createdTrail(), rejectedAt(0))

	_, err := Approve(rejected, twoSteps, "u-bob", "FINANCE_MANAGER", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyTerminal, errors.Code(err))

	finalized := append(createdTrail(), approvedAt(0),
		TrailEntry{SequenceNo: 1, Status: ActionApproved, IsFinalized: true})

	_, err = Approve(finalized, twoSteps, "u-bob", "FINANCE_MANAGER", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyTerminal, errors.Code(err))
}

func TestRejectTerminatesChain(t *testing.T) {
	trail := createdTrail()

	dec, err := Reject(trail, twoSteps, "u-alice", "PURCHASE_MANAGER", "missing invoice")
	require.NoError(t, err)

	assert.Equal(t, ActionRejected, dec.Entry.Status)
	assert.Equal(t, 0, dec.Entry.SequenceNo)
	require.NotNil(t, dec.Entry.Comment)
	assert.Equal(t, "missing invoice", *dec.Entry.Comment)
	assert.Nil(t, dec.NextRoleID)
	assert.Equal(t, DisplayStatus("Level 1 Approval Rejected"), dec.Status)

	// Any further decision on the appended trail fails terminal.
	after := append(trail, dec.Entry)
	_, err = Approve(after, twoSteps, "u-bob", "FINANCE_MANAGER", nil)
	assert.Equal(t, errors.ErrCodeAlreadyTerminal, errors.Code(err))
	_, err = Reject(after, twoSteps, "u-bob", "FINANCE_MANAGER", "again")
	assert.Equal(t, errors.ErrCodeAlreadyTerminal, errors.Code(err))
}

func TestRejectRequiresComment(t *testing.T) {
	trail := createdTrail()

	_, err := Reject(trail, twoSteps, "u-alice", "PURCHASE_MANAGER", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmptyComment, errors.Code(err))

	// The comment check applies to any caller on a live chain.
	_, err = Reject(trail, twoSteps, "u-bob", "FINANCE_MANAGER", "")
	assert.Equal(t, errors.ErrCodeEmptyComment, errors.Code(err))
}

func TestRejectOutOfTurnIsUnauthorized(t *testing.T) {
	trail := createdTrail()

	_, err := Reject(trail, twoSteps, "u-bob", "FINANCE_MANAGER", "not mine to reject")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.Code(err))
}

func TestRejectAtSecondLevel(t *testing.T) {
	trail := append(createdTrail(), approvedAt(0))

	dec, err := Reject(trail, twoSteps, "u-bob", "FINANCE_MANAGER", "amount mismatch")
	require.NoError(t, err)
	assert.Equal(t, 1, dec.Entry.SequenceNo)
	assert.Equal(t, DisplayStatus("Level 2 Approval Rejected"), dec.Status)
}

func TestFullChainScenario(t *testing.T) {
	// Workflow [{0, RoleA}, {1, RoleB}] walked end to end.
	steps := []Step{{SequenceNo: 0, RoleID: "RoleA"}, {SequenceNo: 1, RoleID: "RoleB"}}
	trail := createdTrail()

	assert.True(t, CanAct("RoleA", trail, steps))
	assert.False(t, CanAct("RoleB", trail, steps))

	dec, err := Approve(trail, steps, "u-a", "RoleA", nil)
	require.NoError(t, err)
	trail = append(trail, dec.Entry)
	assert.Equal(t, DisplayStatus("Level 2 Approval Pending"), dec.Status)
	require.NotNil(t, dec.NextRoleID)
	assert.Equal(t, "RoleB", *dec.NextRoleID)
	assert.Equal(t, dec.Status, Project(trail, steps))

	dec, err = Approve(trail, steps, "u-b", "RoleB", nil)
	require.NoError(t, err)
	trail = append(trail, dec.Entry)
	assert.True(t, dec.Entry.IsFinalized)
	assert.Nil(t, dec.NextRoleID)
	assert.Equal(t, StatusCompleted, dec.Status)
	assert.Equal(t, StatusCompleted, Project(trail, steps))

	_, ok := CurrentPendingStep(trail, steps)
	assert.False(t, ok)
}
