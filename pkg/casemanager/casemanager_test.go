package casemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/audit"
	"github.com/joyax/pool-patrol/pkg/classify"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/locks"
	"github.com/joyax/pool-patrol/pkg/mail"
	"github.com/joyax/pool-patrol/pkg/outreach"
	"github.com/joyax/pool-patrol/pkg/roster"
	"github.com/joyax/pool-patrol/pkg/store"
	"github.com/joyax/pool-patrol/pkg/templates"
	"github.com/joyax/pool-patrol/pkg/verify"
)

type fixture struct {
	mem    *store.Memory
	sender *mail.Memory
	locker *locks.InProcess
	mgr    *Manager
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem:    store.NewMemory(),
		sender: mail.NewMemory(),
		locker: locks.NewInProcess(),
		now:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	gate := approval.NewGate(f.mem, nil).WithClock(clock)
	out := outreach.NewOrchestrator(f.mem, classify.NewKeyword(), f.sender, templates.NewRegistry(), gate, nil).
		WithClock(clock)
	rec := audit.NewRecorder(f.mem, nil).WithClock(clock)

	f.mgr = NewManager(
		f.mem,
		roster.NewService(f.mem),
		verify.NewShiftSpecialist(f.mem),
		verify.NewLocationSpecialist(map[string][]string{"Plant 7": {"980"}}),
		out,
		gate,
		rec,
		f.locker,
		nil,
		nil,
	).WithClock(clock)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) seed(t *testing.T, vanpoolID string, riders ...*contracts.Employee) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.mem.PutVanpool(ctx, &contracts.Vanpool{
		VanpoolID: vanpoolID, WorkSite: "Plant 7", Capacity: 8,
		Status: contracts.VanpoolActive, CreatedAt: f.now,
	}))
	require.NoError(t, f.mem.PutShift(ctx, &contracts.Shift{ShiftID: "SHIFT-DAY", Name: "Day"}))
	require.NoError(t, f.mem.PutShift(ctx, &contracts.Shift{ShiftID: "SHIFT-NIGHT", Name: "Night"}))
	for _, e := range riders {
		require.NoError(t, f.mem.PutEmployee(ctx, e))
		require.NoError(t, f.mem.PutRider(ctx, &contracts.Rider{VanpoolID: vanpoolID, EmployeeID: e.EmployeeID, CreatedAt: f.now}))
	}
}

func emp(id, shiftID, zip string) *contracts.Employee {
	return &contracts.Employee{
		EmployeeID: id, FirstName: "R", LastName: id,
		Email: id + "@example.com", WorkSite: "Plant 7",
		HomeZip: zip, ShiftID: shiftID, Status: contracts.EmployeeActive,
	}
}

func (f *fixture) inbound(t *testing.T, caseID, from, body string) {
	t.Helper()
	ctx := context.Background()
	thread, err := f.mem.GetThreadByCase(ctx, caseID)
	require.NoError(t, err)
	require.NoError(t, f.mem.AppendMessage(ctx, &contracts.Message{
		MessageID: store.NewMessageID(),
		ThreadID:  thread.ThreadID,
		From:      from,
		To:        []string{mail.DefaultFrom},
		Body:      body,
		Direction: contracts.DirectionInbound,
		Status:    contracts.MessageSent,
		CreatedAt: f.now,
	}))
}

func TestInvestigate_AllPassNoCaseCreated(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A", emp("E-1", "SHIFT-DAY", "98052"), emp("E-2", "SHIFT-DAY", "98053"))

	res, err := f.mgr.Investigate(context.Background(), "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeVerified, res.Outcome)
	assert.Empty(t, res.CaseID)

	cases, err := f.mem.ListCases(context.Background(), store.CaseFilter{})
	require.NoError(t, err)
	assert.Empty(t, cases)
	assert.Empty(t, f.sender.Sent())
}

func TestInvestigate_EmptyVanpoolID(t *testing.T) {
	f := newFixture(t)
	res, err := f.mgr.Investigate(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeError, res.Outcome)
}

func TestInvestigate_EmptyRosterIsErrorWithoutMutation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A") // vanpool exists, no riders

	res, err := f.mgr.Investigate(context.Background(), "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeError, res.Outcome)

	cases, err := f.mem.ListCases(context.Background(), store.CaseFilter{})
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestInvestigate_UnknownVanpoolIsError(t *testing.T) {
	f := newFixture(t)
	res, err := f.mgr.Investigate(context.Background(), "VP-MISSING")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeError, res.Outcome)
}

func TestInvestigate_ShiftMismatchOpensCaseAndSendsOutreach(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-DAY", "98053"),
		emp("E-3", "SHIFT-NIGHT", "98054"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomePending, res.Outcome)
	assert.False(t, res.HITLRequired)
	require.NotEmpty(t, res.CaseID)
	require.NotNil(t, res.OutreachSummary)
	assert.True(t, res.OutreachSummary.Sent)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CasePendingReply, c.Status)
	assert.Equal(t, contracts.ReasonShiftMismatch, c.Metadata.Reason)
	assert.Equal(t, []string{contracts.CheckShift}, c.Metadata.FailedChecks)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Vanpool Schedule Review - VP-A - Action Required", sent[0].Subject)
	assert.Len(t, sent[0].To, 3)
}

func TestInvestigate_ReasonPriorityShiftOverLocation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "10001"), // wrong shift and out of area
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ReasonShiftMismatch, c.Metadata.Reason)
	assert.ElementsMatch(t, []string{contracts.CheckShift, contracts.CheckLocation}, c.Metadata.FailedChecks)

	// Both-mismatch template selected.
	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Vanpool Eligibility Review - VP-A - Action Required", sent[0].Subject)
}

func TestInvestigate_SingleRiderAutoPasses(t *testing.T) {
	f := newFixture(t)
	// A lone rider has nobody to clash shifts with.
	f.seed(t, "VP-A", emp("E-1", "SHIFT-NIGHT", "98052"))

	res, err := f.mgr.Investigate(context.Background(), "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeVerified, res.Outcome)
}

func TestInvestigate_ReAuditResolvesCase(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	require.Equal(t, contracts.OutcomePending, res.Outcome)

	// The rider fixed their shift assignment.
	require.NoError(t, f.mem.PutEmployee(ctx, emp("E-2", "SHIFT-DAY", "98053")))
	f.advance(24 * time.Hour)

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeResolved, res2.Outcome)
	assert.Equal(t, res.CaseID, res2.CaseID)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CaseResolved, c.Status)
	assert.Equal(t, "previously flagged, now compliant", c.Outcome)
	require.NotNil(t, c.ResolvedAt)
}

func TestInvestigate_FailCycleKeepsSameCase(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res1, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.advance(24 * time.Hour)
	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.Equal(t, res1.CaseID, res2.CaseID)
	assert.Equal(t, res1.Outcome, res2.Outcome)

	cases, err := f.mem.ListCases(ctx, store.CaseFilter{VanpoolID: "VP-A"})
	require.NoError(t, err)
	assert.Len(t, cases, 1)

	// With no rider reply in between, the repeat cycle must not send again.
	assert.Len(t, f.sender.Sent(), 1)
}

func TestInvestigate_TimeoutEscalatesCancellation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	caseID := res.CaseID

	f.advance(ReplyTimeout)
	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomePending, res2.Outcome)
	assert.True(t, res2.HITLRequired)
	require.NotEmpty(t, res2.CheckpointID)

	c, err := f.mem.GetCase(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CasePreCancel, c.Status)

	cp, err := f.mem.GetCheckpoint(ctx, res2.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionCancelMembership, cp.ActionName)

	// A further cycle while suspended reuses the same checkpoint.
	f.advance(24 * time.Hour)
	res3, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.True(t, res3.HITLRequired)
	assert.Equal(t, res2.CheckpointID, res3.CheckpointID)
}

func TestInvestigate_TimeoutWinsOverFreshVerification(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	// Rider fixes their shift, but only after the window elapsed.
	require.NoError(t, f.mem.PutEmployee(ctx, emp("E-2", "SHIFT-DAY", "98053")))
	f.advance(ReplyTimeout + time.Hour)

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.True(t, res2.HITLRequired)
	assert.Equal(t, res.CaseID, res2.CaseID)
	assert.Nil(t, res2.ShiftResult)
}

func TestResume_ApproveCancellationRemovesRiders(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	_, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.advance(ReplyTimeout)
	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	final, err := f.mgr.Resume(ctx, res.CheckpointID, contracts.Decision{
		Kind: contracts.DecisionApprove, DecidedBy: "coordinator",
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeCancelled, final.Outcome)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CaseCancelled, c.Status)

	riders, err := f.mem.ListRiders(ctx, "VP-A")
	require.NoError(t, err)
	assert.Empty(t, riders)
}

func TestResume_EditLimitsCancellationToOneRider(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	_, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.advance(ReplyTimeout)
	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	cp, err := f.mem.GetCheckpoint(ctx, res.CheckpointID)
	require.NoError(t, err)
	edited := cp.ActionArgs
	edited.EmployeeID = "E-2"

	final, err := f.mgr.Resume(ctx, res.CheckpointID, contracts.Decision{
		Kind: contracts.DecisionEdit, EditedArgs: &edited,
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeCancelled, final.Outcome)

	riders, err := f.mem.ListRiders(ctx, "VP-A")
	require.NoError(t, err)
	require.Len(t, riders, 1)
	assert.Equal(t, "E-1", riders[0].EmployeeID)
}

func TestResume_RejectCancellationKeepsClockRunning(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	_, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.advance(ReplyTimeout)
	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	final, err := f.mgr.Resume(ctx, res.CheckpointID, contracts.Decision{
		Kind: contracts.DecisionReject, Reason: "give them another week",
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomePending, final.Outcome)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CasePendingReply, c.Status)
	require.NotNil(t, c.Metadata.CancelRejectedAt)

	// Timeout clock was not reset: the next cycle re-escalates immediately.
	f.advance(time.Hour)
	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.True(t, res2.HITLRequired)
	assert.NotEqual(t, res.CheckpointID, res2.CheckpointID)
}

func TestResume_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	_, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.advance(ReplyTimeout)
	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	_, err = f.mgr.Resume(ctx, res.CheckpointID, contracts.Decision{Kind: contracts.DecisionApprove})
	require.NoError(t, err)

	_, err = f.mgr.Resume(ctx, res.CheckpointID, contracts.Decision{Kind: contracts.DecisionApprove})
	require.ErrorIs(t, err, approval.ErrDecided)
}

func TestInvestigate_ConcurrentCycleFailsFast(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A", emp("E-1", "SHIFT-DAY", "98052"))

	release, err := f.locker.Acquire(context.Background(), "VP-A")
	require.NoError(t, err)
	defer release()

	_, err = f.mgr.Investigate(context.Background(), "VP-A")
	require.ErrorIs(t, err, locks.ErrHeld)
}

func TestEscalationEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.inbound(t, res.CaseID, "E-2@example.com", "This is unacceptable, I want to speak to a manager.")
	f.advance(time.Hour)

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.True(t, res2.HITLRequired)
	require.NotEmpty(t, res2.CheckpointID)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CaseHITLReview, c.Status)

	// Reviewer approves the drafted reply.
	final, err := f.mgr.Resume(ctx, res2.CheckpointID, contracts.Decision{Kind: contracts.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomePending, final.Outcome)
	require.NotNil(t, final.OutreachSummary)
	assert.True(t, final.OutreachSummary.Sent)

	c, err = f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CasePendingReply, c.Status)

	// The escalation reply actually went out to the rider.
	sent := f.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"E-2@example.com"}, sent[1].To)
}

func TestInvestigate_PendingEscalationParksCase(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.inbound(t, res.CaseID, "E-2@example.com", "This is unacceptable, I want to speak to a manager.")

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	require.True(t, res2.HITLRequired)

	// A further cycle with nothing new must not move the case out of review
	// or hide the pending decision from the caller.
	f.advance(time.Hour)
	res3, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomePending, res3.Outcome)
	assert.True(t, res3.HITLRequired)
	assert.Equal(t, res2.CheckpointID, res3.CheckpointID)
	assert.Nil(t, res3.ShiftResult)

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CaseHITLReview, c.Status)

	// The parked cycle did not re-run verification over the held action.
	trail, err := f.mem.ListAudit(ctx, res.CaseID)
	require.NoError(t, err)
	var reAudits int
	for _, ev := range trail {
		if ev.Action == "re_audit_failed" {
			reAudits++
		}
	}
	assert.Equal(t, 1, reAudits)
}

func TestInvestigate_TimeoutNamesPendingEscalation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.inbound(t, res.CaseID, "E-2@example.com", "I dispute this finding.")

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	require.True(t, res2.HITLRequired)

	// The reply window elapses while the escalation send is still held; the
	// cycle reports that hold rather than claiming a cancellation is pending.
	f.advance(ReplyTimeout)
	res3, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.True(t, res3.HITLRequired)
	assert.Equal(t, res2.CheckpointID, res3.CheckpointID)
	assert.Contains(t, res3.Reasoning, "escalation reply")

	c, err := f.mem.GetCase(ctx, res.CaseID)
	require.NoError(t, err)
	assert.Equal(t, contracts.CaseHITLReview, c.Status)
}

func TestEscalationRejectRetainsDraft(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	f.inbound(t, res.CaseID, "E-2@example.com", "I dispute this finding.")

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	require.True(t, res2.HITLRequired)

	final, err := f.mgr.Resume(ctx, res2.CheckpointID, contracts.Decision{
		Kind: contracts.DecisionReject, Reason: "tone too formal",
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomePending, final.Outcome)

	// Nothing extra delivered; the draft survives for audit.
	assert.Len(t, f.sender.Sent(), 1)
	thread, err := f.mem.GetThreadByCase(ctx, res.CaseID)
	require.NoError(t, err)
	msgs, err := f.mem.ListMessages(ctx, thread.ThreadID)
	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	assert.Equal(t, contracts.MessageDraft, last.Status)
}

func TestUpdateReplyLeadsToReAuditResolution(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	// Rider reports the fix; data catches up before the next cycle.
	f.inbound(t, res.CaseID, "E-2@example.com", "I changed my shift to days, new shift starts Monday.")
	require.NoError(t, f.mem.PutEmployee(ctx, emp("E-2", "SHIFT-DAY", "98053")))
	f.advance(24 * time.Hour)

	res2, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)
	assert.Equal(t, contracts.OutcomeResolved, res2.Outcome)
}

func TestAuditTrailCoversLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "VP-A",
		emp("E-1", "SHIFT-DAY", "98052"),
		emp("E-2", "SHIFT-NIGHT", "98053"),
	)
	ctx := context.Background()

	res, err := f.mgr.Investigate(ctx, "VP-A")
	require.NoError(t, err)

	trail, err := f.mem.ListAudit(ctx, res.CaseID)
	require.NoError(t, err)
	actions := make([]string, 0, len(trail))
	for _, ev := range trail {
		actions = append(actions, ev.Action)
	}
	assert.Contains(t, actions, "case_opened")
	assert.Contains(t, actions, "outreach_sent")
}
