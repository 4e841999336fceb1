package outreach

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyax/pool-patrol/pkg/approval"
	"github.com/joyax/pool-patrol/pkg/classify"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/mail"
	"github.com/joyax/pool-patrol/pkg/store"
	"github.com/joyax/pool-patrol/pkg/templates"
)

type fixture struct {
	mem    *store.Memory
	sender *mail.Memory
	orch   *Orchestrator
	gate   *approval.Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	sender := mail.NewMemory()
	gate := approval.NewGate(mem, nil)
	orch := NewOrchestrator(mem, classify.NewKeyword(), sender, templates.NewRegistry(), gate, nil).
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) })
	return &fixture{mem: mem, sender: sender, orch: orch, gate: gate}
}

func shiftCase() *contracts.Case {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return &contracts.Case{
		CaseID:    "CASE-TEST0001",
		VanpoolID: "VP-101",
		Status:    contracts.CaseVerification,
		Metadata: contracts.CaseMetadata{
			Reason:       contracts.ReasonShiftMismatch,
			FailedChecks: []string{contracts.CheckShift},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testRoster() *contracts.Roster {
	return &contracts.Roster{
		VanpoolID: "VP-101",
		WorkSite:  "Plant 7",
		Riders: []*contracts.Employee{
			{EmployeeID: "E-1", Email: "ada@example.com"},
			{EmployeeID: "E-2", Email: "ben@example.com"},
		},
	}
}

func (f *fixture) inbound(t *testing.T, threadID, from, body string) {
	t.Helper()
	require.NoError(t, f.mem.AppendMessage(context.Background(), &contracts.Message{
		MessageID: store.NewMessageID(),
		ThreadID:  threadID,
		From:      from,
		To:        []string{mail.DefaultFrom},
		Body:      body,
		Direction: contracts.DirectionInbound,
		Status:    contracts.MessageSent,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestHandle_InitialOutreach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.Handle(ctx, Context{
		Case: shiftCase(), Roster: testRoster(),
		ShiftDetails: "One rider is assigned to the Night shift.",
	})
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Nil(t, res.Bucket)
	assert.False(t, res.HITLRequired)
	assert.NotEmpty(t, res.MessageID)

	// Thread created lazily with the template subject.
	thread, err := f.mem.GetThreadByCase(ctx, "CASE-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, "Vanpool Schedule Review - VP-101 - Action Required", thread.Subject)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"ada@example.com", "ben@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].Body, "One rider is assigned to the Night shift.")

	msgs, err := f.mem.ListMessages(ctx, thread.ThreadID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, contracts.MessageSent, msgs[0].Status)
	assert.Equal(t, contracts.DirectionOutbound, msgs[0].Direction)
	// The provider's id sticks to the persisted message.
	assert.Equal(t, "mem-1", msgs[0].TransportID)
}

func TestHandle_TransportFailureDoesNotPersistSent(t *testing.T) {
	f := newFixture(t)
	f.sender.FailWith(mail.ErrNoAPIKey)
	ctx := context.Background()

	res, err := f.orch.Handle(ctx, Context{Case: shiftCase(), Roster: testRoster()})
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.NotEmpty(t, res.Error)

	thread, err := f.mem.GetThreadByCase(ctx, "CASE-TEST0001")
	require.NoError(t, err)
	msgs, err := f.mem.ListMessages(ctx, thread.ThreadID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHandle_RetryAfterTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.FailWith(errors.New("dns failure"))
	ctx := context.Background()
	octx := Context{Case: shiftCase(), Roster: testRoster()}

	res, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	assert.False(t, res.Sent)

	// Next cycle: transport recovered, the same initial outreach goes out.
	f.sender.FailWith(nil)
	res, err = f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestHandle_ClassifiesAndAnswersDirectBuckets(t *testing.T) {
	cases := []struct {
		name string
		body string
		want contracts.Bucket
	}{
		{"acknowledgment", "Thanks, got it.", contracts.BucketAcknowledgment},
		{"question", "What documents do you need from me?", contracts.BucketQuestion},
		{"update", "I changed my shift to days last month.", contracts.BucketUpdate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			octx := Context{Case: shiftCase(), Roster: testRoster()}

			_, err := f.orch.Handle(ctx, octx) // initial outreach
			require.NoError(t, err)
			thread, err := f.mem.GetThreadByCase(ctx, octx.Case.CaseID)
			require.NoError(t, err)
			f.inbound(t, thread.ThreadID, "ada@example.com", tc.body)

			res, err := f.orch.Handle(ctx, octx)
			require.NoError(t, err)
			require.NotNil(t, res.Bucket)
			assert.Equal(t, tc.want, *res.Bucket)
			assert.True(t, res.Sent)
			assert.False(t, res.HITLRequired)

			// Reply goes to the rider who wrote in, not the whole roster.
			sent := f.sender.Sent()
			require.Len(t, sent, 2)
			assert.Equal(t, []string{"ada@example.com"}, sent[1].To)
			assert.Contains(t, sent[1].Subject, "Re: ")

			// Inbound message now carries its classification.
			msgs, err := f.mem.ListMessages(ctx, thread.ThreadID)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			require.NotNil(t, msgs[1].Classification)
			assert.Equal(t, tc.want, *msgs[1].Classification)
		})
	}
}

func TestHandle_EscalationSuspendsBehindGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	octx := Context{Case: shiftCase(), Roster: testRoster()}

	_, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	thread, err := f.mem.GetThreadByCase(ctx, octx.Case.CaseID)
	require.NoError(t, err)
	f.inbound(t, thread.ThreadID, "ada@example.com", "This is unacceptable, I want to speak to a manager.")

	res, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	require.NotNil(t, res.Bucket)
	assert.Equal(t, contracts.BucketEscalation, *res.Bucket)
	assert.False(t, res.Sent)
	assert.True(t, res.HITLRequired)
	assert.NotEmpty(t, res.CheckpointID)

	// Nothing delivered; a DRAFT is retained for review.
	assert.Len(t, f.sender.Sent(), 1)
	msgs, err := f.mem.ListMessages(ctx, thread.ThreadID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, contracts.MessageDraft, msgs[2].Status)

	cp, err := f.mem.GetCheckpoint(ctx, res.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, contracts.ActionSendEscalation, cp.ActionName)
	assert.Equal(t, msgs[2].MessageID, cp.ActionArgs.DraftMessageID)
}

func TestHandle_NothingNewToAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	octx := Context{Case: shiftCase(), Roster: testRoster()}

	_, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)

	// Second pass with no inbound reply: no send, no classification.
	res, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Nil(t, res.Bucket)
	assert.Empty(t, res.Error)
	assert.Len(t, f.sender.Sent(), 1)
}

func TestHandle_AlreadyClassifiedReplyIsNotReanswered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	octx := Context{Case: shiftCase(), Roster: testRoster()}

	_, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	thread, err := f.mem.GetThreadByCase(ctx, octx.Case.CaseID)
	require.NoError(t, err)
	f.inbound(t, thread.ThreadID, "ada@example.com", "Thanks, got it.")

	_, err = f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	res, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	assert.Nil(t, res.Bucket)
	assert.False(t, res.Sent)
	assert.Len(t, f.sender.Sent(), 2)
}

func TestExecuteEscalation_PromotesDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	octx := Context{Case: shiftCase(), Roster: testRoster()}

	_, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	thread, err := f.mem.GetThreadByCase(ctx, octx.Case.CaseID)
	require.NoError(t, err)
	f.inbound(t, thread.ThreadID, "ada@example.com", "I dispute this finding.")

	res, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	require.True(t, res.HITLRequired)

	cp, err := f.mem.GetCheckpoint(ctx, res.CheckpointID)
	require.NoError(t, err)

	args := cp.ActionArgs
	args.Body = "Edited, softer wording."
	msgID, err := f.orch.ExecuteEscalation(ctx, octx.Case.CaseID, args)
	require.NoError(t, err)
	assert.Equal(t, cp.ActionArgs.DraftMessageID, msgID)

	msgs, err := f.mem.ListMessages(ctx, thread.ThreadID)
	require.NoError(t, err)
	last := msgs[len(msgs)-1]
	assert.Equal(t, contracts.MessageSent, last.Status)
	assert.Equal(t, "Edited, softer wording.", last.Body)
	require.NotNil(t, last.SentAt)
	assert.NotEmpty(t, last.TransportID)

	sent := f.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Edited, softer wording.", sent[1].Body)
}

func TestHandle_SecondEscalationWhileOnePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	octx := Context{Case: shiftCase(), Roster: testRoster()}

	_, err := f.orch.Handle(ctx, octx)
	require.NoError(t, err)
	thread, err := f.mem.GetThreadByCase(ctx, octx.Case.CaseID)
	require.NoError(t, err)
	f.inbound(t, thread.ThreadID, "ada@example.com", "This is unfair.")

	_, err = f.orch.Handle(ctx, octx)
	require.NoError(t, err)

	// Another escalation arrives before the first is decided.
	f.inbound(t, thread.ThreadID, "ben@example.com", "I will file a complaint.")
	_, err = f.orch.Handle(ctx, octx)
	require.ErrorIs(t, err, store.ErrCheckpointPending)
}
