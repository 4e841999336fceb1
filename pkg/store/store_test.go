package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyax/pool-patrol/pkg/contracts"
)

// Conformance suite run against every real implementation.
func storeImpls(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func testCase(vanpoolID string) *contracts.Case {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &contracts.Case{
		CaseID:    NewCaseID(),
		VanpoolID: vanpoolID,
		Status:    contracts.CaseOpen,
		Metadata: contracts.CaseMetadata{
			Reason:       contracts.ReasonShiftMismatch,
			Details:      "rider shift does not match vanpool majority",
			FailedChecks: []string{contracts.CheckShift},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCaseStore_SingleOpenCasePerVanpool(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := testCase("VP-A")
			require.NoError(t, s.CreateCase(ctx, first))

			second := testCase("VP-A")
			err := s.CreateCase(ctx, second)
			require.ErrorIs(t, err, ErrOpenCaseExists)

			// A different vanpool is unaffected.
			require.NoError(t, s.CreateCase(ctx, testCase("VP-B")))

			// Closing the first case frees the slot.
			require.NoError(t, s.CloseCase(ctx, first.CaseID, contracts.CaseResolved, "verified", time.Now().UTC()))
			require.NoError(t, s.CreateCase(ctx, testCase("VP-A")))
		})
	}
}

func TestCaseStore_GetOpenCase(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.GetOpenCase(ctx, "VP-A")
			require.ErrorIs(t, err, ErrNotFound)

			c := testCase("VP-A")
			require.NoError(t, s.CreateCase(ctx, c))

			got, err := s.GetOpenCase(ctx, "VP-A")
			require.NoError(t, err)
			assert.Equal(t, c.CaseID, got.CaseID)
			assert.Equal(t, contracts.CaseOpen, got.Status)
			assert.Equal(t, []string{contracts.CheckShift}, got.Metadata.FailedChecks)

			require.NoError(t, s.CloseCase(ctx, c.CaseID, contracts.CaseCancelled, "cancelled", time.Now().UTC()))
			_, err = s.GetOpenCase(ctx, "VP-A")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestCaseStore_TerminalCasesAreImmutable(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := testCase("VP-A")
			require.NoError(t, s.CreateCase(ctx, c))
			require.NoError(t, s.CloseCase(ctx, c.CaseID, contracts.CaseResolved, "verified", time.Now().UTC()))

			c.Status = contracts.CaseVerification
			require.ErrorIs(t, s.UpdateCase(ctx, c), ErrCaseClosed)
			require.ErrorIs(t, s.CloseCase(ctx, c.CaseID, contracts.CaseCancelled, "cancelled", time.Now().UTC()), ErrCaseClosed)

			got, err := s.GetCase(ctx, c.CaseID)
			require.NoError(t, err)
			assert.Equal(t, contracts.CaseResolved, got.Status)
			assert.Equal(t, "verified", got.Outcome)
			require.NotNil(t, got.ResolvedAt)
		})
	}
}

func TestCaseStore_UpdateTransitions(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := testCase("VP-A")
			require.NoError(t, s.CreateCase(ctx, c))

			c.Status = contracts.CaseVerification
			c.UpdatedAt = c.UpdatedAt.Add(time.Minute)
			require.NoError(t, s.UpdateCase(ctx, c))

			got, err := s.GetCase(ctx, c.CaseID)
			require.NoError(t, err)
			assert.Equal(t, contracts.CaseVerification, got.Status)
			assert.Equal(t, c.CreatedAt, got.CreatedAt.UTC())

			missing := testCase("VP-Z")
			require.ErrorIs(t, s.UpdateCase(ctx, missing), ErrNotFound)
		})
	}
}

func TestCaseStore_ListCasesFilters(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := testCase("VP-A")
			require.NoError(t, s.CreateCase(ctx, a))
			b := testCase("VP-B")
			require.NoError(t, s.CreateCase(ctx, b))
			require.NoError(t, s.CloseCase(ctx, b.CaseID, contracts.CaseResolved, "verified", time.Now().UTC()))

			open, err := s.ListCases(ctx, CaseFilter{Status: contracts.CaseOpen})
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, a.CaseID, open[0].CaseID)

			byVanpool, err := s.ListCases(ctx, CaseFilter{VanpoolID: "VP-B"})
			require.NoError(t, err)
			require.Len(t, byVanpool, 1)
			assert.Equal(t, contracts.CaseResolved, byVanpool[0].Status)

			all, err := s.ListCases(ctx, CaseFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestThreadStore_MessagesKeepInsertionOrder(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			th := &contracts.EmailThread{
				ThreadID:  NewThreadID(),
				CaseID:    "CASE-11111111",
				VanpoolID: "VP-A",
				Subject:   "Vanpool Eligibility Review - VP-A - Action Required",
				Status:    contracts.ThreadActive,
				CreatedAt: now,
			}
			require.NoError(t, s.CreateThread(ctx, th))

			got, err := s.GetThreadByCase(ctx, "CASE-11111111")
			require.NoError(t, err)
			assert.Equal(t, th.ThreadID, got.ThreadID)

			ids := []string{NewMessageID(), NewMessageID(), NewMessageID()}
			for i, id := range ids {
				dir := contracts.DirectionOutbound
				transportID := "re_delivery_1"
				if i == 1 {
					dir = contracts.DirectionInbound
					transportID = ""
				}
				require.NoError(t, s.AppendMessage(ctx, &contracts.Message{
					MessageID:   id,
					ThreadID:    th.ThreadID,
					From:        "contact@send.joyax.co",
					To:          []string{"rider@example.com"},
					Body:        "body",
					Direction:   dir,
					Status:      contracts.MessageSent,
					TransportID: transportID,
					CreatedAt:   now.Add(time.Duration(i) * time.Second),
				}))
			}

			msgs, err := s.ListMessages(ctx, th.ThreadID)
			require.NoError(t, err)
			require.Len(t, msgs, 3)
			for i, m := range msgs {
				assert.Equal(t, ids[i], m.MessageID)
			}
			assert.Equal(t, contracts.DirectionInbound, msgs[1].Direction)
			assert.Equal(t, "re_delivery_1", msgs[0].TransportID)
			assert.Empty(t, msgs[1].TransportID)
		})
	}
}

func TestThreadStore_UpdateMessageClassification(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			th := &contracts.EmailThread{
				ThreadID: NewThreadID(), CaseID: "CASE-1", VanpoolID: "VP-A",
				Subject: "subject", Status: contracts.ThreadActive, CreatedAt: now,
			}
			require.NoError(t, s.CreateThread(ctx, th))

			m := &contracts.Message{
				MessageID: NewMessageID(), ThreadID: th.ThreadID,
				From: "rider@example.com", To: []string{"contact@send.joyax.co"},
				Body: "what documents do you need?", Direction: contracts.DirectionInbound,
				Status: contracts.MessageRead, CreatedAt: now,
			}
			require.NoError(t, s.AppendMessage(ctx, m))

			b := contracts.BucketQuestion
			m.Classification = &b
			require.NoError(t, s.UpdateMessage(ctx, m))

			msgs, err := s.ListMessages(ctx, th.ThreadID)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			require.NotNil(t, msgs[0].Classification)
			assert.Equal(t, contracts.BucketQuestion, *msgs[0].Classification)

			m.MessageID = "MSG-MISSING"
			require.ErrorIs(t, s.UpdateMessage(ctx, m), ErrNotFound)
		})
	}
}

func TestCheckpointStore_OnePendingPerCase(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			cp := &contracts.ApprovalCheckpoint{
				CheckpointID: "CHK-1",
				CaseID:       "CASE-1",
				VanpoolID:    "VP-A",
				ActionName:   contracts.ActionCancelMembership,
				ActionArgs:   contracts.ActionArgs{EmployeeID: "E-1", Reason: "timeout"},
				Status:       contracts.CheckpointPending,
				CreatedAt:    now,
			}
			require.NoError(t, s.PutCheckpoint(ctx, cp))

			dup := *cp
			dup.CheckpointID = "CHK-2"
			require.ErrorIs(t, s.PutCheckpoint(ctx, &dup), ErrCheckpointPending)

			got, err := s.GetCheckpoint(ctx, "CHK-1")
			require.NoError(t, err)
			assert.Equal(t, contracts.ActionCancelMembership, got.ActionName)
			assert.Equal(t, "E-1", got.ActionArgs.EmployeeID)

			pending, err := s.ListPendingCheckpoints(ctx)
			require.NoError(t, err)
			require.Len(t, pending, 1)

			require.NoError(t, s.DeleteCheckpoint(ctx, "CHK-1"))
			require.ErrorIs(t, s.DeleteCheckpoint(ctx, "CHK-1"), ErrNotFound)

			// Slot freed after the decision is applied.
			require.NoError(t, s.PutCheckpoint(ctx, &dup))
		})
	}
}

func TestFleetStore_RosterRoundTrip(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			require.NoError(t, s.PutVanpool(ctx, &contracts.Vanpool{
				VanpoolID: "VP-A", WorkSite: "Plant 7", Capacity: 8,
				Status: contracts.VanpoolActive, CreatedAt: now,
			}))
			require.NoError(t, s.PutShift(ctx, &contracts.Shift{
				ShiftID: "SHIFT-DAY", Name: "Day",
				Schedule: []contracts.ShiftDay{{Day: "monday", Start: "08:00", End: "16:00"}},
			}))
			require.NoError(t, s.PutEmployee(ctx, &contracts.Employee{
				EmployeeID: "E-1", FirstName: "Ada", LastName: "Okafor",
				Email: "ada@example.com", WorkSite: "Plant 7", HomeZip: "98052",
				ShiftID: "SHIFT-DAY", Status: contracts.EmployeeActive,
			}))
			require.NoError(t, s.PutRider(ctx, &contracts.Rider{VanpoolID: "VP-A", EmployeeID: "E-1", CreatedAt: now}))
			// Idempotent per pair.
			require.NoError(t, s.PutRider(ctx, &contracts.Rider{VanpoolID: "VP-A", EmployeeID: "E-1", CreatedAt: now}))

			riders, err := s.ListRiders(ctx, "VP-A")
			require.NoError(t, err)
			require.Len(t, riders, 1)

			sh, err := s.GetShift(ctx, "SHIFT-DAY")
			require.NoError(t, err)
			require.Len(t, sh.Schedule, 1)
			assert.Equal(t, "monday", sh.Schedule[0].Day)

			require.NoError(t, s.RemoveRider(ctx, "VP-A", "E-1"))
			require.ErrorIs(t, s.RemoveRider(ctx, "VP-A", "E-1"), ErrNotFound)

			riders, err = s.ListRiders(ctx, "VP-A")
			require.NoError(t, err)
			assert.Empty(t, riders)
		})
	}
}

func TestFleetStore_PutUpserts(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			vp := &contracts.Vanpool{VanpoolID: "VP-A", WorkSite: "Plant 7", Capacity: 8, Status: contracts.VanpoolActive, CreatedAt: now}
			require.NoError(t, s.PutVanpool(ctx, vp))
			vp.Status = contracts.VanpoolSuspended
			require.NoError(t, s.PutVanpool(ctx, vp))

			got, err := s.GetVanpool(ctx, "VP-A")
			require.NoError(t, err)
			assert.Equal(t, contracts.VanpoolSuspended, got.Status)

			pools, err := s.ListVanpools(ctx)
			require.NoError(t, err)
			assert.Len(t, pools, 1)
		})
	}
}

func TestAuditStore_AppendAndFilter(t *testing.T) {
	for name, s := range storeImpls(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			events := []*contracts.AuditEvent{
				{EventID: NewEventID(), CaseID: "CASE-1", VanpoolID: "VP-A", Actor: "system", Action: "case_opened", Timestamp: now},
				{EventID: NewEventID(), CaseID: "CASE-1", VanpoolID: "VP-A", Actor: "system", Action: "verification_started", Timestamp: now.Add(time.Second)},
				{EventID: NewEventID(), CaseID: "CASE-2", VanpoolID: "VP-B", Actor: "reviewer", Action: "checkpoint_approved", Timestamp: now.Add(2 * time.Second)},
			}
			for _, ev := range events {
				require.NoError(t, s.AppendAudit(ctx, ev))
			}

			trail, err := s.ListAudit(ctx, "CASE-1")
			require.NoError(t, err)
			require.Len(t, trail, 2)
			assert.Equal(t, "case_opened", trail[0].Action)
			assert.Equal(t, "verification_started", trail[1].Action)

			all, err := s.ListAudit(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestNewIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewCaseID(), "CASE-"))
	assert.True(t, strings.HasPrefix(NewThreadID(), "THREAD-"))
	assert.True(t, strings.HasPrefix(NewMessageID(), "MSG-"))
	assert.True(t, strings.HasPrefix(NewEventID(), "EVT-"))
	assert.NotEqual(t, NewCaseID(), NewCaseID())
}
