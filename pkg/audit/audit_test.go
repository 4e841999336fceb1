package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyax/pool-patrol/pkg/audit"
	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/store"
)

func TestRecorder_AppendsEvent(t *testing.T) {
	mem := store.NewMemory()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rec := audit.NewRecorder(mem, nil).WithClock(func() time.Time { return now })

	rec.Record(context.Background(), "CASE-1", "VP-101", audit.ActorSystem, "case_opened", "reason=shift_mismatch")
	rec.Record(context.Background(), "CASE-1", "VP-101", audit.ActorReviewer, "case_cancelled", "membership cancelled")

	trail, err := mem.ListAudit(context.Background(), "CASE-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)

	first := trail[0]
	assert.Equal(t, "case_opened", first.Action)
	assert.Equal(t, audit.ActorSystem, first.Actor)
	assert.Equal(t, "VP-101", first.VanpoolID)
	assert.Equal(t, now, first.Timestamp)
	assert.Regexp(t, `^EVT-[0-9A-F]{8}$`, first.EventID)

	assert.Equal(t, audit.ActorReviewer, trail[1].Actor)
}

type failingAuditStore struct{}

func (failingAuditStore) AppendAudit(context.Context, *contracts.AuditEvent) error {
	return errors.New("disk full")
}

func (failingAuditStore) ListAudit(context.Context, string) ([]*contracts.AuditEvent, error) {
	return nil, nil
}

func TestRecorder_PersistFailureDoesNotPanicOrPropagate(t *testing.T) {
	rec := audit.NewRecorder(failingAuditStore{}, nil)

	assert.NotPanics(t, func() {
		rec.Record(context.Background(), "CASE-1", "VP-101", audit.ActorSystem, "case_opened", "")
	})
}
