package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joyax/pool-patrol/pkg/contracts"
	"github.com/joyax/pool-patrol/pkg/llm"
	"github.com/joyax/pool-patrol/pkg/store"
)

func seedShifts(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mem.PutShift(ctx, &contracts.Shift{ShiftID: "SHIFT-DAY", Name: "Day"}))
	require.NoError(t, mem.PutShift(ctx, &contracts.Shift{ShiftID: "SHIFT-NIGHT", Name: "Night"}))
}

func rider(id, shiftID, zip string) *contracts.Employee {
	return &contracts.Employee{
		EmployeeID: id, FirstName: "R", LastName: id,
		Email: id + "@example.com", WorkSite: "Plant 7",
		HomeZip: zip, ShiftID: shiftID, Status: contracts.EmployeeActive,
	}
}

func TestShiftSpecialist_AllSameShiftPasses(t *testing.T) {
	mem := store.NewMemory()
	seedShifts(t, mem)
	v := NewShiftSpecialist(mem)

	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders: []*contracts.Employee{
			rider("E-1", "SHIFT-DAY", "98052"),
			rider("E-2", "SHIFT-DAY", "98053"),
			rider("E-3", "SHIFT-DAY", "98054"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictPass, res.Verdict)
	assert.Equal(t, 5, res.Confidence)
}

func TestShiftSpecialist_MinorityRiderFails(t *testing.T) {
	mem := store.NewMemory()
	seedShifts(t, mem)
	v := NewShiftSpecialist(mem)

	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders: []*contracts.Employee{
			rider("E-1", "SHIFT-DAY", "98052"),
			rider("E-2", "SHIFT-DAY", "98053"),
			rider("E-3", "SHIFT-NIGHT", "98054"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictFail, res.Verdict)
	assert.Contains(t, res.Reasoning, "E-3")

	var mismatches int
	for _, ev := range res.Evidence {
		if ev.Type == "shift_mismatch" {
			mismatches++
			assert.Equal(t, "E-3", ev.Data["employee_id"])
			assert.Equal(t, "Night", ev.Data["shift"])
			assert.Equal(t, "Day", ev.Data["expected"])
		}
	}
	assert.Equal(t, 1, mismatches)
}

func TestShiftSpecialist_SingleRiderAlwaysPasses(t *testing.T) {
	mem := store.NewMemory()
	v := NewShiftSpecialist(mem)

	// No shift data seeded at all; a lone rider still passes.
	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders:    []*contracts.Employee{rider("E-1", "SHIFT-DAY", "98052")},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictPass, res.Verdict)
}

func TestShiftSpecialist_MissingShiftDataFails(t *testing.T) {
	mem := store.NewMemory()
	seedShifts(t, mem)
	v := NewShiftSpecialist(mem)

	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders: []*contracts.Employee{
			rider("E-1", "SHIFT-DAY", "98052"),
			rider("E-2", "SHIFT-UNKNOWN", "98053"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictFail, res.Verdict)
	assert.Contains(t, res.Reasoning, "E-2")
}

func TestShiftSpecialist_EmptyRosterFails(t *testing.T) {
	v := NewShiftSpecialist(store.NewMemory())
	res, err := v.Verify(context.Background(), &contracts.Roster{VanpoolID: "VP-A"})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictFail, res.Verdict)
	assert.Equal(t, 5, res.Confidence)
}

func TestLocationSpecialist_InAreaPasses(t *testing.T) {
	v := NewLocationSpecialist(map[string][]string{"Plant 7": {"980", "981"}})
	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders: []*contracts.Employee{
			rider("E-1", "SHIFT-DAY", "98052"),
			rider("E-2", "SHIFT-DAY", "98101"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictPass, res.Verdict)
}

func TestLocationSpecialist_OutOfAreaFails(t *testing.T) {
	v := NewLocationSpecialist(map[string][]string{"Plant 7": {"980"}})
	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders: []*contracts.Employee{
			rider("E-1", "SHIFT-DAY", "98052"),
			rider("E-2", "SHIFT-DAY", "10001"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictFail, res.Verdict)
	assert.Contains(t, res.Reasoning, "E-2")
}

func TestLocationSpecialist_NoServiceAreaConfigured(t *testing.T) {
	v := NewLocationSpecialist(nil)
	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A", WorkSite: "Plant 7",
		Riders:    []*contracts.Employee{rider("E-1", "SHIFT-DAY", "98052")},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictPass, res.Verdict)
	assert.Equal(t, 2, res.Confidence)
}

func TestAlwaysPass(t *testing.T) {
	v := &AlwaysPass{CheckName: contracts.CheckLocation}
	assert.Equal(t, contracts.CheckLocation, v.Name())
	res, err := v.Verify(context.Background(), &contracts.Roster{})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictPass, res.Verdict)
}

type stubLLM struct {
	content string
	calls   int
}

func (s *stubLLM) Chat(ctx context.Context, msgs []llm.Message, opts *llm.SamplingOptions) (*llm.Response, error) {
	s.calls++
	return &llm.Response{Content: s.content}, nil
}

func TestLLMSpecialist_ParsesVerdict(t *testing.T) {
	v := NewLLMSpecialist(contracts.CheckShift, "Check shift compatibility.",
		&stubLLM{content: "```json\n{\"verdict\": \"fail\", \"confidence\": 9, \"reasoning\": \"mixed shifts\"}\n```"})

	res, err := v.Verify(context.Background(), &contracts.Roster{VanpoolID: "VP-A"})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictFail, res.Verdict)
	// Confidence clamped into [1,5].
	assert.Equal(t, 5, res.Confidence)
}

func TestLLMSpecialist_SingleRiderShortCircuits(t *testing.T) {
	stub := &stubLLM{content: `{"verdict": "fail", "confidence": 5, "reasoning": "model would flag this"}`}
	v := NewLLMSpecialist(contracts.CheckShift, "Check shift compatibility.", stub)

	res, err := v.Verify(context.Background(), &contracts.Roster{
		VanpoolID: "VP-A",
		Riders:    []*contracts.Employee{{EmployeeID: "E-1", ShiftID: "SHIFT-NIGHT"}},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.VerdictPass, res.Verdict)
	assert.Zero(t, stub.calls)
}

func TestLLMSpecialist_RejectsUnknownVerdict(t *testing.T) {
	v := NewLLMSpecialist(contracts.CheckShift, "Check shift compatibility.",
		&stubLLM{content: `{"verdict": "maybe", "confidence": 3}`})
	_, err := v.Verify(context.Background(), &contracts.Roster{VanpoolID: "VP-A"})
	require.Error(t, err)
}
