package correction

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/progression"
)

func patchSession() *domain.ParsedWorkoutSession {
	ps := &domain.ParsedWorkoutSession{
		Session: domain.WorkoutSession{
			ID:            "s1",
			WorkoutTypeID: domain.WorkoutTypeChest,
			OccurredAt:    time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
			Timezone:      "America/Denver",
		},
		ExercisePerformances: []domain.ExercisePerformance{
			{
				ID:           "p1",
				ExerciseKey:  "bench_press",
				ExerciseName: "Bench Press",
				SetEntries: []domain.SetEntry{
					{ID: "t1", SetIndex: 1, Reps: 8, WeightLbs: 100},
					{ID: "t2", SetIndex: 2, Reps: 8, WeightLbs: 100},
					{ID: "t3", SetIndex: 3, Reps: 6, WeightLbs: 110},
				},
			},
		},
	}
	progression.Recompute(ps, nil)
	return ps
}

func op(opName, path, value string) domain.PatchOperation {
	out := domain.PatchOperation{Op: opName, Path: path}
	if value != "" {
		out.Value = json.RawMessage(value)
	}
	return out
}

func testID() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func TestApplyPatchReplacesSetFields(t *testing.T) {
	ps := patchSession()
	ops := []domain.PatchOperation{
		op(OpReplace, "/exercisePerformances/0/setEntries/0/reps", "10"),
		op(OpReplace, "/exercisePerformances/0/setEntries/1/weightLbs", "105.5"),
		op(OpReplace, "/exercisePerformances/0/setEntries/2/rpe", "8.5"),
		op(OpReplace, "/exercisePerformances/0/setEntries/2/warmup", "true"),
		op(OpReplace, "/exercisePerformances/0/setEntries/2/note", `"grinder"`),
	}

	require.Empty(t, applyPatch(ps, ops, testID()))

	entries := ps.ExercisePerformances[0].SetEntries
	require.Equal(t, 10, entries[0].Reps)
	require.Equal(t, 105.5, entries[1].WeightLbs)
	require.NotNil(t, entries[2].RPE)
	require.Equal(t, 8.5, *entries[2].RPE)
	require.True(t, entries[2].Warmup)
	require.Equal(t, "grinder", entries[2].Note)
}

func TestApplyPatchSessionFields(t *testing.T) {
	ps := patchSession()
	ops := []domain.PatchOperation{
		op(OpReplace, "/session/occurredAt", `"2025-03-02T09:30:00-07:00"`),
		op(OpReplace, "/session/notes", `"moved to morning"`),
		op(OpReplace, "/session/timezone", `"America/Phoenix"`),
	}

	require.Empty(t, applyPatch(ps, ops, testID()))
	require.Equal(t, time.Date(2025, 3, 2, 16, 30, 0, 0, time.UTC), ps.Session.OccurredAt)
	require.Equal(t, "moved to morning", ps.Session.Notes)
	require.Equal(t, "America/Phoenix", ps.Session.Timezone)
}

func TestApplyPatchAddAndRemoveSets(t *testing.T) {
	ps := patchSession()
	ops := []domain.PatchOperation{
		op(OpAdd, "/exercisePerformances/0/setEntries/-", `{"reps":5,"weightLbs":115,"rpe":9}`),
		op(OpRemove, "/exercisePerformances/0/setEntries/0", ""),
	}

	require.Empty(t, applyPatch(ps, ops, testID()))

	entries := ps.ExercisePerformances[0].SetEntries
	require.Len(t, entries, 3)
	require.Equal(t, "new-1", entries[2].ID, "appended set gets a fresh identity")
	require.Equal(t, 5, entries[2].Reps)
	for i, set := range entries {
		require.Equal(t, i+1, set.SetIndex, "set indexes must stay contiguous")
	}
}

func TestApplyPatchRejectsWorkoutTypeChange(t *testing.T) {
	ps := patchSession()
	errs := applyPatch(ps, []domain.PatchOperation{
		op(OpReplace, "/session/workoutTypeId", `"legs"`),
	}, testID())
	require.NotEmpty(t, errs)
}

func TestApplyPatchRejectsOutOfRangeValues(t *testing.T) {
	cases := []domain.PatchOperation{
		op(OpReplace, "/exercisePerformances/0/setEntries/0/reps", "0"),
		op(OpReplace, "/exercisePerformances/0/setEntries/0/reps", "7.5"),
		op(OpReplace, "/exercisePerformances/0/setEntries/0/weightLbs", "-10"),
		op(OpReplace, "/exercisePerformances/0/setEntries/0/rpe", "10.5"),
		op(OpAdd, "/exercisePerformances/0/setEntries/-", `{"reps":0,"weightLbs":100}`),
		op(OpReplace, "/exercisePerformances/0/exerciseName", `""`),
		op(OpReplace, "/exercisePerformances/4/exerciseName", `"Dips"`),
		op(OpRemove, "/exercisePerformances/0/setEntries/9", ""),
		op(OpReplace, "/unknown/path", `"x"`),
	}
	for i, bad := range cases {
		ps := patchSession()
		errs := applyPatch(ps, []domain.PatchOperation{bad}, testID())
		require.NotEmpty(t, errs, "case %d (%s %s) should be rejected", i, bad.Op, bad.Path)
	}
}

func TestApplyPatchStopsAtFirstInvalidOperation(t *testing.T) {
	ps := patchSession()
	ops := []domain.PatchOperation{
		op(OpReplace, "/exercisePerformances/0/setEntries/0/reps", "12"),
		op(OpReplace, "/exercisePerformances/0/setEntries/0/reps", "0"),
		op(OpReplace, "/exercisePerformances/0/setEntries/1/reps", "12"),
	}

	errs := applyPatch(ps, ops, testID())
	require.NotEmpty(t, errs)
	// The third operation never ran.
	require.Equal(t, 8, ps.ExercisePerformances[0].SetEntries[1].Reps)
}

func TestApplyPatchRemovesOptionalFields(t *testing.T) {
	ps := patchSession()
	rpe := 9.0
	ps.ExercisePerformances[0].SetEntries[0].RPE = &rpe
	ps.ExercisePerformances[0].SetEntries[0].Note = "tough"

	ops := []domain.PatchOperation{
		op(OpRemove, "/exercisePerformances/0/setEntries/0/rpe", ""),
		op(OpRemove, "/exercisePerformances/0/setEntries/0/note", ""),
	}
	require.Empty(t, applyPatch(ps, ops, testID()))
	require.Nil(t, ps.ExercisePerformances[0].SetEntries[0].RPE)
	require.Empty(t, ps.ExercisePerformances[0].SetEntries[0].Note)
}
