package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/workoutlog/internal/domain"
)

func sets(entries ...[2]float64) []domain.SetEntry {
	out := make([]domain.SetEntry, len(entries))
	for i, e := range entries {
		out[i] = domain.SetEntry{
			ID:        "set-" + string(rune('a'+i)),
			SetIndex:  i + 1,
			Reps:      int(e[0]),
			WeightLbs: e[1],
		}
	}
	return out
}

func benchSession(id string, occurredAt time.Time, weight float64) domain.ParsedWorkoutSession {
	return domain.ParsedWorkoutSession{
		Session: domain.WorkoutSession{
			ID:            id,
			WorkoutTypeID: domain.WorkoutTypeChest,
			OccurredAt:    occurredAt,
		},
		ExercisePerformances: []domain.ExercisePerformance{
			{
				ID:          id + "-bench",
				ExerciseKey: "bench_press",
				SetEntries:  sets([2]float64{8, weight}, [2]float64{8, weight}),
			},
		},
	}
}

func TestExerciseTotals(t *testing.T) {
	totalSets, totalReps, volume := ExerciseTotals(sets(
		[2]float64{8, 100},
		[2]float64{5, 120},
	))
	require.Equal(t, 2, totalSets)
	require.Equal(t, 13, totalReps)
	require.Equal(t, 1400.0, volume)
}

func TestExerciseTotalsClampsMalformedEntries(t *testing.T) {
	entries := []domain.SetEntry{
		{Reps: -3, WeightLbs: 100},
		{Reps: 0, WeightLbs: 200},
		{Reps: 5, WeightLbs: -50},
		{Reps: 5, WeightLbs: 100},
	}
	totalSets, totalReps, volume := ExerciseTotals(entries)
	require.Equal(t, 4, totalSets, "malformed sets still count as sets")
	require.Equal(t, 10, totalReps)
	require.Equal(t, 500.0, volume)
}

func TestRecomputeFirstSessionHasNilDeltas(t *testing.T) {
	session := benchSession("s1", time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), 100)

	Recompute(&session, nil)

	require.Equal(t, 1600.0, session.Metrics.TotalLbsLifted)
	require.Equal(t, 2, session.Metrics.TotalSets)
	require.Equal(t, 16, session.Metrics.TotalReps)
	require.Nil(t, session.Metrics.PreviousSessionTotalLbsDelta)
	require.Len(t, session.Metrics.PerExerciseProgression, 1)
	require.Nil(t, session.Metrics.PerExerciseProgression[0].VolumeDeltaLbs)
	require.Nil(t, session.ExercisePerformances[0].PreviousSessionVolumeDeltaLbs)
}

func TestRecomputeDeltasAgainstPredecessor(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	prev := benchSession("s1", day1, 100)
	Recompute(&prev, nil)

	next := benchSession("s2", day1.AddDate(0, 0, 7), 112.5)
	Recompute(&next, &prev)

	require.Equal(t, 1800.0, next.Metrics.TotalLbsLifted)
	require.NotNil(t, next.Metrics.PreviousSessionTotalLbsDelta)
	require.Equal(t, 200.0, *next.Metrics.PreviousSessionTotalLbsDelta)

	perf := next.ExercisePerformances[0]
	require.NotNil(t, perf.PreviousSessionVolumeDeltaLbs)
	require.Equal(t, 200.0, *perf.PreviousSessionVolumeDeltaLbs)

	prog := next.Metrics.PerExerciseProgression[0]
	require.Equal(t, "bench_press", prog.ExerciseKey)
	require.Equal(t, 200.0, *prog.VolumeDeltaLbs)
	require.Equal(t, 0, *prog.RepDelta)
}

func TestRecomputeUnmatchedExerciseKeyHasNilDelta(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	prev := benchSession("s1", day1, 100)
	Recompute(&prev, nil)

	next := benchSession("s2", day1.AddDate(0, 0, 7), 100)
	next.ExercisePerformances[0].ExerciseKey = "incline_press"
	Recompute(&next, &prev)

	require.Nil(t, next.ExercisePerformances[0].PreviousSessionVolumeDeltaLbs)
	require.Nil(t, next.Metrics.PerExerciseProgression[0].VolumeDeltaLbs)
	// The session-level delta still compares whole-session volume.
	require.NotNil(t, next.Metrics.PreviousSessionTotalLbsDelta)
	require.Equal(t, 0.0, *next.Metrics.PreviousSessionTotalLbsDelta)
}

func TestSortSessionsBreaksTiesByID(t *testing.T) {
	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	sessions := []domain.ParsedWorkoutSession{
		benchSession("s-b", at, 100),
		benchSession("s-a", at, 100),
		benchSession("s-0", at.Add(-time.Hour), 100),
	}
	SortSessions(sessions)

	require.Equal(t, "s-0", sessions[0].Session.ID)
	require.Equal(t, "s-a", sessions[1].Session.ID)
	require.Equal(t, "s-b", sessions[2].Session.ID)
}

func TestFilterSessionsByTypeAndWindow(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 7)
	day3 := day1.AddDate(0, 0, 14)

	legs := benchSession("legs-1", day2, 100)
	legs.Session.WorkoutTypeID = domain.WorkoutTypeLegs

	sessions := []domain.ParsedWorkoutSession{
		benchSession("s1", day1, 100),
		benchSession("s2", day2, 110),
		benchSession("s3", day3, 120),
		legs,
	}

	got := FilterSessions(sessions, domain.SessionFilter{
		WorkoutTypeID: domain.WorkoutTypeChest,
		From:          &day2,
	})
	require.Len(t, got, 2)
	require.Equal(t, "s2", got[0].Session.ID)
	require.Equal(t, "s3", got[1].Session.ID)
}

func TestMostRecentBeforeIsStrict(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 7)
	sessions := []domain.ParsedWorkoutSession{
		benchSession("s1", day1, 100),
		benchSession("s2", day2, 110),
	}

	require.Nil(t, MostRecentBefore(sessions, domain.WorkoutTypeChest, day1))
	got := MostRecentBefore(sessions, domain.WorkoutTypeChest, day2)
	require.NotNil(t, got)
	require.Equal(t, "s1", got.Session.ID)
}

func TestDerivedEqualIgnoresVersionCounters(t *testing.T) {
	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	a := benchSession("s1", at, 100)
	Recompute(&a, nil)
	b := *a.Clone()
	b.Session.ParseVersion = 5
	b.Metrics.ComputationVersion = 9

	require.True(t, DerivedEqual(&a, &b))

	b.Metrics.TotalLbsLifted += 0.5
	require.False(t, DerivedEqual(&a, &b))
}
