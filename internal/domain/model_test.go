package domain

import (
	"testing"
	"time"
)

func TestCloneIsDeep(t *testing.T) {
	rpe := 8.5
	delta := 120.0
	repDelta := 4
	original := &ParsedWorkoutSession{
		Session: WorkoutSession{
			ID:            "s1",
			WorkoutTypeID: WorkoutTypeChest,
			OccurredAt:    time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
			ParseVersion:  2,
		},
		ExercisePerformances: []ExercisePerformance{
			{
				ID:                            "p1",
				ExerciseKey:                   "bench_press",
				SetEntries:                    []SetEntry{{ID: "t1", SetIndex: 1, Reps: 8, WeightLbs: 100, RPE: &rpe}},
				TotalSets:                     1,
				TotalReps:                     8,
				TotalVolumeLbs:                800,
				PreviousSessionVolumeDeltaLbs: &delta,
			},
		},
		Metrics: SessionMetrics{
			TotalLbsLifted:               800,
			TotalSets:                    1,
			TotalReps:                    8,
			PreviousSessionTotalLbsDelta: &delta,
			PerExerciseProgression: []ExerciseProgression{
				{ExerciseKey: "bench_press", VolumeDeltaLbs: &delta, RepDelta: &repDelta},
			},
			ComputationVersion: 3,
		},
	}

	clone := original.Clone()

	if clone == original {
		t.Fatal("clone must be a distinct value")
	}

	*clone.ExercisePerformances[0].SetEntries[0].RPE = 10
	*clone.ExercisePerformances[0].PreviousSessionVolumeDeltaLbs = -1
	*clone.Metrics.PreviousSessionTotalLbsDelta = -1
	*clone.Metrics.PerExerciseProgression[0].RepDelta = 99
	clone.ExercisePerformances[0].SetEntries[0].Reps = 99

	if *original.ExercisePerformances[0].SetEntries[0].RPE != 8.5 {
		t.Fatal("set RPE aliased")
	}
	if *original.ExercisePerformances[0].PreviousSessionVolumeDeltaLbs != 120 {
		t.Fatal("exercise delta aliased")
	}
	if *original.Metrics.PreviousSessionTotalLbsDelta != 120 {
		t.Fatal("session delta aliased")
	}
	if *original.Metrics.PerExerciseProgression[0].RepDelta != 4 {
		t.Fatal("progression aliased")
	}
	if original.ExercisePerformances[0].SetEntries[0].Reps != 8 {
		t.Fatal("set slice aliased")
	}
}

func TestCloneNil(t *testing.T) {
	var ps *ParsedWorkoutSession
	if ps.Clone() != nil {
		t.Fatal("nil clone must stay nil")
	}
}

func TestBuiltInWorkoutTypes(t *testing.T) {
	types := BuiltInWorkoutTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 built-ins got %d", len(types))
	}
	for _, wt := range types {
		if !wt.BuiltIn {
			t.Fatalf("%s should be built-in", wt.ID)
		}
	}
}
