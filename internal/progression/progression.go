// Package progression computes derived workout numbers: per-exercise totals,
// session aggregates, and deltas against the previous same-type session. All
// functions are pure; this package is the single source of truth for what the
// numbers should be.
package progression

import (
	"math"
	"sort"
	"time"

	"example.com/workoutlog/internal/domain"
)

// ExerciseTotals computes the derived totals for one exercise. Malformed
// entries degrade to zero contribution: reps below 1 count as 0 reps, and a
// negative or non-finite weight contributes 0 volume.
func ExerciseTotals(sets []domain.SetEntry) (totalSets, totalReps int, totalVolumeLbs float64) {
	totalSets = len(sets)
	for _, set := range sets {
		reps := set.Reps
		if reps < 1 {
			reps = 0
		}
		totalReps += reps

		weight := set.WeightLbs
		if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		totalVolumeLbs += float64(reps) * weight
	}
	return totalSets, totalReps, totalVolumeLbs
}

// Recompute rewrites every derived field of the session in place: exercise
// totals, per-exercise deltas against the same-keyed exercise in prev,
// session aggregates, and the session-level total delta. prev may be nil for
// the first session of a type; all deltas are then nil. Version counters are
// left to the caller.
func Recompute(session *domain.ParsedWorkoutSession, prev *domain.ParsedWorkoutSession) {
	var prevByKey map[string]*domain.ExercisePerformance
	if prev != nil {
		prevByKey = make(map[string]*domain.ExercisePerformance, len(prev.ExercisePerformances))
		for i := range prev.ExercisePerformances {
			perf := &prev.ExercisePerformances[i]
			prevByKey[perf.ExerciseKey] = perf
		}
	}

	var sessionSets, sessionReps int
	var sessionVolume float64
	progress := make([]domain.ExerciseProgression, 0, len(session.ExercisePerformances))

	for i := range session.ExercisePerformances {
		perf := &session.ExercisePerformances[i]
		perf.TotalSets, perf.TotalReps, perf.TotalVolumeLbs = ExerciseTotals(perf.SetEntries)
		perf.PreviousSessionVolumeDeltaLbs = nil

		entry := domain.ExerciseProgression{ExerciseKey: perf.ExerciseKey}
		if prevPerf, ok := prevByKey[perf.ExerciseKey]; ok {
			volumeDelta := perf.TotalVolumeLbs - prevPerf.TotalVolumeLbs
			repDelta := perf.TotalReps - prevPerf.TotalReps
			perf.PreviousSessionVolumeDeltaLbs = &volumeDelta
			entry.VolumeDeltaLbs = &volumeDelta
			entry.RepDelta = &repDelta
		}
		progress = append(progress, entry)

		sessionSets += perf.TotalSets
		sessionReps += perf.TotalReps
		sessionVolume += perf.TotalVolumeLbs
	}

	session.Metrics.TotalSets = sessionSets
	session.Metrics.TotalReps = sessionReps
	session.Metrics.TotalLbsLifted = sessionVolume
	session.Metrics.PerExerciseProgression = progress
	session.Metrics.PreviousSessionTotalLbsDelta = nil
	if prev != nil {
		delta := sessionVolume - prev.Metrics.TotalLbsLifted
		session.Metrics.PreviousSessionTotalLbsDelta = &delta
	}
}

// SortSessions orders sessions by occurred-at ascending, breaking ties by
// session id so the timeline is deterministic.
func SortSessions(sessions []domain.ParsedWorkoutSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i].Session, sessions[j].Session
		if a.OccurredAt.Equal(b.OccurredAt) {
			return a.ID < b.ID
		}
		return a.OccurredAt.Before(b.OccurredAt)
	})
}

// FilterSessions returns the sessions matching the filter in timeline order.
func FilterSessions(sessions []domain.ParsedWorkoutSession, filter domain.SessionFilter) []domain.ParsedWorkoutSession {
	out := make([]domain.ParsedWorkoutSession, 0, len(sessions))
	for _, ps := range sessions {
		if filter.WorkoutTypeID != "" && ps.Session.WorkoutTypeID != filter.WorkoutTypeID {
			continue
		}
		if filter.From != nil && ps.Session.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && ps.Session.OccurredAt.After(*filter.To) {
			continue
		}
		out = append(out, ps)
	}
	SortSessions(out)
	return out
}

// MostRecentBefore returns the latest session of the given type strictly
// before the timestamp, or nil.
func MostRecentBefore(sessions []domain.ParsedWorkoutSession, workoutTypeID string, before time.Time) *domain.ParsedWorkoutSession {
	var best *domain.ParsedWorkoutSession
	for i := range sessions {
		ps := &sessions[i]
		if ps.Session.WorkoutTypeID != workoutTypeID {
			continue
		}
		if !ps.Session.OccurredAt.Before(before) {
			continue
		}
		if best == nil || ps.Session.OccurredAt.After(best.Session.OccurredAt) ||
			(ps.Session.OccurredAt.Equal(best.Session.OccurredAt) && ps.Session.ID > best.Session.ID) {
			best = ps
		}
	}
	return best
}

// DerivedEqual reports whether two versions of a session carry the same
// derived snapshot: exercise totals, per-exercise deltas, and session
// metrics. Version counters are ignored. The correction cascade uses this to
// decide which downstream sessions actually changed.
func DerivedEqual(a, b *domain.ParsedWorkoutSession) bool {
	if len(a.ExercisePerformances) != len(b.ExercisePerformances) {
		return false
	}
	for i := range a.ExercisePerformances {
		pa, pb := &a.ExercisePerformances[i], &b.ExercisePerformances[i]
		if pa.TotalSets != pb.TotalSets || pa.TotalReps != pb.TotalReps || pa.TotalVolumeLbs != pb.TotalVolumeLbs {
			return false
		}
		if !floatPtrEqual(pa.PreviousSessionVolumeDeltaLbs, pb.PreviousSessionVolumeDeltaLbs) {
			return false
		}
	}

	ma, mb := &a.Metrics, &b.Metrics
	if ma.TotalSets != mb.TotalSets || ma.TotalReps != mb.TotalReps || ma.TotalLbsLifted != mb.TotalLbsLifted {
		return false
	}
	if !floatPtrEqual(ma.PreviousSessionTotalLbsDelta, mb.PreviousSessionTotalLbsDelta) {
		return false
	}
	if len(ma.PerExerciseProgression) != len(mb.PerExerciseProgression) {
		return false
	}
	for i := range ma.PerExerciseProgression {
		ea, eb := ma.PerExerciseProgression[i], mb.PerExerciseProgression[i]
		if ea.ExerciseKey != eb.ExerciseKey {
			return false
		}
		if !floatPtrEqual(ea.VolumeDeltaLbs, eb.VolumeDeltaLbs) || !intPtrEqual(ea.RepDelta, eb.RepDelta) {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
