// Package domain defines the workout-log entities, their invariants, and the
// contracts the services depend on.
package domain

import (
	"encoding/json"
	"time"
)

// Built-in workout type slugs. Custom types are freeform ids.
const (
	WorkoutTypeChest = "chest"
	WorkoutTypeBack  = "back"
	WorkoutTypeLegs  = "legs"
)

// WorkoutType pairs a type id with its display label.
type WorkoutType struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	BuiltIn bool   `json:"built_in"`
}

// BuiltInWorkoutTypes returns the privileged default types.
func BuiltInWorkoutTypes() []WorkoutType {
	return []WorkoutType{
		{ID: WorkoutTypeChest, Label: "Chest", BuiltIn: true},
		{ID: WorkoutTypeBack, Label: "Back", BuiltIn: true},
		{ID: WorkoutTypeLegs, Label: "Legs", BuiltIn: true},
	}
}

// SetEntry is a single performed set. Immutable once persisted except via
// correction.
type SetEntry struct {
	ID        string   `json:"id"`
	SetIndex  int      `json:"set_index"`
	Reps      int      `json:"reps"`
	WeightLbs float64  `json:"weight_lbs"`
	Warmup    bool     `json:"warmup,omitempty"`
	RPE       *float64 `json:"rpe,omitempty"`
	Note      string   `json:"note,omitempty"`
}

// ExercisePerformance is an ordered collection of sets for one exercise.
// TotalSets, TotalReps, TotalVolumeLbs and PreviousSessionVolumeDeltaLbs are
// derived from SetEntries and are never independently settable.
type ExercisePerformance struct {
	ID                            string     `json:"id"`
	ExerciseKey                   string     `json:"exercise_key"`
	ExerciseName                  string     `json:"exercise_name"`
	ExerciseOrder                 int        `json:"exercise_order"`
	SetEntries                    []SetEntry `json:"set_entries"`
	TotalSets                     int        `json:"total_sets"`
	TotalReps                     int        `json:"total_reps"`
	TotalVolumeLbs                float64    `json:"total_volume_lbs"`
	PreviousSessionVolumeDeltaLbs *float64   `json:"previous_session_volume_delta_lbs,omitempty"`
}

// WorkoutSession identifies one logged training session. OccurredAt is the
// ordering key within a workout-type timeline.
type WorkoutSession struct {
	ID            string    `json:"id"`
	RawLogID      string    `json:"raw_log_id"`
	WorkoutTypeID string    `json:"workout_type_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	Timezone      string    `json:"timezone,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	ParseVersion  int       `json:"parse_version"`
}

// ExerciseProgression is the per-exercise delta against the same-keyed
// exercise in the previous same-type session.
type ExerciseProgression struct {
	ExerciseKey    string   `json:"exercise_key"`
	VolumeDeltaLbs *float64 `json:"volume_delta_lbs,omitempty"`
	RepDelta       *int     `json:"rep_delta,omitempty"`
}

// SessionMetrics aggregates exercise totals at session level.
// ComputationVersion increments on every metric recomputation, independently
// of WorkoutSession.ParseVersion.
type SessionMetrics struct {
	TotalLbsLifted               float64               `json:"total_lbs_lifted"`
	TotalSets                    int                   `json:"total_sets"`
	TotalReps                    int                   `json:"total_reps"`
	PreviousSessionTotalLbsDelta *float64              `json:"previous_session_total_lbs_delta,omitempty"`
	PerExerciseProgression       []ExerciseProgression `json:"per_exercise_progression"`
	ComputationVersion           int                   `json:"computation_version"`
}

// ParsedWorkoutSession is the unit of validation and persistence.
type ParsedWorkoutSession struct {
	Session              WorkoutSession        `json:"session"`
	ExercisePerformances []ExercisePerformance `json:"exercise_performances"`
	Metrics              SessionMetrics        `json:"metrics"`
}

// Clone returns a deep copy so callers can build candidates without mutating
// stored state.
func (p *ParsedWorkoutSession) Clone() *ParsedWorkoutSession {
	if p == nil {
		return nil
	}
	out := &ParsedWorkoutSession{
		Session: p.Session,
		Metrics: p.Metrics,
	}
	out.Metrics.PreviousSessionTotalLbsDelta = copyFloat(p.Metrics.PreviousSessionTotalLbsDelta)
	out.Metrics.PerExerciseProgression = make([]ExerciseProgression, len(p.Metrics.PerExerciseProgression))
	for i, prog := range p.Metrics.PerExerciseProgression {
		out.Metrics.PerExerciseProgression[i] = ExerciseProgression{
			ExerciseKey:    prog.ExerciseKey,
			VolumeDeltaLbs: copyFloat(prog.VolumeDeltaLbs),
			RepDelta:       copyInt(prog.RepDelta),
		}
	}
	out.ExercisePerformances = make([]ExercisePerformance, len(p.ExercisePerformances))
	for i, perf := range p.ExercisePerformances {
		cp := perf
		cp.PreviousSessionVolumeDeltaLbs = copyFloat(perf.PreviousSessionVolumeDeltaLbs)
		cp.SetEntries = make([]SetEntry, len(perf.SetEntries))
		for j, set := range perf.SetEntries {
			sc := set
			sc.RPE = copyFloat(set.RPE)
			cp.SetEntries[j] = sc
		}
		out.ExercisePerformances[i] = cp
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Issue is a field-tagged parser or validation finding.
type Issue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ParseOutcome is what the parsing gateway produced for a raw log, enriched
// by the ingestion service with stable identifiers.
type ParseOutcome struct {
	Session          *ParsedWorkoutSession `json:"session,omitempty"`
	Confidence       float64               `json:"confidence"`
	FieldConfidences map[string]float64    `json:"field_confidences,omitempty"`
	Errors           []Issue               `json:"errors,omitempty"`
	Warnings         []Issue               `json:"warnings,omitempty"`
}

// IngestStatus is the terminal status of one ingestion request.
type IngestStatus string

const (
	StatusParsed             IngestStatus = "parsed"
	StatusParsedWithWarnings IngestStatus = "parsed_with_warnings"
	StatusFailed             IngestStatus = "failed"
)

// IngestResponse is the persisted, replayable response for one idempotency key.
type IngestResponse struct {
	RawLogID     string        `json:"raw_log_id"`
	ParseVersion int           `json:"parse_version"`
	Status       IngestStatus  `json:"status"`
	AutoSaved    bool          `json:"auto_saved"`
	SessionID    string        `json:"session_id,omitempty"`
	Parsed       *ParseOutcome `json:"parsed,omitempty"`
	CanCorrect   bool          `json:"can_correct"`
}

// ParseLog is the diagnostic record of one gateway invocation, kept for audit
// regardless of parse success.
type ParseLog struct {
	Model       string    `json:"model"`
	Attempts    int       `json:"attempts"`
	DurationMs  int64     `json:"duration_ms"`
	RawRequest  string    `json:"raw_request"`
	RawResponse string    `json:"raw_response,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IngestRecord bundles everything persisted for one unique idempotency key.
type IngestRecord struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Response       IngestResponse `json:"response"`
	ParseLog       ParseLog       `json:"parse_log"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// PatchOperation is a single correction operation addressed by path.
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// CorrectionStatus reflects the terminal state of a correction.
type CorrectionStatus string

const (
	CorrectionApplied CorrectionStatus = "applied"
)

// CorrectionRecord is the append-only audit entry for one applied correction.
type CorrectionRecord struct {
	ID        string           `json:"id"`
	RawLogID  string           `json:"raw_log_id"`
	SessionID string           `json:"session_id"`
	Reason    string           `json:"reason"`
	Patch     []PatchOperation `json:"patch"`
	Status    CorrectionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}
