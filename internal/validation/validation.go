// Package validation enforces the structural and numeric-identity invariants
// of ingestion requests and fully assembled sessions. Every check reports a
// field-tagged error so parser output and corrections stay diagnosable
// per-field.
package validation

import (
	"fmt"
	"math"
	"strings"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/progression"
)

// Error codes carried by FieldError and surfaced as issue codes on downgraded
// parses.
const (
	CodeRequired        = "required"
	CodeInvalidValue    = "invalid_value"
	CodeOutOfRange      = "out_of_range"
	CodeTotalsMismatch  = "totals_mismatch"
	CodeMetricsMismatch = "metrics_mismatch"
)

// IngestModeNaturalLanguage is the only supported ingestion mode.
const IngestModeNaturalLanguage = "natural_language"

// FieldError tags one failing field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FieldErrors is an itemized validation result. A nil or empty slice means
// the input passed.
type FieldErrors []FieldError

// Error summarises the list for logging; callers that need per-field detail
// iterate the slice.
func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Issues converts the list to domain issues so a failing parse can carry its
// violations as warnings.
func (e FieldErrors) Issues() []domain.Issue {
	out := make([]domain.Issue, len(e))
	for i, fe := range e {
		out[i] = domain.Issue{Code: fe.Code, Field: fe.Field, Message: fe.Message}
	}
	return out
}

func (e *FieldErrors) add(field, code, message string) {
	*e = append(*e, FieldError{Field: field, Code: code, Message: message})
}

// ValidateIngestRequest performs the request-level pass: non-empty raw text,
// a well-formed submission timestamp, and the fixed ingestion mode.
func ValidateIngestRequest(req domain.ParseRequest) FieldErrors {
	var errs FieldErrors
	if strings.TrimSpace(req.RawText) == "" {
		errs.add("rawText", CodeRequired, "raw workout text must not be empty")
	}
	if req.SubmittedAt.IsZero() {
		errs.add("submittedAt", CodeRequired, "submission timestamp is required")
	}
	if req.Mode != IngestModeNaturalLanguage {
		errs.add("mode", CodeInvalidValue, fmt.Sprintf("mode must be %q", IngestModeNaturalLanguage))
	}
	return errs
}

// ValidateSession performs the session-level invariant pass on a fully
// assembled parsed session. Derived fields must exactly equal what the
// progression package computes from the raw set entries.
func ValidateSession(ps *domain.ParsedWorkoutSession) FieldErrors {
	var errs FieldErrors
	if ps == nil {
		errs.add("session", CodeRequired, "parsed session is missing")
		return errs
	}
	if strings.TrimSpace(ps.Session.WorkoutTypeID) == "" {
		errs.add("session.workoutTypeId", CodeRequired, "workout type id is required")
	}
	if ps.Session.OccurredAt.IsZero() {
		errs.add("session.occurredAt", CodeRequired, "occurred-at timestamp is required")
	}
	if len(ps.ExercisePerformances) == 0 {
		errs.add("exercisePerformances", CodeRequired, "at least one exercise is required")
	}

	var wantSessionSets, wantSessionReps int
	var wantSessionVolume float64

	for i := range ps.ExercisePerformances {
		perf := &ps.ExercisePerformances[i]
		prefix := fmt.Sprintf("exercisePerformances/%d", i)

		if len(perf.SetEntries) == 0 {
			errs.add(prefix+"/setEntries", CodeRequired, "every exercise needs at least one set")
		}
		for j, set := range perf.SetEntries {
			setPrefix := fmt.Sprintf("%s/setEntries/%d", prefix, j)
			if set.Reps < 1 {
				errs.add(setPrefix+"/reps", CodeOutOfRange, "reps must be a positive integer")
			}
			if set.WeightLbs < 0 || math.IsNaN(set.WeightLbs) || math.IsInf(set.WeightLbs, 0) {
				errs.add(setPrefix+"/weightLbs", CodeOutOfRange, "weight must be a finite non-negative number")
			}
			if set.RPE != nil && (*set.RPE < 0 || *set.RPE > 10) {
				errs.add(setPrefix+"/rpe", CodeOutOfRange, "rpe must be between 0 and 10")
			}
		}

		wantSets, wantReps, wantVolume := progression.ExerciseTotals(perf.SetEntries)
		if perf.TotalSets != wantSets {
			errs.add(prefix+"/totalSets", CodeTotalsMismatch,
				fmt.Sprintf("totalSets is %d, expected %d", perf.TotalSets, wantSets))
		}
		if perf.TotalReps != wantReps {
			errs.add(prefix+"/totalReps", CodeTotalsMismatch,
				fmt.Sprintf("totalReps is %d, expected %d", perf.TotalReps, wantReps))
		}
		if perf.TotalVolumeLbs != wantVolume {
			errs.add(prefix+"/totalVolumeLbs", CodeTotalsMismatch,
				fmt.Sprintf("totalVolumeLbs is %g, expected %g", perf.TotalVolumeLbs, wantVolume))
		}

		wantSessionSets += wantSets
		wantSessionReps += wantReps
		wantSessionVolume += wantVolume
	}

	if ps.Metrics.TotalSets != wantSessionSets {
		errs.add("metrics/totalSets", CodeMetricsMismatch,
			fmt.Sprintf("session totalSets is %d, expected %d", ps.Metrics.TotalSets, wantSessionSets))
	}
	if ps.Metrics.TotalReps != wantSessionReps {
		errs.add("metrics/totalReps", CodeMetricsMismatch,
			fmt.Sprintf("session totalReps is %d, expected %d", ps.Metrics.TotalReps, wantSessionReps))
	}
	if ps.Metrics.TotalLbsLifted != wantSessionVolume {
		errs.add("metrics/totalLbsLifted", CodeMetricsMismatch,
			fmt.Sprintf("session totalLbsLifted is %g, expected %g", ps.Metrics.TotalLbsLifted, wantSessionVolume))
	}
	if got, want := len(ps.Metrics.PerExerciseProgression), len(ps.ExercisePerformances); got != want {
		errs.add("metrics/perExerciseProgression", CodeMetricsMismatch,
			fmt.Sprintf("progression has %d entries, expected one per exercise (%d)", got, want))
	}

	return errs
}
