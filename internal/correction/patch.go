// Package correction applies retroactive patches to persisted sessions and
// recomputes every downstream session of the same workout type.
package correction

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/validation"
)

// Supported patch operations.
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
)

// applyPatch mutates the candidate session according to the operations. Each
// path shape dispatches to a typed setter that enforces the target field's
// range at the point of mutation; a generic deep-set would lose those checks.
// Application stops at the first invalid operation and the collected field
// errors reject the whole correction.
func applyPatch(candidate *domain.ParsedWorkoutSession, ops []domain.PatchOperation, newID func() string) validation.FieldErrors {
	for i, op := range ops {
		tag := fmt.Sprintf("patch/%d", i)
		if errs := applyOne(candidate, op, tag, newID); len(errs) > 0 {
			return errs
		}
	}
	return nil
}

func applyOne(candidate *domain.ParsedWorkoutSession, op domain.PatchOperation, tag string, newID func() string) validation.FieldErrors {
	segments := strings.Split(strings.TrimPrefix(op.Path, "/"), "/")

	switch {
	case len(segments) == 2 && segments[0] == "session":
		return applySessionField(candidate, op, tag, segments[1])
	case len(segments) == 3 && segments[0] == "exercisePerformances":
		return applyExerciseField(candidate, op, tag, segments[1], segments[2])
	case len(segments) == 4 && segments[0] == "exercisePerformances" && segments[2] == "setEntries":
		return applySetEntry(candidate, op, tag, segments[1], segments[3], newID)
	case len(segments) == 5 && segments[0] == "exercisePerformances" && segments[2] == "setEntries":
		return applySetField(candidate, op, tag, segments[1], segments[3], segments[4])
	}
	return fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("unsupported path %q", op.Path))
}

func applySessionField(candidate *domain.ParsedWorkoutSession, op domain.PatchOperation, tag, field string) validation.FieldErrors {
	if op.Op != OpReplace {
		return fieldErrs(tag+"/op", validation.CodeInvalidValue, fmt.Sprintf("%q only supports replace", op.Path))
	}
	switch field {
	case "occurredAt":
		raw, ok := decodeString(op.Value)
		if !ok {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "occurredAt must be a string")
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "occurredAt must be an RFC3339 timestamp")
		}
		candidate.Session.OccurredAt = ts.UTC()
	case "notes":
		raw, ok := decodeString(op.Value)
		if !ok {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "notes must be a string")
		}
		candidate.Session.Notes = raw
	case "timezone":
		raw, ok := decodeString(op.Value)
		if !ok {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "timezone must be a string")
		}
		candidate.Session.Timezone = raw
	default:
		// workoutTypeId is deliberately not patchable: a type change would
		// re-splice the session into a different timeline.
		return fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("unsupported session field %q", field))
	}
	return nil
}

func applyExerciseField(candidate *domain.ParsedWorkoutSession, op domain.PatchOperation, tag, index, field string) validation.FieldErrors {
	perf, errs := exerciseAt(candidate, tag, index)
	if errs != nil {
		return errs
	}
	if op.Op != OpReplace {
		return fieldErrs(tag+"/op", validation.CodeInvalidValue, fmt.Sprintf("%q only supports replace", op.Path))
	}
	switch field {
	case "exerciseName":
		raw, ok := decodeString(op.Value)
		if !ok || strings.TrimSpace(raw) == "" {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "exerciseName must be a non-empty string")
		}
		perf.ExerciseName = raw
	default:
		return fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("unsupported exercise field %q", field))
	}
	return nil
}

func applySetEntry(candidate *domain.ParsedWorkoutSession, op domain.PatchOperation, tag, exIndex, setIndex string, newID func() string) validation.FieldErrors {
	perf, errs := exerciseAt(candidate, tag, exIndex)
	if errs != nil {
		return errs
	}

	switch op.Op {
	case OpAdd:
		if setIndex != "-" {
			return fieldErrs(tag+"/path", validation.CodeInvalidValue, "sets can only be appended at /setEntries/-")
		}
		var value struct {
			Reps      int      `json:"reps"`
			WeightLbs float64  `json:"weightLbs"`
			Warmup    bool     `json:"warmup"`
			RPE       *float64 `json:"rpe"`
			Note      string   `json:"note"`
		}
		if err := json.Unmarshal(op.Value, &value); err != nil {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "set entry must be an object")
		}
		if value.Reps < 1 {
			return fieldErrs(tag+"/value/reps", validation.CodeOutOfRange, "reps must be a positive integer")
		}
		if value.WeightLbs < 0 || math.IsNaN(value.WeightLbs) || math.IsInf(value.WeightLbs, 0) {
			return fieldErrs(tag+"/value/weightLbs", validation.CodeOutOfRange, "weight must be a finite non-negative number")
		}
		if value.RPE != nil && (*value.RPE < 0 || *value.RPE > 10) {
			return fieldErrs(tag+"/value/rpe", validation.CodeOutOfRange, "rpe must be between 0 and 10")
		}
		perf.SetEntries = append(perf.SetEntries, domain.SetEntry{
			ID:        newID(),
			SetIndex:  len(perf.SetEntries) + 1,
			Reps:      value.Reps,
			WeightLbs: value.WeightLbs,
			Warmup:    value.Warmup,
			RPE:       value.RPE,
			Note:      value.Note,
		})
	case OpRemove:
		j, errs := setAt(perf, tag, setIndex)
		if errs != nil {
			return errs
		}
		perf.SetEntries = append(perf.SetEntries[:j], perf.SetEntries[j+1:]...)
		for k := range perf.SetEntries {
			perf.SetEntries[k].SetIndex = k + 1
		}
	default:
		return fieldErrs(tag+"/op", validation.CodeInvalidValue, "set entries support add and remove")
	}
	return nil
}

func applySetField(candidate *domain.ParsedWorkoutSession, op domain.PatchOperation, tag, exIndex, setIndex, field string) validation.FieldErrors {
	perf, errs := exerciseAt(candidate, tag, exIndex)
	if errs != nil {
		return errs
	}
	j, errs := setAt(perf, tag, setIndex)
	if errs != nil {
		return errs
	}
	set := &perf.SetEntries[j]

	if op.Op == OpRemove {
		switch field {
		case "rpe":
			set.RPE = nil
		case "note":
			set.Note = ""
		default:
			return fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("set field %q cannot be removed", field))
		}
		return nil
	}
	if op.Op != OpReplace {
		return fieldErrs(tag+"/op", validation.CodeInvalidValue, "set fields support replace and remove")
	}

	switch field {
	case "reps":
		reps, ok := decodeInt(op.Value)
		if !ok || reps < 1 {
			return fieldErrs(tag+"/value", validation.CodeOutOfRange, "reps must be a positive integer")
		}
		set.Reps = reps
	case "weightLbs":
		weight, ok := decodeFloat(op.Value)
		if !ok || weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return fieldErrs(tag+"/value", validation.CodeOutOfRange, "weight must be a finite non-negative number")
		}
		set.WeightLbs = weight
	case "rpe":
		rpe, ok := decodeFloat(op.Value)
		if !ok || rpe < 0 || rpe > 10 {
			return fieldErrs(tag+"/value", validation.CodeOutOfRange, "rpe must be between 0 and 10")
		}
		set.RPE = &rpe
	case "warmup":
		warmup, ok := decodeBool(op.Value)
		if !ok {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "warmup must be a boolean")
		}
		set.Warmup = warmup
	case "note":
		note, ok := decodeString(op.Value)
		if !ok {
			return fieldErrs(tag+"/value", validation.CodeInvalidValue, "note must be a string")
		}
		set.Note = note
	default:
		return fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("unsupported set field %q", field))
	}
	return nil
}

func exerciseAt(candidate *domain.ParsedWorkoutSession, tag, index string) (*domain.ExercisePerformance, validation.FieldErrors) {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(candidate.ExercisePerformances) {
		return nil, fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("exercise index %q does not exist", index))
	}
	return &candidate.ExercisePerformances[i], nil
}

func setAt(perf *domain.ExercisePerformance, tag, index string) (int, validation.FieldErrors) {
	j, err := strconv.Atoi(index)
	if err != nil || j < 0 || j >= len(perf.SetEntries) {
		return 0, fieldErrs(tag+"/path", validation.CodeInvalidValue, fmt.Sprintf("set index %q does not exist", index))
	}
	return j, nil
}

func fieldErrs(field, code, message string) validation.FieldErrors {
	return validation.FieldErrors{{Field: field, Code: code, Message: message}}
}

func decodeString(raw json.RawMessage) (string, bool) {
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

func decodeInt(raw json.RawMessage) (int, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func decodeFloat(raw json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func decodeBool(raw json.RawMessage) (bool, bool) {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	return v, true
}
