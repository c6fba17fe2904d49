// Package insight derives a coaching-style summary from a session and its
// predecessor, gated by parse quality so low-confidence parses never drive
// confident-sounding text.
package insight

import (
	"fmt"

	"example.com/workoutlog/internal/domain"
)

// Mode states whether the insight may be acted on.
type Mode string

const (
	ModeActionable Mode = "actionable"
	ModeReview     Mode = "review"
)

// Trend classifies the session-level volume delta.
type Trend string

const (
	TrendBaseline  Trend = "baseline"
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendSteady    Trend = "steady"
)

// ConfidenceThreshold is the minimum overall parse confidence for an
// actionable insight.
const ConfidenceThreshold = 0.70

// steadyBandLbs is the absolute session delta treated as noise.
const steadyBandLbs = 50.0

// Highlight names the single exercise with the largest volume swing.
type Highlight struct {
	ExerciseKey    string  `json:"exercise_key"`
	VolumeDeltaLbs float64 `json:"volume_delta_lbs"`
}

// Insight is the derived summary for one session.
type Insight struct {
	Mode            Mode       `json:"mode"`
	Trend           Trend      `json:"trend,omitempty"`
	TotalDeltaLbs   *float64   `json:"total_delta_lbs,omitempty"`
	TopGain         *Highlight `json:"top_gain,omitempty"`
	TopDrop         *Highlight `json:"top_drop,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty"`
	ReviewReasons   []string   `json:"review_reasons,omitempty"`
}

// Codes on warnings that indicate the underlying numbers are suspect.
var dataQualityCodes = map[string]struct{}{
	"totals_mismatch":      {},
	"metrics_mismatch":     {},
	"low_field_confidence": {},
	"ambiguous_quantity":   {},
}

// Build derives the insight for a session given its same-type predecessor
// (nil for the first session) and the parse quality of the outcome the
// session came from. Pure function.
func Build(session *domain.ParsedWorkoutSession, prev *domain.ParsedWorkoutSession, quality *domain.ParseOutcome) Insight {
	if session == nil {
		return Insight{Mode: ModeReview, ReviewReasons: []string{"no persisted session for this log"}}
	}
	if reasons := reviewReasons(quality); len(reasons) > 0 {
		return Insight{Mode: ModeReview, ReviewReasons: reasons}
	}

	out := Insight{Mode: ModeActionable}

	delta := session.Metrics.PreviousSessionTotalLbsDelta
	if prev == nil || delta == nil {
		out.Trend = TrendBaseline
		out.Recommendations = append(out.Recommendations,
			"First logged session of this workout type; future sessions will track progression against it.")
		return out
	}

	d := *delta
	out.TotalDeltaLbs = &d
	switch {
	case d > steadyBandLbs:
		out.Trend = TrendImproving
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Total volume up %.0f lbs on the previous session; hold this load before adding more.", d))
	case d < -steadyBandLbs:
		out.Trend = TrendDeclining
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Total volume down %.0f lbs on the previous session; check recovery before the next one.", -d))
	default:
		out.Trend = TrendSteady
		out.Recommendations = append(out.Recommendations,
			"Volume held steady against the previous session.")
	}

	out.TopGain, out.TopDrop = extremes(session)
	if out.TopGain != nil {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Biggest gain: %s (+%.0f lbs).", out.TopGain.ExerciseKey, out.TopGain.VolumeDeltaLbs))
	}
	if out.TopDrop != nil {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Biggest drop: %s (%.0f lbs).", out.TopDrop.ExerciseKey, out.TopDrop.VolumeDeltaLbs))
	}
	return out
}

// reviewReasons returns the gating reasons, empty when the parse is
// trustworthy enough for actionable output.
func reviewReasons(quality *domain.ParseOutcome) []string {
	if quality == nil {
		return []string{"no parse outcome available"}
	}
	var reasons []string
	if quality.Confidence < ConfidenceThreshold {
		reasons = append(reasons, fmt.Sprintf("parse confidence %.2f below %.2f", quality.Confidence, ConfidenceThreshold))
	}
	if len(quality.Errors) > 0 {
		reasons = append(reasons, "parse reported errors")
	}
	for _, warning := range quality.Warnings {
		if _, ok := dataQualityCodes[warning.Code]; ok {
			reasons = append(reasons, fmt.Sprintf("data-quality warning %s", warning.Code))
			break
		}
	}
	return reasons
}

func extremes(session *domain.ParsedWorkoutSession) (gain, drop *Highlight) {
	for _, perf := range session.ExercisePerformances {
		if perf.PreviousSessionVolumeDeltaLbs == nil {
			continue
		}
		d := *perf.PreviousSessionVolumeDeltaLbs
		if d > 0 && (gain == nil || d > gain.VolumeDeltaLbs) {
			gain = &Highlight{ExerciseKey: perf.ExerciseKey, VolumeDeltaLbs: d}
		}
		if d < 0 && (drop == nil || d < drop.VolumeDeltaLbs) {
			drop = &Highlight{ExerciseKey: perf.ExerciseKey, VolumeDeltaLbs: d}
		}
	}
	return gain, drop
}
