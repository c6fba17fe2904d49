// Package events defines the payloads published for downstream consumers
// (dashboards, trend rollups).
package events

import "time"

// SessionIngested is emitted when a raw log parse produced a persisted
// session.
type SessionIngested struct {
	RawLogID       string    `json:"raw_log_id"`
	SessionID      string    `json:"session_id"`
	WorkoutTypeID  string    `json:"workout_type_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	Status         string    `json:"status"`
	TotalLbsLifted float64   `json:"total_lbs_lifted"`
	TotalSets      int       `json:"total_sets"`
	TotalReps      int       `json:"total_reps"`
}

// SessionCorrected is emitted once per applied correction and names every
// session the cascade rewrote.
type SessionCorrected struct {
	CorrectionID       string    `json:"correction_id"`
	RawLogID           string    `json:"raw_log_id"`
	SessionID          string    `json:"session_id"`
	WorkoutTypeID      string    `json:"workout_type_id"`
	ParseVersion       int       `json:"parse_version"`
	ComputationVersion int       `json:"computation_version"`
	UpdatedSessionIDs  []string  `json:"updated_session_ids"`
	OccurredAt         time.Time `json:"occurred_at"`
}
