package outbox

const sessionIngestedSchema = `{
  "type": "object",
  "title": "WorkoutSessionIngested",
  "properties": {
    "raw_log_id": {"type": "string"},
    "session_id": {"type": "string"},
    "workout_type_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "status": {"type": "string"},
    "total_lbs_lifted": {"type": "number"},
    "total_sets": {"type": "integer"},
    "total_reps": {"type": "integer"}
  },
  "required": ["raw_log_id", "session_id", "workout_type_id", "occurred_at", "status", "total_lbs_lifted", "total_sets", "total_reps"],
  "additionalProperties": false
}`

const sessionCorrectedSchema = `{
  "type": "object",
  "title": "WorkoutSessionCorrected",
  "properties": {
    "correction_id": {"type": "string"},
    "raw_log_id": {"type": "string"},
    "session_id": {"type": "string"},
    "workout_type_id": {"type": "string"},
    "parse_version": {"type": "integer"},
    "computation_version": {"type": "integer"},
    "updated_session_ids": {"type": "array", "items": {"type": "string"}},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["correction_id", "raw_log_id", "session_id", "workout_type_id", "parse_version", "computation_version", "updated_session_ids", "occurred_at"],
  "additionalProperties": false
}`
