// Package postgres provides the relational Repository backed by pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/events"
)

// Repository persists ingest records, corrections, and outbox events in
// PostgreSQL. Idempotent inserts rely on ON CONFLICT DO NOTHING; correction
// cascades are written in a single transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `idempotency_key, response, parse_log, created_at, updated_at`

// FindByIdempotencyKey implements domain.Repository.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.IngestRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM ingest_records WHERE idempotency_key = $1`, key)
	return scanRecord(row)
}

// FindByRawLogID implements domain.Repository.
func (r *Repository) FindByRawLogID(ctx context.Context, rawLogID string) (*domain.IngestRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM ingest_records WHERE raw_log_id = $1`, rawLogID)
	return scanRecord(row)
}

// ListSessions implements domain.Repository.
func (r *Repository) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.ParsedWorkoutSession, error) {
	query := `SELECT response FROM ingest_records WHERE session_id IS NOT NULL`
	args := make([]any, 0, 3)

	if filter.WorkoutTypeID != "" {
		args = append(args, filter.WorkoutTypeID)
		query += fmt.Sprintf(" AND workout_type_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND occurred_at <= $%d", len(args))
	}
	query += ` ORDER BY occurred_at ASC, session_id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.ParsedWorkoutSession
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning session response: %w", err)
		}
		var response domain.IngestResponse
		if err := json.Unmarshal(raw, &response); err != nil {
			return nil, fmt.Errorf("decoding session response: %w", err)
		}
		if response.Parsed == nil || response.Parsed.Session == nil {
			continue
		}
		out = append(out, *response.Parsed.Session)
	}
	return out, rows.Err()
}

// MostRecentSessionBefore implements domain.Repository.
func (r *Repository) MostRecentSessionBefore(ctx context.Context, workoutTypeID string, before time.Time) (*domain.ParsedWorkoutSession, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT response FROM ingest_records
         WHERE session_id IS NOT NULL AND workout_type_id = $1 AND occurred_at < $2
         ORDER BY occurred_at DESC, session_id DESC
         LIMIT 1`,
		workoutTypeID, before)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying predecessor: %w", err)
	}
	var response domain.IngestResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("decoding predecessor response: %w", err)
	}
	if response.Parsed == nil {
		return nil, nil
	}
	return response.Parsed.Session, nil
}

// SaveIngestRecord implements domain.Repository. The record and its outbox
// event are written in one transaction; an existing key makes the whole call
// a no-op.
func (r *Repository) SaveIngestRecord(ctx context.Context, record domain.IngestRecord) (bool, error) {
	responseJSON, parseLogJSON, err := encodeRecord(&record)
	if err != nil {
		return false, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO ingest_records (idempotency_key, raw_log_id, session_id, workout_type_id, occurred_at, status, response, parse_log, created_at, updated_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         ON CONFLICT (idempotency_key) DO NOTHING`,
		record.IdempotencyKey,
		record.Response.RawLogID,
		nullIfEmpty(record.Response.SessionID),
		sessionColumn(&record, func(s *domain.WorkoutSession) any { return s.WorkoutTypeID }),
		sessionColumn(&record, func(s *domain.WorkoutSession) any { return s.OccurredAt }),
		string(record.Response.Status),
		responseJSON,
		parseLogJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting ingest record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if session := parsedSession(&record); session != nil {
		payload := events.SessionIngested{
			RawLogID:       record.Response.RawLogID,
			SessionID:      session.Session.ID,
			WorkoutTypeID:  session.Session.WorkoutTypeID,
			OccurredAt:     session.Session.OccurredAt,
			Status:         string(record.Response.Status),
			TotalLbsLifted: session.Metrics.TotalLbsLifted,
			TotalSets:      session.Metrics.TotalSets,
			TotalReps:      session.Metrics.TotalReps,
		}
		if err := insertOutbox(ctx, tx, "workout_session.ingested", session.Session.ID, session.Session.ID, session.Session.WorkoutTypeID, payload); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SaveCorrection implements domain.Repository: one audit row, every updated
// record, and the outbox event commit or roll back together.
func (r *Repository) SaveCorrection(ctx context.Context, correction domain.CorrectionRecord, updated []domain.IngestRecord) error {
	patchJSON, err := json.Marshal(correction.Patch)
	if err != nil {
		return fmt.Errorf("encoding correction patch: %w", err)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO corrections (id, raw_log_id, session_id, reason, patch, status, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		correction.ID, correction.RawLogID, correction.SessionID, correction.Reason,
		patchJSON, string(correction.Status), correction.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting correction: %w", err)
	}

	updatedIDs := make([]string, 0, len(updated))
	var corrected *domain.ParsedWorkoutSession

	for i := range updated {
		record := &updated[i]
		responseJSON, parseLogJSON, err := encodeRecord(record)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE ingest_records
             SET session_id = $2, workout_type_id = $3, occurred_at = $4, status = $5, response = $6, parse_log = $7, updated_at = $8
             WHERE idempotency_key = $1`,
			record.IdempotencyKey,
			nullIfEmpty(record.Response.SessionID),
			sessionColumn(record, func(s *domain.WorkoutSession) any { return s.WorkoutTypeID }),
			sessionColumn(record, func(s *domain.WorkoutSession) any { return s.OccurredAt }),
			string(record.Response.Status),
			responseJSON,
			parseLogJSON,
			record.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("updating ingest record %s: %w", record.IdempotencyKey, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRecordNotFound
		}

		if session := parsedSession(record); session != nil {
			updatedIDs = append(updatedIDs, session.Session.ID)
			if session.Session.ID == correction.SessionID {
				corrected = session
			}
		}
	}

	if corrected != nil {
		payload := events.SessionCorrected{
			CorrectionID:       correction.ID,
			RawLogID:           correction.RawLogID,
			SessionID:          correction.SessionID,
			WorkoutTypeID:      corrected.Session.WorkoutTypeID,
			ParseVersion:       corrected.Session.ParseVersion,
			ComputationVersion: corrected.Metrics.ComputationVersion,
			UpdatedSessionIDs:  updatedIDs,
			OccurredAt:         correction.CreatedAt,
		}
		// Dedupe on the correction id so repeat corrections of one session
		// each get their own event.
		if err := insertOutbox(ctx, tx, "workout_session.corrected", correction.SessionID, correction.ID, corrected.Session.WorkoutTypeID, payload); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, dedupeID, partitionKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding outbox payload: %w", err)
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}
	dedupeKey := fmt.Sprintf("%s:%s", dedupeID, eventType)

	_, err = tx.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
         ON CONFLICT (dedupe_key) DO NOTHING`,
		"workout_session", aggregateID, eventType, meta.Topic, meta.SchemaSubject, partitionKey, body, dedupeKey,
	)
	return err
}

func scanRecord(row pgx.Row) (*domain.IngestRecord, error) {
	var record domain.IngestRecord
	var responseJSON, parseLogJSON []byte
	err := row.Scan(&record.IdempotencyKey, &responseJSON, &parseLogJSON, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("scanning ingest record: %w", err)
	}
	if err := json.Unmarshal(responseJSON, &record.Response); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if err := json.Unmarshal(parseLogJSON, &record.ParseLog); err != nil {
		return nil, fmt.Errorf("decoding parse log: %w", err)
	}
	return &record, nil
}

func encodeRecord(record *domain.IngestRecord) (responseJSON, parseLogJSON []byte, err error) {
	responseJSON, err = json.Marshal(record.Response)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding response: %w", err)
	}
	parseLogJSON, err = json.Marshal(record.ParseLog)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding parse log: %w", err)
	}
	return responseJSON, parseLogJSON, nil
}

func parsedSession(record *domain.IngestRecord) *domain.ParsedWorkoutSession {
	if record.Response.Parsed == nil {
		return nil
	}
	return record.Response.Parsed.Session
}

func sessionColumn(record *domain.IngestRecord, pick func(*domain.WorkoutSession) any) any {
	session := parsedSession(record)
	if session == nil {
		return nil
	}
	return pick(&session.Session)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"workout_session.ingested": {
		Topic:         "workout_session_events",
		SchemaSubject: "workout_session_events-value",
	},
	"workout_session.corrected": {
		Topic:         "workout_session_corrected",
		SchemaSubject: "workout_session_corrected-value",
	},
}
