package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned when no ingest record matches the lookup.
	ErrRecordNotFound = errors.New("ingest record not found")
	// ErrSessionMismatch indicates the supplied session id does not belong to
	// the raw log being corrected.
	ErrSessionMismatch = errors.New("session does not belong to raw log")
)

// SessionFilter narrows a chronological session listing. Zero-value fields
// are ignored.
type SessionFilter struct {
	WorkoutTypeID string
	From          *time.Time
	To            *time.Time
}

// Repository is the persistence boundary shared by the ingestion and
// correction services. Implementations must guarantee idempotent persistence
// per key and atomic correction writes; the services never branch on which
// backend is active.
type Repository interface {
	// FindByIdempotencyKey returns the stored record for the key, or
	// ErrRecordNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (*IngestRecord, error)
	// FindByRawLogID returns the stored record owning the raw log, or
	// ErrRecordNotFound.
	FindByRawLogID(ctx context.Context, rawLogID string) (*IngestRecord, error)
	// ListSessions returns persisted parsed sessions matching the filter,
	// ordered by occurred-at ascending with session id as tiebreaker.
	ListSessions(ctx context.Context, filter SessionFilter) ([]ParsedWorkoutSession, error)
	// MostRecentSessionBefore returns the latest session of the given type
	// strictly before the timestamp, or nil when none exists.
	MostRecentSessionBefore(ctx context.Context, workoutTypeID string, before time.Time) (*ParsedWorkoutSession, error)
	// SaveIngestRecord persists the record keyed by its idempotency key.
	// It is a no-op returning false when the key already exists.
	SaveIngestRecord(ctx context.Context, record IngestRecord) (bool, error)
	// SaveCorrection atomically persists the audit record together with
	// every updated ingest record. Partial writes are not permitted.
	SaveCorrection(ctx context.Context, correction CorrectionRecord, updated []IngestRecord) error
}

// ParseRequest is the gateway-facing shape of an ingestion request.
type ParseRequest struct {
	RawText         string
	SubmittedAt     time.Time
	Mode            string
	WorkoutTypeHint string
	TimezoneHint    string
}

// Parser is the external language-model gateway contract. A non-nil ParseLog
// is returned whenever the gateway was reached, independent of parse success.
type Parser interface {
	Parse(ctx context.Context, req ParseRequest) (*ParseOutcome, *ParseLog, error)
}
