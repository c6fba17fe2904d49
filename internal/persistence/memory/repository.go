// Package memory provides the in-memory Repository used for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/progression"
)

// Repository stores ingest records and corrections in process memory. The
// mutex serializes correction persistence, which is the atomicity guarantee
// the correction service relies on.
type Repository struct {
	mu          sync.RWMutex
	byKey       map[string]*domain.IngestRecord
	keyByRawLog map[string]string
	corrections []domain.CorrectionRecord
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		byKey:       make(map[string]*domain.IngestRecord),
		keyByRawLog: make(map[string]string),
	}
}

// FindByIdempotencyKey implements domain.Repository.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.IngestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byKey[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return cloneRecord(record), nil
}

// FindByRawLogID implements domain.Repository.
func (r *Repository) FindByRawLogID(ctx context.Context, rawLogID string) (*domain.IngestRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keyByRawLog[rawLogID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return cloneRecord(r.byKey[key]), nil
}

// ListSessions implements domain.Repository. Returned sessions are deep
// copies; callers may mutate them freely.
func (r *Repository) ListSessions(ctx context.Context, filter domain.SessionFilter) ([]domain.ParsedWorkoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]domain.ParsedWorkoutSession, 0, len(r.byKey))
	for _, record := range r.byKey {
		if record.Response.Parsed == nil || record.Response.Parsed.Session == nil {
			continue
		}
		sessions = append(sessions, *record.Response.Parsed.Session.Clone())
	}
	return progression.FilterSessions(sessions, filter), nil
}

// MostRecentSessionBefore implements domain.Repository.
func (r *Repository) MostRecentSessionBefore(ctx context.Context, workoutTypeID string, before time.Time) (*domain.ParsedWorkoutSession, error) {
	sessions, err := r.ListSessions(ctx, domain.SessionFilter{WorkoutTypeID: workoutTypeID})
	if err != nil {
		return nil, err
	}
	return progression.MostRecentBefore(sessions, workoutTypeID, before), nil
}

// SaveIngestRecord implements domain.Repository; persistence is a no-op when
// the idempotency key already exists.
func (r *Repository) SaveIngestRecord(ctx context.Context, record domain.IngestRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[record.IdempotencyKey]; exists {
		return false, nil
	}
	stored := cloneRecord(&record)
	r.byKey[record.IdempotencyKey] = stored
	r.keyByRawLog[record.Response.RawLogID] = record.IdempotencyKey
	return true, nil
}

// SaveCorrection implements domain.Repository. All updates land under one
// lock acquisition so a concurrent reader never observes a half-applied
// cascade.
func (r *Repository) SaveCorrection(ctx context.Context, correction domain.CorrectionRecord, updated []domain.IngestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range updated {
		if _, ok := r.byKey[updated[i].IdempotencyKey]; !ok {
			return domain.ErrRecordNotFound
		}
	}
	for i := range updated {
		replacement := cloneRecord(&updated[i])
		replacement.CreatedAt = r.byKey[updated[i].IdempotencyKey].CreatedAt
		r.byKey[updated[i].IdempotencyKey] = replacement
	}
	r.corrections = append(r.corrections, correction)
	return nil
}

// Corrections returns the audit log in insertion order.
func (r *Repository) Corrections() []domain.CorrectionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CorrectionRecord, len(r.corrections))
	copy(out, r.corrections)
	return out
}

func cloneRecord(record *domain.IngestRecord) *domain.IngestRecord {
	out := *record
	if record.Response.Parsed != nil {
		parsed := *record.Response.Parsed
		parsed.Session = record.Response.Parsed.Session.Clone()
		if record.Response.Parsed.FieldConfidences != nil {
			parsed.FieldConfidences = make(map[string]float64, len(record.Response.Parsed.FieldConfidences))
			for k, v := range record.Response.Parsed.FieldConfidences {
				parsed.FieldConfidences[k] = v
			}
		}
		parsed.Errors = append([]domain.Issue(nil), record.Response.Parsed.Errors...)
		parsed.Warnings = append([]domain.Issue(nil), record.Response.Parsed.Warnings...)
		out.Response.Parsed = &parsed
	}
	return &out
}
