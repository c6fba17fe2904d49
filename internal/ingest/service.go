// Package ingest orchestrates the natural-language workout log pipeline:
// validate, deduplicate, parse, enrich, re-validate, and persist exactly one
// record per unique request.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/observability"
	"example.com/workoutlog/internal/progression"
	"example.com/workoutlog/internal/validation"
)

// ErrInvalidRequest wraps the field errors of a rejected request.
var ErrInvalidRequest = errors.New("invalid ingest request")

// RequestError carries the itemized validation failures of a rejected
// ingestion request.
type RequestError struct {
	Fields validation.FieldErrors
}

func (e *RequestError) Error() string { return e.Fields.Error() }

// Unwrap lets callers match with errors.Is(err, ErrInvalidRequest).
func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

// Service runs the ingestion pipeline.
type Service struct {
	repo   domain.Repository
	parser domain.Parser
	now    func() time.Time
	newID  func() string
}

// NewService constructs a Service.
func NewService(repo domain.Repository, parser domain.Parser) *Service {
	return &Service{
		repo:   repo,
		parser: parser,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Ingest processes one raw workout log submission. Submitting the same
// logical request again, concurrently or later, returns the stored response
// without re-parsing or re-persisting.
func (s *Service) Ingest(ctx context.Context, req domain.ParseRequest) (*domain.IngestResponse, error) {
	if errs := validation.ValidateIngestRequest(req); len(errs) > 0 {
		return nil, &RequestError{Fields: errs}
	}

	key := IdempotencyKey(req)

	existing, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		observability.RecordDuplicateIngest()
		resp := existing.Response
		return &resp, nil
	}

	outcome, parseLog, err := s.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}

	rawLogID := s.newID()
	s.enrich(outcome, rawLogID)

	if outcome.Session != nil {
		if errs := validation.ValidateSession(outcome.Session); len(errs) > 0 {
			// The gateway produced numerically inconsistent data; downgrade
			// to an explicit failure carrying the violations as warnings.
			outcome.Warnings = append(outcome.Warnings, errs.Issues()...)
			outcome.Session = nil
		}
	}

	if outcome.Session != nil {
		prev, err := s.repo.MostRecentSessionBefore(ctx, outcome.Session.Session.WorkoutTypeID, outcome.Session.Session.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("predecessor lookup: %w", err)
		}
		progression.Recompute(outcome.Session, prev)
		outcome.Session.Metrics.ComputationVersion = 1
	}

	response := s.buildResponse(rawLogID, outcome)

	now := s.now()
	record := domain.IngestRecord{
		IdempotencyKey: key,
		Response:       response,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if parseLog != nil {
		record.ParseLog = *parseLog
	}

	inserted, err := s.repo.SaveIngestRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("persisting ingest record: %w", err)
	}
	if !inserted {
		// A concurrent duplicate won the race; its record is authoritative.
		stored, err := s.repo.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reloading record after concurrent insert: %w", err)
		}
		observability.RecordDuplicateIngest()
		resp := stored.Response
		return &resp, nil
	}

	observability.RecordIngest(string(response.Status))
	return &response, nil
}

// enrich assigns stable identifiers to everything the gateway left
// unidentified and stamps ownership and version counters onto the session.
func (s *Service) enrich(outcome *domain.ParseOutcome, rawLogID string) {
	if outcome.Session == nil {
		return
	}
	session := outcome.Session
	if session.Session.ID == "" {
		session.Session.ID = s.newID()
	}
	session.Session.RawLogID = rawLogID
	session.Session.ParseVersion = 1
	for i := range session.ExercisePerformances {
		perf := &session.ExercisePerformances[i]
		if perf.ID == "" {
			perf.ID = s.newID()
		}
		if perf.ExerciseOrder == 0 {
			perf.ExerciseOrder = i + 1
		}
		for j := range perf.SetEntries {
			set := &perf.SetEntries[j]
			if set.ID == "" {
				set.ID = s.newID()
			}
			if set.SetIndex == 0 {
				set.SetIndex = j + 1
			}
		}
	}
}

func (s *Service) buildResponse(rawLogID string, outcome *domain.ParseOutcome) domain.IngestResponse {
	response := domain.IngestResponse{
		RawLogID:     rawLogID,
		ParseVersion: 1,
		Parsed:       outcome,
	}

	switch {
	case outcome.Session == nil:
		response.Status = domain.StatusFailed
	case len(outcome.Errors) > 0 || len(outcome.Warnings) > 0:
		response.Status = domain.StatusParsedWithWarnings
	default:
		response.Status = domain.StatusParsed
	}

	if outcome.Session != nil {
		response.SessionID = outcome.Session.Session.ID
		response.AutoSaved = true
		response.CanCorrect = true
	}
	return response
}
