package correction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/insight"
	"example.com/workoutlog/internal/observability"
	"example.com/workoutlog/internal/progression"
	"example.com/workoutlog/internal/validation"
)

var (
	// ErrInvalidCorrection wraps the field errors of a rejected correction.
	ErrInvalidCorrection = errors.New("invalid correction request")
	// ErrNotCorrectable is returned when the target raw log holds no
	// persisted parsed session.
	ErrNotCorrectable = errors.New("raw log has no parsed session to correct")
)

// RequestError carries the itemized failures of a rejected correction. The
// whole correction is rejected; partial patches are never applied.
type RequestError struct {
	Fields validation.FieldErrors
}

func (e *RequestError) Error() string { return e.Fields.Error() }

// Unwrap lets callers match with errors.Is(err, ErrInvalidCorrection).
func (e *RequestError) Unwrap() error { return ErrInvalidCorrection }

// Request is one correction submission.
type Request struct {
	RawLogID    string
	SessionID   string
	Reason      string
	SubmittedAt time.Time
	Operations  []domain.PatchOperation
}

// Response reports the applied correction and everything it touched.
type Response struct {
	CorrectionID       string
	Status             domain.CorrectionStatus
	ParseVersion       int
	ComputationVersion int
	UpdatedSessionIDs  []string
	CorrectedSession   *domain.ParsedWorkoutSession
	Insight            insight.Insight
}

// Service applies corrections and cascades recomputation along the
// workout-type timeline. Atomicity of the multi-record write is the
// repository's responsibility.
type Service struct {
	repo  domain.Repository
	now   func() time.Time
	newID func() string
}

// NewService constructs a Service.
func NewService(repo domain.Repository) *Service {
	return &Service{
		repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Correct validates and applies one correction. Any validation failure,
// missing session, or raw-log mismatch aborts before any persistence.
func (s *Service) Correct(ctx context.Context, req Request) (*Response, error) {
	if errs := validateRequest(req); len(errs) > 0 {
		return nil, &RequestError{Fields: errs}
	}

	record, err := s.repo.FindByRawLogID(ctx, req.RawLogID)
	if err != nil {
		return nil, err
	}
	if record.Response.Parsed == nil || record.Response.Parsed.Session == nil {
		return nil, ErrNotCorrectable
	}
	if record.Response.SessionID != req.SessionID {
		return nil, domain.ErrSessionMismatch
	}

	candidate := record.Response.Parsed.Session.Clone()
	if errs := applyPatch(candidate, req.Operations, s.newID); len(errs) > 0 {
		return nil, &RequestError{Fields: errs}
	}

	timeline, err := s.repo.ListSessions(ctx, domain.SessionFilter{WorkoutTypeID: candidate.Session.WorkoutTypeID})
	if err != nil {
		return nil, fmt.Errorf("loading timeline: %w", err)
	}

	target := -1
	for i := range timeline {
		if timeline[i].Session.ID == req.SessionID {
			target = i
			break
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("session %s missing from its own timeline", req.SessionID)
	}

	// Snapshot what is currently persisted so changed-session detection has
	// something to compare against after recomputation.
	originals := make(map[string]*domain.ParsedWorkoutSession, len(timeline))
	for i := range timeline {
		originals[timeline[i].Session.ID] = timeline[i].Clone()
	}

	// Replace the target with the candidate, then re-sort: a patched
	// occurred-at may move the session within its timeline.
	timeline[target] = *candidate
	progression.SortSessions(timeline)
	newTarget := -1
	for i := range timeline {
		if timeline[i].Session.ID == req.SessionID {
			newTarget = i
			break
		}
	}
	start := newTarget
	if target < start {
		start = target
	}

	// The dependency chain is strictly linear once sorted: recompute the
	// suffix with a rolling predecessor.
	var changed []int
	for i := start; i < len(timeline); i++ {
		var prev *domain.ParsedWorkoutSession
		if i > 0 {
			prev = &timeline[i-1]
		}
		progression.Recompute(&timeline[i], prev)

		original := originals[timeline[i].Session.ID]
		if i == newTarget {
			timeline[i].Session.ParseVersion = original.Session.ParseVersion + 1
			timeline[i].Metrics.ComputationVersion = original.Metrics.ComputationVersion + 1
			changed = append(changed, i)
			continue
		}
		if progression.DerivedEqual(&timeline[i], original) {
			// Restore untouched sessions exactly as persisted.
			timeline[i] = *original
			continue
		}
		timeline[i].Metrics.ComputationVersion = original.Metrics.ComputationVersion + 1
		changed = append(changed, i)
	}

	for _, i := range changed {
		if errs := validation.ValidateSession(&timeline[i]); len(errs) > 0 {
			return nil, &RequestError{Fields: errs}
		}
	}

	now := s.now()
	audit := domain.CorrectionRecord{
		ID:        s.newID(),
		RawLogID:  req.RawLogID,
		SessionID: req.SessionID,
		Reason:    req.Reason,
		Patch:     req.Operations,
		Status:    domain.CorrectionApplied,
		CreatedAt: now,
	}

	updated := make([]domain.IngestRecord, 0, len(changed))
	updatedIDs := make([]string, 0, len(changed))
	for _, i := range changed {
		session := timeline[i].Clone()
		rec, err := s.repo.FindByRawLogID(ctx, session.Session.RawLogID)
		if err != nil {
			return nil, fmt.Errorf("loading record for session %s: %w", session.Session.ID, err)
		}
		rec.Response.Parsed.Session = session
		rec.Response.ParseVersion = session.Session.ParseVersion
		rec.UpdatedAt = now
		updated = append(updated, *rec)
		updatedIDs = append(updatedIDs, session.Session.ID)
	}

	if err := s.repo.SaveCorrection(ctx, audit, updated); err != nil {
		return nil, fmt.Errorf("persisting correction: %w", err)
	}
	observability.RecordCorrection(len(changed))

	corrected := timeline[newTarget].Clone()
	var prev *domain.ParsedWorkoutSession
	if newTarget > 0 {
		prev = &timeline[newTarget-1]
	}
	quality := record.Response.Parsed

	return &Response{
		CorrectionID:       audit.ID,
		Status:             audit.Status,
		ParseVersion:       corrected.Session.ParseVersion,
		ComputationVersion: corrected.Metrics.ComputationVersion,
		UpdatedSessionIDs:  updatedIDs,
		CorrectedSession:   corrected,
		Insight:            insight.Build(corrected, prev, quality),
	}, nil
}

func validateRequest(req Request) validation.FieldErrors {
	var errs validation.FieldErrors
	if strings.TrimSpace(req.RawLogID) == "" {
		errs = append(errs, validation.FieldError{Field: "rawLogId", Code: validation.CodeRequired, Message: "raw log id is required"})
	}
	if strings.TrimSpace(req.SessionID) == "" {
		errs = append(errs, validation.FieldError{Field: "sessionId", Code: validation.CodeRequired, Message: "session id is required"})
	}
	if strings.TrimSpace(req.Reason) == "" {
		errs = append(errs, validation.FieldError{Field: "reason", Code: validation.CodeRequired, Message: "a correction reason is required"})
	}
	if req.SubmittedAt.IsZero() {
		errs = append(errs, validation.FieldError{Field: "submittedAt", Code: validation.CodeRequired, Message: "request timestamp is required"})
	}
	if len(req.Operations) == 0 {
		errs = append(errs, validation.FieldError{Field: "operations", Code: validation.CodeRequired, Message: "at least one patch operation is required"})
	}
	return errs
}
