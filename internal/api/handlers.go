// Package api exposes HTTP handlers for the workout-log service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/workoutlog/internal/auth"
	"example.com/workoutlog/internal/correction"
	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/gateway"
	"example.com/workoutlog/internal/ingest"
	"example.com/workoutlog/internal/insight"
)

// Handler coordinates HTTP requests with the ingestion and correction
// services.
type Handler struct {
	ingest     *ingest.Service
	correction *correction.Service
	repo       domain.Repository
}

// NewHandler builds a Handler.
func NewHandler(ingestSvc *ingest.Service, correctionSvc *correction.Service, repo domain.Repository) *Handler {
	return &Handler{ingest: ingestSvc, correction: correctionSvc, repo: repo}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/logs", h.logs)
	mux.HandleFunc("/v1/logs/", h.logByID)
	mux.HandleFunc("/v1/corrections", h.corrections)
	mux.HandleFunc("/v1/sessions", h.sessions)
	mux.HandleFunc("/v1/workout-types", h.workoutTypes)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeLogsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope logs:write required")
		return
	}

	var req IngestLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	response, err := h.ingest.Ingest(r.Context(), domain.ParseRequest{
		RawText:         req.RawText,
		SubmittedAt:     req.SubmittedAt,
		Mode:            req.Mode,
		WorkoutTypeHint: req.WorkoutTypeHint,
		TimezoneHint:    req.TimezoneHint,
	})
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, gateway.ErrUnavailable):
			writeError(w, http.StatusBadGateway, "parse_unavailable", err.Error())
		case errors.Is(err, gateway.ErrRejected):
			writeError(w, http.StatusBadGateway, "parse_rejected", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) logByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeLogsRead) && !claims.HasScope(auth.ScopeLogsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope logs:read required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/logs/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing raw log id")
		return
	}

	if id, found := strings.CutSuffix(rest, "/insight"); found {
		h.logInsight(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	h.getLog(w, r, rest)
}

func (h *Handler) getLog(w http.ResponseWriter, r *http.Request, rawLogID string) {
	record, err := h.repo.FindByRawLogID(r.Context(), rawLogID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "raw log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record.Response)
}

func (h *Handler) logInsight(w http.ResponseWriter, r *http.Request, rawLogID string) {
	record, err := h.repo.FindByRawLogID(r.Context(), rawLogID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "raw log not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	var session, prev *domain.ParsedWorkoutSession
	if record.Response.Parsed != nil {
		session = record.Response.Parsed.Session
	}
	if session != nil {
		prev, err = h.repo.MostRecentSessionBefore(r.Context(), session.Session.WorkoutTypeID, session.Session.OccurredAt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
	}

	resp := InsightResponse{
		RawLogID:  rawLogID,
		SessionID: record.Response.SessionID,
		Insight:   insight.Build(session, prev, record.Response.Parsed),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) corrections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeLogsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope logs:write required")
		return
	}

	var req CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.correction.Correct(r.Context(), correction.Request{
		RawLogID:    req.RawLogID,
		SessionID:   req.SessionID,
		Reason:      req.Reason,
		SubmittedAt: req.SubmittedAt,
		Operations:  req.Operations,
	})
	if err != nil {
		switch {
		case errors.Is(err, correction.ErrInvalidCorrection):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrRecordNotFound):
			writeError(w, http.StatusNotFound, "not_found", "raw log not found")
		case errors.Is(err, domain.ErrSessionMismatch):
			writeError(w, http.StatusConflict, "session_mismatch", err.Error())
		case errors.Is(err, correction.ErrNotCorrectable):
			writeError(w, http.StatusConflict, "not_correctable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	resp := CorrectionResponse{
		CorrectionID:       result.CorrectionID,
		Status:             string(result.Status),
		ParseVersion:       result.ParseVersion,
		ComputationVersion: result.ComputationVersion,
		UpdatedSessionIDs:  result.UpdatedSessionIDs,
		CorrectedSession:   result.CorrectedSession,
		Insight:            result.Insight,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeLogsRead) && !claims.HasScope(auth.ScopeLogsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope logs:read required")
		return
	}

	filter := domain.SessionFilter{
		WorkoutTypeID: r.URL.Query().Get("workout_type_id"),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "from must be RFC 3339")
			return
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "to must be RFC 3339")
			return
		}
		filter.To = &to
	}

	sessions, err := h.repo.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := ListSessionsResponse{Items: sessions}
	if resp.Items == nil {
		resp.Items = []domain.ParsedWorkoutSession{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) workoutTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	writeJSON(w, http.StatusOK, WorkoutTypesResponse{Items: domain.BuiltInWorkoutTypes()})
}

// IngestLogRequest is the payload for POST /v1/logs.
type IngestLogRequest struct {
	RawText         string    `json:"raw_text"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Mode            string    `json:"mode"`
	WorkoutTypeHint string    `json:"workout_type_hint,omitempty"`
	TimezoneHint    string    `json:"timezone_hint,omitempty"`
}

// Validate ensures request correctness before the pipeline runs.
func (r IngestLogRequest) Validate() error {
	if strings.TrimSpace(r.RawText) == "" {
		return errors.New("raw_text is required")
	}
	if r.SubmittedAt.IsZero() {
		return errors.New("submitted_at is required")
	}
	if strings.TrimSpace(r.Mode) == "" {
		return errors.New("mode is required")
	}
	return nil
}

// CorrectionRequest is the payload for POST /v1/corrections.
type CorrectionRequest struct {
	RawLogID    string                  `json:"raw_log_id"`
	SessionID   string                  `json:"session_id"`
	Reason      string                  `json:"reason"`
	SubmittedAt time.Time               `json:"submitted_at"`
	Operations  []domain.PatchOperation `json:"operations"`
}

// Validate ensures request correctness before the service runs.
func (r CorrectionRequest) Validate() error {
	if strings.TrimSpace(r.RawLogID) == "" {
		return errors.New("raw_log_id is required")
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return errors.New("session_id is required")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return errors.New("reason is required")
	}
	if r.SubmittedAt.IsZero() {
		return errors.New("submitted_at is required")
	}
	if len(r.Operations) == 0 {
		return errors.New("operations must not be empty")
	}
	return nil
}

// CorrectionResponse describes the response body for corrections.
type CorrectionResponse struct {
	CorrectionID       string                       `json:"correction_id"`
	Status             string                       `json:"status"`
	ParseVersion       int                          `json:"parse_version"`
	ComputationVersion int                          `json:"computation_version"`
	UpdatedSessionIDs  []string                     `json:"updated_session_ids"`
	CorrectedSession   *domain.ParsedWorkoutSession `json:"corrected_session"`
	Insight            insight.Insight              `json:"insight"`
}

// InsightResponse packages the derived insight for one raw log.
type InsightResponse struct {
	RawLogID  string          `json:"raw_log_id"`
	SessionID string          `json:"session_id,omitempty"`
	Insight   insight.Insight `json:"insight"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Items []domain.ParsedWorkoutSession `json:"items"`
}

// WorkoutTypesResponse lists the built-in workout types.
type WorkoutTypesResponse struct {
	Items []domain.WorkoutType `json:"items"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
