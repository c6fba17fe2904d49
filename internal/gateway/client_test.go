package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/validation"
)

func parseRequest() domain.ParseRequest {
	return domain.ParseRequest{
		RawText:     "bench 3x8 at 185",
		SubmittedAt: time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC),
		Mode:        validation.IngestModeNaturalLanguage,
	}
}

func outcomeBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(domain.ParseOutcome{Confidence: 0.9})
	require.NoError(t, err)
	return body
}

func TestParseSuccess(t *testing.T) {
	var gotPath string
	var gotBody parseRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(outcomeBody(t))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Model: "workout-parse-v2"})
	outcome, parseLog, err := client.Parse(context.Background(), parseRequest())
	require.NoError(t, err)

	require.Equal(t, "/v1/parse", gotPath)
	require.Equal(t, "workout-parse-v2", gotBody.Model)
	require.Equal(t, 0.9, outcome.Confidence)

	require.NotNil(t, parseLog)
	require.Equal(t, 1, parseLog.Attempts)
	require.Equal(t, "workout-parse-v2", parseLog.Model)
	require.NotEmpty(t, parseLog.RawRequest)
}

func TestParseRetriesTransientStatuses(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(outcomeBody(t))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxAttempts: 3, BaseDelay: time.Millisecond})
	outcome, parseLog, err := client.Parse(context.Background(), parseRequest())
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, parseLog.Attempts)
	require.Equal(t, 0.9, outcome.Confidence)
}

func TestParseDoesNotRetryPermanentStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxAttempts: 3, BaseDelay: time.Millisecond})
	outcome, parseLog, err := client.Parse(context.Background(), parseRequest())
	require.ErrorIs(t, err, ErrRejected)
	require.NotErrorIs(t, err, ErrUnavailable, "a refusal is not an outage")
	require.Nil(t, outcome)
	require.Equal(t, 1, calls)
	require.NotNil(t, parseLog, "a parse log is kept even for failed attempts")
}

func TestParseExhaustsRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, MaxAttempts: 2, BaseDelay: time.Millisecond})
	_, _, err := client.Parse(context.Background(), parseRequest())
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 2, calls)
}

func TestParseRejectsMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	outcome, parseLog, err := client.Parse(context.Background(), parseRequest())
	require.Error(t, err)
	require.Nil(t, outcome)
	require.NotNil(t, parseLog)
	require.Equal(t, "not json", parseLog.RawResponse)
}
