package ingest

import (
	"testing"
	"time"

	"example.com/workoutlog/internal/domain"
	"example.com/workoutlog/internal/validation"
)

func TestIdempotencyKeyIgnoresWhitespaceFormatting(t *testing.T) {
	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	a := domain.ParseRequest{
		RawText:     "bench 3x8 at 185\nsquat 5x5 at 225",
		SubmittedAt: at,
		Mode:        validation.IngestModeNaturalLanguage,
	}
	b := domain.ParseRequest{
		RawText:     "  bench   3x8 at 185 \n\n squat 5x5\tat 225  ",
		SubmittedAt: at,
		Mode:        validation.IngestModeNaturalLanguage,
	}

	if IdempotencyKey(a) != IdempotencyKey(b) {
		t.Fatal("whitespace-only differences must map to the same key")
	}
}

func TestIdempotencyKeyNormalizesTimezone(t *testing.T) {
	utc := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("CET", 3600))

	a := domain.ParseRequest{RawText: "bench 3x8", SubmittedAt: utc, Mode: validation.IngestModeNaturalLanguage}
	b := domain.ParseRequest{RawText: "bench 3x8", SubmittedAt: offset, Mode: validation.IngestModeNaturalLanguage}

	if IdempotencyKey(a) != IdempotencyKey(b) {
		t.Fatal("equal instants must map to the same key")
	}
}

func TestIdempotencyKeyVariesWithPayload(t *testing.T) {
	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	base := domain.ParseRequest{RawText: "bench 3x8", SubmittedAt: at, Mode: validation.IngestModeNaturalLanguage}

	variants := []domain.ParseRequest{
		{RawText: "bench 3x9", SubmittedAt: at, Mode: validation.IngestModeNaturalLanguage},
		{RawText: "bench 3x8", SubmittedAt: at.Add(time.Second), Mode: validation.IngestModeNaturalLanguage},
		{RawText: "bench 3x8", SubmittedAt: at, Mode: validation.IngestModeNaturalLanguage, WorkoutTypeHint: "chest"},
		{RawText: "bench 3x8", SubmittedAt: at, Mode: validation.IngestModeNaturalLanguage, TimezoneHint: "America/New_York"},
	}

	key := IdempotencyKey(base)
	for i, v := range variants {
		if IdempotencyKey(v) == key {
			t.Fatalf("variant %d should produce a different key", i)
		}
	}
}
