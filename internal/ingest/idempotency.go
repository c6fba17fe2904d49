package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"example.com/workoutlog/internal/domain"
)

// IdempotencyKey derives the deduplication boundary for a request: a SHA-256
// fingerprint of the canonicalized payload. The key, not a client-supplied
// id, decides whether two submissions are the same logical request.
func IdempotencyKey(req domain.ParseRequest) string {
	h := sha256.New()
	h.Write([]byte(canonicalText(req.RawText)))
	h.Write([]byte{0})
	h.Write([]byte(req.SubmittedAt.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(req.Mode))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(req.WorkoutTypeHint)))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(req.TimezoneHint)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalText trims and collapses all interior whitespace runs to a single
// space so formatting-only differences do not defeat deduplication.
func canonicalText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
