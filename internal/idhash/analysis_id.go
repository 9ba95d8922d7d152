package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAnalysisID computes a deterministic analysis_id using SHA256.
// Formula: SHA256(event_id|run_id|analyzed_at_unix_ms)
// Returns hex-encoded hash (64 characters).
func ComputeAnalysisID(eventID, runID string, analyzedAtMs int64) string {
	data := fmt.Sprintf("%s|%s|%d",
		eventID,
		runID,
		analyzedAtMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
