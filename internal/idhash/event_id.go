package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(upper(ticker)|lower(drug_name)|pdufa_date)
// Ticker and drug name are trimmed; pdufaDate is "YYYY-MM-DD" or empty.
// Returns the base58-encoded hash (43 or 44 characters).
func ComputeEventID(ticker, drugName, pdufaDate string) string {
	data := fmt.Sprintf("%s|%s|%s",
		strings.ToUpper(strings.TrimSpace(ticker)),
		strings.ToLower(strings.TrimSpace(drugName)),
		strings.TrimSpace(pdufaDate),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ValidEventID reports whether id decodes to a 32-byte hash.
func ValidEventID(id string) bool {
	raw, err := base58.Decode(id)
	return err == nil && len(raw) == sha256.Size
}
