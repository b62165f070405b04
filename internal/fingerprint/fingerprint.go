// Package fingerprint computes deterministic hashes over canonical payload
// serializations. Fingerprints underwrite the call ledger's auditability:
// identical logical requests always fingerprint identically.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zaler23/writer/internal/payload"
)

// Domain prefixes for fingerprint computation.
// Version suffix enables future algorithm migration.
const (
	DomainRequest  = "writer/llm-request/v1"
	DomainResponse = "writer/llm-response/v1"
)

// Request computes the fingerprint of a provider request payload.
func Request(p payload.Value) (string, error) {
	return hash(DomainRequest, p)
}

// Response computes the fingerprint of a provider response payload.
func Response(p payload.Value) (string, error) {
	return hash(DomainResponse, p)
}

// hash computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + canonical bytes)
// The null byte separator prevents domain/data boundary ambiguity.
func hash(domain string, p payload.Value) (string, error) {
	canonical, err := payload.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
