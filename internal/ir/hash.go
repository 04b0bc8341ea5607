package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainOperation is the domain prefix for operation fingerprints.
// The version suffix enables future algorithm migration.
const DomainOperation = "tombstone/operation/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes a content-addressed identity for an operation.
// Two operations with the same model, verb and (canonically equal) args
// share a fingerprint, which makes rewritten operations easy to correlate
// in logs and traces.
func Fingerprint(model, verb string, args IRValue) (string, error) {
	obj := IRObject{
		"model": IRString(model),
		"verb":  IRString(verb),
		"args":  args,
	}
	if args == nil {
		obj["args"] = IRNull{}
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainOperation, canonical), nil
}
