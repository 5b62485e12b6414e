// Package crypto provides canonicalization and hashing for credential proofs.
package crypto

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalJSON returns the RFC 8785 (JCS) serialization of v. Any two
// semantically identical documents produce identical bytes regardless of
// member order or whitespace.
func CanonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return CanonicalizeBytes(data)
}

// CanonicalizeBytes canonicalizes JSON text.
func CanonicalizeBytes(data []byte) ([]byte, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("failed to create canonical json: %w", err)
	}
	return canonical, nil
}

// HashData returns SHA-256(proofConfig) || SHA-256(document), the 64-byte
// value signed by the eddsa-jcs-2022 cryptosuite. Both inputs must already
// be canonical.
func HashData(canonicalProofConfig, canonicalDocument []byte) []byte {
	configHash := sha256.Sum256(canonicalProofConfig)
	docHash := sha256.Sum256(canonicalDocument)

	out := make([]byte, 0, len(configHash)+len(docHash))
	out = append(out, configHash[:]...)
	return append(out, docHash[:]...)
}
