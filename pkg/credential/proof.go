package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedProof is returned when a proof value is neither an object nor
// an array of objects.
var ErrMalformedProof = errors.New("proof must be an object or an array of objects")

// Proofs is the ordered list of proofs attached to a credential. On the wire
// a proof may be a single object or an array; it is always held as a list.
// An empty list is equivalent to an absent proof.
type Proofs []Proof

// First returns the first proof, which is "the" proof for callers that
// expect exactly one.
func (p Proofs) First() (*Proof, bool) {
	if len(p) == 0 {
		return nil, false
	}
	first := p[0]
	return &first, true
}

// UnmarshalJSON accepts null, a single proof object, or an array.
func (p *Proofs) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*p = nil
		return nil
	case trimmed[0] == '{':
		var single Proof
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedProof, err)
		}
		*p = Proofs{single}
		return nil
	case trimmed[0] == '[':
		var list []Proof
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedProof, err)
		}
		if len(list) == 0 {
			*p = nil
			return nil
		}
		*p = list
		return nil
	default:
		return ErrMalformedProof
	}
}

// ProofsFromDocument reads the "proof" member of a generic JSON document.
// A missing or empty proof yields an empty list.
func ProofsFromDocument(doc map[string]any) (Proofs, error) {
	raw, ok := doc["proof"]
	if !ok || raw == nil {
		return nil, nil
	}
	switch raw.(type) {
	case map[string]any, []any:
	default:
		return nil, ErrMalformedProof
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	var proofs Proofs
	if err := json.Unmarshal(data, &proofs); err != nil {
		return nil, err
	}
	return proofs, nil
}

// FirstProofObject returns the raw first proof object of a document, without
// decoding it into a Proof. Used by structural checks that must see the
// value as it was sent.
func FirstProofObject(doc map[string]any) (any, bool) {
	switch v := doc["proof"].(type) {
	case nil:
		return nil, false
	case []any:
		if len(v) == 0 {
			return nil, false
		}
		return v[0], true
	default:
		return v, true
	}
}

// ProofCount returns how many proofs a document carries.
func ProofCount(doc map[string]any) int {
	switch v := doc["proof"].(type) {
	case nil:
		return 0
	case []any:
		return len(v)
	default:
		return 1
	}
}
