package dataintegrity

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/multiformats/go-multibase"

	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/did"
)

// Verification is the itemized outcome of checking a document's proof.
type Verification struct {
	// Proof is the proof that was checked (always the first one).
	Proof *credential.Proof

	// ProofCount is how many proofs the document carries. Only the first
	// is verified; callers can surface a warning when this exceeds one.
	ProofCount int

	// VerificationMethodMatch reports whether the embedded verification
	// method is the one derived from the trusted public key.
	VerificationMethodMatch bool

	// SignatureValid reports whether the Ed25519 signature checks out.
	// It is false whenever VerificationMethodMatch is false.
	SignatureValid bool
}

// Verify reports whether doc carries a valid proof by the holder of
// publicKeyHex. An invalid signature is a false result, not an error;
// errors are reserved for malformed input.
func Verify(doc map[string]any, publicKeyHex string) (bool, error) {
	v, err := VerifyDetailed(doc, publicKeyHex)
	if err != nil {
		return false, err
	}
	return v.SignatureValid, nil
}

// VerifyDetailed is Verify with an itemized result.
func VerifyDetailed(doc map[string]any, publicKeyHex string) (*Verification, error) {
	pub, err := did.ParsePublicKey(publicKeyHex)
	if err != nil {
		return nil, err
	}
	expectedVM, err := did.VerificationMethodFromPublicKey(publicKeyHex)
	if err != nil {
		return nil, err
	}

	proofs, err := credential.ProofsFromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	proof, ok := proofs.First()
	if !ok {
		return nil, ErrMissingProof
	}

	result := &Verification{
		Proof:      proof,
		ProofCount: len(proofs),
	}

	if proof.ProofValue == "" {
		return nil, fmt.Errorf("%w: missing proofValue", ErrMalformedProof)
	}
	enc, sig, err := multibase.Decode(proof.ProofValue)
	if err != nil || enc != multibase.Base58BTC {
		return nil, ErrMalformedProofValue
	}

	if proof.VerificationMethod != expectedVM {
		return result, nil
	}
	result.VerificationMethodMatch = true

	if proof.Type != credential.ProofTypeDataIntegrity || proof.Cryptosuite != credential.CryptosuiteEdDSAJCS {
		return result, nil
	}

	raw, err := firstProofMap(doc)
	if err != nil {
		return nil, err
	}
	hashData, err := transformAndHash(credential.WithoutProof(doc), raw)
	if err != nil {
		return nil, err
	}

	result.SignatureValid = len(sig) == ed25519.SignatureSize && ed25519.Verify(pub, hashData, sig)
	return result, nil
}

// firstProofMap returns the first proof exactly as the document carries it,
// including members the Proof model does not know about.
func firstProofMap(doc map[string]any) (map[string]any, error) {
	raw, ok := credential.FirstProofObject(doc)
	if !ok {
		return nil, ErrMissingProof
	}
	if m, ok := raw.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProof, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, ErrMalformedProof
	}
	return m, nil
}

// VerifyCredential verifies a typed credential. Only fields known to the
// model are covered; use Verify on the received document when possible.
func VerifyCredential(c *credential.Credential, publicKeyHex string) (bool, error) {
	doc, err := c.Document()
	if err != nil {
		return false, err
	}
	return Verify(doc, publicKeyHex)
}
