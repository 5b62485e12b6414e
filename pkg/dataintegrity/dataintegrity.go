// Package dataintegrity attaches and verifies embedded Data-Integrity proofs
// using the eddsa-jcs-2022 cryptosuite: JCS canonicalization, SHA-256
// pre-hashing of proof configuration and document, and an Ed25519 signature
// encoded as multibase base58-btc.
package dataintegrity

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/multiformats/go-multibase"

	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/crypto"
	"github.com/confbadge/badgecore/pkg/did"
)

// Common errors returned by this package.
var (
	ErrMissingProof        = errors.New("credential has no proof")
	ErrMalformedProof      = errors.New("malformed proof")
	ErrMalformedProofValue = errors.New("malformed proofValue: expected multibase base58-btc")
	ErrInvalidCreated      = errors.New("proof created must be a zone-qualified RFC 3339 timestamp")
)

const ldCtxKey = "@context"

// ProofOptions configures proof creation.
type ProofOptions struct {
	// PrivateKeyHex is the hex Ed25519 seed. The verification method is
	// derived from it; it is never supplied separately.
	PrivateKeyHex string

	// Created is the proof creation instant. Required; the engine never
	// reads the clock.
	Created string
}

// CreateProof signs doc and returns the proof object. Any existing proof on
// doc is excluded from the signed bytes.
func CreateProof(doc map[string]any, opts ProofOptions) (*credential.Proof, error) {
	if _, err := credential.ParseInstant(opts.Created); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCreated, err)
	}

	priv, err := did.ParsePrivateKey(opts.PrivateKeyHex)
	if err != nil {
		return nil, err
	}
	vm, err := did.VerificationMethodFromPrivateKey(opts.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	proof := &credential.Proof{
		Type:               credential.ProofTypeDataIntegrity,
		Created:            opts.Created,
		VerificationMethod: vm,
		Cryptosuite:        credential.CryptosuiteEdDSAJCS,
		ProofPurpose:       credential.ProofPurposeAssertion,
	}

	hashData, err := transformAndHash(credential.WithoutProof(doc), proofObject(proof))
	if err != nil {
		return nil, err
	}

	sig := ed25519.Sign(priv, hashData)

	proof.ProofValue, err = multibase.Encode(multibase.Base58BTC, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proofValue: %w", err)
	}
	return proof, nil
}

// Sign returns a copy of doc carrying a single-element proof array. doc is
// not modified.
func Sign(doc map[string]any, opts ProofOptions) (map[string]any, error) {
	proof, err := CreateProof(doc, opts)
	if err != nil {
		return nil, err
	}
	return Attach(doc, proof), nil
}

// Attach returns a copy of doc whose proof is exactly [proof].
func Attach(doc map[string]any, proof *credential.Proof) map[string]any {
	out := credential.WithoutProof(doc)
	out["proof"] = []any{proofObject(proof)}
	return out
}

// SignCredential signs a typed credential and returns a new value.
func SignCredential(c *credential.Credential, opts ProofOptions) (*credential.Credential, error) {
	doc, err := c.Document()
	if err != nil {
		return nil, err
	}
	proof, err := CreateProof(doc, opts)
	if err != nil {
		return nil, err
	}
	signed := *c
	signed.Proof = credential.Proofs{*proof}
	return &signed, nil
}

func proofObject(p *credential.Proof) map[string]any {
	return map[string]any{
		"type":               p.Type,
		"created":            p.Created,
		"verificationMethod": p.VerificationMethod,
		"cryptosuite":        p.Cryptosuite,
		"proofPurpose":       p.ProofPurpose,
		"proofValue":         p.ProofValue,
	}
}

// proofConfig is the proof object without its value. Every other member the
// proof carries (domain, challenge, nonce and the like) is kept so that it
// is covered by the signature. The document's @context is added when the
// proof does not bring its own.
func proofConfig(docCtx any, proof map[string]any) map[string]any {
	conf := credential.Clone(proof)
	delete(conf, "proofValue")
	if _, has := conf[ldCtxKey]; !has && docCtx != nil {
		conf[ldCtxKey] = docCtx
	}
	return conf
}

// transformAndHash canonicalizes the unsecured document and the proof
// configuration and returns the bytes to sign. The order of operations is
// fixed: canonicalize, hash, then concatenate.
func transformAndHash(unsecured, proof map[string]any) ([]byte, error) {
	canonDoc, err := crypto.CanonicalJSON(unsecured)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing document: %w", err)
	}

	canonConf, err := crypto.CanonicalJSON(proofConfig(unsecured[ldCtxKey], proof))
	if err != nil {
		return nil, fmt.Errorf("canonicalizing proof config: %w", err)
	}

	return crypto.HashData(canonConf, canonDoc), nil
}
