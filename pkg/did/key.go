package did

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKeyMaterial is returned for key strings that are not exactly
// 64 hexadecimal characters. The offending value is never included.
var ErrInvalidKeyMaterial = errors.New("invalid key material: expected 64 hex characters (32 bytes)")

// keyHexLen is the length of a hex-encoded 32-byte Ed25519 seed or public key.
const keyHexLen = 2 * ed25519.SeedSize

func decodeKeyHex(kind, s string) ([]byte, error) {
	if len(s) != keyHexLen {
		return nil, fmt.Errorf("%w: %s key has %d characters", ErrInvalidKeyMaterial, kind, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s key is not hexadecimal", ErrInvalidKeyMaterial, kind)
	}
	return b, nil
}

// ParsePrivateKey decodes a hex-encoded 32-byte Ed25519 seed.
func ParsePrivateKey(privateKeyHex string) (ed25519.PrivateKey, error) {
	seed, err := decodeKeyHex("private", privateKeyHex)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// ParsePublicKey decodes a hex-encoded 32-byte Ed25519 public key.
func ParsePublicKey(publicKeyHex string) (ed25519.PublicKey, error) {
	b, err := decodeKeyHex("public", publicKeyHex)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(b), nil
}

// DerivePublicKey returns the lowercase hex public key paired with the
// given hex private key.
func DerivePublicKey(privateKeyHex string) (string, error) {
	priv, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(priv.Public().(ed25519.PublicKey)), nil
}

// KeyDIDFromPublicKey derives the did:key identifier for a hex public key.
func KeyDIDFromPublicKey(publicKeyHex string) (string, error) {
	pub, err := ParsePublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}
	return NewKeyDID(pub), nil
}

// VerificationMethod returns did + "#" + key fragment. The did must be the
// did:key derived from publicKeyHex; a caller-supplied association is never
// trusted.
func VerificationMethod(did, publicKeyHex string) (string, error) {
	expected, err := KeyDIDFromPublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}
	if did != expected {
		return "", ErrVerificationMethod
	}
	return did + "#" + strings.TrimPrefix(did, KeyPrefix), nil
}

// VerificationMethodFromPublicKey derives the verification method URI
// directly from a hex public key.
func VerificationMethodFromPublicKey(publicKeyHex string) (string, error) {
	d, err := KeyDIDFromPublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}
	return VerificationMethod(d, publicKeyHex)
}

// VerificationMethodFromPrivateKey derives the verification method URI for
// the public key paired with privateKeyHex.
func VerificationMethodFromPrivateKey(privateKeyHex string) (string, error) {
	pub, err := DerivePublicKey(privateKeyHex)
	if err != nil {
		return "", err
	}
	return VerificationMethodFromPublicKey(pub)
}
