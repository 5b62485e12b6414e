// Package did provides did:key derivation and parsing for Ed25519 keys.
//
// A did:key identifier is derived entirely from the public key bytes, so no
// registry lookup is needed to resolve it:
//
//	did:key:z<base58btc(0xed01 || public_key)>
package did

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/multiformats/go-multibase"
)

// Common errors returned by this package.
var (
	ErrInvalidDID         = errors.New("invalid DID format")
	ErrUnsupportedMethod  = errors.New("unsupported DID method (only did:key supported)")
	ErrInvalidKeyDID      = errors.New("invalid did:key format")
	ErrUnsupportedKeyType = errors.New("unsupported key type in did:key (only Ed25519 supported)")
	ErrVerificationMethod = errors.New("verification method does not match public key")
)

// Multicodec constants for did:key
const (
	// Ed25519MulticodecPrefix is the multicodec prefix for Ed25519 public keys (0xed01)
	Ed25519MulticodecPrefix = 0xed01

	// Ed25519PublicKeySize is the size of an Ed25519 public key in bytes
	Ed25519PublicKeySize = 32

	// KeyPrefix is the scheme and method prefix of every did:key.
	KeyPrefix = "did:key:"
)

// DID represents a parsed did:key identifier.
type DID struct {
	// Method is the DID method. Always "key" for successfully parsed values.
	Method string

	// Fragment is the multibase-encoded key value ("z6Mk...").
	Fragment string

	// PublicKey is the Ed25519 public key (32 bytes).
	PublicKey []byte

	// Raw is the original DID string, without any "#fragment" suffix.
	Raw string
}

// Parse parses a did:key identifier. A trailing "#fragment", as found in
// verification method URIs, is ignored.
//
// Returns ErrInvalidDID if the format is invalid.
// Returns ErrUnsupportedMethod if the method is not "key".
func Parse(did string) (*DID, error) {
	if did == "" {
		return nil, ErrInvalidDID
	}
	if i := strings.IndexByte(did, '#'); i >= 0 {
		did = did[:i]
	}

	parts := strings.Split(did, ":")
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: expected at least 3 parts, got %d", ErrInvalidDID, len(parts))
	}

	if parts[0] != "did" {
		return nil, fmt.Errorf("%w: must start with 'did:'", ErrInvalidDID)
	}

	if parts[1] != "key" {
		return nil, fmt.Errorf("%w: got did:%s", ErrUnsupportedMethod, parts[1])
	}
	return parseKeyDID(parts)
}

// parseKeyDID parses a did:key identifier.
func parseKeyDID(parts []string) (*DID, error) {
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: did:key must have exactly 3 parts", ErrInvalidKeyDID)
	}

	value := parts[2]
	if value == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrInvalidKeyDID)
	}

	// did:key requires base58btc, whose multibase sigil is 'z'
	if value[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got '%c'", ErrInvalidKeyDID, value[0])
	}

	_, decoded, err := multibase.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base58btc encoding: %v", ErrInvalidKeyDID, err)
	}

	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: decoded value too short", ErrInvalidKeyDID)
	}

	// Multicodec is varint-encoded; Ed25519 is 0xed01 which encodes as [0xed, 0x01]
	if decoded[0] != 0xed || decoded[1] != 0x01 {
		return nil, fmt.Errorf("%w: expected Ed25519 multicodec (0xed01), got 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}

	publicKey := decoded[2:]
	if len(publicKey) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidKeyDID, Ed25519PublicKeySize, len(publicKey))
	}

	return &DID{
		Method:    "key",
		Fragment:  value,
		PublicKey: publicKey,
		Raw:       strings.Join(parts, ":"),
	}, nil
}

// String returns the canonical DID string.
func (d *DID) String() string {
	if d.Raw != "" {
		return d.Raw
	}
	return NewKeyDID(d.PublicKey)
}

// VerificationMethod returns the self-describing key reference for this DID.
func (d *DID) VerificationMethod() string {
	return d.String() + "#" + d.Fragment
}

// GetPublicKey returns the Ed25519 public key.
func (d *DID) GetPublicKey() ed25519.PublicKey {
	if len(d.PublicKey) != Ed25519PublicKeySize {
		return nil
	}
	return ed25519.PublicKey(d.PublicKey)
}

// NewKeyDID constructs a did:key identifier from an Ed25519 public key.
// Returns an empty string if the key is not 32 bytes.
func NewKeyDID(publicKey []byte) string {
	fragment := keyFragment(publicKey)
	if fragment == "" {
		return ""
	}
	return KeyPrefix + fragment
}

// keyFragment returns z<base58btc(0xed01 || public_key)>.
func keyFragment(publicKey []byte) string {
	if len(publicKey) != Ed25519PublicKeySize {
		return ""
	}

	prefixed := make([]byte, 2+len(publicKey))
	prefixed[0] = 0xed
	prefixed[1] = 0x01
	copy(prefixed[2:], publicKey)

	encoded, err := multibase.Encode(multibase.Base58BTC, prefixed)
	if err != nil {
		return ""
	}
	return encoded
}

// PublicKeyFromKeyDID extracts the Ed25519 public key from a did:key identifier.
func PublicKeyFromKeyDID(didStr string) (ed25519.PublicKey, error) {
	parsed, err := Parse(didStr)
	if err != nil {
		return nil, err
	}
	return parsed.GetPublicKey(), nil
}
