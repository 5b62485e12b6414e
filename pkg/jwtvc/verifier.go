package jwtvc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/did"
)

// Header is the decoded JOSE header of a credential token.
type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ,omitempty"`
	Kid string `json:"kid,omitempty"`
}

// Token is a verified credential token.
type Token struct {
	Header Header

	// Claims holds the registered claims.
	Claims jwt.Claims

	// Credential is the payload with registered claims removed.
	Credential map[string]any
}

// Verify checks token against publicKeyHex and returns the credential
// document reconstructed from its payload.
func Verify(token, publicKeyHex string) (map[string]any, error) {
	t, err := VerifyToken(token, publicKeyHex)
	if err != nil {
		return nil, err
	}
	return t.Credential, nil
}

// VerifyCredential is Verify returning a typed credential.
func VerifyCredential(token, publicKeyHex string) (*credential.Credential, error) {
	doc, err := Verify(token, publicKeyHex)
	if err != nil {
		return nil, err
	}
	return credential.FromDocument(doc)
}

// VerifyToken is Verify with the header and registered claims exposed.
func VerifyToken(token, publicKeyHex string) (*Token, error) {
	pub, err := did.ParsePublicKey(publicKeyHex)
	if err != nil {
		return nil, err
	}

	// Step 1: Decode framing, header and payload
	header, _, err := decode(token)
	if err != nil {
		return nil, err
	}

	// Step 2: Parse JWS
	jwsObj, err := jose.ParseSigned(token, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	// Step 3: Verify Signature
	verified, err := jwsObj.Verify(pub)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	// Step 4: Rebuild the credential from the verified payload
	var payload map[string]any
	if err := json.Unmarshal(verified, &payload); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedToken)
	}

	var claims jwt.Claims
	if err := json.Unmarshal(verified, &claims); err != nil {
		return nil, fmt.Errorf("%w: registered claims: %v", ErrMalformedToken, err)
	}

	for _, claim := range registeredClaims {
		delete(payload, claim)
	}

	return &Token{
		Header:     *header,
		Claims:     claims,
		Credential: payload,
	}, nil
}

// DecodeHeader decodes the token header without verifying anything.
func DecodeHeader(token string) (*Header, error) {
	h, _, err := decode(token)
	return h, err
}

// UnsafeClaims decodes the payload without verifying the signature. Use
// only for diagnostics.
func UnsafeClaims(token string) (map[string]any, error) {
	_, payload, err := decode(token)
	return payload, err
}

// UnsafeCredential decodes the payload without verifying the signature and
// strips the registered claims, leaving the credential members.
func UnsafeCredential(token string) (map[string]any, error) {
	payload, err := UnsafeClaims(token)
	if err != nil {
		return nil, err
	}
	for _, claim := range registeredClaims {
		delete(payload, claim)
	}
	return payload, nil
}

// IsCompact reports whether s has the three-segment compact shape.
func IsCompact(s string) bool {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts[:2] {
		if p == "" {
			return false
		}
	}
	return true
}

func decode(token string) (*Header, map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid header encoding", ErrMalformedToken)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid header json", ErrMalformedToken)
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid payload encoding", ErrMalformedToken)
	}
	var payload map[string]any
	if err := json.Unmarshal(payloadBytes, &payload); err != nil || payload == nil {
		return nil, nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedToken)
	}

	if _, err := base64.RawURLEncoding.DecodeString(parts[2]); err != nil {
		return nil, nil, fmt.Errorf("%w: invalid signature encoding", ErrMalformedToken)
	}

	return &header, payload, nil
}
