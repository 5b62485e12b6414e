// Package jwtvc encodes achievement credentials as compact JWTs signed with
// EdDSA (Ed25519). Credential members are placed at the top level of the
// payload alongside the registered claims iss, jti, sub, nbf and exp; no
// "vc" wrapper and no iat claim are emitted.
package jwtvc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/did"
)

// Common errors returned by this package.
var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureInvalid  = errors.New("token signature verification failed")
	ErrInvalidCredential = errors.New("credential cannot be encoded as a JWT")
)

// Header values.
const (
	TokenType = "JWT"
	Algorithm = string(jose.EdDSA)
)

// registeredClaims are removed when a payload is turned back into a
// credential document.
var registeredClaims = []string{"iss", "jti", "sub", "nbf", "exp", "iat", "aud"}

// Sign encodes doc as a compact JWT signed with privateKeyHex. kid is
// placed in the header verbatim; it is normally the verification method
// derived from the same key (see did.VerificationMethodFromPrivateKey).
func Sign(doc map[string]any, privateKeyHex, kid string) (string, error) {
	priv, err := did.ParsePrivateKey(privateKeyHex)
	if err != nil {
		return "", err
	}

	payload, err := Payload(doc)
	if err != nil {
		return "", err
	}

	// 1. Create Signer
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.EdDSA, Key: jose.JSONWebKey{Key: priv, KeyID: kid}},
		(&jose.SignerOptions{}).WithType(TokenType),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	// 2. Marshal Claims
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	// 3. Sign
	jwsObj, err := signer.Sign(data)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}

	// 4. Serialize to Compact JWS
	token, err := jwsObj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize JWS: %w", err)
	}

	return token, nil
}

// SignCredential encodes a typed credential.
func SignCredential(c *credential.Credential, privateKeyHex, kid string) (string, error) {
	doc, err := c.Document()
	if err != nil {
		return "", err
	}
	return Sign(doc, privateKeyHex, kid)
}

// Payload builds the JWT payload for doc: every credential member except
// proof, plus the registered claims.
func Payload(doc map[string]any) (map[string]any, error) {
	validFrom := credential.StringField(doc, "validFrom")
	if validFrom == "" {
		return nil, fmt.Errorf("%w: validFrom is required", ErrInvalidCredential)
	}
	nbf, err := EpochSeconds(validFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: validFrom: %v", ErrInvalidCredential, err)
	}

	payload := credential.WithoutProof(doc)
	for _, claim := range registeredClaims {
		delete(payload, claim)
	}

	if iss := credential.IssuerID(doc); iss != "" {
		payload["iss"] = iss
	}
	if jti := credential.StringField(doc, "id"); jti != "" {
		payload["jti"] = jti
	}
	if sub := credential.SubjectID(doc); sub != "" {
		payload["sub"] = sub
	}
	payload["nbf"] = nbf

	if validUntil := credential.StringField(doc, "validUntil"); validUntil != "" {
		exp, err := EpochSeconds(validUntil)
		if err != nil {
			return nil, fmt.Errorf("%w: validUntil: %v", ErrInvalidCredential, err)
		}
		payload["exp"] = exp
	}
	return payload, nil
}

// EpochSeconds converts an RFC 3339 instant to Unix seconds by
// floor-dividing its millisecond epoch by 1000.
func EpochSeconds(instant string) (int64, error) {
	t, err := credential.ParseInstant(instant)
	if err != nil {
		return 0, err
	}
	ms := t.UnixMilli()
	secs := ms / 1000
	if ms%1000 < 0 {
		secs--
	}
	return secs, nil
}
