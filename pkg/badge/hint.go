package badge

import (
	"bytes"

	"github.com/confbadge/badgecore/pkg/bake"
	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/jwtvc"
)

// ClaimedVerificationMethod returns the verification method input says it
// was signed with: the first proof's verificationMethod for a credential
// document, the kid header for a JWT. The value is unverified and only
// selects which trusted key to verify against.
func ClaimedVerificationMethod(input []byte) (string, bool) {
	trimmed := bytes.TrimSpace(input)
	if len(trimmed) == 0 {
		return "", false
	}

	switch {
	case trimmed[0] == '<':
		ext := bake.Extract(trimmed)
		if ext.Token != "" {
			return kidOf(ext.Token)
		}
		if ext.Assertion != nil {
			return proofVM(ext.Assertion)
		}
		return "", false
	case trimmed[0] == '{':
		doc, err := credential.ParseDocument(trimmed)
		if err != nil {
			return "", false
		}
		return proofVM(doc)
	default:
		return kidOf(string(trimmed))
	}
}

func kidOf(token string) (string, bool) {
	h, err := jwtvc.DecodeHeader(token)
	if err != nil || h.Kid == "" {
		return "", false
	}
	return h.Kid, true
}

func proofVM(doc map[string]any) (string, bool) {
	proofs, err := credential.ProofsFromDocument(doc)
	if err != nil {
		return "", false
	}
	p, ok := proofs.First()
	if !ok || p.VerificationMethod == "" {
		return "", false
	}
	return p.VerificationMethod, true
}
