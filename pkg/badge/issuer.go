package badge

import (
	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/dataintegrity"
	"github.com/confbadge/badgecore/pkg/did"
	"github.com/confbadge/badgecore/pkg/jwtvc"
)

// Issuer builds and signs credentials with one Ed25519 key. It is safe for
// concurrent use.
type Issuer struct {
	privateKeyHex      string
	publicKeyHex       string
	did                string
	verificationMethod string
}

// NewIssuer creates an Issuer from a hex Ed25519 seed.
func NewIssuer(privateKeyHex string) (*Issuer, error) {
	pub, err := did.DerivePublicKey(privateKeyHex)
	if err != nil {
		return nil, Classify(err)
	}
	keyDID, err := did.KeyDIDFromPublicKey(pub)
	if err != nil {
		return nil, Classify(err)
	}
	vm, err := did.VerificationMethod(keyDID, pub)
	if err != nil {
		return nil, Classify(err)
	}
	return &Issuer{
		privateKeyHex:      privateKeyHex,
		publicKeyHex:       pub,
		did:                keyDID,
		verificationMethod: vm,
	}, nil
}

// DID returns the issuer's did:key.
func (i *Issuer) DID() string { return i.did }

// VerificationMethod returns the did:key verification method URL.
func (i *Issuer) VerificationMethod() string { return i.verificationMethod }

// PublicKeyHex returns the hex Ed25519 public key.
func (i *Issuer) PublicKeyHex() string { return i.publicKeyHex }

// Build assembles an unsigned credential. An empty issuer id is replaced by
// the issuer's did:key.
func (i *Issuer) Build(cfg credential.Config) (*credential.Credential, error) {
	if cfg.Issuer.ID == "" {
		cfg.Issuer.ID = i.did
	}
	c, err := credential.Build(cfg)
	if err != nil {
		return nil, Classify(err)
	}
	return c, nil
}

// IssueDataIntegrity builds a credential and attaches an eddsa-jcs-2022
// proof created at the given instant.
func (i *Issuer) IssueDataIntegrity(cfg credential.Config, created string) (map[string]any, error) {
	c, err := i.Build(cfg)
	if err != nil {
		return nil, err
	}
	doc, err := c.Document()
	if err != nil {
		return nil, WrapError(ErrCodeInternal, "failed to encode credential", err)
	}
	signed, err := dataintegrity.Sign(doc, dataintegrity.ProofOptions{
		PrivateKeyHex: i.privateKeyHex,
		Created:       created,
	})
	if err != nil {
		return nil, Classify(err)
	}
	return signed, nil
}

// IssueJWT builds a credential and encodes it as a compact JWT whose kid is
// the issuer's verification method.
func (i *Issuer) IssueJWT(cfg credential.Config) (string, error) {
	c, err := i.Build(cfg)
	if err != nil {
		return "", err
	}
	token, err := jwtvc.SignCredential(c, i.privateKeyHex, i.verificationMethod)
	if err != nil {
		return "", Classify(err)
	}
	return token, nil
}
