// Package credential defines the OpenBadges 3.0 achievement credential model
// and a pure builder for unsigned credentials.
package credential

// Pinned JSON-LD contexts, emitted in this order.
const (
	ContextVCv2 = "https://www.w3.org/ns/credentials/v2"
	ContextOBv3 = "https://purl.imsglobal.org/spec/ob/v3p0/context-3.0.3.json"
)

// Type literals.
const (
	TypeVerifiableCredential  = "VerifiableCredential"
	TypeOpenBadgeCredential   = "OpenBadgeCredential"
	TypeAchievementCredential = "AchievementCredential"
	TypeAchievementSubject    = "AchievementSubject"
	TypeAchievement           = "Achievement"
	TypeProfile               = "Profile"
	TypeImage                 = "Image"
	TypeEvidence              = "Evidence"
)

// Data-Integrity proof literals.
const (
	ProofTypeDataIntegrity = "DataIntegrityProof"
	CryptosuiteEdDSAJCS    = "eddsa-jcs-2022"
	ProofPurposeAssertion  = "assertionMethod"
)

// Contexts returns the pinned @context list.
func Contexts() []string {
	return []string{ContextVCv2, ContextOBv3}
}

// Types returns the credential type list.
func Types() []string {
	return []string{TypeVerifiableCredential, TypeOpenBadgeCredential}
}

// Credential is a signed or unsigned achievement credential.
type Credential struct {
	Context []string `json:"@context"`
	ID      string   `json:"id"`
	Type    []string `json:"type"`
	Name    string   `json:"name,omitempty"`

	Issuer            Profile `json:"issuer"`
	ValidFrom         string  `json:"validFrom"`
	ValidUntil        string  `json:"validUntil,omitempty"`
	CredentialSubject Subject `json:"credentialSubject"`

	Proof Proofs `json:"proof,omitempty"`
}

// Profile identifies an issuer or achievement creator.
type Profile struct {
	ID          string   `json:"id"`
	Type        []string `json:"type"`
	Name        string   `json:"name,omitempty"`
	URL         string   `json:"url,omitempty"`
	Email       string   `json:"email,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       *Image   `json:"image,omitempty"`
}

// Subject is the holder of the achievement.
type Subject struct {
	ID          string      `json:"id"`
	Type        []string    `json:"type"`
	Achievement Achievement `json:"achievement"`
}

// Achievement describes what was accomplished. The author of the
// achievement is its Creator; an achievement has no "issuer" key.
type Achievement struct {
	ID              string     `json:"id"`
	Type            []string   `json:"type"`
	AchievementType string     `json:"achievementType,omitempty"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Criteria        Criteria   `json:"criteria"`
	Image           *Image     `json:"image,omitempty"`
	Evidence        []Evidence `json:"evidence,omitempty"`
	Creator         *Profile   `json:"creator,omitempty"`
}

// Criteria describes how the achievement is earned.
type Criteria struct {
	ID        string `json:"id,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

// Image references a picture of a profile or achievement.
type Image struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Caption string `json:"caption,omitempty"`
}

// Evidence supports the achievement claim.
type Evidence struct {
	ID          string   `json:"id,omitempty"`
	Type        []string `json:"type"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Narrative   string   `json:"narrative,omitempty"`
}

// Proof is an embedded Data-Integrity proof.
type Proof struct {
	Type               string `json:"type"`
	Created            string `json:"created"`
	VerificationMethod string `json:"verificationMethod"`
	Cryptosuite        string `json:"cryptosuite"`
	ProofPurpose       string `json:"proofPurpose"`
	ProofValue         string `json:"proofValue"`
}
