package dataintegrity_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multiformats/go-multibase"

	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/crypto"
	"github.com/confbadge/badgecore/pkg/dataintegrity"
	"github.com/confbadge/badgecore/pkg/did"
)

const (
	testPrivateKey = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	testPublicKey  = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	testCreated    = "2024-05-01T12:00:00Z"
)

func unsignedDoc(t *testing.T) map[string]any {
	t.Helper()
	c, err := credential.Build(credential.Config{
		ID:   "urn:uuid:2f6a8d56-9b1e-4c35-8f0e-3b1d2a0c6e11",
		Name: "Workshop Attendee",
		Issuer: credential.IssuerConfig{
			ID:   "https://1edtech.edu/issuers/565049",
			Name: "Example Conference",
		},
		SubjectID: "mailto:attendee@example.org",
		Achievement: credential.AchievementConfig{
			ID:          "https://conf.example.org/achievements/workshop",
			Name:        "Workshop Attendee",
			Description: "Attended a hands-on workshop.",
			Narrative:   "Attend a workshop session.",
		},
		ValidFrom: "2010-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	doc, err := c.Document()
	require.NoError(t, err)
	return doc
}

func signedDoc(t *testing.T) map[string]any {
	t.Helper()
	signed, err := dataintegrity.Sign(unsignedDoc(t), dataintegrity.ProofOptions{
		PrivateKeyHex: testPrivateKey,
		Created:       testCreated,
	})
	require.NoError(t, err)
	return signed
}

func randomPublicKeyHex(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return hex.EncodeToString(pub)
}

func TestSign_ProofShape(t *testing.T) {
	doc := unsignedDoc(t)
	signed, err := dataintegrity.Sign(doc, dataintegrity.ProofOptions{PrivateKeyHex: testPrivateKey, Created: testCreated})
	require.NoError(t, err)

	assert.NotContains(t, doc, "proof", "input must not be mutated")

	proofs, ok := signed["proof"].([]any)
	require.True(t, ok)
	require.Len(t, proofs, 1)

	proof := proofs[0].(map[string]any)
	vm, err := did.VerificationMethodFromPublicKey(testPublicKey)
	require.NoError(t, err)

	assert.Equal(t, "DataIntegrityProof", proof["type"])
	assert.Equal(t, "eddsa-jcs-2022", proof["cryptosuite"])
	assert.Equal(t, "assertionMethod", proof["proofPurpose"])
	assert.Equal(t, testCreated, proof["created"])
	assert.Equal(t, vm, proof["verificationMethod"])
	assert.True(t, strings.HasPrefix(proof["proofValue"].(string), "z"))
}

func TestSign_Deterministic(t *testing.T) {
	a := signedDoc(t)
	b := signedDoc(t)
	assert.Equal(t, a, b)
}

func TestSign_Errors(t *testing.T) {
	doc := unsignedDoc(t)

	_, err := dataintegrity.Sign(doc, dataintegrity.ProofOptions{PrivateKeyHex: "abcd", Created: testCreated})
	assert.ErrorIs(t, err, did.ErrInvalidKeyMaterial)

	_, err = dataintegrity.Sign(doc, dataintegrity.ProofOptions{PrivateKeyHex: testPrivateKey})
	assert.ErrorIs(t, err, dataintegrity.ErrInvalidCreated)

	_, err = dataintegrity.Sign(doc, dataintegrity.ProofOptions{PrivateKeyHex: testPrivateKey, Created: "2024-05-01 12:00"})
	assert.ErrorIs(t, err, dataintegrity.ErrInvalidCreated)
}

func TestVerify(t *testing.T) {
	ok, err := dataintegrity.Verify(signedDoc(t), testPublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_AfterJSONRoundTrip(t *testing.T) {
	data, err := json.MarshalIndent(signedDoc(t), "", "    ")
	require.NoError(t, err)

	doc, err := credential.ParseDocument(data)
	require.NoError(t, err)

	ok, err := dataintegrity.Verify(doc, testPublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_SingleProofObject(t *testing.T) {
	doc := signedDoc(t)
	doc["proof"] = doc["proof"].([]any)[0]

	ok, err := dataintegrity.Verify(doc, testPublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_KeyMismatch(t *testing.T) {
	v, err := dataintegrity.VerifyDetailed(signedDoc(t), randomPublicKeyHex(t))
	require.NoError(t, err)
	assert.False(t, v.VerificationMethodMatch)
	assert.False(t, v.SignatureValid)
}

func TestVerify_ForgedVerificationMethod(t *testing.T) {
	// An attacker signs with their own key but claims the victim's key.
	_, attackerPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signed, err := dataintegrity.Sign(unsignedDoc(t), dataintegrity.ProofOptions{
		PrivateKeyHex: hex.EncodeToString(attackerPriv.Seed()),
		Created:       testCreated,
	})
	require.NoError(t, err)

	victimVM, err := did.VerificationMethodFromPublicKey(testPublicKey)
	require.NoError(t, err)
	signed["proof"].([]any)[0].(map[string]any)["verificationMethod"] = victimVM

	v, err := dataintegrity.VerifyDetailed(signed, testPublicKey)
	require.NoError(t, err)
	assert.True(t, v.VerificationMethodMatch)
	assert.False(t, v.SignatureValid)
}

func TestVerify_ProofMembersAreSigned(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(proof map[string]any)
	}{
		{name: "domain added", mutate: func(p map[string]any) { p["domain"] = "conf.example.org" }},
		{name: "challenge added", mutate: func(p map[string]any) { p["challenge"] = "1f44d55f" }},
		{name: "context added", mutate: func(p map[string]any) { p["@context"] = []any{credential.ContextVCv2} }},
		{name: "created changed", mutate: func(p map[string]any) { p["created"] = "2024-05-02T12:00:00Z" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := signedDoc(t)
			tc.mutate(doc["proof"].([]any)[0].(map[string]any))

			ok, err := dataintegrity.Verify(doc, testPublicKey)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// A proof made elsewhere with extra members verifies, and those members
// cannot be changed afterwards.
func TestVerify_ExtraProofMembersCovered(t *testing.T) {
	doc := unsignedDoc(t)
	vm, err := did.VerificationMethodFromPrivateKey(testPrivateKey)
	require.NoError(t, err)

	proof := map[string]any{
		"type":               credential.ProofTypeDataIntegrity,
		"cryptosuite":        credential.CryptosuiteEdDSAJCS,
		"created":            testCreated,
		"verificationMethod": vm,
		"proofPurpose":       credential.ProofPurposeAssertion,
		"domain":             "conf.example.org",
		"challenge":          "1f44d55f",
	}
	conf := credential.Clone(proof)
	conf["@context"] = doc["@context"]

	canonConf, err := crypto.CanonicalJSON(conf)
	require.NoError(t, err)
	canonDoc, err := crypto.CanonicalJSON(doc)
	require.NoError(t, err)

	priv, err := did.ParsePrivateKey(testPrivateKey)
	require.NoError(t, err)
	proof["proofValue"], err = multibase.Encode(multibase.Base58BTC, ed25519.Sign(priv, crypto.HashData(canonConf, canonDoc)))
	require.NoError(t, err)

	signed := credential.Clone(doc)
	signed["proof"] = []any{proof}
	ok, err := dataintegrity.Verify(signed, testPublicKey)
	require.NoError(t, err)
	assert.True(t, ok)

	proof["domain"] = "evil.example.org"
	ok, err = dataintegrity.Verify(signed, testPublicKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSign_DoesNotAliasInput(t *testing.T) {
	doc := unsignedDoc(t)
	tags := []string{"workshop", "hands-on"}
	doc["tags"] = tags

	signed, err := dataintegrity.Sign(doc, dataintegrity.ProofOptions{
		PrivateKeyHex: testPrivateKey,
		Created:       testCreated,
	})
	require.NoError(t, err)

	signed["tags"].([]string)[0] = "keynote"
	assert.Equal(t, []string{"workshop", "hands-on"}, tags)

	ok, err := dataintegrity.Verify(doc, testPublicKey)
	assert.ErrorIs(t, err, dataintegrity.ErrMissingProof)
	assert.False(t, ok)
	assert.NotContains(t, doc, "proof")
}

func TestVerify_MultipleProofsChecksFirstOnly(t *testing.T) {
	doc := signedDoc(t)
	proofs := doc["proof"].([]any)
	bogus := credential.Clone(proofs[0].(map[string]any))
	bogus["proofValue"] = "z1111"
	doc["proof"] = []any{proofs[0], bogus}

	v, err := dataintegrity.VerifyDetailed(doc, testPublicKey)
	require.NoError(t, err)
	assert.Equal(t, 2, v.ProofCount)
	assert.True(t, v.SignatureValid)
}

func TestVerify_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr error
	}{
		{
			name:    "no proof",
			mutate:  func(d map[string]any) { delete(d, "proof") },
			wantErr: dataintegrity.ErrMissingProof,
		},
		{
			name:    "empty proof array",
			mutate:  func(d map[string]any) { d["proof"] = []any{} },
			wantErr: dataintegrity.ErrMissingProof,
		},
		{
			name:    "proof is a string",
			mutate:  func(d map[string]any) { d["proof"] = "zabc" },
			wantErr: dataintegrity.ErrMalformedProof,
		},
		{
			name: "proofValue not multibase",
			mutate: func(d map[string]any) {
				d["proof"].([]any)[0].(map[string]any)["proofValue"] = "not-multibase!"
			},
			wantErr: dataintegrity.ErrMalformedProofValue,
		},
		{
			name: "proofValue wrong base",
			mutate: func(d map[string]any) {
				d["proof"].([]any)[0].(map[string]any)["proofValue"] = "f00ff"
			},
			wantErr: dataintegrity.ErrMalformedProofValue,
		},
		{
			name: "proofValue missing",
			mutate: func(d map[string]any) {
				delete(d["proof"].([]any)[0].(map[string]any), "proofValue")
			},
			wantErr: dataintegrity.ErrMalformedProof,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc := signedDoc(t)
			tc.mutate(doc)
			_, err := dataintegrity.Verify(doc, testPublicKey)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestVerify_InvalidPublicKey(t *testing.T) {
	_, err := dataintegrity.Verify(signedDoc(t), "00")
	assert.ErrorIs(t, err, did.ErrInvalidKeyMaterial)
}

func TestSignCredential(t *testing.T) {
	c, err := credential.FromDocument(unsignedDoc(t))
	require.NoError(t, err)

	signed, err := dataintegrity.SignCredential(c, dataintegrity.ProofOptions{PrivateKeyHex: testPrivateKey, Created: testCreated})
	require.NoError(t, err)
	assert.Empty(t, c.Proof)
	require.Len(t, signed.Proof, 1)

	ok, err := dataintegrity.VerifyCredential(signed, testPublicKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

// tamperPaths are body members that must each be covered by the signature.
var tamperPaths = [][]string{
	{"id"},
	{"name"},
	{"validFrom"},
	{"issuer", "id"},
	{"issuer", "name"},
	{"credentialSubject", "id"},
	{"credentialSubject", "achievement", "name"},
	{"credentialSubject", "achievement", "description"},
	{"credentialSubject", "achievement", "criteria", "narrative"},
	{"credentialSubject", "achievement", "creator", "id"},
}

func setPath(doc map[string]any, path []string, value string) {
	m := doc
	for _, p := range path[:len(path)-1] {
		m = m[p].(map[string]any)
	}
	m[path[len(path)-1]] = value
}

func getPath(doc map[string]any, path []string) string {
	m := doc
	for _, p := range path[:len(path)-1] {
		m = m[p].(map[string]any)
	}
	s, _ := m[path[len(path)-1]].(string)
	return s
}

// Property: mutating any single body field flips verification to false.
func TestVerify_TamperSensitivity(t *testing.T) {
	base := signedDoc(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("any body mutation breaks the proof", prop.ForAll(
		func(idx int, value string) bool {
			path := tamperPaths[idx]
			doc := credential.Clone(base)
			if getPath(doc, path) == value {
				value += "x"
			}
			setPath(doc, path, value)

			ok, err := dataintegrity.Verify(doc, testPublicKey)
			return err == nil && !ok
		},
		gen.IntRange(0, len(tamperPaths)-1),
		gen.AlphaString(),
	))

	properties.Property("adding a body member breaks the proof", prop.ForAll(
		func(key string) bool {
			doc := credential.Clone(base)
			doc["x-"+key] = "added"
			ok, err := dataintegrity.Verify(doc, testPublicKey)
			return err == nil && !ok
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)

	ok, err := dataintegrity.Verify(base, testPublicKey)
	require.NoError(t, err)
	assert.True(t, ok, "base document must remain valid")
}
