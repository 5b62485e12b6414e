package badge_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confbadge/badgecore/pkg/badge"
	"github.com/confbadge/badgecore/pkg/bake"
	"github.com/confbadge/badgecore/pkg/report"
)

var (
	clock = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	svgTemplate = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64"><rect width="64" height="64"/></svg>`)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newVerifier(opts ...badge.VerifierOption) *badge.Verifier {
	return badge.NewVerifier(append([]badge.VerifierOption{badge.WithClock(fixedClock(clock))}, opts...)...)
}

func diJSON(t *testing.T) []byte {
	t.Helper()
	doc, err := newIssuer(t).IssueDataIntegrity(testConfig(), testCreated)
	require.NoError(t, err)
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func jwtToken(t *testing.T) string {
	t.Helper()
	token, err := newIssuer(t).IssueJWT(testConfig())
	require.NoError(t, err)
	return token
}

func statuses(rep *report.Report) map[string]report.Status {
	out := make(map[string]report.Status, len(rep.Checks))
	for _, c := range rep.Checks {
		out[c.Name] = c.Status
	}
	return out
}

func checkNames(rep *report.Report) []string {
	names := make([]string, 0, len(rep.Checks))
	for _, c := range rep.Checks {
		names = append(names, c.Name)
	}
	return names
}

func allPassed() map[string]report.Status {
	return map[string]report.Status{
		report.CheckParse:    report.StatusSuccess,
		report.CheckSchema:   report.StatusSuccess,
		report.CheckProof:    report.StatusSuccess,
		report.CheckValidity: report.StatusSuccess,
	}
}

func mustCheck(t *testing.T, rep *report.Report, name string) report.Check {
	t.Helper()
	c, ok := rep.Check(name)
	require.True(t, ok, "check %s not recorded", name)
	return c
}

func TestVerify_DataIntegrityJSON(t *testing.T) {
	rep := newVerifier().Verify(context.Background(), diJSON(t), testPublicKey)

	assert.True(t, rep.Valid, "%+v", rep.Checks)
	assert.Equal(t, report.FormatDataIntegrity, rep.Format)
	assert.Equal(t, allPassed(), statuses(rep))
	assert.Equal(t, []string{"parse", "schema", "proof", "validity"}, checkNames(rep))
	assert.Equal(t, clock, rep.VerifiedAt)

	parse := mustCheck(t, rep, report.CheckParse)
	assert.Equal(t, badge.InputJSON, parse.Details["format"])

	proof := mustCheck(t, rep, report.CheckProof)
	assert.Equal(t, true, proof.Details["signatureValid"])
	assert.Equal(t, true, proof.Details["verificationMethodMatch"])
	assert.Equal(t, 1, proof.Details["proofCount"])
	assert.Equal(t, "DataIntegrityProof", proof.Details["proofType"])
	assert.Equal(t, "eddsa-jcs-2022", proof.Details["cryptosuite"])
}

func TestVerify_JWT(t *testing.T) {
	rep := newVerifier().Verify(context.Background(), []byte(jwtToken(t)+"\n"), testPublicKey)

	assert.True(t, rep.Valid, "%+v", rep.Checks)
	assert.Equal(t, report.FormatJWT, rep.Format)
	assert.Equal(t, allPassed(), statuses(rep))

	proof := mustCheck(t, rep, report.CheckProof)
	assert.Equal(t, "JWT", proof.Details["proofType"])
	assert.Equal(t, "EdDSA", proof.Details["alg"])
	assert.Equal(t, true, proof.Details["verificationMethodMatch"])

	assert.Equal(t, "Conference Speaker", rep.Credential["name"])
	assert.NotContains(t, rep.Credential, "iss")
}

func TestVerify_BakedSVG(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(diJSON(t), &doc))

	modern, err := bake.Bake(svgTemplate, bake.CredentialArtifact(doc))
	require.NoError(t, err)
	legacy, err := bake.BakeLegacy(svgTemplate, bake.CredentialArtifact(doc), "https://conf.example.org/verify")
	require.NoError(t, err)
	token, err := bake.Bake(svgTemplate, bake.TokenArtifact(jwtToken(t)))
	require.NoError(t, err)

	tests := []struct {
		name   string
		input  []byte
		kind   string
		format report.Format
		baking string
	}{
		{name: "modern data integrity", input: modern, kind: badge.InputSVGModern, format: report.FormatDataIntegrity, baking: "modern"},
		{name: "legacy data integrity", input: legacy, kind: badge.InputSVGLegacy, format: report.FormatDataIntegrity, baking: "legacy"},
		{name: "modern jwt", input: token, kind: badge.InputSVGModern, format: report.FormatJWT, baking: "modern"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := newVerifier().Verify(context.Background(), tc.input, testPublicKey)
			assert.True(t, rep.Valid, "%+v", rep.Checks)
			assert.Equal(t, tc.format, rep.Format)
			assert.Equal(t, tc.baking, rep.Baking)
			assert.Equal(t, tc.kind, mustCheck(t, rep, report.CheckParse).Details["format"])
		})
	}
}

func TestVerify_WrongKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	other := hex.EncodeToString(pub)

	for name, input := range map[string][]byte{"data integrity": diJSON(t), "jwt": []byte(jwtToken(t))} {
		t.Run(name, func(t *testing.T) {
			rep := newVerifier().Verify(context.Background(), input, other)
			assert.False(t, rep.Valid)
			assert.Equal(t, report.StatusFailure, statuses(rep)[report.CheckProof])
			assert.Equal(t, report.StatusSkipped, statuses(rep)[report.CheckValidity])

			proof := mustCheck(t, rep, report.CheckProof)
			assert.Equal(t, false, proof.Details["signatureValid"])
			assert.Equal(t, false, proof.Details["verificationMethodMatch"])
			assert.Equal(t, badge.ErrCodeSignatureInvalid, proof.Details["code"])
		})
	}
}

func TestVerify_TamperedCredential(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(diJSON(t), &doc))
	doc["name"] = "Keynote Speaker"
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	rep := newVerifier().Verify(context.Background(), data, testPublicKey)
	assert.False(t, rep.Valid)

	proof := mustCheck(t, rep, report.CheckProof)
	assert.Equal(t, report.StatusFailure, proof.Status)
	assert.Equal(t, true, proof.Details["verificationMethodMatch"])
	assert.Equal(t, false, proof.Details["signatureValid"])
}

func TestVerify_SchemaFailureSkipsDownstream(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(diJSON(t), &doc))
	delete(doc, "validFrom")
	doc["type"] = []any{"VerifiableCredential"}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	rep := newVerifier().Verify(context.Background(), data, testPublicKey)
	assert.False(t, rep.Valid)
	assert.Equal(t, map[string]report.Status{
		report.CheckParse:    report.StatusSuccess,
		report.CheckSchema:   report.StatusFailure,
		report.CheckProof:    report.StatusSkipped,
		report.CheckValidity: report.StatusSkipped,
	}, statuses(rep))

	schemaCheck := mustCheck(t, rep, report.CheckSchema)
	assert.Equal(t, []string{
		"type must include OpenBadgeCredential",
		"validFrom is required",
	}, schemaCheck.Details["errors"])
}

func TestVerify_ProofShapeIsPartOfSchema(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(diJSON(t), &doc))
	proof := doc["proof"].([]any)[0].(map[string]any)
	proof["cryptosuite"] = "ecdsa-rdfc-2019"
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	rep := newVerifier().Verify(context.Background(), data, testPublicKey)
	assert.False(t, rep.Valid)
	assert.Equal(t, []string{"proof.cryptosuite must be eddsa-jcs-2022"}, mustCheck(t, rep, report.CheckSchema).Details["errors"])
}

func TestVerify_MissingProof(t *testing.T) {
	var doc map[string]any
	require.NoError(t, json.Unmarshal(diJSON(t), &doc))
	delete(doc, "proof")
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	rep := newVerifier().Verify(context.Background(), data, testPublicKey)
	assert.False(t, rep.Valid)
	proof := mustCheck(t, rep, report.CheckProof)
	assert.Equal(t, report.StatusFailure, proof.Status)
	assert.Equal(t, badge.ErrCodeMalformedInput, proof.Details["code"])
	assert.Equal(t, 0, proof.Details["proofCount"])
}

func TestVerify_ParseFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "   "},
		{name: "garbage", input: "hello world"},
		{name: "broken json", input: `{"id": "urn:x"`},
		{name: "svg without badge", input: string(svgTemplate)},
		{name: "jwt with bad payload", input: "eyJhbGciOiJFZERTQSJ9.bm90LWpzb24.c2ln"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep := newVerifier().Verify(context.Background(), []byte(tc.input), testPublicKey)
			assert.False(t, rep.Valid)
			assert.Equal(t, map[string]report.Status{
				report.CheckParse:    report.StatusFailure,
				report.CheckSchema:   report.StatusSkipped,
				report.CheckProof:    report.StatusSkipped,
				report.CheckValidity: report.StatusSkipped,
			}, statuses(rep))
			assert.Equal(t, []string{"parse", "schema", "proof", "validity"}, checkNames(rep))
		})
	}
}

func TestVerify_InvalidPublicKey(t *testing.T) {
	secretish := "zz" + strings.Repeat("0", 62)
	rep := newVerifier().Verify(context.Background(), diJSON(t), secretish)

	assert.False(t, rep.Valid)
	proof := mustCheck(t, rep, report.CheckProof)
	assert.Equal(t, report.StatusFailure, proof.Status)
	assert.Equal(t, badge.ErrCodeInvalidKeyMaterial, proof.Details["code"])
	assert.NotContains(t, proof.Message, secretish)
}

func TestVerify_ValidityWindow(t *testing.T) {
	tests := []struct {
		name  string
		now   time.Time
		valid bool
		msg   string
	}{
		{name: "inside window", now: clock, valid: true},
		{name: "at validFrom", now: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), valid: true},
		{name: "before validFrom", now: time.Date(2009, 12, 31, 23, 59, 59, 0, time.UTC), msg: "credential is not yet valid"},
		{name: "at validUntil", now: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), msg: "credential has expired"},
	}

	input := diJSON(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := badge.NewVerifier(badge.WithClock(fixedClock(tc.now)))
			rep := v.Verify(context.Background(), input, testPublicKey)
			assert.Equal(t, tc.valid, rep.Valid)

			validity := mustCheck(t, rep, report.CheckValidity)
			if tc.valid {
				assert.Equal(t, report.StatusSuccess, validity.Status)
				return
			}
			assert.Equal(t, report.StatusFailure, validity.Status)
			assert.Equal(t, tc.msg, validity.Message)
			assert.Equal(t, report.StatusSuccess, statuses(rep)[report.CheckProof])
		})
	}
}

func TestVerify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := newVerifier().Verify(ctx, diJSON(t), testPublicKey)
	assert.False(t, rep.Valid)
	assert.Equal(t, "verification cancelled", mustCheck(t, rep, report.CheckParse).Message)
}

func TestVerify_LogsWithoutKeyMaterial(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rep := newVerifier(badge.WithLogger(logger)).Verify(context.Background(), diJSON(t), testPublicKey)
	require.True(t, rep.Valid)

	out := buf.String()
	assert.Contains(t, out, "verification finished")
	assert.NotContains(t, out, testPublicKey)
	assert.NotContains(t, out, testPrivateKey)
}

func TestVerify_ReportJSON(t *testing.T) {
	rep := newVerifier().Verify(context.Background(), []byte(jwtToken(t)), testPublicKey)

	data, err := json.Marshal(rep)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "2024-06-01T09:30:00Z", out["verifiedAt"])
	assert.Len(t, out["checks"], 4)
}
