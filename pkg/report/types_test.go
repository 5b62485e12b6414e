package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

func TestNew(t *testing.T) {
	r := New(fixed)
	assert.True(t, r.Valid)
	assert.Equal(t, FormatUnknown, r.Format)
	assert.Empty(t, r.Checks)
	assert.Equal(t, time.UTC, r.VerifiedAt.Location())
	assert.True(t, fixed.Equal(r.VerifiedAt))
}

func TestReport_AddFailure(t *testing.T) {
	r := New(fixed)
	r.AddSuccess(CheckParse, nil)
	r.AddFailure(CheckSchema, "schema validation failed", map[string]any{"errors": []string{"id is required"}})

	assert.False(t, r.Valid)
	assert.Len(t, r.Checks, 2)
	assert.Equal(t, StatusFailure, r.Checks[1].Status)
	assert.Equal(t, "schema validation failed", r.Checks[1].Message)

	failures := r.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, CheckSchema, failures[0].Name)
}

func TestReport_SkipDoesNotInvalidate(t *testing.T) {
	r := New(fixed)
	r.AddSuccess(CheckParse, nil)
	r.AddSkipped(CheckValidity, "not requested")

	assert.True(t, r.Valid)
	c, ok := r.Check(CheckValidity)
	require.True(t, ok)
	assert.Equal(t, StatusSkipped, c.Status)
}

func TestReport_SkipRemaining(t *testing.T) {
	r := New(fixed)
	r.AddFailure(CheckParse, "bad input", nil)
	r.SkipRemaining("parse failed", CheckParse, CheckSchema, CheckProof, CheckValidity)

	names := make([]string, 0, len(r.Checks))
	for _, c := range r.Checks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{CheckParse, CheckSchema, CheckProof, CheckValidity}, names)
	assert.Equal(t, StatusFailure, r.Checks[0].Status)
	for _, c := range r.Checks[1:] {
		assert.Equal(t, StatusSkipped, c.Status)
		assert.Equal(t, "parse failed", c.Message)
	}
}

func TestReport_JSONShape(t *testing.T) {
	r := New(fixed)
	r.Format = FormatJWT
	r.AddSuccess(CheckProof, map[string]any{"alg": "EdDSA"})

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "jwt", out["format"])
	assert.Equal(t, "2024-05-01T10:00:00Z", out["verifiedAt"])
	assert.NotContains(t, out, "credential")

	checks := out["checks"].([]any)
	require.Len(t, checks, 1)
	assert.Equal(t, map[string]any{
		"name":    "proof",
		"status":  "success",
		"details": map[string]any{"alg": "EdDSA"},
	}, checks[0])
}
