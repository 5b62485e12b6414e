// Package schema performs structural validation of achievement credentials.
//
// Validation never fails with an error: every violated rule is reported as
// one field-named message, in a fixed order, so that results can be
// rendered directly to an untrusted caller. Each rule is a small JSON
// Schema evaluated with gojsonschema; the rule's message is reported when
// the document does not satisfy it.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/confbadge/badgecore/pkg/credential"
)

// Result is the outcome of a structural check.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newResult() *Result {
	return &Result{Valid: true, Errors: []string{}}
}

// AddError records a violation.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

type rule struct {
	message string
	schema  *gojsonschema.Schema
}

func mustRule(message, src string) rule {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("schema: rule %q: %v", message, err))
	}
	return rule{message: message, schema: s}
}

// requiredRule matches objects that carry name with a non-null value.
func requiredRule(name string) rule {
	return mustRule(name+" is required", fmt.Sprintf(
		`{"required":[%q],"properties":{%q:{"not":{"type":"null"}}}}`, name, name))
}

// typedRule matches objects whose name member, when present and non-null,
// has the given JSON type.
func typedRule(message, name, typ string) rule {
	return mustRule(message, fmt.Sprintf(
		`{"properties":{%q:{"type":[%q,"null"]}}}`, name, typ))
}

// constRule matches objects whose name member equals want.
func constRule(message, name, want string) rule {
	return mustRule(message, fmt.Sprintf(
		`{"required":[%q],"properties":{%q:{"const":%q}}}`, name, name, want))
}

// nonEmptyRule matches objects whose name member is a non-empty string.
func nonEmptyRule(message, name string) rule {
	return mustRule(message, fmt.Sprintf(
		`{"required":[%q],"properties":{%q:{"type":"string","minLength":1}}}`, name, name))
}

var credentialRules = []rule{
	requiredRule("@context"),
	typedRule("@context must be an array", "@context", "array"),
	requiredRule("id"),
	typedRule("id must be a string", "id", "string"),
	requiredRule("type"),
	typedRule("type must be an array", "type", "array"),
	mustRule("type must include "+credential.TypeVerifiableCredential, fmt.Sprintf(
		`{"properties":{"type":{"if":{"type":"array"},"then":{"contains":{"const":%q}}}}}`,
		credential.TypeVerifiableCredential)),
	mustRule("type must include "+credential.TypeOpenBadgeCredential, fmt.Sprintf(
		`{"properties":{"type":{"if":{"type":"array"},"then":{"anyOf":[{"contains":{"const":%q}},{"contains":{"const":%q}}]}}}}`,
		credential.TypeOpenBadgeCredential, credential.TypeAchievementCredential)),
	requiredRule("credentialSubject"),
	typedRule("credentialSubject must be an object", "credentialSubject", "object"),
	requiredRule("issuer"),
	requiredRule("validFrom"),
}

var proofRules = []rule{
	constRule("proof.type must be "+credential.ProofTypeDataIntegrity, "type", credential.ProofTypeDataIntegrity),
	constRule("proof.cryptosuite must be "+credential.CryptosuiteEdDSAJCS, "cryptosuite", credential.CryptosuiteEdDSAJCS),
	constRule("proof.proofPurpose must be "+credential.ProofPurposeAssertion, "proofPurpose", credential.ProofPurposeAssertion),
	nonEmptyRule("proof.proofValue is required", "proofValue"),
	nonEmptyRule("proof.verificationMethod is required", "verificationMethod"),
}

var (
	achievementObject = mustRule("credentialSubject.achievement must be an object",
		`{"required":["credentialSubject"],"properties":{"credentialSubject":{"type":"object","required":["achievement"],"properties":{"achievement":{"type":"object"}}}}}`)

	achievementRules = []rule{
		mustRule("credentialSubject.achievement.creator is required",
			`{"properties":{"credentialSubject":{"properties":{"achievement":{"required":["creator"]}}}}}`),
		mustRule("credentialSubject.achievement must not contain issuer; use creator",
			`{"properties":{"credentialSubject":{"properties":{"achievement":{"not":{"required":["issuer"]}}}}}}`),
	}
)

// check evaluates r against doc. A document the validator cannot load
// fails the rule.
func (r rule) check(doc gojsonschema.JSONLoader) bool {
	result, err := r.schema.Validate(doc)
	return err == nil && result.Valid()
}

func apply(res *Result, doc gojsonschema.JSONLoader, rules []rule) {
	for _, r := range rules {
		if !r.check(doc) {
			res.AddError("%s", r.message)
		}
	}
}

// Validate checks the top-level structure of a parsed credential. Checks
// run independently; all violations are collected. A member present with
// a null value counts as missing.
func Validate(v any) Result {
	res := newResult()

	doc, ok := v.(map[string]any)
	if !ok {
		res.AddError("credential must be a JSON object")
		return *res
	}

	apply(res, gojsonschema.NewGoLoader(doc), credentialRules)
	return *res
}

// ValidateProof checks a single proof object against the pinned
// Data-Integrity literals.
func ValidateProof(v any) Result {
	res := newResult()

	proof, ok := v.(map[string]any)
	if !ok {
		res.AddError("proof must be an object")
		return *res
	}

	apply(res, gojsonschema.NewGoLoader(proof), proofRules)
	return *res
}

// ValidateAchievement checks credentialSubject.achievement: it must name
// its author under "creator" and must never carry an "issuer" key.
func ValidateAchievement(v any) Result {
	res := newResult()

	doc, ok := v.(map[string]any)
	if !ok {
		res.AddError("credential must be a JSON object")
		return *res
	}

	loader := gojsonschema.NewGoLoader(doc)
	if !achievementObject.check(loader) {
		res.AddError("%s", achievementObject.message)
		return *res
	}
	apply(res, loader, achievementRules)
	return *res
}
