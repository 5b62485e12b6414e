// Package report defines the structured result of a credential verification.
package report

import "time"

// Status is the outcome of a single check.
type Status string

// Check statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Check names, in the order the verifier runs them.
const (
	CheckParse    = "parse"
	CheckSchema   = "schema"
	CheckProof    = "proof"
	CheckValidity = "validity"
)

// Format is the proof format of the verified input.
type Format string

// Input formats.
const (
	FormatUnknown       Format = "unknown"
	FormatDataIntegrity Format = "data-integrity"
	FormatJWT           Format = "jwt"
)

// Check is the result of one named verification step.
type Check struct {
	Name    string         `json:"name"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Report contains the complete results of a verification.
type Report struct {
	Valid      bool      `json:"valid"`
	Format     Format    `json:"format"`
	Checks     []Check   `json:"checks"`
	VerifiedAt time.Time `json:"verifiedAt"`

	// Credential is the parsed credential document, when parsing succeeded.
	Credential map[string]any `json:"credential,omitempty"`

	// Baking is set when the input was an SVG ("modern" or "legacy").
	Baking string `json:"baking,omitempty"`
}

// New creates an empty report stamped with now. A report with no failed
// checks is valid.
func New(now time.Time) *Report {
	return &Report{
		Valid:      true,
		Format:     FormatUnknown,
		Checks:     []Check{},
		VerifiedAt: now.UTC(),
	}
}

// AddSuccess records a passed check.
func (r *Report) AddSuccess(name string, details map[string]any) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusSuccess, Details: details})
}

// AddFailure records a failed check and marks the report invalid.
func (r *Report) AddFailure(name, message string, details map[string]any) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusFailure, Message: message, Details: details})
	r.Valid = false
}

// AddSkipped records a check that did not run because an earlier one failed.
func (r *Report) AddSkipped(name, reason string) {
	r.Checks = append(r.Checks, Check{Name: name, Status: StatusSkipped, Message: reason})
}

// SkipRemaining marks every named check that has not been recorded yet as
// skipped.
func (r *Report) SkipRemaining(reason string, names ...string) {
	for _, name := range names {
		if _, ok := r.Check(name); !ok {
			r.AddSkipped(name, reason)
		}
	}
}

// Check returns the named check, if recorded.
func (r *Report) Check(name string) (Check, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

// Failures returns the failed checks in order.
func (r *Report) Failures() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status == StatusFailure {
			out = append(out, c)
		}
	}
	return out
}
