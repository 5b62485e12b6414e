package badge

import (
	"errors"
	"fmt"

	"github.com/confbadge/badgecore/pkg/bake"
	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/dataintegrity"
	"github.com/confbadge/badgecore/pkg/did"
	"github.com/confbadge/badgecore/pkg/jwtvc"
)

// Error codes. These are library-level codes, not HTTP status codes.
const (
	// ErrCodeInvalidKeyMaterial indicates a key is not valid hex of the
	// right length.
	ErrCodeInvalidKeyMaterial = "INVALID_KEY_MATERIAL"

	// ErrCodeMalformedInput indicates input that cannot be parsed: bad JSON,
	// bad JWT framing, a proof of the wrong shape.
	ErrCodeMalformedInput = "MALFORMED_INPUT"

	// ErrCodeSignatureInvalid indicates a signature did not verify.
	ErrCodeSignatureInvalid = "SIGNATURE_INVALID"

	// ErrCodeValidationFailed indicates a credential or configuration that
	// is well-formed but violates a required rule.
	ErrCodeValidationFailed = "VALIDATION_FAILED"

	// ErrCodeCodecMismatch indicates an image that is not an SVG the codec
	// can work with.
	ErrCodeCodecMismatch = "CODEC_MISMATCH"

	// ErrCodeInternal covers everything else.
	ErrCodeInternal = "INTERNAL"
)

// Error is a library error carrying one of the ErrCode* codes.
type Error struct {
	// Code is one of the ErrCode* values.
	Code string

	// Message is a human-readable description. It never contains key
	// material.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError creates a new Error that wraps an underlying error.
func WrapError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is.
var (
	ErrInvalidKeyMaterial = NewError(ErrCodeInvalidKeyMaterial, "invalid key material")
	ErrMalformedInput     = NewError(ErrCodeMalformedInput, "malformed input")
	ErrSignatureInvalid   = NewError(ErrCodeSignatureInvalid, "signature verification failed")
	ErrValidationFailed   = NewError(ErrCodeValidationFailed, "validation failed")
	ErrCodecMismatch      = NewError(ErrCodeCodecMismatch, "unsupported image")
)

var classes = []struct {
	code    string
	message string
	targets []error
}{
	{
		code:    ErrCodeInvalidKeyMaterial,
		message: "invalid key material",
		targets: []error{did.ErrInvalidKeyMaterial, did.ErrVerificationMethod},
	},
	{
		code:    ErrCodeSignatureInvalid,
		message: "signature verification failed",
		targets: []error{jwtvc.ErrSignatureInvalid},
	},
	{
		code:    ErrCodeCodecMismatch,
		message: "unsupported image",
		targets: []error{bake.ErrNotSVG},
	},
	{
		code:    ErrCodeMalformedInput,
		message: "malformed input",
		targets: []error{
			jwtvc.ErrMalformedToken,
			dataintegrity.ErrMissingProof,
			dataintegrity.ErrMalformedProof,
			dataintegrity.ErrMalformedProofValue,
			credential.ErrMalformedProof,
			did.ErrInvalidDID,
			did.ErrUnsupportedMethod,
			did.ErrInvalidKeyDID,
			did.ErrUnsupportedKeyType,
		},
	},
	{
		code:    ErrCodeValidationFailed,
		message: "validation failed",
		targets: []error{
			credential.ErrInvalidConfig,
			jwtvc.ErrInvalidCredential,
			dataintegrity.ErrInvalidCreated,
			bake.ErrInvalidArtifact,
			bake.ErrEmptyArtifact,
			bake.ErrMissingVerify,
		},
	},
}

// Classify maps an error from any engine package to a coded Error. An error
// that already is an *Error is returned unchanged; nil stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := AsError(err); ok {
		return e
	}
	for _, c := range classes {
		for _, target := range c.targets {
			if errors.Is(err, target) {
				return WrapError(c.code, c.message, err)
			}
		}
	}
	return WrapError(ErrCodeInternal, "unexpected error", err)
}

// AsError checks if err is an Error and returns it if so.
func AsError(err error) (*Error, bool) {
	var badgeErr *Error
	if errors.As(err, &badgeErr) {
		return badgeErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an Error, or returns empty string.
func GetErrorCode(err error) string {
	if badgeErr, ok := AsError(err); ok {
		return badgeErr.Code
	}
	return ""
}
