package badge

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/confbadge/badgecore/pkg/bake"
	"github.com/confbadge/badgecore/pkg/credential"
	"github.com/confbadge/badgecore/pkg/dataintegrity"
	"github.com/confbadge/badgecore/pkg/did"
	"github.com/confbadge/badgecore/pkg/jwtvc"
	"github.com/confbadge/badgecore/pkg/report"
	"github.com/confbadge/badgecore/pkg/schema"
)

// Input formats reported in the parse check details.
const (
	InputJSON       = "json"
	InputJWT        = "jwt"
	InputSVGModern  = "svg-modern"
	InputSVGLegacy  = "svg-legacy"
	InputUnknown    = "unknown"
	proofTypeJWT    = "JWT"
	skippedUpstream = "skipped because an earlier check failed"
)

var checkOrder = []string{report.CheckParse, report.CheckSchema, report.CheckProof, report.CheckValidity}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the current time used for the validity check and the
// report timestamp.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the structured logger. Without it nothing is logged.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Verifier runs the parse, schema, proof and validity checks over a
// credential and produces a report. It is safe for concurrent use.
type Verifier struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// parsed is the outcome of the parse step.
type parsed struct {
	input  string
	format report.Format
	doc    map[string]any
	token  string
}

// Verify checks input, which may be credential JSON, a compact JWT or a
// baked SVG, against publicKeyHex. Data problems never produce an error:
// they are reported as failed checks.
func (v *Verifier) Verify(ctx context.Context, input []byte, publicKeyHex string) *report.Report {
	now := v.now()
	rep := report.New(now)

	defer func() {
		v.logger.InfoContext(ctx, "verification finished",
			"valid", rep.Valid,
			"format", rep.Format,
			"failures", len(rep.Failures()))
	}()

	if err := ctx.Err(); err != nil {
		rep.AddFailure(report.CheckParse, "verification cancelled", nil)
		rep.SkipRemaining(skippedUpstream, checkOrder...)
		return rep
	}

	// Step 1: Parse
	p, ok := v.parse(ctx, rep, input)
	if !ok {
		rep.SkipRemaining(skippedUpstream, checkOrder...)
		return rep
	}
	rep.Format = p.format
	rep.Credential = p.doc

	// Step 2: Structural validation
	if !v.checkSchema(ctx, rep, p) {
		rep.SkipRemaining(skippedUpstream, checkOrder...)
		return rep
	}

	// Step 3: Proof
	if !v.checkProof(ctx, rep, p, publicKeyHex) {
		rep.SkipRemaining(skippedUpstream, checkOrder...)
		return rep
	}

	// Step 4: Validity window
	v.checkValidity(ctx, rep, p.doc, now)
	return rep
}

func (v *Verifier) parse(ctx context.Context, rep *report.Report, input []byte) (*parsed, bool) {
	trimmed := bytes.TrimSpace(input)

	switch {
	case len(trimmed) == 0:
		rep.AddFailure(report.CheckParse, "input is empty", map[string]any{"format": InputUnknown})
		return nil, false

	case trimmed[0] == '<':
		ext := bake.Extract(trimmed)
		if !ext.Found() {
			rep.AddFailure(report.CheckParse, "no embedded credential found in image", map[string]any{"format": "svg"})
			return nil, false
		}
		rep.Baking = ext.Format.String()
		kind := InputSVGModern
		if ext.Format == bake.FormatLegacy {
			kind = InputSVGLegacy
		}
		v.logger.DebugContext(ctx, "extracted baked credential", "baking", rep.Baking)
		if ext.Token != "" {
			return v.parseToken(rep, ext.Token, kind)
		}
		return v.accept(rep, &parsed{input: kind, format: report.FormatDataIntegrity, doc: ext.Assertion}), true

	case trimmed[0] == '{':
		doc, err := credential.ParseDocument(trimmed)
		if err != nil {
			rep.AddFailure(report.CheckParse, "input is not a JSON object", map[string]any{"format": InputJSON})
			return nil, false
		}
		return v.accept(rep, &parsed{input: InputJSON, format: report.FormatDataIntegrity, doc: doc}), true

	case jwtvc.IsCompact(string(trimmed)):
		return v.parseToken(rep, string(trimmed), InputJWT)

	default:
		rep.AddFailure(report.CheckParse, "input is neither JSON, a compact JWT nor an SVG image", map[string]any{"format": InputUnknown})
		return nil, false
	}
}

func (v *Verifier) parseToken(rep *report.Report, token, input string) (*parsed, bool) {
	doc, err := jwtvc.UnsafeCredential(token)
	if err != nil {
		rep.AddFailure(report.CheckParse, err.Error(), map[string]any{"format": input, "code": Classify(err).Code})
		return nil, false
	}
	return v.accept(rep, &parsed{input: input, format: report.FormatJWT, doc: doc, token: token}), true
}

func (v *Verifier) accept(rep *report.Report, p *parsed) *parsed {
	rep.AddSuccess(report.CheckParse, map[string]any{"format": p.input})
	return p
}

func (v *Verifier) checkSchema(ctx context.Context, rep *report.Report, p *parsed) bool {
	res := schema.Validate(p.doc)
	errs := res.Errors

	if p.format == report.FormatDataIntegrity {
		if proof, ok := credential.FirstProofObject(p.doc); ok {
			errs = append(errs, schema.ValidateProof(proof).Errors...)
		}
	}

	details := map[string]any{}
	if ach := schema.ValidateAchievement(p.doc); !ach.Valid {
		details["warnings"] = ach.Errors
	}

	if len(errs) > 0 {
		details["errors"] = errs
		v.logger.DebugContext(ctx, "structural validation failed", "errors", len(errs))
		rep.AddFailure(report.CheckSchema, "credential failed structural validation", details)
		return false
	}
	if len(details) == 0 {
		details = nil
	}
	rep.AddSuccess(report.CheckSchema, details)
	return true
}

func (v *Verifier) checkProof(ctx context.Context, rep *report.Report, p *parsed, publicKeyHex string) bool {
	expectedVM, err := did.VerificationMethodFromPublicKey(publicKeyHex)
	if err != nil {
		rep.AddFailure(report.CheckProof, "invalid public key", map[string]any{
			"code":           Classify(err).Code,
			"signatureValid": false,
		})
		return false
	}

	if p.format == report.FormatJWT {
		return v.checkJWT(ctx, rep, p, publicKeyHex, expectedVM)
	}
	return v.checkDataIntegrity(ctx, rep, p, publicKeyHex)
}

func (v *Verifier) checkDataIntegrity(ctx context.Context, rep *report.Report, p *parsed, publicKeyHex string) bool {
	res, err := dataintegrity.VerifyDetailed(p.doc, publicKeyHex)
	if err != nil {
		rep.AddFailure(report.CheckProof, err.Error(), map[string]any{
			"code":           Classify(err).Code,
			"proofType":      credential.ProofTypeDataIntegrity,
			"proofCount":     credential.ProofCount(p.doc),
			"signatureValid": false,
		})
		return false
	}

	details := map[string]any{
		"proofType":               res.Proof.Type,
		"cryptosuite":             res.Proof.Cryptosuite,
		"proofCount":              res.ProofCount,
		"verificationMethodMatch": res.VerificationMethodMatch,
		"signatureValid":          res.SignatureValid,
	}
	v.logger.DebugContext(ctx, "data integrity proof checked",
		"proofCount", res.ProofCount,
		"verificationMethodMatch", res.VerificationMethodMatch,
		"signatureValid", res.SignatureValid)

	switch {
	case !res.VerificationMethodMatch:
		details["code"] = ErrCodeSignatureInvalid
		rep.AddFailure(report.CheckProof, "proof verification method does not belong to the trusted key", details)
		return false
	case !res.SignatureValid:
		details["code"] = ErrCodeSignatureInvalid
		rep.AddFailure(report.CheckProof, ErrSignatureInvalid.Message, details)
		return false
	}
	rep.AddSuccess(report.CheckProof, details)
	return true
}

func (v *Verifier) checkJWT(ctx context.Context, rep *report.Report, p *parsed, publicKeyHex, expectedVM string) bool {
	details := map[string]any{
		"proofType":  proofTypeJWT,
		"proofCount": 1,
	}

	tok, err := jwtvc.VerifyToken(p.token, publicKeyHex)
	if err != nil {
		details["signatureValid"] = false
		if h, herr := jwtvc.DecodeHeader(p.token); herr == nil {
			details["alg"] = h.Alg
			details["verificationMethodMatch"] = h.Kid == expectedVM
		}
		details["code"] = Classify(err).Code
		rep.AddFailure(report.CheckProof, err.Error(), details)
		return false
	}

	details["alg"] = tok.Header.Alg
	details["signatureValid"] = true
	details["verificationMethodMatch"] = tok.Header.Kid == expectedVM
	v.logger.DebugContext(ctx, "jwt proof checked", "alg", tok.Header.Alg)

	// Continue with the verified payload only.
	p.doc = tok.Credential
	rep.Credential = tok.Credential
	rep.AddSuccess(report.CheckProof, details)
	return true
}

func (v *Verifier) checkValidity(ctx context.Context, rep *report.Report, doc map[string]any, now time.Time) {
	validFrom := credential.StringField(doc, "validFrom")
	validUntil := credential.StringField(doc, "validUntil")

	details := map[string]any{"validFrom": validFrom}
	if validUntil != "" {
		details["validUntil"] = validUntil
	}

	from, err := credential.ParseInstant(validFrom)
	if err != nil {
		rep.AddFailure(report.CheckValidity, "validFrom is not a valid timestamp", details)
		return
	}
	if now.Before(from) {
		rep.AddFailure(report.CheckValidity, "credential is not yet valid", details)
		return
	}

	if validUntil != "" {
		until, err := credential.ParseInstant(validUntil)
		if err != nil {
			rep.AddFailure(report.CheckValidity, "validUntil is not a valid timestamp", details)
			return
		}
		if !now.Before(until) {
			rep.AddFailure(report.CheckValidity, "credential has expired", details)
			return
		}
	}

	v.logger.DebugContext(ctx, "validity window checked", "validFrom", validFrom, "validUntil", validUntil)
	rep.AddSuccess(report.CheckValidity, details)
}
