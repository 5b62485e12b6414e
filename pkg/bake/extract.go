package bake

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"

	"github.com/confbadge/badgecore/pkg/jwtvc"
)

// Extraction is what was found in a baked SVG. A zero Extraction means no
// badge could be recovered.
type Extraction struct {
	Format Format

	// Assertion is set when the payload is a JSON credential.
	Assertion map[string]any

	// Token is set when the payload is a compact JWT.
	Token string

	// VerificationURL is the verify attribute of a legacy element.
	VerificationURL string
}

// Found reports whether a payload was recovered.
func (e Extraction) Found() bool {
	return e.Assertion != nil || e.Token != ""
}

// Detect returns the format of the badge embedded in svg, or FormatNone.
func Detect(svg []byte) Format {
	return Extract(svg).Format
}

// Extract recovers an embedded badge. The modern element is tried first and
// the legacy element second. Extract never fails: input that is not XML, or
// that carries no readable badge, yields a zero Extraction.
func Extract(svg []byte) Extraction {
	if e, ok := extractElement(svg, FormatModern); ok {
		return e
	}
	if e, ok := extractElement(svg, FormatLegacy); ok {
		return e
	}
	return Extraction{}
}

func extractElement(svg []byte, want Format) (Extraction, bool) {
	dec := xml.NewDecoder(bytes.NewReader(svg))

	var (
		inside bool
		depth  int
		text   strings.Builder
		verify string
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			return Extraction{}, false
		}

		switch t := tok.(type) {
		case xml.Directive:
			declareEntities(dec, t)
		case xml.StartElement:
			if inside {
				depth++
				continue
			}
			if formatOf(t.Name) == want {
				inside = true
				verify = attr(t, VerifyAttr)
			}
		case xml.CharData:
			if inside && depth == 0 {
				text.Write(t)
			}
		case xml.EndElement:
			if !inside {
				continue
			}
			if depth > 0 {
				depth--
				continue
			}
			e, ok := parsePayload(text.String())
			if !ok {
				return Extraction{}, false
			}
			e.Format = want
			if want == FormatLegacy {
				e.VerificationURL = verify
			}
			return e, true
		}
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func parsePayload(raw string) (Extraction, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Extraction{}, false
	}

	if strings.HasPrefix(s, "{") {
		var doc map[string]any
		if err := json.Unmarshal([]byte(s), &doc); err != nil || doc == nil {
			return Extraction{}, false
		}
		return Extraction{Assertion: doc}, true
	}

	if jwtvc.IsCompact(s) {
		return Extraction{Token: s}, true
	}
	return Extraction{}, false
}
