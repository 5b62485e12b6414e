// Package bake embeds signed credentials in SVG images and extracts them.
//
// Two element shapes are understood. The modern shape follows Open Badges
// 3.0:
//
//	<openbadges:credential xmlns:openbadges="https://purl.imsglobal.org/ob/v3p0">{escaped JSON or compact JWT}</openbadges:credential>
//
// The legacy shape follows Open Badges 2.0:
//
//	<openbadges:assertion xmlns:openbadges="http://openbadges.org" verify="URL"><![CDATA[{JSON}]]></openbadges:assertion>
//
// The element is inserted as the first child of the root <svg> element.
// The namespace is declared on the element itself so the root start tag is
// left untouched. General entities declared in the internal DTD subset are
// honoured when reading; external DTDs are never fetched.
package bake

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/confbadge/badgecore/pkg/jwtvc"
	"github.com/confbadge/badgecore/pkg/schema"
)

// Common errors returned by this package.
var (
	ErrNotSVG          = errors.New("input is not a well-formed SVG document")
	ErrEmptyArtifact   = errors.New("artifact has neither a credential nor a token")
	ErrInvalidArtifact = errors.New("artifact is not a structurally valid credential")
	ErrMissingVerify   = errors.New("legacy baking requires a verification URL")
)

// Namespaces and element names.
const (
	Prefix          = "openbadges"
	NamespaceModern = "https://purl.imsglobal.org/ob/v3p0"
	NamespaceLegacy = "http://openbadges.org"
	ElementModern   = "credential"
	ElementLegacy   = "assertion"
	VerifyAttr      = "verify"
)

// Format identifies how a badge is embedded.
type Format int

const (
	// FormatNone means no badge element was found.
	FormatNone Format = iota
	// FormatModern is the Open Badges 3.0 credential element.
	FormatModern
	// FormatLegacy is the Open Badges 2.0 assertion element.
	FormatLegacy
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatModern:
		return "modern"
	case FormatLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// Artifact is the signed payload to embed: either a credential document
// carrying a Data-Integrity proof, or a compact JWT.
type Artifact struct {
	Credential map[string]any
	Token      string
}

// CredentialArtifact wraps a signed credential document.
func CredentialArtifact(doc map[string]any) Artifact {
	return Artifact{Credential: doc}
}

// TokenArtifact wraps a compact JWT.
func TokenArtifact(token string) Artifact {
	return Artifact{Token: token}
}

func (a Artifact) payload() (string, error) {
	switch {
	case a.Credential != nil:
		res := schema.Validate(a.Credential)
		if !res.Valid {
			return "", fmt.Errorf("%w: %s", ErrInvalidArtifact, strings.Join(res.Errors, "; "))
		}
		data, err := json.Marshal(a.Credential)
		if err != nil {
			return "", fmt.Errorf("failed to marshal credential: %w", err)
		}
		return escapeNonXMLChars(string(data)), nil
	case a.Token != "":
		if !jwtvc.IsCompact(a.Token) {
			return "", fmt.Errorf("%w: token is not a compact JWT", ErrInvalidArtifact)
		}
		return strings.TrimSpace(a.Token), nil
	default:
		return "", ErrEmptyArtifact
	}
}

// Bake embeds artifact in svg using the modern element. Any badge element
// already present is replaced.
func Bake(svg []byte, artifact Artifact) ([]byte, error) {
	payload, err := artifact.payload()
	if err != nil {
		return nil, err
	}

	var elem bytes.Buffer
	fmt.Fprintf(&elem, `<%s:%s xmlns:%s="%s">`, Prefix, ElementModern, Prefix, NamespaceModern)
	if err := xml.EscapeText(&elem, []byte(payload)); err != nil {
		return nil, fmt.Errorf("failed to escape payload: %w", err)
	}
	fmt.Fprintf(&elem, `</%s:%s>`, Prefix, ElementModern)

	return insert(svg, elem.Bytes())
}

// BakeLegacy embeds artifact in svg using the legacy assertion element with
// a verify attribute. Any badge element already present is replaced.
func BakeLegacy(svg []byte, artifact Artifact, verifyURL string) ([]byte, error) {
	if verifyURL == "" {
		return nil, ErrMissingVerify
	}
	payload, err := artifact.payload()
	if err != nil {
		return nil, err
	}

	var attr bytes.Buffer
	if err := xml.EscapeText(&attr, []byte(verifyURL)); err != nil {
		return nil, fmt.Errorf("failed to escape verify url: %w", err)
	}

	var elem bytes.Buffer
	fmt.Fprintf(&elem, `<%s:%s xmlns:%s="%s" %s="%s">`, Prefix, ElementLegacy, Prefix, NamespaceLegacy, VerifyAttr, attr.String())
	elem.WriteString(cdata(payload))
	fmt.Fprintf(&elem, `</%s:%s>`, Prefix, ElementLegacy)

	return insert(svg, elem.Bytes())
}

// escapeNonXMLChars rewrites runes that XML 1.0 cannot carry as JSON \u
// escapes. json.Marshal already escapes the C0 controls, leaving U+FFFE and
// U+FFFF, which only occur inside JSON strings and decode back unchanged.
func escapeNonXMLChars(s string) string {
	if strings.IndexFunc(s, notXMLChar) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if notXMLChar(r) {
			fmt.Fprintf(&b, `\u%04x`, r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// notXMLChar reports whether r falls outside the XML 1.0 Char production.
func notXMLChar(r rune) bool {
	switch {
	case r == 0x09, r == 0x0A, r == 0x0D:
		return false
	case r >= 0x20 && r <= 0xD7FF:
		return false
	case r >= 0xE000 && r <= 0xFFFD:
		return false
	case r >= 0x10000 && r <= 0x10FFFF:
		return false
	}
	return true
}

// cdata wraps s in a CDATA section, splitting any "]]>" it contains.
func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}

// insert places elem as the first child of the root element, removing any
// existing badge elements that are direct children of the root.
func insert(svg []byte, elem []byte) ([]byte, error) {
	doc, err := scan(svg)
	if err != nil {
		return nil, err
	}

	// Drop existing badge elements, last first so offsets stay valid.
	stripped := append([]byte(nil), svg...)
	for i := len(doc.badges) - 1; i >= 0; i-- {
		b := doc.badges[i]
		stripped = append(stripped[:b.start], stripped[b.end:]...)
	}

	var out bytes.Buffer
	out.Grow(len(stripped) + len(elem) + len(doc.rootName) + 3)

	if doc.selfClosing {
		// <svg .../> becomes <svg ...>elem</svg>
		out.Write(stripped[:doc.rootEnd-2])
		out.WriteByte('>')
		out.Write(elem)
		fmt.Fprintf(&out, "</%s>", doc.rootName)
		out.Write(stripped[doc.rootEnd:])
		return out.Bytes(), nil
	}

	out.Write(stripped[:doc.rootEnd])
	out.Write(elem)
	out.Write(stripped[doc.rootEnd:])
	return out.Bytes(), nil
}

type span struct {
	start, end int64
}

type scanned struct {
	rootName    string
	rootEnd     int64
	selfClosing bool
	badges      []span
}

// scan checks that svg is well-formed XML with an <svg> root and records
// the end offset of the root start tag and the spans of direct-child badge
// elements.
func scan(svg []byte) (*scanned, error) {
	dec := xml.NewDecoder(bytes.NewReader(svg))

	var (
		doc      scanned
		depth    int
		sawRoot  bool
		badgeAt  int64 = -1
		tokStart int64
	)

	for {
		tokStart = dec.InputOffset()
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) && sawRoot && depth == 0 {
				break
			}
			return nil, fmt.Errorf("%w: %v", ErrNotSVG, err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			declareEntities(dec, t)
		case xml.StartElement:
			depth++
			if !sawRoot {
				if t.Name.Local != "svg" {
					return nil, fmt.Errorf("%w: root element is <%s>", ErrNotSVG, t.Name.Local)
				}
				sawRoot = true
				doc.rootEnd = dec.InputOffset()
				tag := svg[tokStart:doc.rootEnd]
				doc.rootName = rawName(tag)
				doc.selfClosing = bytes.HasSuffix(tag, []byte("/>"))
				continue
			}
			if depth == 2 && isBadgeElement(t.Name) {
				badgeAt = tokStart
			}
		case xml.EndElement:
			if depth == 2 && badgeAt >= 0 {
				doc.badges = append(doc.badges, span{start: badgeAt, end: dec.InputOffset()})
				badgeAt = -1
			}
			depth--
		}
	}

	return &doc, nil
}

// rawName returns the qualified element name exactly as written in tag.
func rawName(tag []byte) string {
	name := bytes.TrimPrefix(tag, []byte("<"))
	if i := bytes.IndexAny(name, " \t\r\n/>"); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

func isBadgeElement(name xml.Name) bool {
	return formatOf(name) != FormatNone
}

// formatOf maps an element name to the badge format it represents. Prefixes
// that were never declared are left in Name.Space by the decoder and are
// accepted as well.
func formatOf(name xml.Name) Format {
	switch name.Space {
	case NamespaceModern, NamespaceLegacy, Prefix:
	default:
		return FormatNone
	}
	switch name.Local {
	case ElementModern:
		return FormatModern
	case ElementLegacy:
		return FormatLegacy
	}
	return FormatNone
}
