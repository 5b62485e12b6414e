package bake

import (
	"bytes"
	"encoding/xml"
	"regexp"
)

// entityDecl matches a general entity declaration with a literal value.
// Parameter entities (<!ENTITY % name ...>) and external entities are not
// matched and stay undefined.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([A-Za-z_:][-A-Za-z0-9._:]*)\s+(?:"([^"]*)"|'([^']*)')\s*>`)

// declareEntities registers the entities declared in the internal subset of
// a DOCTYPE directive with dec, so that references such as the &ns_svg;
// written by vector editors resolve while the decoder stays strict.
func declareEntities(dec *xml.Decoder, d xml.Directive) {
	if !bytes.HasPrefix(d, []byte("DOCTYPE")) {
		return
	}
	open := bytes.IndexByte(d, '[')
	if open < 0 {
		return
	}
	for _, m := range entityDecl.FindAllSubmatch(d[open:], -1) {
		if dec.Entity == nil {
			dec.Entity = make(map[string]string)
		}
		value := m[2]
		if value == nil {
			value = m[3]
		}
		name := string(m[1])
		// The first declaration of an entity is binding.
		if _, seen := dec.Entity[name]; !seen {
			dec.Entity[name] = string(value)
		}
	}
}
