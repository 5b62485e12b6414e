package credential

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Document converts the credential into a generic JSON document, the form
// consumed by the proof engines and the validator.
func (c *Credential) Document() (map[string]any, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode credential document: %w", err)
	}
	return doc, nil
}

// FromDocument decodes a generic JSON document into a Credential. Members the
// model does not know about are dropped; verify documents, not Credentials,
// when every field must be covered.
func FromDocument(doc map[string]any) (*Credential, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	return &c, nil
}

// ParseDocument decodes JSON text into a generic document.
func ParseDocument(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is null")
	}
	return doc, nil
}

// Clone returns a deep copy of a JSON document. Slices and maps of any
// element type are copied, so a document built from Go values such as
// []string shares no backing storage with its clone.
func Clone(doc map[string]any) map[string]any {
	out, _ := cloneValue(doc).(map[string]any)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return cloneReflect(v)
	}
}

func cloneReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			setCloned(out.Index(i), rv.Index(i))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem := reflect.New(rv.Type().Elem()).Elem()
			setCloned(elem, iter.Value())
			out.SetMapIndex(iter.Key(), elem)
		}
		return out.Interface()
	default:
		return v
	}
}

// setCloned stores a deep copy of src in dst, which has src's static type.
func setCloned(dst, src reflect.Value) {
	if src.Kind() == reflect.Interface && src.IsNil() {
		return
	}
	c := cloneValue(src.Interface())
	if c == nil {
		return
	}
	dst.Set(reflect.ValueOf(c))
}

// WithoutProof returns a deep copy of doc with the proof member removed.
func WithoutProof(doc map[string]any) map[string]any {
	out := Clone(doc)
	delete(out, "proof")
	return out
}

// IssuerID returns the issuer identifier. The issuer may be a bare string
// or an object with an "id".
func IssuerID(doc map[string]any) string {
	switch v := doc["issuer"].(type) {
	case string:
		return v
	case map[string]any:
		id, _ := v["id"].(string)
		return id
	}
	return ""
}

// SubjectID returns credentialSubject.id, or "" when absent.
func SubjectID(doc map[string]any) string {
	subject, ok := doc["credentialSubject"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := subject["id"].(string)
	return id
}

// StringField returns a top-level string member.
func StringField(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}
