package model

import (
	"strings"

	"go.dataops.dev/uuidv7"
)

// SensitiveFieldMap maps a field name to a mask template. A template is
// either a literal replacement string, or contains "{field}" which expands
// to the field name; a template containing the literal suffix "uid"
// appends a freshly generated UUIDv7 to the mask (spec.md §3).
type SensitiveFieldMap map[string]string

// Mask renders the mask value for a single field according to its template.
func (m SensitiveFieldMap) Mask(field string) (string, bool) {
	tmpl, ok := m[field]
	if !ok {
		return "", false
	}
	out := strings.ReplaceAll(tmpl, "{field}", field)
	if strings.HasSuffix(tmpl, "uid") {
		out += "_" + uuidv7.New()
	}
	return out, true
}

// Project is the pure sanitization function from Design Notes §9: it never
// mutates the source entity, only the serialized view returned to the
// caller. Apply it at every point an entity leaves the process boundary.
func Project(data map[string]any, sensitive SensitiveFieldMap) map[string]any {
	if len(sensitive) == 0 {
		return data
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if masked, ok := sensitive.Mask(k); ok {
			out[k] = masked
			continue
		}
		out[k] = v
	}
	return out
}
