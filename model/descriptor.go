package model

import "reflect"

// FieldDescriptor describes one field of an entity class for the
// dataops_info RPC tool (spec.md §4.9): its wire name, Go type, whether
// the field's JSON tag lacks "omitempty" (treated as required), and its
// zero value as a default.
type FieldDescriptor struct {
	Name     string
	Type     string
	Required bool
	Default  any
}

// Descriptor is the model-class descriptor dataops_info returns: field
// list, configured bindings, the primary binding, whether the class is
// secured, its sensitive-field names, and its collection path.
type Descriptor struct {
	Path      string
	Fields    []FieldDescriptor
	Bindings  []string
	Primary   string
	Secured   bool
	Sensitive []string
}

// DescribeFields walks T's exported fields via reflection (following
// anonymous embeds) and returns one FieldDescriptor per json-tagged
// field, skipping "-" fields. Embedded Entity/SecuredEntity fields are
// flattened the same way encoding/json flattens them.
func DescribeFields[T any]() []FieldDescriptor {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return describeStruct(t)
}

func describeStruct(t reflect.Type) []FieldDescriptor {
	var out []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			out = append(out, describeStruct(f.Type)...)
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts := splitTag(tag)
		if name == "" {
			name = f.Name
		}
		out = append(out, FieldDescriptor{
			Name:     name,
			Type:     f.Type.String(),
			Required: !opts["omitempty"],
			Default:  reflect.Zero(f.Type).Interface(),
		})
	}
	return out
}

func splitTag(tag string) (string, map[string]bool) {
	if tag == "" {
		return "", nil
	}
	parts := []string{}
	start := 0
	for i := 0; i <= len(tag); i++ {
		if i == len(tag) || tag[i] == ',' {
			parts = append(parts, tag[start:i])
			start = i + 1
		}
	}
	opts := map[string]bool{}
	for _, o := range parts[1:] {
		opts[o] = true
	}
	return parts[0], opts
}
