package crud

import "go.dataops.dev/model"

// Describe returns the model.Descriptor for T, the payload behind the
// dataops_info RPC tool (spec.md §4.9): field list, configured
// bindings, the primary binding, whether the class is secured, and its
// sensitive-field names.
func (e *Engine[T]) Describe() model.Descriptor {
	sensitive := make([]string, 0, len(e.Metadata.Sensitive))
	for field := range e.Metadata.Sensitive {
		sensitive = append(sensitive, field)
	}
	primary, _ := e.Metadata.Primary()
	return model.Descriptor{
		Path:      e.Metadata.Path,
		Fields:    model.DescribeFields[T](),
		Bindings:  append([]string(nil), e.Metadata.BindingOrder...),
		Primary:   primary,
		Secured:   e.Secured,
		Sensitive: sensitive,
	}
}
