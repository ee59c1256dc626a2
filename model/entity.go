// Package model defines the entity data model described in spec.md §3: a
// typed record with a UUIDv7 identifier, timestamps, a per-class metadata
// descriptor, and the security fields SecuredEntity adds on top.
package model

import (
	"time"

	"go.dataops.dev/storagekind"
	"go.dataops.dev/uuidv7"
)

// Entity is the base record every model embeds. ID is immutable once
// assigned; UpdatedAt never precedes CreatedAt.
type Entity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stamp assigns a fresh UUIDv7 id and both timestamps, if the id is not
// already set. Calling Stamp on an entity that already has an id is a
// no-op for the id (immutability invariant) but still refreshes UpdatedAt
// via Touch so callers can use Stamp uniformly for create-or-touch.
func (e *Entity) Stamp() {
	now := time.Now().UTC()
	if e.ID == "" {
		e.ID = uuidv7.New()
		e.CreatedAt = now
		e.UpdatedAt = now
		return
	}
	e.Touch()
}

// Touch advances UpdatedAt to now, never moving it before CreatedAt.
func (e *Entity) Touch() {
	now := time.Now().UTC()
	if now.Before(e.CreatedAt) {
		now = e.CreatedAt
	}
	e.UpdatedAt = now
}

// IndexKind names the kind of index a field declares in Metadata.
type IndexKind string

const (
	IndexHash     IndexKind = "hash"
	IndexText     IndexKind = "text"
	IndexFulltext IndexKind = "fulltext"
	IndexExact    IndexKind = "exact"
	IndexGIN      IndexKind = "gin"
	IndexBTree    IndexKind = "btree"
	IndexVector   IndexKind = "vector"
)

// IndexDeclaration names one field and the kind of index it should get.
type IndexDeclaration struct {
	Field string
	Kind  IndexKind
}

// Metadata is the per-entity-class descriptor from spec.md §3: named
// backend bindings, the collection/table path, the id field name, index
// declarations, and a free-form options map.
type Metadata struct {
	Bindings  map[string]storagekind.BackendBinding
	// BindingOrder preserves declaration order for SEQUENTIAL and
	// PRIMARY_FIRST fan-out; Bindings alone (a map) does not.
	BindingOrder []string
	Path         string
	IDField      string
	Indexes      []IndexDeclaration
	Options      map[string]any
	Sensitive    SensitiveFieldMap
}

// Primary returns the name of the first-declared binding, the source of
// truth under PRIMARY_FIRST and EVENTUAL strategies.
func (m Metadata) Primary() (string, bool) {
	if len(m.BindingOrder) == 0 {
		return "", false
	}
	return m.BindingOrder[0], true
}

// Secondaries returns every binding name after the primary, in
// declaration order.
func (m Metadata) Secondaries() []string {
	if len(m.BindingOrder) < 2 {
		return nil
	}
	return append([]string(nil), m.BindingOrder[1:]...)
}

// NewMetadata builds a Metadata from an ordered list of (name, binding)
// pairs, preserving declaration order for fan-out.
func NewMetadata(path, idField string, bindings []NamedBinding, indexes []IndexDeclaration) Metadata {
	m := Metadata{
		Bindings: make(map[string]storagekind.BackendBinding, len(bindings)),
		Path:     path,
		IDField:  idField,
		Indexes:  indexes,
		Options:  map[string]any{},
	}
	for _, nb := range bindings {
		m.Bindings[nb.Name] = nb.Binding
		m.BindingOrder = append(m.BindingOrder, nb.Name)
	}
	return m
}

// NamedBinding pairs a binding name with its configuration, preserving the
// declaration order Metadata.BindingOrder needs.
type NamedBinding struct {
	Name    string
	Binding storagekind.BackendBinding
}
