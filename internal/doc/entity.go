package doc

import (
	"encoding/json"
	"fmt"
)

// Well-known field names shared by the lab collections.
const (
	FieldID     = "id"
	FieldLabID  = "labId"
	FieldStatus = "status"
	FieldOrder  = "order"
	FieldName   = "name"
)

// Entity is one document of a collection: its identifier plus its fields.
// Fields never carry the "id" key; ID is authoritative.
type Entity struct {
	ID     string
	Fields Object
}

// NewEntity builds an entity, dropping any "id" key from fields.
func NewEntity(id string, fields Object) Entity {
	f := fields.Clone()
	if f == nil {
		f = Object{}
	}
	delete(f, FieldID)
	return Entity{ID: id, Fields: f}
}

// Clone returns a copy whose field map can be modified independently.
func (e Entity) Clone() Entity {
	return Entity{ID: e.ID, Fields: e.Fields.Clone()}
}

// Get returns the value of a field and whether it is present.
func (e Entity) Get(field string) (Value, bool) {
	v, ok := e.Fields[field]
	return v, ok
}

// StringField returns a string field, or "" when absent or of another type.
func (e Entity) StringField(field string) string {
	if s, ok := e.Fields[field].(String); ok {
		return string(s)
	}
	return ""
}

// IntField returns an integer field and whether it was present as an Int.
func (e Entity) IntField(field string) (int64, bool) {
	n, ok := e.Fields[field].(Int)
	return int64(n), ok
}

// Equal reports whether two entities have the same id and fields.
func (e Entity) Equal(other Entity) bool {
	return e.ID == other.ID && Equal(e.Fields, other.Fields)
}

// Merge returns a new entity with partial's fields written over e's.
// The "id" key of a partial is ignored.
func Merge(e Entity, partial Object) Entity {
	out := e.Clone()
	if out.Fields == nil {
		out.Fields = make(Object, len(partial))
	}
	for k, v := range partial {
		if k == FieldID {
			continue
		}
		out.Fields[k] = v
	}
	return out
}

// CloneAll copies a slice of entities, cloning each field map.
func CloneAll(es []Entity) []Entity {
	if es == nil {
		return nil
	}
	out := make([]Entity, len(es))
	for i, e := range es {
		out[i] = e.Clone()
	}
	return out
}

// EqualAll reports whether two entity slices are identical in order and
// content.
func EqualAll(a, b []Entity) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Index returns the position of the entity with the given id, or -1.
func Index(es []Entity, id string) int {
	for i, e := range es {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// MarshalJSON flattens the entity into a single object with an "id" key.
func (e Entity) MarshalJSON() ([]byte, error) {
	obj := e.Fields.Clone()
	if obj == nil {
		obj = Object{}
	}
	obj[FieldID] = String(e.ID)
	return obj.MarshalJSON()
}

// UnmarshalJSON reads a flat object; the "id" key must be a string.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	id, ok := obj[FieldID].(String)
	if !ok || id == "" {
		return fmt.Errorf("entity: missing string %q field", FieldID)
	}
	*e = NewEntity(string(id), obj)
	return nil
}
