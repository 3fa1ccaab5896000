// Package schema validates lab documents against the CUE definitions in
// lab.cue before any mutation reaches the document store.
package schema

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/labsync/internal/doc"
)

//go:embed lab.cue
var labCUE string

// Validation error codes (E200-E299)
const (
	ErrUnknownCollection = "E200" // no schema for the collection
	ErrUnknownField      = "E201" // field not declared by the definition
	ErrInvalidValue      = "E202" // value conflicts with the declared type
	ErrIncomplete        = "E203" // required field missing on a new entity
)

// ValidationError reports the first problem found in a document.
type ValidationError struct {
	Collection string `json:"collection"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Code       string `json:"code"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Collection, e.Message)
	}
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Collection, e.Field, e.Message)
}

type definition struct {
	value  cue.Value
	fields map[string]bool
}

// Validator checks documents against the embedded lab schemas.
//
// Thread-safety: safe for concurrent use. A cue.Context is not, so all
// evaluation happens under mu.
type Validator struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]definition
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	return NewFromSource(labCUE)
}

// NewFromSource compiles CUE source that declares a top-level
// "collections" struct mapping collection names to definitions.
func NewFromSource(src string) (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(src)
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	collections := root.LookupPath(cue.ParsePath("collections"))
	if !collections.Exists() {
		return nil, fmt.Errorf("compile schema: missing collections")
	}

	iter, err := collections.Fields()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v := &Validator{ctx: ctx, defs: make(map[string]definition)}
	for iter.Next() {
		name := iter.Selector().Unquoted()
		def := iter.Value()

		fieldIter, err := def.Fields(cue.Optional(true))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		fields := make(map[string]bool)
		for fieldIter.Next() {
			fields[fieldIter.Selector().Unquoted()] = true
		}
		v.defs[name] = definition{value: def, fields: fields}
	}
	return v, nil
}

// Collections returns the collection names with a schema, sorted.
func (v *Validator) Collections() []string {
	names := make([]string, 0, len(v.defs))
	for name := range v.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Knows reports whether the collection has a schema.
func (v *Validator) Knows(collection string) bool {
	_, ok := v.defs[collection]
	return ok
}

// ValidatePartial checks the fields of a partial update. Required fields
// may be absent; every present field must be declared and well typed.
// The "id" key is ignored since partials never change it.
func (v *Validator) ValidatePartial(collection string, partial doc.Object) error {
	def, ok := v.defs[collection]
	if !ok {
		return &ValidationError{
			Collection: collection,
			Message:    "no schema for collection",
			Code:       ErrUnknownCollection,
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, key := range partial.SortedKeys() {
		if key == doc.FieldID {
			continue
		}
		if err := v.checkField(collection, def, key, partial[key]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEntity checks a complete new document: every field as in
// ValidatePartial, and every required field present and concrete.
func (v *Validator) ValidateEntity(collection string, fields doc.Object) error {
	def, ok := v.defs[collection]
	if !ok {
		return &ValidationError{
			Collection: collection,
			Message:    "no schema for collection",
			Code:       ErrUnknownCollection,
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, key := range fields.SortedKeys() {
		if err := v.checkField(collection, def, key, fields[key]); err != nil {
			return err
		}
	}

	unified := def.value.Unify(v.ctx.Encode(doc.ToAny(fields)))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fromCUE(collection, ErrIncomplete, err)
	}
	return nil
}

// checkField unifies a single field with the definition.
// Caller holds mu.
func (v *Validator) checkField(collection string, def definition, key string, value doc.Value) error {
	if !def.fields[key] {
		return &ValidationError{
			Collection: collection,
			Field:      key,
			Message:    "field not allowed",
			Code:       ErrUnknownField,
		}
	}

	single := v.ctx.Encode(map[string]any{key: doc.ToAny(value)})
	if err := def.value.Unify(single).Validate(); err != nil {
		e := fromCUE(collection, ErrInvalidValue, err)
		e.Field = key
		return e
	}
	return nil
}

// fromCUE converts the first CUE error into a ValidationError.
func fromCUE(collection, code string, err error) *ValidationError {
	out := &ValidationError{Collection: collection, Code: code, Message: err.Error()}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return out
	}
	first := errs[0]
	out.Message = first.Error()
	if path := first.Path(); len(path) > 0 {
		out.Field = path[len(path)-1]
	}
	return out
}
