// Package remote defines the contract labsync requires from the document
// store that owns a collection.
//
// The store is an external collaborator: it delivers live snapshots of a
// filtered collection and accepts single-document writes. labsync ships a
// SQLite implementation (internal/store); any hosted backend that honours
// this contract can take its place.
package remote

import (
	"context"
	"errors"
	"slices"

	"github.com/roach88/labsync/internal/doc"
)

// ErrNotFound is returned by Update and Delete when the document does not
// exist.
var ErrNotFound = errors.New("document not found")

// Filter selects documents by equality on top-level fields,
// e.g. {labId: "lab-1"}. An empty filter selects the whole collection.
type Filter map[string]doc.Value

// Matches reports whether an entity satisfies every predicate.
func (f Filter) Matches(e doc.Entity) bool {
	for field, want := range f {
		var got doc.Value
		if field == doc.FieldID {
			got = doc.String(e.ID)
		} else {
			v, ok := e.Fields[field]
			if !ok {
				return false
			}
			got = v
		}
		if !doc.Equal(got, want) {
			return false
		}
	}
	return true
}

// Fields returns the filtered field names in sorted order.
func (f Filter) Fields() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Adapter is the Remote Store Adapter for one collection.
//
// Subscribe delivers the full filtered array immediately and again after
// every change. The filter is fixed for the lifetime of the subscription and
// the caller must invoke unsubscribe on teardown. onNext may be called from
// any goroutine but never concurrently for one subscription.
//
// Update applies a partial update atomically to one document; there is no
// partial success. Create returns the assigned identifier; the new document
// is only visible through a later delivery.
type Adapter interface {
	Subscribe(filter Filter, onNext func([]doc.Entity)) (unsubscribe func(), err error)
	Update(ctx context.Context, id string, partial doc.Object) error
	Create(ctx context.Context, fields doc.Object) (string, error)
	Delete(ctx context.Context, id string) error
}
