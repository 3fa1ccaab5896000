package syncstore

import (
	"sort"

	"github.com/roach88/labsync/internal/doc"
)

// overlayEntry is a locally applied, unconfirmed entity value.
// A deleted entry hides the entity from the merged view.
type overlayEntry struct {
	entity  doc.Entity
	deleted bool
}

// pin holds the pre-mutation confirmed value of an outstanding id.
// present is false when the id was not in the confirmed snapshot.
type pin struct {
	entity  doc.Entity
	present bool
	index   int
}

// arrival is the value delivered for an outstanding id while its write
// was in flight.
type arrival struct {
	entity  doc.Entity
	present bool
}

// prior is everything needed to undo one optimistic change.
type prior struct {
	overlay    overlayEntry
	hadOverlay bool
}

// reconciler is the Reconciliation State: the last delivery, the pins of
// outstanding ids, and the overlay. It performs no I/O and has no failure
// modes. Not safe for concurrent use; Store guards it with its mutex.
type reconciler struct {
	raw      []doc.Entity
	overlay  map[string]overlayEntry
	pins     map[string]pin
	arrivals map[string]arrival
}

func newReconciler() *reconciler {
	return &reconciler{
		raw:      []doc.Entity{},
		overlay:  make(map[string]overlayEntry),
		pins:     make(map[string]pin),
		arrivals: make(map[string]arrival),
	}
}

// confirmed returns the confirmed snapshot: the last delivery with every
// outstanding id held at its pre-mutation value.
func (r *reconciler) confirmed() []doc.Entity {
	out := make([]doc.Entity, 0, len(r.raw)+len(r.pins))
	seen := make(map[string]bool, len(r.pins))
	for _, e := range r.raw {
		p, pinned := r.pins[e.ID]
		if !pinned {
			out = append(out, e)
			continue
		}
		seen[e.ID] = true
		if p.present {
			out = append(out, p.entity)
		}
	}

	// Pinned entities the delivery dropped go back where they were.
	for _, id := range r.pinnedIDs() {
		p := r.pins[id]
		if seen[id] || !p.present {
			continue
		}
		out = insertAt(out, p.index, p.entity)
	}
	return out
}

// merged returns the view consumers render: the confirmed snapshot with
// overlay values substituted per id. Overlay-only entities are never
// appended; creation is not optimistic.
func (r *reconciler) merged() []doc.Entity {
	confirmed := r.confirmed()
	out := make([]doc.Entity, 0, len(confirmed))
	for _, e := range confirmed {
		o, ok := r.overlay[e.ID]
		switch {
		case !ok:
			out = append(out, e)
		case o.deleted:
		default:
			out = append(out, o.entity)
		}
	}
	return out
}

// lookup returns the merged value of one entity.
func (r *reconciler) lookup(id string) (doc.Entity, bool) {
	if o, ok := r.overlay[id]; ok {
		if o.deleted {
			return doc.Entity{}, false
		}
		if r.inConfirmed(id) {
			return o.entity, true
		}
		return doc.Entity{}, false
	}
	for _, e := range r.confirmed() {
		if e.ID == id {
			return e, true
		}
	}
	return doc.Entity{}, false
}

func (r *reconciler) inConfirmed(id string) bool {
	if p, ok := r.pins[id]; ok {
		return p.present
	}
	return doc.Index(r.raw, id) >= 0
}

// deliver replaces the last delivery wholesale. Outstanding ids keep
// their pinned value; what arrived for them is remembered for adoption
// on success. Overlay entries of settled ids are dropped because the
// delivery now reflects them.
func (r *reconciler) deliver(entities []doc.Entity) {
	r.raw = doc.CloneAll(entities)
	if r.raw == nil {
		r.raw = []doc.Entity{}
	}

	for id := range r.pins {
		i := doc.Index(r.raw, id)
		if i >= 0 {
			r.arrivals[id] = arrival{entity: r.raw[i], present: true}
		} else {
			r.arrivals[id] = arrival{}
		}
	}
	for id := range r.overlay {
		if _, outstanding := r.pins[id]; !outstanding {
			delete(r.overlay, id)
		}
	}
}

// pin captures the pre-mutation state of id and holds its confirmed
// value until the mutation resolves.
func (r *reconciler) pin(id string) prior {
	confirmed := r.confirmed()
	p := pin{index: len(confirmed)}
	if i := doc.Index(confirmed, id); i >= 0 {
		p = pin{entity: confirmed[i], present: true, index: i}
	}
	r.pins[id] = p
	delete(r.arrivals, id)

	o, had := r.overlay[id]
	return prior{overlay: o, hadOverlay: had}
}

// applyOverlay merges partial into the merged value of id and stores the
// result in the overlay. Returns the new merged view.
func (r *reconciler) applyOverlay(id string, partial doc.Object) []doc.Entity {
	current, ok := r.lookup(id)
	if !ok {
		current = doc.NewEntity(id, nil)
	}
	r.overlay[id] = overlayEntry{entity: doc.Merge(current, partial)}
	return r.merged()
}

// tombstone hides id from the merged view until the delete resolves.
func (r *reconciler) tombstone(id string) []doc.Entity {
	r.overlay[id] = overlayEntry{deleted: true}
	return r.merged()
}

// revert restores id to its pre-mutation state: the overlay entry it had
// before, and its pinned value written back into the confirmed snapshot.
func (r *reconciler) revert(id string, before prior) {
	if before.hadOverlay {
		r.overlay[id] = before.overlay
	} else {
		delete(r.overlay, id)
	}

	p, ok := r.pins[id]
	if ok {
		i := doc.Index(r.raw, id)
		switch {
		case p.present && i >= 0:
			r.raw[i] = p.entity
		case p.present:
			r.raw = insertAt(r.raw, p.index, p.entity)
		case i >= 0:
			r.raw = append(r.raw[:i], r.raw[i+1:]...)
		}
	}
	delete(r.pins, id)
	delete(r.arrivals, id)
}

// settle unpins id after a successful write. If a delivery arrived while
// the write was in flight its value is adopted and the overlay cleared;
// otherwise the optimistic value stays until the next delivery.
func (r *reconciler) settle(id string) {
	if _, ok := r.arrivals[id]; ok {
		delete(r.overlay, id)
	}
	delete(r.pins, id)
	delete(r.arrivals, id)
}

func (r *reconciler) pinnedIDs() []string {
	ids := make([]string, 0, len(r.pins))
	for id := range r.pins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func insertAt(es []doc.Entity, i int, e doc.Entity) []doc.Entity {
	if i > len(es) {
		i = len(es)
	}
	if i < 0 {
		i = 0
	}
	es = append(es, doc.Entity{})
	copy(es[i+1:], es[i:])
	es[i] = e
	return es
}
