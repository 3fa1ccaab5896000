package syncstore

import (
	"fmt"
	"sort"
)

// Status is the sync state of one entity or of the whole collection.
type Status int

const (
	StatusSynced Status = iota
	StatusSyncing
	StatusError
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusSynced:
		return "synced"
	case StatusSyncing:
		return "syncing"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus parses a status name.
func ParseStatus(name string) (Status, error) {
	switch name {
	case "synced":
		return StatusSynced, nil
	case "syncing":
		return StatusSyncing, nil
	case "error":
		return StatusError, nil
	default:
		return StatusSynced, fmt.Errorf("unknown status %q", name)
	}
}

// StatusChange records one status transition of an entity.
type StatusChange struct {
	ID   string `json:"id"`
	From Status `json:"from"`
	To   Status `json:"to"`
}

// tracker is the Outstanding Set and Error Set bookkeeping.
// Not safe for concurrent use; Store guards it with its mutex.
type tracker struct {
	outstanding map[string]struct{}
	errored     map[string]struct{}
}

func newTracker() *tracker {
	return &tracker{
		outstanding: make(map[string]struct{}),
		errored:     make(map[string]struct{}),
	}
}

// status: error takes precedence over syncing; default synced.
func (t *tracker) status(id string) Status {
	if _, ok := t.errored[id]; ok {
		return StatusError
	}
	if _, ok := t.outstanding[id]; ok {
		return StatusSyncing
	}
	return StatusSynced
}

// overall: error if any entity errored, else syncing if any is
// outstanding, else synced.
func (t *tracker) overall() Status {
	if len(t.errored) > 0 {
		return StatusError
	}
	if len(t.outstanding) > 0 {
		return StatusSyncing
	}
	return StatusSynced
}

// markSyncing adds id to the outstanding set and clears a previous error.
func (t *tracker) markSyncing(id string) StatusChange {
	from := t.status(id)
	t.outstanding[id] = struct{}{}
	delete(t.errored, id)
	return StatusChange{ID: id, From: from, To: t.status(id)}
}

// markSynced removes id from the outstanding set.
func (t *tracker) markSynced(id string) StatusChange {
	from := t.status(id)
	delete(t.outstanding, id)
	return StatusChange{ID: id, From: from, To: t.status(id)}
}

// markError moves id from the outstanding set to the error set.
func (t *tracker) markError(id string) StatusChange {
	from := t.status(id)
	delete(t.outstanding, id)
	t.errored[id] = struct{}{}
	return StatusChange{ID: id, From: from, To: t.status(id)}
}

// statuses returns every non-synced entity, keyed by id.
func (t *tracker) statuses() map[string]Status {
	out := make(map[string]Status, len(t.outstanding)+len(t.errored))
	for id := range t.outstanding {
		out[id] = StatusSyncing
	}
	for id := range t.errored {
		out[id] = StatusError
	}
	return out
}

// errorIDs returns the error set sorted.
func (t *tracker) errorIDs() []string {
	ids := make([]string, 0, len(t.errored))
	for id := range t.errored {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
