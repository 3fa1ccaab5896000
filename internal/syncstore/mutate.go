package syncstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/metrics"
	"github.com/roach88/labsync/internal/notify"
)

// Operation names, used in errors, logs, notifications and metrics.
const (
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpMove    = "move"
	OpReorder = "reorder"
	OpCreate  = "create"
)

// MsgMissingLab is shown when a mutation is attempted without a lab.
const MsgMissingLab = "Your profile has no lab assigned. Update your profile and try again."

// ErrMissingLab is wrapped by MISSING_LAB_CONTEXT errors.
var ErrMissingLab = errors.New("no lab assigned")

// FailureMessage returns the notification text for a rejected write.
func FailureMessage(op string) string {
	switch op {
	case OpMove, OpReorder:
		return "Failed to move. Please try again."
	case OpDelete:
		return "Failed to delete. Please try again."
	case OpCreate:
		return "Failed to create."
	default:
		return "Failed to update. Please try again."
	}
}

// buildFunc computes the partial update for an entity under the store
// lock, from its current merged value and the whole merged view.
type buildFunc func(current doc.Entity, view []doc.Entity) (doc.Object, error)

// Update merges partial into the entity optimistically and writes it to
// the adapter. On failure the entity is restored and marked error.
func (s *Store) Update(ctx context.Context, id string, partial doc.Object) error {
	if err := s.precheck(OpUpdate, id); err != nil {
		return err
	}
	partial = partial.Clone()
	delete(partial, doc.FieldID)
	if len(partial) == 0 {
		return s.reject(OpUpdate, id, CodeInvalidInput, fmt.Errorf("empty update"))
	}
	if err := s.validatePartial(OpUpdate, id, partial); err != nil {
		return err
	}
	return s.mutateOne(ctx, OpUpdate, id, func(doc.Entity, []doc.Entity) (doc.Object, error) {
		return partial, nil
	})
}

// Delete hides the entity optimistically and deletes it remotely. On
// failure the entity reappears at its previous position.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.precheck(OpDelete, id); err != nil {
		return err
	}
	return s.mutateOne(ctx, OpDelete, id, nil)
}

// Move sets the entity's status and places it last in the target group.
func (s *Store) Move(ctx context.Context, id, status string) error {
	if err := s.precheck(OpMove, id); err != nil {
		return err
	}
	if status == "" {
		return s.reject(OpMove, id, CodeInvalidInput, fmt.Errorf("empty %s", s.statusField))
	}
	if err := s.validatePartial(OpMove, id, doc.Object{s.statusField: doc.String(status)}); err != nil {
		return err
	}
	return s.mutateOne(ctx, OpMove, id, func(_ doc.Entity, view []doc.Entity) (doc.Object, error) {
		return doc.Object{
			s.statusField: doc.String(status),
			s.orderField:  doc.Int(s.nextOrder(view, id, status)),
		}, nil
	})
}

// nextOrder returns the order that places an entity after every other
// member of the group.
func (s *Store) nextOrder(view []doc.Entity, id, status string) int64 {
	var next, members int64
	for _, e := range view {
		if e.ID == id || e.StringField(s.statusField) != status {
			continue
		}
		members++
		if o, ok := e.IntField(s.orderField); ok && o+1 > next {
			next = o + 1
		}
	}
	return max(next, members)
}

// Reorder rewrites the order field of every entity in a status group to
// its index in orderedIDs, which must list the whole group. One update per
// entity is dispatched concurrently; if any fails, the whole group is
// restored and every member is marked error.
func (s *Store) Reorder(ctx context.Context, status string, orderedIDs []string) error {
	if err := s.precheck(OpReorder, ""); err != nil {
		return err
	}
	label := strings.Join(orderedIDs, ",")
	if len(orderedIDs) == 0 {
		return s.reject(OpReorder, label, CodeInvalidInput, fmt.Errorf("no ids to reorder"))
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if id == "" {
			return s.reject(OpReorder, label, CodeInvalidInput, fmt.Errorf("empty id"))
		}
		if seen[id] {
			return s.reject(OpReorder, label, CodeInvalidInput, fmt.Errorf("duplicate id %q", id))
		}
		seen[id] = true
	}
	if status != "" {
		if err := s.validatePartial(OpReorder, label, doc.Object{s.statusField: doc.String(status)}); err != nil {
			return err
		}
	}

	release, err := s.lanes.acquireAll(ctx, orderedIDs)
	if err != nil {
		return s.reject(OpReorder, label, CodeCanceled, err)
	}
	defer release()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return s.reject(OpReorder, label, CodeDisposed, ErrDisposed)
	}
	members := 0
	for _, e := range s.view.merged() {
		if e.StringField(s.statusField) == status {
			members++
		}
	}
	for _, id := range orderedIDs {
		e, ok := s.view.lookup(id)
		if !ok {
			s.mu.Unlock()
			return s.reject(OpReorder, id, CodeNotFound, fmt.Errorf("no %s entity %q", s.collection, id))
		}
		if got := e.StringField(s.statusField); got != status {
			s.mu.Unlock()
			return s.reject(OpReorder, id, CodeInvalidInput,
				fmt.Errorf("%q is in group %q, not %q", id, got, status))
		}
	}
	if members != len(orderedIDs) {
		s.mu.Unlock()
		return s.reject(OpReorder, label, CodeInvalidInput,
			fmt.Errorf("group %q has %d entities, got %d ids", status, members, len(orderedIDs)))
	}

	priors := make(map[string]prior, len(orderedIDs))
	transitions := make([]StatusChange, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		priors[id] = s.view.pin(id)
		s.view.applyOverlay(id, doc.Object{s.orderField: doc.Int(int64(i))})
		transitions = append(transitions, s.status.markSyncing(id))
	}
	s.publishLocked(Change{Kind: ChangeOptimistic, Op: OpReorder, IDs: orderedIDs, Transitions: transitions})

	errs := make([]error, len(orderedIDs))
	var wg sync.WaitGroup
	for i, id := range orderedIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := s.metrics.Dispatched(s.collection, OpReorder)
			errs[i] = s.adapter.Update(ctx, id, doc.Object{s.orderField: doc.Int(int64(i))})
			done(result(errs[i]))
		}()
	}
	wg.Wait()

	return s.resolve(OpReorder, orderedIDs, priors, errors.Join(errs...))
}

// Create validates fields, stamps them with the lab and writes a new
// entity. Creation is not optimistic: the entity appears with the next
// delivery. Returns the assigned id.
func (s *Store) Create(ctx context.Context, fields doc.Object) (string, error) {
	if err := s.precheck(OpCreate, ""); err != nil {
		return "", err
	}
	fields = fields.Clone()
	if fields == nil {
		fields = doc.Object{}
	}
	if lab, ok := fields[doc.FieldLabID]; ok && !doc.Equal(lab, doc.String(s.labID)) {
		return "", s.reject(OpCreate, "", CodeInvalidInput, fmt.Errorf("labId must be %q", s.labID))
	}
	fields[doc.FieldLabID] = doc.String(s.labID)

	if s.validator != nil {
		if err := s.validator.ValidateEntity(s.collection, fields); err != nil {
			return "", s.reject(OpCreate, "", CodeInvalidInput, err)
		}
	}

	done := s.metrics.Dispatched(s.collection, OpCreate)
	id, err := s.adapter.Create(ctx, fields)
	done(result(err))
	if err != nil {
		s.logger.Error("mutation failed",
			"op", OpCreate,
			"collection", s.collection,
			"error", err)
		s.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Op:      OpCreate,
			Message: FailureMessage(OpCreate),
		})
		return "", &MutationError{Op: OpCreate, Code: CodeRemoteFailure, Err: err}
	}
	s.logger.Debug("entity created", "collection", s.collection, "id", id)
	return id, nil
}

// mutateOne runs the optimistic protocol for one entity. A nil build
// means delete.
func (s *Store) mutateOne(ctx context.Context, op, id string, build buildFunc) error {
	if err := s.lanes.acquire(ctx, id); err != nil {
		return s.reject(op, id, CodeCanceled, err)
	}
	defer s.lanes.release(id)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return s.reject(op, id, CodeDisposed, ErrDisposed)
	}
	current, ok := s.view.lookup(id)
	if !ok {
		s.mu.Unlock()
		return s.reject(op, id, CodeNotFound, fmt.Errorf("no %s entity %q", s.collection, id))
	}

	var partial doc.Object
	if build != nil {
		p, err := build(current, s.view.merged())
		if err != nil {
			s.mu.Unlock()
			return s.reject(op, id, CodeInvalidInput, err)
		}
		partial = p
	}

	before := s.view.pin(id)
	if build == nil {
		s.view.tombstone(id)
	} else {
		s.view.applyOverlay(id, partial)
	}
	transition := s.status.markSyncing(id)
	s.publishLocked(Change{Kind: ChangeOptimistic, Op: op, IDs: []string{id}, Transitions: []StatusChange{transition}})

	done := s.metrics.Dispatched(s.collection, op)
	var err error
	if build == nil {
		err = s.adapter.Delete(ctx, id)
	} else {
		err = s.adapter.Update(ctx, id, partial)
	}
	done(result(err))

	return s.resolve(op, []string{id}, map[string]prior{id: before}, err)
}

// resolve settles or rolls back every id of a dispatched mutation.
func (s *Store) resolve(op string, ids []string, priors map[string]prior, err error) error {
	s.mu.Lock()
	transitions := make([]StatusChange, 0, len(ids))
	if err == nil {
		for _, id := range ids {
			s.view.settle(id)
			transitions = append(transitions, s.status.markSynced(id))
		}
		s.publishLocked(Change{Kind: ChangeConfirmed, Op: op, IDs: ids, Transitions: transitions})
		return nil
	}

	for _, id := range ids {
		s.view.revert(id, priors[id])
		transitions = append(transitions, s.status.markError(id))
	}
	s.publishLocked(Change{Kind: ChangeRollback, Op: op, IDs: ids, Transitions: transitions})

	label := strings.Join(ids, ",")
	s.metrics.RolledBack(s.collection, op, len(ids))
	s.logger.Error("mutation failed",
		"op", op,
		"id", label,
		"collection", s.collection,
		"error", err)
	s.notifier.Notify(notify.Notification{
		Level:   notify.LevelError,
		Op:      op,
		ID:      label,
		Message: FailureMessage(op),
	})
	return &MutationError{Op: op, ID: label, Code: CodeRemoteFailure, Err: err}
}

// publishLocked queues c, releases mu, records the outstanding gauge and
// flushes. Caller holds mu; it is released on return.
func (s *Store) publishLocked(c Change) {
	s.enqueueLocked(c)
	outstanding := len(s.status.outstanding)
	s.mu.Unlock()

	s.metrics.SetOutstanding(s.collection, outstanding)
	s.flush()
}

// precheck refuses mutations that must never be dispatched.
func (s *Store) precheck(op, id string) error {
	if s.Disposed() {
		return s.reject(op, id, CodeDisposed, ErrDisposed)
	}
	if s.labID == "" {
		s.notifier.Notify(notify.Notification{
			Level:   notify.LevelError,
			Op:      op,
			ID:      id,
			Message: MsgMissingLab,
		})
		return s.reject(op, id, CodeMissingLab, ErrMissingLab)
	}
	if id == "" && op != OpCreate && op != OpReorder {
		return s.reject(op, id, CodeInvalidInput, fmt.Errorf("empty id"))
	}
	return nil
}

// validatePartial runs the validator and refuses a change of lab.
func (s *Store) validatePartial(op, id string, partial doc.Object) error {
	if lab, ok := partial[doc.FieldLabID]; ok && !doc.Equal(lab, doc.String(s.labID)) {
		return s.reject(op, id, CodeInvalidInput, fmt.Errorf("labId must be %q", s.labID))
	}
	if s.validator == nil {
		return nil
	}
	if err := s.validator.ValidatePartial(s.collection, partial); err != nil {
		return s.reject(op, id, CodeInvalidInput, err)
	}
	return nil
}

// reject records a mutation refused before dispatch.
func (s *Store) reject(op, id string, code ErrorCode, err error) *MutationError {
	s.metrics.Rejected(s.collection, op)
	s.logger.Debug("mutation rejected",
		"op", op,
		"id", id,
		"collection", s.collection,
		"code", string(code),
		"error", err)
	return &MutationError{Op: op, ID: id, Code: code, Err: err}
}

func result(err error) string {
	if err != nil {
		return metrics.ResultError
	}
	return metrics.ResultOK
}
