package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/remote"
	"github.com/roach88/labsync/internal/schema"
	"github.com/roach88/labsync/internal/store"
	"github.com/roach88/labsync/internal/syncstore"
)

// Harness executes one scenario. Create it with Run.
type Harness struct {
	scenario *Scenario
	db       *store.Store
	remote   *remote.Faulty
	sync     *syncstore.Store
	notes    *notify.Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	seq    int64
	result *Result
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database; created documents get
// ids new-1, new-2, ... so traces are reproducible.
//
// Execution flow:
// 1. Create the database and seed the collection
// 2. Open a sync store over it, behind a fault-injecting adapter
// 3. Execute steps, checking each step's expectations
// 4. Evaluate assertions against the trace and the database
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := store.Open(":memory:",
		store.WithLogger(logger),
		store.WithIDGenerator(doc.NewSequenceGenerator("new")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	seed, err := seedEntities(scenario.Seed)
	if err != nil {
		return nil, err
	}
	if _, err := db.Seed(ctx, scenario.Collection, seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	h := &Harness{
		scenario: scenario,
		db:       db,
		remote:   remote.NewFaulty(db.Collection(scenario.Collection)),
		notes:    &notify.Recorder{},
		logger:   logger,
		result:   NewResult(),
	}

	opts := []syncstore.Option{
		syncstore.WithLab(scenario.LabID),
		syncstore.WithLogger(logger),
		syncstore.WithNotifier(h.notes),
	}
	if scenario.Validate {
		v, err := schema.New()
		if err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
		opts = append(opts, syncstore.WithValidator(v))
	}
	h.sync, err = syncstore.New(scenario.Collection, h.remote, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync store: %w", err)
	}
	defer h.sync.Dispose()
	h.sync.OnChange(h.record)

	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: db, Collection: scenario.Collection}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func seedEntities(seed []map[string]any) ([]doc.Entity, error) {
	out := make([]doc.Entity, 0, len(seed))
	for i, raw := range seed {
		fields, err := doc.ObjectFromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("seed[%d]: %w", i, err)
		}
		id, _ := raw[doc.FieldID].(string)
		out = append(out, doc.NewEntity(id, fields))
	}
	return out, nil
}

// record is the sync store listener.
func (h *Harness) record(c syncstore.Change) {
	transitions := make([]string, len(c.Transitions))
	for i, t := range c.Transitions {
		transitions[i] = fmt.Sprintf("%s:%s->%s", t.ID, t.From, t.To)
	}
	h.trace(TraceEvent{
		Event:       string(c.Kind),
		Op:          c.Op,
		IDs:         c.IDs,
		Transitions: transitions,
		Overall:     c.Overall.String(),
	})
}

func (h *Harness) trace(e TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	e.Seq = h.seq
	h.result.Trace = append(h.result.Trace, e)
}

// executeStep runs one step and checks its expectations. The returned
// error aborts the run; expectation failures are recorded in the result.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) error {
	fields, err := doc.ObjectFromAny(step.Fields)
	if err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	if step.Fields == nil {
		fields = nil
	}

	ids := step.IDs
	if step.ID != "" {
		ids = []string{step.ID}
	}
	h.trace(TraceEvent{Event: EventStep, Op: step.Op, IDs: ids})

	h.installFaults(step)
	notesBefore := len(h.notes.All())

	var opErr error
	switch step.Op {
	case OpUpdate:
		opErr = h.sync.Update(ctx, step.ID, fields)
	case OpDelete:
		opErr = h.sync.Delete(ctx, step.ID)
	case OpMove:
		opErr = h.sync.Move(ctx, step.ID, step.Status)
	case OpReorder:
		opErr = h.sync.Reorder(ctx, step.Status, step.IDs)
	case OpCreate:
		var id string
		id, opErr = h.sync.Create(ctx, fields)
		if id != "" {
			ids = []string{id}
		}
	case OpDeliver:
		if err := h.db.Collection(h.scenario.Collection).Update(ctx, step.ID, fields); err != nil {
			return fmt.Errorf("deliver: %w", err)
		}
	}
	h.remote.Reset()

	code := string(syncstore.CodeOf(opErr))
	if opErr != nil && code == "" {
		return opErr
	}
	h.trace(TraceEvent{Event: EventResult, Op: step.Op, IDs: ids, Code: code})

	h.logger.Debug("step completed", "step", index, "op", step.Op, "code", code)

	label := fmt.Sprintf("steps[%d] %s", index, step.Op)
	if step.Expect == nil {
		if opErr != nil && !step.Fail && len(step.FailIDs) == 0 {
			h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, opErr))
		}
		return nil
	}
	h.checkExpect(label, step.Expect, opErr, notesBefore)
	return nil
}

// installFaults makes the remote reject the step's writes.
func (h *Harness) installFaults(step Step) {
	op := remote.OpUpdate
	switch step.Op {
	case OpDelete:
		op = remote.OpDelete
	case OpCreate:
		op = remote.OpCreate
	}
	if step.Fail {
		h.remote.Fail(remote.FaultRule{Op: op})
	}
	for _, id := range step.FailIDs {
		h.remote.Fail(remote.FaultRule{Op: op, ID: id})
	}
}

func (h *Harness) checkExpect(label string, want *Expect, opErr error, notesBefore int) {
	got := string(syncstore.CodeOf(opErr))
	switch {
	case want.Error == "" && opErr != nil:
		h.result.AddError(fmt.Sprintf("%s: unexpected error: %v", label, opErr))
	case want.Error != got:
		h.result.AddError(fmt.Sprintf("%s: error code = %q, want %q", label, got, want.Error))
	}

	if want.Overall != "" {
		if overall := h.sync.OverallStatus().String(); overall != want.Overall {
			h.result.AddError(fmt.Sprintf("%s: overall = %s, want %s", label, overall, want.Overall))
		}
	}

	ids := make([]string, 0, len(want.Status))
	for id := range want.Status {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if status := h.sync.StatusFor(id).String(); status != want.Status[id] {
			h.result.AddError(fmt.Sprintf("%s: status of %s = %s, want %s", label, id, status, want.Status[id]))
		}
	}

	for i, expected := range want.View {
		id, _ := expected[doc.FieldID].(string)
		e, ok := h.sync.Get(id)
		if !ok {
			h.result.AddError(fmt.Sprintf("%s: view[%d]: %q not in merged view", label, i, id))
			continue
		}
		if msg := matchFields(e.Fields, expected); msg != "" {
			h.result.AddError(fmt.Sprintf("%s: view[%d] %s: %s", label, i, id, msg))
		}
	}

	for _, id := range want.Absent {
		if _, ok := h.sync.Get(id); ok {
			h.result.AddError(fmt.Sprintf("%s: %q should not be in merged view", label, id))
		}
	}

	if want.Notifications != nil {
		gotNotes := h.notes.Messages()[notesBefore:]
		if !slices.Equal(gotNotes, want.Notifications) {
			h.result.AddError(fmt.Sprintf("%s: notifications = %q, want %q", label, gotNotes, want.Notifications))
		}
	}
}
