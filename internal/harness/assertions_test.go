package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/store"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Event: EventStep, Op: OpReorder, IDs: []string{"b", "a"}},
		{Seq: 2, Event: "optimistic", Transitions: []string{"b:synced->syncing", "a:synced->syncing"}},
		{Seq: 3, Event: "delivery"},
		{Seq: 4, Event: "rollback", Transitions: []string{"b:syncing->error", "a:syncing->error"}},
		{Seq: 5, Event: EventResult, Code: "REMOTE_FAILURE"},
	}
}

func TestTransitionsOf(t *testing.T) {
	trace := sampleTrace()
	trace = append(trace, TraceEvent{Seq: 6, Event: "optimistic", Transitions: []string{"ab:synced->syncing"}})

	assert.Equal(t, []string{"synced->syncing", "syncing->error"}, transitionsOf(trace, "a"))
	assert.Equal(t, []string{"synced->syncing"}, transitionsOf(trace, "ab"), "prefix match includes the separator")
	assert.Empty(t, transitionsOf(trace, "c"))
}

func TestEvaluateAssertions_TraceOnly(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "transitions match",
			assertion: Assertion{Type: AssertTransitions, ID: "a", Expect: []string{"synced->syncing", "syncing->error"}},
		},
		{
			name:      "transitions differ",
			assertion: Assertion{Type: AssertTransitions, ID: "a", Expect: []string{"synced->syncing"}},
			wantErr:   "Expected: a: [synced->syncing]",
		},
		{
			name:      "no transitions expected",
			assertion: Assertion{Type: AssertTransitions, ID: "c"},
		},
		{
			name:      "count matches",
			assertion: Assertion{Type: AssertTraceCount, Kind: "rollback", Count: 1},
		},
		{
			name:      "count differs",
			assertion: Assertion{Type: AssertTraceCount, Kind: "delivery", Count: 2},
			wantErr:   "Actual: 1 delivery events",
		},
		{
			name:      "order with gaps",
			assertion: Assertion{Type: AssertTraceOrder, Kinds: []string{EventStep, "rollback", EventResult}},
		},
		{
			name:      "order violated",
			assertion: Assertion{Type: AssertTraceOrder, Kinds: []string{"rollback", "optimistic"}},
			wantErr:   "no optimistic after [rollback]",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "eventually"},
			wantErr:   `unknown assertion type "eventually"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewResult()
			result.Trace = sampleTrace()

			failures := EvaluateAssertions(result, []Assertion{tt.assertion}, nil)
			if tt.wantErr == "" {
				assert.Empty(t, failures)
				return
			}
			require.Len(t, failures, 1)
			assert.Contains(t, failures[0], "assertions[0]: ")
			assert.Contains(t, failures[0], tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 rollback events",
		Actual:   "0 rollback events",
		Trace:    sampleTrace()[3:],
	}

	want := "Assertion failed: trace_count\n" +
		"  Expected: 1 rollback events\n" +
		"  Actual: 0 rollback events\n" +
		"\nFull trace:\n" +
		"  [4] rollback  [] [b:syncing->error a:syncing->error]\n" +
		"  [5] result  [] REMOTE_FAILURE\n"
	assert.Equal(t, want, err.Error())
}

func TestEvaluateAssertions_Database(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Seed(ctx, "supplies", []doc.Entity{
		doc.NewEntity("sup-1", doc.Object{"labId": doc.String("lab-1"), "qty": doc.Int(4)}),
	})
	require.NoError(t, err)

	actx := &AssertionContext{Ctx: ctx, Store: db, Collection: "supplies"}
	failures := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertRemoteState, ID: "sup-1", Fields: map[string]any{"qty": 4, "labId": "lab-1"}},
		{Type: AssertAbsent, ID: "sup-2"},
		{Type: AssertRemoteState, ID: "sup-2", Fields: map[string]any{"qty": 4}},
		{Type: AssertAbsent, ID: "sup-1"},
	}, actx)

	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertions[2]: ")
	assert.Contains(t, failures[0], "Actual: not found")
	assert.Contains(t, failures[1], "assertions[3]: ")
	assert.Contains(t, failures[1], "Actual: document exists")
}

func TestMatchFields(t *testing.T) {
	fields := doc.Object{
		"id":    doc.String("sup-1"),
		"name":  doc.String("Gloves"),
		"qty":   doc.Int(4),
		"notes": doc.Null{},
	}

	tests := []struct {
		name     string
		expected map[string]any
		want     string
	}{
		{"subset", map[string]any{"qty": 4}, ""},
		{"id ignored", map[string]any{"id": "other", "name": "Gloves"}, ""},
		{"null may be missing", map[string]any{"vendor": nil}, ""},
		{"null matches null", map[string]any{"notes": nil}, ""},
		{"missing", map[string]any{"vendor": "Acme"}, `field "vendor" missing`},
		{"different", map[string]any{"qty": 5}, `field "qty" = 4, want 5`},
		{"first mismatch by key", map[string]any{"qty": 5, "name": "Tips"}, `field "name" = Gloves, want Tips`},
		{"float rejected", map[string]any{"qty": 4.5}, `field "qty": floats are forbidden`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchFields(fields, tt.expected)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}
