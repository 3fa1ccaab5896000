package harness

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
	"github.com/roach88/labsync/internal/store"
)

// AssertionContext gives assertions access to the database.
type AssertionContext struct {
	Ctx        context.Context
	Store      *store.Store
	Collection string
}

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v", event.Seq, event.Event, event.Op, event.IDs)
			if len(event.Transitions) > 0 {
				fmt.Fprintf(&buf, " %v", event.Transitions)
			}
			if event.Code != "" {
				fmt.Fprintf(&buf, " %s", event.Code)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages, empty if all passed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTransitions:
			err = assertTransitions(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertRemoteState:
			err = assertRemoteState(actx, a)
		case AssertAbsent:
			err = assertAbsent(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// transitionsOf returns the "from->to" transitions of id, in trace order.
func transitionsOf(trace []TraceEvent, id string) []string {
	prefix := id + ":"
	out := []string{}
	for _, event := range trace {
		for _, t := range event.Transitions {
			if rest, ok := strings.CutPrefix(t, prefix); ok {
				out = append(out, rest)
			}
		}
	}
	return out
}

func assertTransitions(trace []TraceEvent, a Assertion) error {
	got := transitionsOf(trace, a.ID)
	want := a.Expect
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertTransitions,
			Expected: fmt.Sprintf("%s: %v", a.ID, want),
			Actual:   fmt.Sprintf("%s: %v", a.ID, got),
			Trace:    trace,
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Event == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d %s events", count, a.Kind),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the kinds appear as a subsequence of the
// trace. Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Kinds) && event.Event == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("events in order: %v", a.Kinds),
			Actual:   fmt.Sprintf("no %s after %v", a.Kinds[next], a.Kinds[:next]),
			Trace:    trace,
		}
	}
	return nil
}

func assertRemoteState(actx *AssertionContext, a Assertion) error {
	e, err := actx.Store.Collection(actx.Collection).Get(actx.Ctx, a.ID)
	if errors.Is(err, remote.ErrNotFound) {
		return &AssertionError{
			Type:     AssertRemoteState,
			Expected: fmt.Sprintf("document %s", a.ID),
			Actual:   "not found",
		}
	}
	if err != nil {
		return err
	}
	if msg := matchFields(e.Fields, a.Fields); msg != "" {
		return &AssertionError{
			Type:     AssertRemoteState,
			Expected: fmt.Sprintf("document %s with %v", a.ID, a.Fields),
			Actual:   msg,
		}
	}
	return nil
}

func assertAbsent(actx *AssertionContext, a Assertion) error {
	_, err := actx.Store.Collection(actx.Collection).Get(actx.Ctx, a.ID)
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &AssertionError{
		Type:     AssertAbsent,
		Expected: fmt.Sprintf("no document %s", a.ID),
		Actual:   "document exists",
	}
}

// matchFields checks fields against expected using subset semantics: only
// the keys of expected are compared, and "id" is skipped. Returns a
// description of the first mismatch, or "".
func matchFields(fields doc.Object, expected map[string]any) string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		if k != doc.FieldID {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		want, err := doc.FromAny(expected[k])
		if err != nil {
			return fmt.Sprintf("field %q: %v", k, err)
		}
		got, ok := fields[k]
		if !ok {
			if _, isNull := want.(doc.Null); isNull {
				continue
			}
			return fmt.Sprintf("field %q missing", k)
		}
		if !doc.Equal(got, want) {
			return fmt.Sprintf("field %q = %v, want %v", k, doc.ToAny(got), doc.ToAny(want))
		}
	}
	return ""
}
