package harness

import (
	"github.com/roach88/labsync/internal/doc"
)

// Trace event names besides the change kinds.
const (
	EventStep   = "step"
	EventResult = "result"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Seq int64 `json:"seq"`
	// Event is "step", "result", or the kind of a published change.
	Event string   `json:"event"`
	Op    string   `json:"op,omitempty"`
	IDs   []string `json:"ids,omitempty"`
	// Transitions are "id:from->to".
	Transitions []string `json:"transitions,omitempty"`
	Overall     string   `json:"overall,omitempty"`
	// Code is the error code of a failed step.
	Code string `json:"code,omitempty"`
}

// value converts the event for canonical serialization. Empty fields are
// omitted.
func (e TraceEvent) value() doc.Object {
	obj := doc.Object{
		"seq":   doc.Int(e.Seq),
		"event": doc.String(e.Event),
	}
	if e.Op != "" {
		obj["op"] = doc.String(e.Op)
	}
	if len(e.IDs) > 0 {
		obj["ids"] = stringArray(e.IDs)
	}
	if len(e.Transitions) > 0 {
		obj["transitions"] = stringArray(e.Transitions)
	}
	if e.Overall != "" {
		obj["overall"] = doc.String(e.Overall)
	}
	if e.Code != "" {
		obj["code"] = doc.String(e.Code)
	}
	return obj
}

func stringArray(ss []string) doc.Array {
	arr := make(doc.Array, len(ss))
	for i, s := range ss {
		arr[i] = doc.String(s)
	}
	return arr
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps, published changes and step results in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes every failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
