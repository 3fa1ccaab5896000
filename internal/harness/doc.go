// Package harness runs YAML scenarios against a sync store backed by an
// in-memory SQLite document store, and checks the optimistic view, the
// sync status and the change trace after every step.
//
// # Scenario Format
//
//	name: stock_check_retry
//	description: "A failed stock save rolls back and succeeds on retry"
//	collection: supplies
//	lab_id: lab-1
//	validate: true
//	seed:
//	  - { id: sup-1, labId: lab-1, name: Gloves, qty: 0, minQty: 5 }
//	steps:
//	  - op: update
//	    id: sup-1
//	    fields: { qty: 10 }
//	    fail: true
//	    expect:
//	      error: REMOTE_FAILURE
//	      overall: error
//	      status: { sup-1: error }
//	      view: [{ id: sup-1, qty: 0 }]
//	      notifications: ["Failed to update. Please try again."]
//	assertions:
//	  - type: transitions
//	    id: sup-1
//	    expect: ["synced->syncing", "syncing->error"]
//	  - type: remote_state
//	    id: sup-1
//	    fields: { qty: 0 }
//
// # Steps
//
//   - update, delete, move, reorder, create: sync store mutations
//   - deliver: another client writes fields straight to the database
//
// fail makes the remote reject every write of the step; fail_ids rejects
// only writes to the listed ids.
//
// # Assertion Types
//
//   - transitions: the exact status transitions of one id
//   - trace_count: number of trace events of a kind
//   - trace_order: event kinds appear in this order (not necessarily adjacent)
//   - remote_state: persisted fields of one document (subset match)
//   - absent: the document is not persisted
//
// # Trace
//
// Every step adds a "step" event, every published change an event of its
// kind (optimistic, delivery, confirmed, rollback), and every step ends
// with a "result" event. RunWithGolden compares the trace, one canonical
// JSON object per line, with testdata/golden/<name>.golden.
package harness
