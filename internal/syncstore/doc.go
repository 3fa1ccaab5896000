// Package syncstore keeps an optimistically updated view of one lab
// collection consistent with a remote document store.
//
// A Store holds three pieces of state:
//
//   - the confirmed snapshot, replaced by every subscription delivery
//   - an overlay of changes applied locally but not yet confirmed
//   - per-entity sync status (synced, syncing, error)
//
// Mutations are applied to the overlay and published before the remote
// write is dispatched. On failure the entity is restored to its
// pre-mutation value and marked error; there is no automatic retry.
// Mutations on the same id are serialized in issue order.
//
// Observers register with OnChange; every state change (delivery,
// optimistic apply, confirmation, rollback) is published as a Change in
// the order it happened.
package syncstore
