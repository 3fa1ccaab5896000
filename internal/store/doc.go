// Package store provides a SQLite-backed document store for lab
// collections.
//
// A Store holds every collection in one database and hands out a Collection
// per name. Collection implements remote.Adapter, so the sync layer talks to
// it exactly as it would to a hosted document database:
//   - Documents: one JSON body per (collection, id)
//   - Mutations: append-only log of every accepted write
//   - Subscriptions: full filtered snapshots delivered after each write
//
// # Critical Patterns
//
// Logical time:
//   - Every write is stamped with seq from a monotonic Clock, NEVER a timestamp
//   - The clock resumes from the highest persisted seq on Open
//
// Deterministic results:
//   - Document queries order by position ASC, id ASC COLLATE BINARY
//   - Bodies are stored as canonical JSON (internal/doc)
//
// Delivery ordering:
//   - A subscription never receives two deliveries concurrently
//   - Each delivery re-queries the database, so it reflects every write
//     committed before it started
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
