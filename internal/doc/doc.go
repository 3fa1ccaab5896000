// Package doc provides the document value model shared by every labsync
// package.
//
// Entities in a lab collection (tasks, work packages, supplies, ...) are
// flat JSON documents. This package constrains their values to a small
// sealed set of types so that documents round-trip through SQLite, YAML
// scenarios and the websocket feed without loss.
//
// Key design constraints:
//   - NO float types anywhere - quantities are integer units
//   - Object keys iterate in RFC 8785 (UTF-16) order
//   - Content hashes use canonical JSON with domain separation
//
// doc imports nothing internal; all other internal packages import doc.
package doc
