package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/querysql"
	"github.com/roach88/labsync/internal/remote"
)

// MutationRecord is one row of the mutation log.
type MutationRecord struct {
	ID         string
	Collection string
	Op         string
	DocID      string
	Payload    doc.Object
	Seq        int64
}

// Get returns one document.
// Returns an error wrapping remote.ErrNotFound if it does not exist.
func (c *Collection) Get(ctx context.Context, id string) (doc.Entity, error) {
	var body string
	err := c.store.db.QueryRowContext(ctx, `
		SELECT body FROM documents WHERE collection = ? AND id = ?
	`, c.name, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return doc.Entity{}, fmt.Errorf("get %s/%s: %w", c.name, id, remote.ErrNotFound)
	}
	if err != nil {
		return doc.Entity{}, fmt.Errorf("get %s/%s: %w", c.name, id, err)
	}
	return unmarshalBody(id, body)
}

// List returns the documents matching filter in stable order.
// Returns an empty slice (not nil) when nothing matches.
func (c *Collection) List(ctx context.Context, filter remote.Filter) ([]doc.Entity, error) {
	return c.store.query(ctx, c.name, filter)
}

// query runs a compiled filter and decodes the rows.
func (s *Store) query(ctx context.Context, collection string, filter remote.Filter) ([]doc.Entity, error) {
	query, args, err := querysql.Compile(collection, filter)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	entities := []doc.Entity{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", collection, err)
		}
		e, err := unmarshalBody(id, body)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: iterate: %w", collection, err)
	}
	return entities, nil
}

// Mutations returns the mutation log of a collection ordered by seq.
// Returns an empty slice (not nil) if nothing was written.
func (s *Store) Mutations(ctx context.Context, collection string) ([]MutationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection, op, doc_id, payload, seq
		FROM mutations
		WHERE collection = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query mutations: %w", err)
	}
	defer rows.Close()

	records := []MutationRecord{}
	for rows.Next() {
		var rec MutationRecord
		var payload string
		if err := rows.Scan(&rec.ID, &rec.Collection, &rec.Op, &rec.DocID, &payload, &rec.Seq); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		rec.Payload, err = doc.UnmarshalObject([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("unmarshal mutation payload %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mutations: %w", err)
	}
	return records, nil
}
