package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
)

// ErrExists is returned by Create when the requested id is already taken.
var ErrExists = errors.New("document already exists")

// Collection is the remote.Adapter for one collection of a Store.
type Collection struct {
	store *Store
	name  string
}

var _ remote.Adapter = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Update merges partial into the stored document atomically.
// Returns an error wrapping remote.ErrNotFound if the document is missing.
// The "id" key of a partial is ignored.
func (c *Collection) Update(ctx context.Context, id string, partial doc.Object) error {
	seq := c.store.clock.stamp()

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s/%s: begin tx: %w", c.name, id, err)
	}
	defer tx.Rollback() // No-op if committed

	var body string
	err = tx.QueryRowContext(ctx, `
		SELECT body FROM documents WHERE collection = ? AND id = ?
	`, c.name, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s/%s: %w", c.name, id, remote.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s/%s: select: %w", c.name, id, err)
	}

	current, err := unmarshalBody(id, body)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}
	merged := doc.Merge(current, partial)

	newBody, err := marshalBody(merged.Fields)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE documents SET body = ?, seq = ? WHERE collection = ? AND id = ?
	`, newBody, seq, c.name, id); err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}

	if err := appendMutation(ctx, tx, c.name, remote.OpUpdate, id, partial, seq); err != nil {
		return fmt.Errorf("update %s/%s: %w", c.name, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s/%s: commit: %w", c.name, id, err)
	}

	c.store.notify(c.name)
	return nil
}

// Create inserts a new document and returns its id. A string "id" field is
// used as the id when present; otherwise the store's IDGenerator assigns one.
func (c *Collection) Create(ctx context.Context, fields doc.Object) (string, error) {
	id := ""
	if s, ok := fields[doc.FieldID].(doc.String); ok {
		id = string(s)
	}
	if id == "" {
		id = c.store.ids.Generate()
	}

	seq := c.store.clock.stamp()
	body, err := marshalBody(fields)
	if err != nil {
		return "", fmt.Errorf("create %s/%s: %w", c.name, id, err)
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create %s/%s: begin tx: %w", c.name, id, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, position, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO NOTHING
	`, c.name, id, body, seq, seq)
	if err != nil {
		return "", fmt.Errorf("create %s/%s: insert: %w", c.name, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("create %s/%s: rows affected: %w", c.name, id, err)
	}
	if n == 0 {
		return "", fmt.Errorf("create %s/%s: %w", c.name, id, ErrExists)
	}

	if err := appendMutation(ctx, tx, c.name, remote.OpCreate, id, fields, seq); err != nil {
		return "", fmt.Errorf("create %s/%s: %w", c.name, id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create %s/%s: commit: %w", c.name, id, err)
	}

	c.store.notify(c.name)
	return id, nil
}

// Delete removes a document.
// Returns an error wrapping remote.ErrNotFound if the document is missing.
func (c *Collection) Delete(ctx context.Context, id string) error {
	seq := c.store.clock.stamp()

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s/%s: begin tx: %w", c.name, id, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, c.name, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: rows affected: %w", c.name, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, remote.ErrNotFound)
	}

	if err := appendMutation(ctx, tx, c.name, remote.OpDelete, id, nil, seq); err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.name, id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete %s/%s: commit: %w", c.name, id, err)
	}

	c.store.notify(c.name)
	return nil
}

// Seed bulk-inserts fixture documents in the given order.
// Uses ON CONFLICT DO NOTHING for idempotency - existing ids are left
// untouched. Seeding is not recorded in the mutation log.
// Returns the number of documents actually inserted.
func (s *Store) Seed(ctx context.Context, collection string, entities []doc.Entity) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("seed %s: begin tx: %w", collection, err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, e := range entities {
		if e.ID == "" {
			return 0, fmt.Errorf("seed %s: entity without id", collection)
		}
		body, err := marshalBody(e.Fields)
		if err != nil {
			return 0, fmt.Errorf("seed %s/%s: %w", collection, e.ID, err)
		}
		seq := s.clock.stamp()
		result, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body, position, seq)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(collection, id) DO NOTHING
		`, collection, e.ID, body, seq, seq)
		if err != nil {
			return 0, fmt.Errorf("seed %s/%s: %w", collection, e.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("seed %s/%s: rows affected: %w", collection, e.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed %s: commit: %w", collection, err)
	}

	if inserted > 0 {
		s.notify(collection)
	}
	return inserted, nil
}

// appendMutation writes one record to the mutation log inside tx.
func appendMutation(ctx context.Context, tx *sql.Tx, collection, op, docID string, payload doc.Object, seq int64) error {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	id, err := doc.MutationID(collection, op, docID, payload, seq)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mutations (id, collection, op, doc_id, payload, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, collection, op, docID, payloadJSON, seq); err != nil {
		return fmt.Errorf("append mutation: %w", err)
	}
	return nil
}
