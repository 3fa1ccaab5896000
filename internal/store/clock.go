package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
)

// seqClock stamps every document write and mutation log record with a
// database-wide sequence number. Seeds also use the stamp as the initial
// position, so a fresh collection keeps insertion order.
//
// Thread-safety: safe for concurrent use.
type seqClock struct {
	seq atomic.Int64
}

// resumeClock continues from the highest seq persisted in either table, so
// stamps stay increasing across reopen.
func resumeClock(ctx context.Context, db *sql.DB) (*seqClock, error) {
	var last int64
	err := db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM documents), 0),
			COALESCE((SELECT MAX(seq) FROM mutations), 0)
		)
	`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("read last seq: %w", err)
	}
	c := &seqClock{}
	c.seq.Store(last)
	return c, nil
}

// stamp issues the next sequence number.
func (c *seqClock) stamp() int64 {
	return c.seq.Add(1)
}

// last is the most recent stamp, or the resume point if none was issued.
func (c *seqClock) last() int64 {
	return c.seq.Load()
}
