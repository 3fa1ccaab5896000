package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/remote"
	"github.com/roach88/labsync/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	ID    string // optional - filter to one document
	Limit int    // keep the last N entries; 0 keeps all
}

// HistoryEntry is one confirmed write.
type HistoryEntry struct {
	Seq     int64      `json:"seq"`
	ID      string     `json:"id"`
	Op      string     `json:"op"`
	DocID   string     `json:"doc_id"`
	Payload doc.Object `json:"payload,omitempty"`
}

// HistoryResult holds the history output.
type HistoryResult struct {
	Collection string         `json:"collection"`
	Entries    []HistoryEntry `json:"entries"`
	Stats      HistoryStats   `json:"stats"`
}

// HistoryStats counts entries by operation.
type HistoryStats struct {
	Total   int `json:"total"`
	Updates int `json:"updates"`
	Creates int `json:"creates"`
	Deletes int `json:"deletes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <collection>",
		Short: "Show the write log of a collection",
		Long: `Show every write the database accepted for a collection, in order.
Rejected writes never reach the database and are not listed.

Examples:
  labsync history supplies
  labsync history supplies --id sup-1 --limit 5
  labsync history tasks --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "filter to one document id")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the last N entries")

	return cmd
}

func runHistory(opts *HistoryOptions, collection string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	records, err := s.db.Mutations(context.Background(), collection)
	if err != nil {
		_ = s.out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read history", err)
	}

	result := buildHistory(collection, records, opts.ID, opts.Limit)
	return s.out.Result(historyText(result), result)
}

// buildHistory filters records to one document and keeps the last limit.
func buildHistory(collection string, records []store.MutationRecord, id string, limit int) HistoryResult {
	entries := []HistoryEntry{}
	for _, rec := range records {
		if id != "" && rec.DocID != id {
			continue
		}
		entries = append(entries, HistoryEntry{
			Seq:     rec.Seq,
			ID:      rec.ID,
			Op:      rec.Op,
			DocID:   rec.DocID,
			Payload: rec.Payload,
		})
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	stats := HistoryStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Op {
		case remote.OpUpdate:
			stats.Updates++
		case remote.OpCreate:
			stats.Creates++
		case remote.OpDelete:
			stats.Deletes++
		}
	}
	return HistoryResult{Collection: collection, Entries: entries, Stats: stats}
}

func historyText(r HistoryResult) string {
	if len(r.Entries) == 0 {
		return fmt.Sprintf("No writes recorded for %s\n", r.Collection)
	}
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tOP\tDOC\tPAYLOAD")
	for _, e := range r.Entries {
		payload := "-"
		if len(e.Payload) > 0 {
			if b, err := doc.MarshalCanonical(e.Payload); err == nil {
				payload = string(b)
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Seq, e.Op, e.DocID, payload)
	}
	_ = w.Flush()
	fmt.Fprintf(&buf, "\n%d write(s): %d update, %d create, %d delete\n",
		r.Stats.Total, r.Stats.Updates, r.Stats.Creates, r.Stats.Deletes)
	return buf.String()
}
