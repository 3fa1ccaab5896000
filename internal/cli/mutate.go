package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/syncstore"
)

// MutationOptions holds flags shared by the mutation commands.
type MutationOptions struct {
	*RootOptions
	Fail bool // reject every remote write
}

// MutationResult is the outcome of a successful mutation.
type MutationResult struct {
	Op         string       `json:"op"`
	Collection string       `json:"collection"`
	IDs        []string     `json:"ids"`
	Entities   []doc.Entity `json:"entities"`
	Overall    string       `json:"overall"`
}

// mutation runs against an open sync store and returns the ids it touched.
type mutation func(ctx context.Context, ss *syncstore.Store) ([]string, error)

func newMutationCommand(rootOpts *RootOptions, use, short, long string, args cobra.PositionalArgs,
	run func(opts *MutationOptions, cmd *cobra.Command, args []string) error) *cobra.Command {
	opts := &MutationOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts, cmd, args)
		},
	}
	cmd.Flags().BoolVar(&opts.Fail, "fail", false, "reject the remote write to see the rollback")
	return cmd
}

const mutationExitCodes = `
Exit codes:
  0 - The write was confirmed
  1 - The write was rejected and rolled back
  2 - The change was refused before dispatch (unknown id, invalid input, no lab)`

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts,
		"update <collection> <id> <key=value>...",
		"Update fields of a document",
		`Merge key=value pairs into a document. Values are JSON literals when
they parse as JSON (10, true, null, "text") and strings otherwise.

Examples:
  labsync update supplies sup-1 qty=10
  labsync update tasks t-1 name="Book scope" priority=high
`+mutationExitCodes,
		cobra.MinimumNArgs(3),
		func(opts *MutationOptions, cmd *cobra.Command, args []string) error {
			partial, err := parseAssignments(args[2:])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid fields", err)
			}
			return runMutation(opts, cmd, args[0], syncstore.OpUpdate,
				func(ctx context.Context, ss *syncstore.Store) ([]string, error) {
					return []string{args[1]}, ss.Update(ctx, args[1], partial)
				})
		})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts,
		"delete <collection> <id>",
		"Delete a document",
		`Delete a document. If the write fails the document comes back at its
previous position.
`+mutationExitCodes,
		cobra.ExactArgs(2),
		func(opts *MutationOptions, cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, args[0], syncstore.OpDelete,
				func(ctx context.Context, ss *syncstore.Store) ([]string, error) {
					return []string{args[1]}, ss.Delete(ctx, args[1])
				})
		})
}

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts,
		"move <collection> <id> <status>",
		"Move a document to another status column",
		`Set a document's status and place it last in the target column.

Example:
  labsync move tasks t-1 doing
`+mutationExitCodes,
		cobra.ExactArgs(3),
		func(opts *MutationOptions, cmd *cobra.Command, args []string) error {
			return runMutation(opts, cmd, args[0], syncstore.OpMove,
				func(ctx context.Context, ss *syncstore.Store) ([]string, error) {
					return []string{args[1]}, ss.Move(ctx, args[1], args[2])
				})
		})
}

// NewReorderCommand creates the reorder command.
func NewReorderCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts,
		"reorder <collection> <status> <id>...",
		"Reorder a status column",
		`Rewrite the order of every document in a status column. The ids must
list the whole column. If any write fails the whole column is restored.

Example:
  labsync reorder tasks todo t-3 t-1 t-2
`+mutationExitCodes,
		cobra.MinimumNArgs(3),
		func(opts *MutationOptions, cmd *cobra.Command, args []string) error {
			ids := args[2:]
			return runMutation(opts, cmd, args[0], syncstore.OpReorder,
				func(ctx context.Context, ss *syncstore.Store) ([]string, error) {
					return ids, ss.Reorder(ctx, args[1], ids)
				})
		})
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return newMutationCommand(rootOpts,
		"create <collection> <key=value>...",
		"Create a document",
		`Create a document in the configured lab. The new id is printed.

Example:
  labsync create supplies name="Pipette tips" qty=100 minQty=20
`+mutationExitCodes,
		cobra.MinimumNArgs(2),
		func(opts *MutationOptions, cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(args[1:])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid fields", err)
			}
			return runMutation(opts, cmd, args[0], syncstore.OpCreate,
				func(ctx context.Context, ss *syncstore.Store) ([]string, error) {
					id, err := ss.Create(ctx, fields)
					if id == "" {
						return nil, err
					}
					return []string{id}, err
				})
		})
}

// runMutation opens a sync store, applies fn and reports the outcome.
func runMutation(opts *MutationOptions, cmd *cobra.Command, collection, op string, fn mutation) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ss, err := s.syncStore(collection, opts.Fail)
	if err != nil {
		return err
	}
	defer ss.Dispose()

	ids, err := fn(cmd.Context(), ss)
	if err != nil {
		return s.out.MutationFailed(err, s.notes.All())
	}

	result := MutationResult{
		Op:         op,
		Collection: collection,
		IDs:        ids,
		Entities:   []doc.Entity{},
		Overall:    ss.OverallStatus().String(),
	}
	for _, id := range ids {
		if e, ok := ss.Get(id); ok {
			result.Entities = append(result.Entities, e)
		}
	}

	text := fmt.Sprintf("✓ %s %s %s (%s)\n", op, collection, strings.Join(ids, ","), result.Overall)
	if opts.Verbose && len(result.Entities) > 0 {
		rows, err := entitiesText(result.Entities)
		if err != nil {
			return err
		}
		text += rows
	}
	return s.out.Result(text, result)
}
