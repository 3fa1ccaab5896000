package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/schema"
)

// SeedResult is the outcome of a seed command.
type SeedResult struct {
	Collection string `json:"collection"`
	Read       int    `json:"read"`
	Inserted   int    `json:"inserted"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <collection> <file>",
		Short: "Load documents into a collection",
		Long: `Load a YAML or JSON list of documents into a collection.

Documents whose id already exists are skipped, so seeding twice is safe.
With validation on (the default), every document is checked against the
collection schema first and nothing is written if one fails.

Examples:
  labsync seed supplies ./supplies.yaml --db ./lab.db
  labsync seed tasks ./tasks.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runSeed(opts *RootOptions, collection, path string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.checkCollection(collection); err != nil {
		return err
	}

	entities, err := LoadEntities(path)
	if err != nil {
		return loadFailed(s.out, err)
	}
	if s.schema != nil {
		if err := validateEntities(s.schema, collection, entities); err != nil {
			_ = s.out.Error(ErrCodeSchema, err.Error(), nil)
			return WrapExitError(ExitCommandError, "validation failed", err)
		}
	}

	n, err := s.db.Seed(context.Background(), collection, entities)
	if err != nil {
		_ = s.out.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to seed", err)
	}
	s.logger.Debug("seeded", "collection", collection, "read", len(entities), "inserted", n)

	result := SeedResult{Collection: collection, Read: len(entities), Inserted: n}
	return s.out.Result(fmt.Sprintf("Seeded %d of %d documents into %s\n", n, len(entities), collection), result)
}

// validateEntities checks every document and reports the first failure.
func validateEntities(v *schema.Validator, collection string, entities []doc.Entity) error {
	for i, e := range entities {
		fields := e.Fields.Clone()
		fields[doc.FieldID] = doc.String(e.ID)
		if err := v.ValidateEntity(collection, fields); err != nil {
			return fmt.Errorf("[%d] %s: %w", i, e.ID, err)
		}
	}
	return nil
}

// loadFailed reports a LoadError and returns the matching ExitError.
func loadFailed(out *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var le *LoadError
	if errors.As(err, &le) {
		code = le.Code
	}
	_ = out.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load documents", err)
}
