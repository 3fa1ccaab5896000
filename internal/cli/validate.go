package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/config"
	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/schema"
)

// DocumentError is one document that failed validation.
type DocumentError struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool            `json:"valid"`
	Documents int             `json:"documents"`
	Errors    []DocumentError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <collection> <file>",
		Short: "Check documents against a collection schema",
		Long: `Check a YAML or JSON list of documents against the collection schema
without opening the database. Every document is checked and every
failure is reported.

Exit codes:
  0 - All documents are valid
  1 - One or more documents are invalid
  2 - Command error (unknown collection, unreadable file, etc.)`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, collection, path string, cmd *cobra.Command) error {
	cfg, err := opts.settings()
	if err != nil {
		return err
	}
	formatter := formatterFor(cfg, opts, cmd)

	v, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schemas", err)
	}
	if !v.Knows(collection) {
		_ = formatter.Error(ErrCodeSchema, fmt.Sprintf("no schema for collection %q", collection), v.Collections())
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown collection %q", collection))
	}

	entities, err := LoadEntities(path)
	if err != nil {
		return loadFailed(formatter, err)
	}
	formatter.VerboseLog("Validating %d document(s) against %s", len(entities), collection)

	result := ValidationResult{Valid: true, Documents: len(entities)}
	for i, e := range entities {
		fields := e.Fields.Clone()
		fields[doc.FieldID] = doc.String(e.ID)
		err := v.ValidateEntity(collection, fields)
		if err == nil {
			continue
		}
		result.Valid = false
		de := DocumentError{Index: i, ID: e.ID, Code: ErrCodeSchema, Message: err.Error()}
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			de.Field = ve.Field
			de.Code = ve.Code
			de.Message = ve.Message
		}
		result.Errors = append(result.Errors, de)
	}

	if err := formatter.Result(validationText(result), result); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d document(s) invalid", len(result.Errors)))
	}
	return nil
}

func validationText(r ValidationResult) string {
	if r.Valid {
		return fmt.Sprintf("✓ %d document(s) valid\n", r.Documents)
	}
	text := ""
	for _, e := range r.Errors {
		where := e.ID
		if e.Field != "" {
			where += "." + e.Field
		}
		text += fmt.Sprintf("✗ [%d] %s: %s (%s)\n", e.Index, where, e.Message, e.Code)
	}
	return text + fmt.Sprintf("%d of %d document(s) invalid\n", len(r.Errors), r.Documents)
}

// formatterFor builds a formatter for commands that do not open a session.
func formatterFor(cfg config.Config, opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    cfg.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
