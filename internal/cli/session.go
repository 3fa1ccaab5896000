package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/config"
	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/remote"
	"github.com/roach88/labsync/internal/schema"
	"github.com/roach88/labsync/internal/store"
	"github.com/roach88/labsync/internal/syncstore"
)

// session is what a command works with once flags and config are resolved.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	out    *OutputFormatter
	db     *store.Store
	notes  *notify.Recorder
	schema *schema.Validator
}

// openSession resolves settings and opens the database.
// Callers must Close the session.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := opts.settings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	s := &session{
		cfg:    cfg,
		logger: logger,
		out: &OutputFormatter{
			Format:    cfg.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		notes: &notify.Recorder{},
	}

	if cfg.Validate {
		s.schema, err = schema.New()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load schemas", err)
		}
	}

	s.out.VerboseLog("Opening database %s", cfg.DB)
	s.db, err = store.Open(cfg.DB, store.WithLogger(logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, nil
}

// Close closes the database.
func (s *session) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("close database", "error", err)
	}
}

// checkCollection refuses collections without a schema when validation
// is on.
func (s *session) checkCollection(name string) error {
	if s.schema != nil && !s.schema.Knows(name) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("unknown collection %q (known: %v)", name, s.schema.Collections()))
	}
	return nil
}

// syncStore opens a sync store over a collection. With fail set every
// write is rejected, which exercises the rollback path. extra options
// apply last. Callers must Dispose the store.
func (s *session) syncStore(collection string, fail bool, extra ...syncstore.Option) (*syncstore.Store, error) {
	if err := s.checkCollection(collection); err != nil {
		return nil, err
	}

	var adapter remote.Adapter = s.db.Collection(collection)
	if fail {
		faulty := remote.NewFaulty(adapter)
		for _, op := range []string{remote.OpUpdate, remote.OpCreate, remote.OpDelete} {
			faulty.Fail(remote.FaultRule{Op: op})
		}
		adapter = faulty
	}

	opts := []syncstore.Option{
		syncstore.WithLab(s.cfg.Lab),
		syncstore.WithLogger(s.logger),
		syncstore.WithNotifier(s.notes),
	}
	if s.schema != nil {
		opts = append(opts, syncstore.WithValidator(s.schema))
	}
	opts = append(opts, extra...)
	ss, err := syncstore.New(collection, adapter, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open sync store", err)
	}
	return ss, nil
}
