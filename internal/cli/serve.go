package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/labsync/internal/metrics"
	"github.com/roach88/labsync/internal/notify"
	"github.com/roach88/labsync/internal/server"
	"github.com/roach88/labsync/internal/syncstore"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string

	// Listener replaces Addr when set (for testing).
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live collection views over websocket",
		Long: `Start the live view server for the configured lab.

Routes:
  GET /ws/{collection}   websocket: snapshots out, mutation commands in
  GET /api/{collection}  current snapshot as JSON
  GET /metrics           Prometheus metrics
  GET /healthz           liveness

The server runs until interrupted (Ctrl+C or SIGTERM).

Examples:
  labsync serve --db ./lab.db --lab lab-1
  labsync serve --addr :9000 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Lab == "" {
		s.logger.Warn("no lab configured; every collection will be empty and read-only")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var collections []string
	if s.schema != nil {
		collections = s.schema.Collections()
	}

	open := func(collection string) (*syncstore.Store, error) {
		s.logger.Info("opening collection", "collection", collection, "lab", s.cfg.Lab)
		return s.syncStore(collection, false,
			syncstore.WithMetrics(m),
			syncstore.WithNotifier(notify.LogNotifier{Logger: s.logger.With("collection", collection)}))
	}

	srv := server.New(open, server.Options{
		Collections:  collections,
		PingInterval: s.cfg.Server.PingInterval,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		Logger:       s.logger,
		Gatherer:     reg,
		CheckOrigin:  server.AllowOrigins(s.cfg.Server.AllowedOrigins),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.Listener != nil {
		return serveErr(srv.Serve(ctx, opts.Listener))
	}
	addr := s.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	return serveErr(srv.ListenAndServe(ctx, addr))
}

func serveErr(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return WrapExitError(ExitCommandError, "server stopped", err)
}
