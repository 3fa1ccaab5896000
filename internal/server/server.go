// Package server exposes sync stores over HTTP: a websocket live view per
// collection, a JSON snapshot endpoint, a health check and Prometheus
// metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/labsync/internal/syncstore"
)

// Opener creates the sync store for a collection. It is called at most
// once per collection; the server disposes the store on Close.
type Opener func(collection string) (*syncstore.Store, error)

// Options configures a Server.
type Options struct {
	// Collections lists the collections clients may open. Empty allows any.
	Collections  []string
	PingInterval time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
	// Gatherer backs /metrics; nil serves prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// CheckOrigin vets websocket handshakes. Nil accepts only requests
	// whose Origin host matches Host, or that carry no Origin.
	CheckOrigin func(r *http.Request) bool
}

// Server serves live views of sync stores.
//
// Thread-safety: all methods are safe for concurrent use.
type Server struct {
	open    Opener
	allowed map[string]bool
	opts    Options
	logger  *slog.Logger

	upgrader websocket.Upgrader

	// ctx is canceled by Close and ends every live view.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	stores map[string]*syncstore.Store
	closed bool
}

// New creates a server that opens stores with open.
func New(open Opener, opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	var allowed map[string]bool
	if len(opts.Collections) > 0 {
		allowed = make(map[string]bool, len(opts.Collections))
		for _, c := range opts.Collections {
			allowed[c] = true
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		open:    open,
		allowed: allowed,
		opts:    opts,
		logger:  opts.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		ctx:    ctx,
		cancel: cancel,
		stores: make(map[string]*syncstore.Store),
	}
}

// AllowOrigins returns a CheckOrigin that accepts same-origin requests,
// requests without an Origin header, and the listed origins. It returns nil
// for an empty list, which leaves the same-origin default in place.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimSuffix(o, "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[strings.ToLower(origin)] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/{collection}", s.handleSnapshot)
	mux.HandleFunc("GET /ws/{collection}", s.handleWebSocket)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down and
// closes every store.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("live view server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close ends every live view with a normal closure and disposes every
// store. Idempotent.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	stores := s.stores
	s.stores = make(map[string]*syncstore.Store)
	s.mu.Unlock()

	for _, st := range stores {
		st.Dispose()
	}
}

// Collections returns the names of the stores opened so far, sorted.
func (s *Server) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.stores))
	for name := range s.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var errUnknownCollection = errors.New("unknown collection")
var errClosed = errors.New("server closed")

// store returns the store for collection, opening it on first use.
func (s *Server) store(collection string) (*syncstore.Store, error) {
	if s.allowed != nil && !s.allowed[collection] {
		return nil, fmt.Errorf("%w %q", errUnknownCollection, collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	if st, ok := s.stores[collection]; ok {
		return st, nil
	}
	st, err := s.open(collection)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", collection, err)
	}
	s.stores[collection] = st
	s.logger.Debug("sync store opened", "collection", collection)
	return st, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"collections": s.Collections(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r.PathValue("collection"))
	if err != nil {
		s.httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(st, ""))
}

func (s *Server) httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnknownCollection):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, errClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		s.logger.Error("open store failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
