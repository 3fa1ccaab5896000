package syncstore

import (
	"log/slog"

	"github.com/roach88/labsync/internal/doc"
	"github.com/roach88/labsync/internal/metrics"
	"github.com/roach88/labsync/internal/notify"
)

// Validator checks changes before they are applied. *schema.Validator
// implements it.
type Validator interface {
	ValidatePartial(collection string, partial doc.Object) error
	ValidateEntity(collection string, fields doc.Object) error
}

// Option configures a Store.
type Option func(*Store)

// WithLab scopes the store to one lab. The subscription filters on
// labId and created entities are stamped with it. Without a lab the view
// stays empty and every mutation fails with MISSING_LAB_CONTEXT.
func WithLab(labID string) Option {
	return func(s *Store) {
		s.labID = labID
	}
}

// WithLogger sets the logger for failed mutations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithNotifier sets where user-visible failure messages go.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) {
		s.notifier = n
	}
}

// WithMetrics records mutation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithValidator rejects malformed changes before they are applied.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		s.validator = v
	}
}

// WithStatusField names the field Move and Reorder group by.
// Defaults to "status".
func WithStatusField(name string) Option {
	return func(s *Store) {
		s.statusField = name
	}
}

// WithOrderField names the field Move and Reorder write positions to.
// Defaults to "order".
func WithOrderField(name string) Option {
	return func(s *Store) {
		s.orderField = name
	}
}
