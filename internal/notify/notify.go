// Package notify carries transient, user-visible messages about mutation
// outcomes (the toast a dashboard shows after a failed save).
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notification is one message for the user.
type Notification struct {
	Level   Level  `json:"level"`
	Op      string `json:"op"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use and must not block for long.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a slog logger. It is the default
// when no UI is attached.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n at a level matching its severity.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, n.Message, "op", n.Op, "id", n.ID)
}

// Recorder keeps every notification in memory.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Messages returns just the message texts.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	for i, n := range r.seen {
		out[i] = n.Message
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = nil
}
