// Package notify is the notification collaborator: transient user-facing
// messages with a severity.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// String returns the string representation of the Severity.
func (s Severity) String() string {
	return string(s)
}

// Notifier shows a message to the user.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Func adapts a function to Notifier.
type Func func(message string, severity Severity)

// Notify calls f.
func (f Func) Notify(message string, severity Severity) {
	f(message, severity)
}

// Notification is one shown message.
type Notification struct {
	Message  string
	Severity Severity
}

// Toast keeps at most one visible notification: a new one replaces the
// previous. Each notification is also forwarded to Next when set.
type Toast struct {
	mu      sync.Mutex
	current *Notification
	shown   int

	// Next receives every notification after it becomes current.
	Next Notifier
}

// NewToast creates a Toast forwarding to next (which may be nil).
func NewToast(next Notifier) *Toast {
	return &Toast{Next: next}
}

// Notify replaces the visible notification.
func (t *Toast) Notify(message string, severity Severity) {
	t.mu.Lock()
	t.current = &Notification{Message: message, Severity: severity}
	t.shown++
	next := t.Next
	t.mu.Unlock()

	if next != nil {
		next.Notify(message, severity)
	}
}

// Current returns the visible notification.
func (t *Toast) Current() (Notification, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Notification{}, false
	}
	return *t.current, true
}

// Dismiss hides the visible notification.
func (t *Toast) Dismiss() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

// Shown returns how many notifications have been displayed.
func (t *Toast) Shown() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown
}

// Writer prints notifications as "[severity] message" lines.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer notifier on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Notify writes one line.
func (w *Writer) Notify(message string, severity Severity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.w, "[%s] %s\n", severity, message)
}

// Logger records notifications through slog, for sessions with no screen.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a slog-backed notifier (nil means slog.Default()).
func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger}
}

// Notify logs at a level matching severity.
func (l *Logger) Notify(message string, severity Severity) {
	level := slog.LevelInfo
	switch severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, "notification", "message", message, "severity", severity.String())
}

// Compile-time interface checks.
var (
	_ Notifier = (*Toast)(nil)
	_ Notifier = (*Writer)(nil)
	_ Notifier = (*Logger)(nil)
	_ Notifier = Func(nil)
)
