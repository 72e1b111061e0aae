package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// keep is how many records a BufferedHandler retains.
const keep = 20

// BufferedHandler is a slog.Handler that remembers the most recent records so
// they can be dumped after a failure.
type BufferedHandler struct {
	slog.Handler
	mu   *sync.Mutex
	logs *[]slog.Record
	// capture is the level at which records are buffered, independently of
	// what the wrapped handler prints.
	capture slog.Leveler
}

// NewBufferedHandler wraps handler.
func NewBufferedHandler(handler slog.Handler, capture slog.Leveler) *BufferedHandler {
	return &BufferedHandler{
		Handler: handler,
		mu:      &sync.Mutex{},
		logs:    &[]slog.Record{},
		capture: capture,
	}
}

// Enabled is true when either the buffer or the wrapped handler wants the record.
func (h *BufferedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.capture.Level() || h.Handler.Enabled(ctx, level)
}

// Handle stores the record and forwards it to the wrapped handler.
func (h *BufferedHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	*h.logs = append(*h.logs, r.Clone())
	if len(*h.logs) > keep {
		*h.logs = (*h.logs)[1:]
	}
	h.mu.Unlock()

	if !h.Handler.Enabled(ctx, r.Level) {
		return nil
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs shares the buffer with the returned handler.
func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &BufferedHandler{Handler: h.Handler.WithAttrs(attrs), mu: h.mu, logs: h.logs, capture: h.capture}
}

// WithGroup shares the buffer with the returned handler.
func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	return &BufferedHandler{Handler: h.Handler.WithGroup(name), mu: h.mu, logs: h.logs, capture: h.capture}
}

// Logs returns a copy of the stored records, oldest first.
func (h *BufferedHandler) Logs() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slog.Record(nil), *h.logs...)
}

// Dump writes the stored records to w, one per line.
func (h *BufferedHandler) Dump(w io.Writer) error {
	for _, r := range h.Logs() {
		var attrs []string
		r.Attrs(func(a slog.Attr) bool {
			attrs = append(attrs, a.String())
			return true
		})
		line := fmt.Sprintf("%s %-5s %s", r.Time.Format("15:04:05.000"), r.Level, r.Message)
		if len(attrs) > 0 {
			line += " " + strings.Join(attrs, " ")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// ParseLevel accepts debug, info, warn or error, in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

var defaultHandler *BufferedHandler

// Init installs the default logger: text on w at level, with every debug
// record buffered for Dump.
func Init(w io.Writer, level slog.Level) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	defaultHandler = NewBufferedHandler(text, slog.LevelDebug)
	logger := slog.New(defaultHandler)
	slog.SetDefault(logger)
	return logger
}

// Logs returns the stored records of the default logger.
func Logs() []slog.Record {
	if defaultHandler == nil {
		return nil
	}
	return defaultHandler.Logs()
}

// Dump writes the stored records of the default logger to w.
func Dump(w io.Writer) error {
	if defaultHandler == nil {
		return nil
	}
	return defaultHandler.Dump(w)
}
