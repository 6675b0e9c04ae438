package slicer

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards all records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger sets the logger used by slicer and its sub-packages. By default nothing is logged, pass nil to restore that.
//
// Log levels used:
//   - [slog.LevelDebug]: bucket and engine diagnostics
//   - [slog.LevelInfo]: pool lifecycle and decimation passes
//   - [slog.LevelWarn]: skipped triangles, software fallback, unmatched replies
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger. Sub-packages clip/ and work/ share it.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
