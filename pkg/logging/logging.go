// pkg/logging/logging.go
package logging

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

type loggerKey struct{}

// New creates the process logger. Debug enables debug-level output.
func New(w io.Writer, debug bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "mopack",
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// WithLogger attaches a logger to ctx
func WithLogger(ctx context.Context, logger *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger attached to ctx, or a stderr logger
func FromContext(ctx context.Context) *log.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return logger
	}
	return New(os.Stderr, false)
}

func pkgLog(ctx context.Context, verb, name, detail string) {
	msg := fmt.Sprintf("%s %s", verb, name)
	if detail != "" {
		msg += " " + detail
	}
	FromContext(ctx).Info(msg)
}

// Fetch logs that a package is being fetched
func Fetch(ctx context.Context, name, detail string) {
	pkgLog(ctx, "fetching", name, detail)
}

// Patch logs that fetched sources are being patched
func Patch(ctx context.Context, name, detail string) {
	pkgLog(ctx, "patching", name, detail)
}

// Resolve logs that a package is being resolved
func Resolve(ctx context.Context, name, detail string) {
	pkgLog(ctx, "resolving", name, detail)
}

// Deploy logs that a package is being deployed
func Deploy(ctx context.Context, name, detail string) {
	pkgLog(ctx, "deploying", name, detail)
}

// Clean logs that a package's files are being removed
func Clean(ctx context.Context, name, detail string) {
	pkgLog(ctx, "cleaning", name, detail)
}

// Warn logs a non-fatal problem
func Warn(ctx context.Context, msg string, keyvals ...any) {
	FromContext(ctx).Warn(msg, keyvals...)
}
