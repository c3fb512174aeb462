// pkg/logging/logfile.go
package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/arc-language/mopack/pkg/shell"
)

// Call describes one subprocess invocation
type Call struct {
	Args   []string
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner runs a subprocess to completion
type Runner func(ctx context.Context, call Call) error

type runnerKey struct{}

// WithRunner overrides how subprocesses are run for everything using ctx
func WithRunner(ctx context.Context, r Runner) context.Context {
	return context.WithValue(ctx, runnerKey{}, r)
}

func runnerFrom(ctx context.Context) Runner {
	if r, ok := ctx.Value(runnerKey{}).(Runner); ok {
		return r
	}
	return execRunner
}

func execRunner(ctx context.Context, call Call) error {
	if len(call.Args) == 0 {
		return fmt.Errorf("empty command")
	}
	cmd := exec.CommandContext(ctx, call.Args[0], call.Args[1:]...)
	cmd.Dir = call.Dir
	cmd.Env = call.Env
	cmd.Stdin = call.Stdin
	cmd.Stdout = call.Stdout
	cmd.Stderr = call.Stderr
	return cmd.Run()
}

// CommandError reports a failed subprocess and where its output went
type CommandError struct {
	Args    []string
	LogPath string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed: %s: %v", shell.Join(e.Args), e.Err)
	if e.LogPath != "" {
		msg += fmt.Sprintf(" (see %s)", e.LogPath)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// LogFile captures the output of the commands run for one package
type LogFile struct {
	f    afero.File
	path string
}

// LogDir returns the directory holding the per-package logs
func LogDir(pkgdir string) string {
	return filepath.Join(pkgdir, "logs")
}

// OpenLogFile opens pkgdir/logs/<name>.log, appending unless truncate is set
func OpenLogFile(fs afero.Fs, pkgdir, name string, truncate bool) (*LogFile, error) {
	dir := LogDir(pkgdir)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	path := filepath.Join(dir, name+".log")
	f, err := fs.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &LogFile{f: f, path: path}, nil
}

// Path returns the location of the log file
func (l *LogFile) Path() string { return l.path }

// Writer returns the log for tools that report progress themselves
func (l *LogFile) Writer() io.Writer { return l.f }

// Close closes the log file
func (l *LogFile) Close() error { return l.f.Close() }

// CheckCall runs a command, echoing it and its output into the log
func (l *LogFile) CheckCall(ctx context.Context, call Call) error {
	if _, err := fmt.Fprintf(l.f, "$ %s\n", shell.Join(call.Args)); err != nil {
		return err
	}
	FromContext(ctx).Debug("running command", "cmd", shell.Join(call.Args), "dir", call.Dir)

	if call.Stdout == nil {
		call.Stdout = l.f
	}
	if call.Stderr == nil {
		call.Stderr = l.f
	}
	if err := runnerFrom(ctx)(ctx, call); err != nil {
		return &CommandError{Args: call.Args, LogPath: l.path, Err: err}
	}
	return nil
}

// CheckOutput runs a command and returns its trimmed standard output
func (l *LogFile) CheckOutput(ctx context.Context, call Call) (string, error) {
	var out bytes.Buffer
	call.Stdout = &out
	if err := l.CheckCall(ctx, call); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

// Output runs a command without a log file and returns its trimmed standard
// output
func Output(ctx context.Context, call Call) (string, error) {
	var out bytes.Buffer
	call.Stdout = &out
	if err := runnerFrom(ctx)(ctx, call); err != nil {
		return "", &CommandError{Args: call.Args, Err: err}
	}
	return strings.TrimSpace(out.String()), nil
}
