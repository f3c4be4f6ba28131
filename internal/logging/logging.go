// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	min    slog.Level
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		min:    lr.min,
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// Options configures Setup.
type Options struct {
	Level string
	// Path, when set, also writes every record to a rotated log file.
	Path string
	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// New builds the handler described by opts. The returned cleanup closes the
// log file, if one was opened.
func New(opts Options) (slog.Handler, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}

	stdoutW, stderrW := opts.Stdout, opts.Stderr
	if stdoutW == nil {
		stdoutW = os.Stdout
	}
	if stderrW == nil {
		stderrW = os.Stderr
	}

	cleanup := func() {}
	if opts.Path != "" {
		file := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cleanup = func() { file.Close() }
		stdoutW = io.MultiWriter(stdoutW, file)
		stderrW = io.MultiWriter(stderrW, file)
	}

	return &levelRouter{
		min:    level,
		stdout: slog.NewTextHandler(stdoutW, hopts),
		stderr: slog.NewTextHandler(stderrW, hopts),
	}, cleanup, nil
}

// Setup installs the handler from New as the default logger.
func Setup(opts Options) (func(), error) {
	h, cleanup, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(h))
	return cleanup, nil
}
