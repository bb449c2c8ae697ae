// Package logx configures the process-wide zerolog logger: a human console
// writer on stderr plus a JSON log file per run.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls logger construction.
type Options struct {
	// Verbosity 0 = info, 1 = debug, 2+ = trace.
	Verbosity int
	// Console receives human-readable output; nil disables it.
	Console io.Writer
	// LogsDir receives a timestamped JSON log file; empty disables it.
	LogsDir string
	// Command names the invoking subcommand in every event.
	Command string
}

// Setup builds the root logger, installs it as zerolog's global logger and
// returns it with a closer for the log file. The closer is never nil.
func Setup(opts Options) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(levelFor(opts.Verbosity))

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}

	var (
		closer  io.Closer = nopCloser{}
		logPath string
		fileErr error
	)
	if opts.LogsDir != "" {
		file, path, err := openLogFile(opts.LogsDir, opts.Command)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, file)
			closer = file
			logPath = path
		}
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(out).With().Timestamp().Str("run_id", uuid.NewString())
	if opts.Command != "" {
		ctx = ctx.Str("command", opts.Command)
	}
	if opts.Verbosity >= 2 {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()
	log.Logger = logger

	if fileErr != nil {
		logger.Warn().Err(fileErr).Str("dir", opts.LogsDir).Msg("log file unavailable, logging to console only")
	}
	logger.Debug().Int("verbosity", opts.Verbosity).Str("log_file", logPath).Msg("logger initialized")
	return logger, closer, nil
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// Operation logs the start of an operation and returns a func logging its
// completion with the elapsed time.
func Operation(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("operation started")
	return func() {
		logger.Debug().Str("operation", operation).Dur("duration", time.Since(start)).Msg("operation completed")
	}
}

func levelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.InfoLevel
	case verbosity == 1:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

func openLogFile(dir, command string) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ensure logs directory: %w", err)
	}
	name := time.Now().Format("20060102-150405")
	if command != "" {
		name += "-" + command
	}
	path := filepath.Join(dir, name+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	return file, path, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
