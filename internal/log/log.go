// Package log provides structured, colored logging for klingsign.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
// Secret material (mnemonics, seeds, keys, passphrases) is never logged.
var (
	Wallet    zerolog.Logger
	Storage   zerolog.Logger
	Device    zerolog.Logger
	Commander zerolog.Logger
)

const consoleTimeFormat = "15:04:05"

func init() {
	// Console output goes to stderr so command output on stdout stays
	// machine readable.
	setLogger(consoleWriter(os.Stderr), "info")
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and the file (always JSON for machine parsing).
func Init(level string, jsonOutput bool, file string) error {
	var out io.Writer = os.Stderr
	if !jsonOutput {
		out = consoleWriter(os.Stderr)
	}

	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(out, f)
	}

	setLogger(out, level)
	return nil
}

// SetOutput replaces the global logger with a JSON logger writing to w.
// Tests use it to capture log lines.
func SetOutput(w io.Writer, level string) {
	setLogger(w, level)
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
}

// setLogger rebuilds the global and component loggers on w.
func setLogger(w io.Writer, level string) {
	Logger = zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	Wallet = component("wallet")
	Storage = component("storage")
	Device = component("device")
	Commander = component("commander")
}

func component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// WithNetwork returns a logger with a network field.
func WithNetwork(network string) zerolog.Logger {
	return Logger.With().Str("network", network).Logger()
}

// Benchmark helper for timing operations.
func Benchmark(name string) func() {
	start := time.Now()
	return func() {
		Logger.Debug().
			Str("operation", name).
			Dur("duration", time.Since(start)).
			Msg("benchmark")
	}
}
