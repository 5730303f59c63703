package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/powerctl/internal/errors"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

const logFilePerms = 0o644

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// zlogger is the zerolog-backed Logger implementation.
type zlogger struct {
	log zerolog.Logger
}

func (l zlogger) Debug() *LogEvent {
	return &LogEvent{l.log.Debug()}
}

func (l zlogger) Info() *LogEvent {
	return &LogEvent{l.log.Info()}
}

func (l zlogger) Warn() *LogEvent {
	return &LogEvent{l.log.Warn()}
}

func (l zlogger) Error() *LogEvent {
	return &LogEvent{l.log.Error()}
}

func (l zlogger) ErrorWithCode(err errors.Error) *LogEvent {
	return &LogEvent{l.log.Error().
		Str("error_code", string(err.Code())).
		AnErr("error", err)}
}

// Init initializes the default logger based on the given configuration
func Init(debug, verbose, isService bool) {
	log = zerolog.New(consoleWriter(isService)).With().Timestamp().Logger()

	SetLogLevel(WarnLevel) // Default log level

	if debug {
		SetLogLevel(DebugLevel)
	} else if verbose {
		SetLogLevel(InfoLevel)
	}
}

// AddFileOutput tees the default logger output to the given file,
// keeping the console writer as-is.
func AddFileOutput(path string, isService bool) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerms)
	if err != nil {
		return errors.New().Wrap(errors.ErrOpenLogFile, err).WithData(path)
	}

	writer := zerolog.MultiLevelWriter(consoleWriter(isService), f)
	log = zerolog.New(writer).With().Timestamp().Logger()

	return nil
}

func consoleWriter(isService bool) zerolog.ConsoleWriter {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	return output
}

// New returns a Logger instance writing to the given output.
// The global log level still applies.
func New(out io.Writer) Logger {
	return zlogger{log: zerolog.New(out).With().Timestamp().Logger()}
}

// Nop returns a Logger that discards everything. Intended for tests.
func Nop() Logger {
	return zlogger{log: zerolog.Nop()}
}

// Default returns the package default as an injectable Logger.
func Default() Logger {
	return zlogger{log: log}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// SetLevelByName sets the global log level from its config-file name.
func SetLevelByName(name string) error {
	switch strings.ToLower(name) {
	case "debug":
		SetLogLevel(DebugLevel)
	case "info", "":
		SetLogLevel(InfoLevel)
	case "warn", "warning":
		SetLogLevel(WarnLevel)
	case "error":
		SetLogLevel(ErrorLevel)
	default:
		return errors.New().WithData(errors.ErrInvalidLogLevel, name)
	}

	return nil
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("INVOCATION_ID") != "" || os.Getenv("JOURNAL_STREAM") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with a specific error code
func ErrorWithCode(err errors.Error) *LogEvent {
	return Default().ErrorWithCode(err)
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// FatalWithCode logs a fatal message with a specific error code and exits the program
func FatalWithCode(err errors.Error) *LogEvent {
	return &LogEvent{log.Fatal().
		Str("error_code", string(err.Code())).
		AnErr("error", err)}
}
