package log

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Only the first stack line is needed: "goroutine 123 [running]:".
	minStackBufSize = 32
	// Minimum expected stack trace length for valid goroutine info.
	minStackTraceLen = 12
	// Number of characters to skip: "goroutine " (10 chars).
	goroutinePrefixLen = 10

	// FormatConsole renders colored, human-readable lines.
	FormatConsole = "console"
	// FormatJSON renders one JSON object per line.
	FormatJSON = "json"

	consoleTimeFormat = "15:04:05"
)

var (
	Logger        zerolog.Logger
	goroutinePool sync.Pool
)

func init() {
	goroutinePool.New = func() interface{} {
		return make([]byte, minStackBufSize)
	}

	Logger = newLogger(os.Stderr, FormatConsole, zerolog.InfoLevel)
	log.Logger = Logger
}

// getGoroutineID extracts the current goroutine ID from a pooled stack buffer.
func getGoroutineID() string {
	bufInterface := goroutinePool.Get()
	buf, ok := bufInterface.([]byte)
	if !ok {
		return "unknown"
	}
	defer goroutinePool.Put(buf) //nolint:staticcheck // buf is a slice, this is the correct usage

	stackLen := runtime.Stack(buf, false)
	if stackLen < minStackTraceLen {
		return "unknown"
	}

	idx := goroutinePrefixLen
	if idx >= stackLen {
		return "unknown"
	}

	start := idx
	for idx < stackLen && buf[idx] >= '0' && buf[idx] <= '9' {
		idx++
	}

	if idx > start {
		return string(buf[start:idx])
	}
	return "unknown"
}

func newLogger(out io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: consoleTimeFormat,
		}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("goid", getGoroutineID())
		}))
}

// Configure rebuilds the global logger with the given level name and output format.
func Configure(level, format string) error {
	return ConfigureOutput(os.Stderr, level, format)
}

// ConfigureOutput is Configure with an explicit destination writer.
func ConfigureOutput(out io.Writer, level, format string) error {
	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", FormatConsole:
		format = FormatConsole
	case FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	Logger = newLogger(out, format, parsed)
	log.Logger = Logger
	return nil
}

// ParseLevel maps level names such as "INFO" or "warning" to zerolog levels.
func ParseLevel(level string) (zerolog.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		name = "warn"
	case "critical":
		name = "fatal"
	}

	parsed, err := zerolog.ParseLevel(name)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q: %w", level, err)
	}
	return parsed, nil
}

// Info logs an info message with goroutine ID.
func Info() *zerolog.Event {
	return Logger.Info()
}

// Error logs an error message with goroutine ID.
func Error() *zerolog.Event {
	return Logger.Error()
}

// Warn logs a warning message with goroutine ID.
func Warn() *zerolog.Event {
	return Logger.Warn()
}

// Debug logs a debug message with goroutine ID.
func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs a fatal message with goroutine ID and exits.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	Logger = Logger.Level(zerolog.DebugLevel)
	log.Logger = Logger
}
