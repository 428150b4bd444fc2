package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses a format string into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %q", s)
	}
}

// Options configures the logger factory.
type Options struct {
	// Level is a level name; the LNICTL_LOG environment variable overrides it.
	Level  string
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New creates a slog.Logger for the given options.
func New(opts Options) (*slog.Logger, error) {
	spec := opts.Level
	if env := os.Getenv("LNICTL_LOG"); env != "" {
		spec = env
	}

	level, err := ParseLevel(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       level.ToSlog(),
		ReplaceAttr: renameTrace,
	}

	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(output, handlerOpts)
	default:
		h = slog.NewTextHandler(output, handlerOpts)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: (LevelError + 1).ToSlog()}))
}

// renameTrace prints LevelTrace as "TRACE" instead of "DEBUG-4".
func renameTrace(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl <= LevelTrace.ToSlog() {
		a.Value = slog.StringValue("TRACE")
	}
	return a
}
