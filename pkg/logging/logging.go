// Package logging configures the process-wide slog logger for matchadmin.
//
// Every package logs through slog.Default or a logger obtained from
// Component, so the daemon and the console only call Setup once:
//
//	logging.Setup(logging.Options{Level: "debug", Format: "json"})
//	log := logging.Component("vote")
//	log.Info("vote started", "type", "kick", "initiator", id)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Options selects the level, encoding and destination of log records.
// Zero values mean info, text and stdout.
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

var levels = map[string]slog.Level{
	"":        slog.LevelInfo,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	if l, ok := levels[normalize(name)]; ok {
		return l
	}
	return slog.LevelInfo
}

// Setup validates opts and installs the resulting handler as the slog
// default. Debug level adds source locations.
func Setup(opts Options) error {
	if err := Validate(opts.Level); err != nil {
		return err
	}
	format := normalize(opts.Format)
	if format != "" && format != "text" && format != "json" {
		return fmt.Errorf("logging: unknown format %q (valid: text, json)", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	ho := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}

	var h slog.Handler = slog.NewTextHandler(out, ho)
	if format == "json" {
		h = slog.NewJSONHandler(out, ho)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// Component returns the default logger with a component attribute. Call it
// after Setup; the handler is captured when the logger is created.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// LevelNames lists the accepted level names for flag help text.
func LevelNames() string {
	names := make([]string, 0, len(levels))
	for n := range levels {
		if n != "" && n != "warning" {
			names = append(names, n)
		}
	}
	sort.Slice(names, func(i, j int) bool { return levels[names[i]] < levels[names[j]] })
	return strings.Join(names, ", ")
}

// Validate reports whether name is an accepted level.
func Validate(name string) error {
	if _, ok := levels[normalize(name)]; !ok {
		return fmt.Errorf("logging: unknown level %q (valid: %s)", name, LevelNames())
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
