// Package logging builds the zerolog loggers used across aria.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/aria/internal/config"
)

const placeholder = "[REDACTED]"

// New returns a logger writing to out (stderr when nil). Every occurrence of
// a secret in a written line is replaced before it reaches out.
func New(cfg config.LogConfig, out io.Writer, secrets ...string) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	out = NewRedactWriter(out, secrets...)

	var w io.Writer = out
	if !strings.EqualFold(cfg.Format, "json") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().
		Timestamp().
		Str("app", "aria").
		Logger()
}

// Component derives a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Redact replaces every sensitive value in s with [REDACTED]. Values shorter
// than 4 characters are skipped.
func Redact(s string, secrets ...string) string {
	for _, v := range secrets {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// RedactWriter scrubs secrets from every write.
type RedactWriter struct {
	out     io.Writer
	secrets []string
}

func NewRedactWriter(out io.Writer, secrets ...string) *RedactWriter {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if len(s) >= 4 {
			kept = append(kept, s)
		}
	}
	return &RedactWriter{out: out, secrets: kept}
}

func (w *RedactWriter) Write(p []byte) (int, error) {
	if len(w.secrets) == 0 {
		return w.out.Write(p)
	}
	if _, err := io.WriteString(w.out, Redact(string(p), w.secrets...)); err != nil {
		return 0, err
	}
	return len(p), nil
}
