/*
Package logging sets up structured logging for the service.

PURPOSE:
  JSON logs on stdout through log/slog, with the level picked from
  configuration. New also installs the logger as the slog default so
  libraries logging through the top-level slog functions land in the same
  stream.
*/
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a JSON slog logger at the given level ("debug", "info",
// "warn", "error"; anything else falls back to info) and installs it as the
// process default.
func New(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger
}
