// Package logging wires log/slog for the portal: JSON to stdout, plus a
// batched copy of ERROR+ records in the database.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs the global JSON logger on stdout. Development builds log at
// debug level.
func Setup(appEnv string) {
	slog.SetDefault(slog.New(NewJSONHandler(os.Stdout, appEnv)))
}

func NewJSONHandler(w io.Writer, appEnv string) slog.Handler {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
