package logger

import (
	"io"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envProd  = "prod"

	prodLogFile = "app.log"
)

// SetupLogger returns a text debug logger for local runs and a JSON logger
// writing to app.log in prod. Unknown environments log text at info level.
func SetupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return newText(os.Stdout, slog.LevelDebug)
	case envProd:
		file, err := os.OpenFile(prodLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log := newJSON(os.Stderr)
			log.Error("failed to open log file, logging to stderr", "file", prodLogFile, "error", err)
			return log
		}
		return newJSON(file)
	default:
		return newText(os.Stdout, slog.LevelInfo)
	}
}

func newText(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newJSON(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
