package log

import (
	"io"
	"log/slog"
)

// Окружения.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New настраивает slog по окружению: local — текст/debug, dev — JSON/debug,
// prod — JSON/info. Неизвестное окружение трактуется как local.
func New(env string, w io.Writer) *slog.Logger {
	switch env {
	case EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case EnvProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
