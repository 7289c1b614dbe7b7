// Package sl содержит вспомогательные атрибуты для логгера slog,
// чтобы поля ошибок, операций и пользователей назывались одинаково во всём сервисе.
package sl

import (
	"io"
	"log/slog"
)

// EnvLocal окружение разработчика, в нём включён уровень debug.
const EnvLocal = "local"

// NewLogger создаёт текстовый логгер: debug для local, info для остальных окружений.
func NewLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if env == EnvLocal {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Err возвращает атрибут "error" с текстом ошибки.
//
// Пример:
//
//	log.Error("failed to create account", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут "op" с названием операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// UserID возвращает атрибут "user_id" с telegram-идентификатором пользователя.
func UserID(id int64) slog.Attr {
	return slog.Int64("user_id", id)
}
