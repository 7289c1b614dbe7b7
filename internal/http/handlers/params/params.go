// Package params разбирает параметры пути, общие для нескольких обработчиков.
package params

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
)

// UserIDParam имя параметра пути с telegram id пользователя.
const UserIDParam = "user_id"

var ErrInvalidUserID = errors.New("invalid user id")

// UserID возвращает положительный telegram id из пути запроса.
func UserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, UserIDParam)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUserID, raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidUserID, id)
	}
	return id, nil
}
