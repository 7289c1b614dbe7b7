// Package password генерирует пароли для аккаунтов в панели управления VPN.
//
// Пароль состоит только из латинских букв и цифр: панель отклоняет
// спецсимволы при валидации запроса на создание пользователя.
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet допустимые символы пароля.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength длина пароля для новых аккаунтов.
const DefaultLength = 12

// Generate возвращает случайный пароль длины length из символов Alphabet.
func Generate(length int) (string, error) {
	const op = "password.Generate"
	if length <= 0 {
		return "", fmt.Errorf("%s: invalid length %d", op, length)
	}
	limit := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// New возвращает пароль длины DefaultLength.
func New() (string, error) {
	return Generate(DefaultLength)
}
