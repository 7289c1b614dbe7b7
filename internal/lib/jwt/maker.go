// Package jwt выпускает и проверяет токены, которыми фронтенд бота
// и операторы авторизуются в API сервиса.
package jwt

import (
	"time"
)

// Роли клиентов API.
const (
	RoleBot   = "bot"
	RoleAdmin = "admin"
)

// Maker описывает генерацию и разбор токенов.
type Maker interface {
	GenerateToken(subject, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены секретным ключом по HS256.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl с ключом и временем жизни токена.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
