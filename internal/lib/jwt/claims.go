// Package jwt реализует генерацию и парсинг JWT токенов с пользовательскими claim полями.
//
// AccessClaims и RefreshClaims расширяют стандартные claims JWT: access-токен
// несёт email пользователя, refresh-токен — идентификатор сессии (jti).
// Поле Typ защищает от подмены типа токена при совпадении секретов.
package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	typAccess  = "access"
	typRefresh = "refresh"
)

// AccessClaims описывает данные, хранящиеся в access-токене.
type AccessClaims struct {
	Email                string `json:"email"` // Email пользователя
	Typ                  string `json:"typ"`   // Тип токена, всегда "access"
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (Subject = user id)
}

// RefreshClaims описывает данные, хранящиеся в refresh-токене.
// Идентификатор сессии хранится в стандартном поле ID (jti).
type RefreshClaims struct {
	Typ                  string `json:"typ"` // Тип токена, всегда "refresh"
	jwt.RegisteredClaims        // Subject = user id, ID = id сессии
}

// GenerateAccessToken создает access-токен с user id и email,
// подписывая его access-секретом. Время жизни определяется полем accessTTL.
func (j *MakerImpl) GenerateAccessToken(userID, email string) (string, error) {
	claims := AccessClaims{
		Email: email,
		Typ:   typAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.accessSecret))
}

// GenerateRefreshToken создает refresh-токен с user id и id сессии,
// подписывая его refresh-секретом. Время жизни определяется полем refreshTTL.
func (j *MakerImpl) GenerateRefreshToken(userID, sessionID string) (string, error) {
	claims := RefreshClaims{
		Typ: typRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.refreshTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.refreshSecret))
}

// ParseAccessToken парсит access-токен, проверяет подпись, срок жизни и тип,
// возвращает AccessClaims, если токен корректен.
func (j *MakerImpl) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	const op = "jwt.ParseAccessToken"
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.accessSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Typ != typAccess {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}

// ParseRefreshToken парсит refresh-токен, проверяет подпись, срок жизни и тип,
// возвращает RefreshClaims, если токен корректен.
func (j *MakerImpl) ParseRefreshToken(tokenStr string) (*RefreshClaims, error) {
	const op = "jwt.ParseRefreshToken"
	token, err := jwt.ParseWithClaims(tokenStr, &RefreshClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.refreshSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid || claims.Typ != typRefresh {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
