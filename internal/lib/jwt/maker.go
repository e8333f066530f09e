// Package jwt реализует генерацию и парсинг JWT токенов с пользовательскими claim полями.
//
// Maker определяет интерфейс для выпуска пары токенов: короткоживущего
// access-токена (идентификатор и email пользователя) и refresh-токена
// (идентификатор пользователя и идентификатор сессии). Токены подписываются
// разными секретами, поэтому access-токен нельзя предъявить как refresh и наоборот.
package jwt

import (
	"time"
)

// Maker описывает интерфейс для генерации и парсинга пары JWT токенов.
type Maker interface {
	// GenerateAccessToken выпускает access-токен с user id и email.
	GenerateAccessToken(userID, email string) (string, error)
	// GenerateRefreshToken выпускает refresh-токен с user id и id сессии.
	GenerateRefreshToken(userID, sessionID string) (string, error)
	// ParseAccessToken возвращает *AccessClaims, если токен корректен.
	ParseAccessToken(tokenStr string) (*AccessClaims, error)
	// ParseRefreshToken возвращает *RefreshClaims, если токен корректен.
	ParseRefreshToken(tokenStr string) (*RefreshClaims, error)
	// RefreshTTL возвращает срок жизни refresh-токена.
	RefreshTTL() time.Duration
}

// MakerImpl реализует интерфейс Maker на основе двух секретных ключей
// и независимых сроков жизни для access и refresh токенов.
type MakerImpl struct {
	accessSecret  string        // Секретный ключ для подписи access-токенов.
	refreshSecret string        // Секретный ключ для подписи refresh-токенов.
	accessTTL     time.Duration // Время жизни access-токена.
	refreshTTL    time.Duration // Время жизни refresh-токена.
}

// NewMaker создаёт новый экземпляр MakerImpl.
func NewMaker(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *MakerImpl {
	return &MakerImpl{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// RefreshTTL возвращает срок жизни refresh-токена. Используется сервисом
// сессий для выставления срока жизни строки сессии в базе.
func (j *MakerImpl) RefreshTTL() time.Duration {
	return j.refreshTTL
}
