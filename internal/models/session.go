package models

import "time"

// RefreshSession представляет один узел цепочки refresh-токенов.
// Сессия либо активна (RevokedAt == nil и срок не истёк), либо ротирована
// (RevokedAt и ReplacedByID заданы), либо отозвана (только RevokedAt —
// терминальное состояние после logout или реакции на повторное
// использование токена). Строки сессий никогда не удаляются.
type RefreshSession struct {
	ID           string     // Идентификатор сессии (jti refresh-токена)
	UserID       string     // Владелец сессии
	ExpiresAt    time.Time  // Срок жизни refresh-токена
	RevokedAt    *time.Time // Момент отзыва, nil для активной сессии
	ReplacedByID *string    // Идентификатор сессии-преемника при ротации
	IP           *string    // IP клиента на момент выпуска
	UserAgent    *string    // User-Agent клиента на момент выпуска
	CreatedAt    time.Time
}

// IsActive сообщает, пригодна ли сессия для обновления токенов.
func (s *RefreshSession) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// SessionMeta содержит метаданные клиента, сохраняемые вместе с сессией.
type SessionMeta struct {
	IP        string
	UserAgent string
}
