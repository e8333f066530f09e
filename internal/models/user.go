// Package models содержит доменные структуры ядра сессий и подписок:
// пользователей, незавершённые регистрации, refresh-сессии, блокировки
// и платежи. Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
// PasswordHash равен nil для аккаунтов, созданных через Google/Apple.
// Пользователь никогда не удаляется физически: при удалении аккаунта
// выставляется DeletedAt.
type User struct {
	ID              string     // Уникальный идентификатор пользователя
	Email           string     // Электронная почта (нормализованная)
	Name            string     // Имя
	Surname         string     // Фамилия
	PasswordHash    *string    // bcrypt-хэш пароля, nil для федеративных аккаунтов
	PremiumUntil    *time.Time // Дата окончания премиума (легаси-поле)
	NameUpdatedAt   *time.Time // Дата последней смены имени
	NameChangeCount int        // Количество смен имени
	CreatedAt       time.Time
	DeletedAt       *time.Time // Мягкое удаление
}

// IsPremium сообщает, активен ли премиум по легаси-полю PremiumUntil.
func (u *User) IsPremium(now time.Time) bool {
	return u.PremiumUntil != nil && now.Before(*u.PremiumUntil)
}
