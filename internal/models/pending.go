package models

import "time"

// PendingRegistration хранит незавершённую регистрацию: профиль и хэш
// пароля фиксируются до подтверждения кода, аккаунт в таблице users при
// этом не создаётся. На каждый email существует не более одной живой
// записи (upsert при повторной отправке кода).
type PendingRegistration struct {
	Email         string    // Нормализованный email (ключ)
	Code          string    // Шестизначный код подтверждения
	CodeExpiresAt time.Time // Срок действия кода
	Name          string
	Surname       string
	PasswordHash  string
	CreatedAt     time.Time
}
