package models

import "time"

// AuthLockout хранит счётчик неудачных попыток аутентификации по
// нормализованному ключу ("ip:<ip>" или "email:<email>") и момент, до
// которого ключ заблокирован. Запись с LockedUntil в прошлом
// эквивалентна отсутствию блокировки.
type AuthLockout struct {
	Key         string     // Нормализованный ключ
	Attempts    int        // Количество неудачных попыток
	LockedUntil *time.Time // Момент разблокировки, nil если блокировки нет
	UpdatedAt   time.Time
}
