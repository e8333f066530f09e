// Package apperr определяет классификацию ошибок бизнес-уровня.
// Сервисы возвращают *Error с видом ошибки, а HTTP-слой отображает
// вид на код ответа. Ошибки вида RateLimited дополнительно несут
// интервал retry-after в секундах.
package apperr

import (
	"errors"
	"fmt"
)

// Kind определяет вид ошибки бизнес-уровня.
type Kind int

const (
	// InvalidArgument — некорректные или отсутствующие входные данные.
	InvalidArgument Kind = iota
	// Unauthorized — неверные учетные данные, невалидный или отозванный токен.
	Unauthorized
	// Conflict — дубликат регистрации или недопустимая покупка по матрице тарифов.
	Conflict
	// RateLimited — сработала блокировка или лимит регистраций.
	RateLimited
	// Unavailable — платёжный шлюз или сервис проверки чеков недоступен.
	Unavailable
	// Internal — прочие ошибки нижних слоёв.
	Internal
)

// Error представляет классифицированную ошибку бизнес-уровня.
type Error struct {
	Kind       Kind
	Msg        string
	RetryAfter int // Секунды до снятия блокировки, только для RateLimited.
	Err        error
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap возвращает обёрнутую ошибку.
func (e *Error) Unwrap() error { return e.Err }

// New создаёт ошибку указанного вида с сообщением.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf создаёт ошибку указанного вида с форматированным сообщением.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap создаёт ошибку указанного вида, оборачивая причину.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// RateLimitedFor создаёт ошибку RateLimited с интервалом retry-after.
func RateLimitedFor(msg string, retryAfter int) *Error {
	return &Error{Kind: RateLimited, Msg: msg, RetryAfter: retryAfter}
}

// KindOf возвращает вид ошибки. Для ошибок без классификации — Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is сообщает, классифицирована ли ошибка указанным видом.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// RetryAfterOf возвращает retry-after в секундах, если ошибка — RateLimited.
func RetryAfterOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Kind == RateLimited {
		return e.RetryAfter
	}
	return 0
}
