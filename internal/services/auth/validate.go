package auth

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/harmony-app/harmony-backend/internal/apperr"
	"github.com/harmony-app/harmony-backend/internal/federated"
)

const (
	maxEmailLen      = 254
	maxNameLen       = 50
	maxFederatedName = 80
	minPasswordLen   = 8
	maxPasswordLen   = 128
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// normalizeEmail приводит email к каноническому виду: обрезает пробелы,
// переводит в нижний регистр и проверяет формат.
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.New(apperr.InvalidArgument, "email is required")
	}
	if len(email) > maxEmailLen {
		return "", apperr.New(apperr.InvalidArgument, "email is too long")
	}
	for _, r := range email {
		if unicode.IsControl(r) {
			return "", apperr.New(apperr.InvalidArgument, "email contains invalid characters")
		}
	}
	if !emailRe.MatchString(email) {
		return "", apperr.New(apperr.InvalidArgument, "invalid email format")
	}
	return email, nil
}

// sanitizeName схлопывает пробельные последовательности и ограничивает длину.
func sanitizeName(raw string) string {
	return capRunes(strings.Join(strings.Fields(raw), " "), maxNameLen)
}

func validatePassword(p string) error {
	if len(p) < minPasswordLen {
		return apperr.Newf(apperr.InvalidArgument, "password must be at least %d characters", minPasswordLen)
	}
	if len(p) > maxPasswordLen {
		return apperr.Newf(apperr.InvalidArgument, "password must be at most %d characters", maxPasswordLen)
	}
	return nil
}

// federatedName выбирает имя для аккаунта, созданного через Google или
// Apple: имя из токена провайдера, иначе локальная часть email.
func federatedName(identity *federated.Identity, email string) string {
	name := strings.Join(strings.Fields(identity.Name), " ")
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	return capRunes(name, maxFederatedName)
}

func capRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
