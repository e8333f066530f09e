// Package vercode генерирует одноразовые числовые коды подтверждения
// для регистрации по email. Код создаётся криптографически стойким
// генератором случайных чисел.
package vercode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generate возвращает шестизначный код в виде строки с ведущими нулями.
func Generate() (string, error) {
	const op = "vercode.Generate"
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
