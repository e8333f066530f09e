package federated

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harmony-app/harmony-backend/internal/apperr"
)

const (
	appleKeysURL = "https://appleid.apple.com/auth/keys"
	appleIssuer  = "https://appleid.apple.com"
)

// AppleVerifier проверяет identity token Apple по ключам JWKS.
type AppleVerifier struct {
	keysURL    string
	httpClient *http.Client
}

// NewAppleVerifier создаёт проверку токенов Apple.
func NewAppleVerifier(timeout time.Duration) *AppleVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AppleVerifier{
		keysURL:    appleKeysURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type appleJWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type appleJWKS struct {
	Keys []appleJWK `json:"keys"`
}

type appleClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verify проверяет подпись и издателя identity token и возвращает
// подтверждённую личность. Имя в токене Apple отсутствует.
func (v *AppleVerifier) Verify(ctx context.Context, identityToken string) (*Identity, error) {
	jwks, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "не удалось проверить Apple токен", err)
	}

	var claims appleClaims
	token, err := jwt.ParseWithClaims(identityToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token header has no kid")
		}
		for _, key := range jwks.Keys {
			if key.Kid == kid {
				return parseRSAKey(key)
			}
		}
		return nil, fmt.Errorf("key %q not found in jwks", kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(appleIssuer),
	)
	if err != nil || !token.Valid {
		return nil, apperr.New(apperr.Unauthorized, "недействительный или просроченный Apple токен")
	}
	if claims.Email == "" {
		return nil, apperr.New(apperr.Unauthorized, "Apple токен не содержит email")
	}
	return &Identity{Email: claims.Email}, nil
}

func (v *AppleVerifier) fetchKeys(ctx context.Context) (*appleJWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.keysURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	var jwks appleJWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, err
	}
	return &jwks, nil
}

func parseRSAKey(key appleJWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
