package federated

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harmony-app/harmony-backend/internal/apperr"
)

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier проверяет id_token Google через эндпоинт tokeninfo.
type GoogleVerifier struct {
	tokenInfoURL string
	httpClient   *http.Client
}

// NewGoogleVerifier создаёт проверку токенов Google.
func NewGoogleVerifier(timeout time.Duration) *GoogleVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleVerifier{
		tokenInfoURL: googleTokenInfoURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type googleTokenInfo struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// Verify проверяет id_token и возвращает подтверждённую личность.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	const op = "federated.GoogleVerify"

	reqURL := v.tokenInfoURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "недействительный Google токен", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.New(apperr.Unauthorized, "недействительный Google токен")
	}

	var info googleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "недействительный Google токен", err)
	}
	if info.Email == "" {
		return nil, apperr.New(apperr.Unauthorized, "Google токен не содержит email")
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(info.GivenName) + " " + strings.TrimSpace(info.FamilyName))
	}
	return &Identity{Email: info.Email, Name: name}, nil
}
