// Package paymentprovider содержит HTTP-клиент платёжного шлюза ЮKassa.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client клиент API ЮKassa с базовой аутентификацией магазина.
type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент ЮKassa.
func NewClient(shopID, secretKey, apiURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = "https://api.yookassa.ru/v3"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		shopID:     shopID,
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	url := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreatePayment отправляет запрос на создание платежа с redirect-подтверждением.
// Ключ идемпотентности генерируется вызывающей стороной и передаётся
// в заголовке Idempotence-Key.
func (c *Client) CreatePayment(ctx context.Context, reqParams CreatePaymentRequest, idempotenceKey string) (*Payment, error) {
	const op = "paymentprovider.CreatePayment"

	req, err := c.newRequest(ctx, http.MethodPost, "/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Idempotence-Key", idempotenceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Description != "" {
			return nil, fmt.Errorf("%s: %s: %s", op, resp.Status, apiErr.Description)
		}
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}

// GetPayment запрашивает состояние платежа по его идентификатору.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	const op = "paymentprovider.GetPayment"

	req, err := c.newRequest(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}
