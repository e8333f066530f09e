// Package receipts проверяет чеки мобильных магазинов:
// verifyReceipt у Apple и androidpublisher у Google Play.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	appleProdURL    = "https://buy.itunes.apple.com/verifyReceipt"
	appleSandboxURL = "https://sandbox.itunes.apple.com/verifyReceipt"

	// Статус verifyReceipt: чек из песочницы отправлен на прод.
	appleStatusSandboxReceipt = 21007
)

// AppleClient клиент эндпоинта verifyReceipt.
type AppleClient struct {
	sharedSecret string
	prodURL      string
	sandboxURL   string
	httpClient   *http.Client
}

// NewAppleClient создаёт клиент проверки чеков App Store.
func NewAppleClient(sharedSecret string, timeout time.Duration) *AppleClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AppleClient{
		sharedSecret: sharedSecret,
		prodURL:      appleProdURL,
		sandboxURL:   appleSandboxURL,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type appleVerifyRequest struct {
	ReceiptData string `json:"receipt-data"`
	Password    string `json:"password"`
}

type appleInAppItem struct {
	ExpiresDateMS string `json:"expires_date_ms"`
}

type appleVerifyResponse struct {
	Status  int `json:"status"`
	Receipt struct {
		InApp []appleInAppItem `json:"in_app"`
	} `json:"receipt"`
	LatestReceiptInfo []appleInAppItem `json:"latest_receipt_info"`
}

// Verification результат проверки чека.
type Verification struct {
	Status       int       // Статус verifyReceipt, 0 при успехе
	LatestExpiry time.Time // Самый поздний expires_date_ms из чека, нулевое значение если не найден
}

// VerifyReceipt проверяет чек сначала на проде, а при статусе 21007
// повторяет запрос в песочницу. Из чека берётся самая поздняя дата
// окончания среди latest_receipt_info и in_app.
func (c *AppleClient) VerifyReceipt(ctx context.Context, receipt string) (*Verification, error) {
	const op = "receipts.VerifyReceipt"

	body := appleVerifyRequest{ReceiptData: receipt, Password: c.sharedSecret}

	var lastStatus int
	for _, url := range []string{c.prodURL, c.sandboxURL} {
		resp, err := c.verify(ctx, url, body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		lastStatus = resp.Status

		if resp.Status == 0 {
			list := resp.LatestReceiptInfo
			if len(list) == 0 {
				list = resp.Receipt.InApp
			}
			return &Verification{Status: 0, LatestExpiry: latestExpiry(list)}, nil
		}
		if resp.Status != appleStatusSandboxReceipt {
			break
		}
	}
	return &Verification{Status: lastStatus}, nil
}

func (c *AppleClient) verify(ctx context.Context, url string, body appleVerifyRequest) (*appleVerifyResponse, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var out appleVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func latestExpiry(items []appleInAppItem) time.Time {
	var maxMS int64
	for _, item := range items {
		if item.ExpiresDateMS == "" {
			continue
		}
		ms, err := strconv.ParseInt(item.ExpiresDateMS, 10, 64)
		if err != nil {
			continue
		}
		if ms > maxMS {
			maxMS = ms
		}
	}
	if maxMS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(maxMS)
}
