package paymentprovider

import "time"

// Amount денежная сумма в формате ЮKassa, например {"299.00", "RUB"}.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Confirmation сценарий подтверждения платежа пользователем.
type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
	Enforce         bool   `json:"enforce,omitempty"`
}

// CreatePaymentRequest запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount       Amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation Confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Payment платёж ЮKassa. Возвращается и при создании, и при запросе состояния.
type Payment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"` // pending, waiting_for_capture, succeeded, canceled
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// APIError тело ошибки API ЮKassa.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
