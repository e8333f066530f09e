package models

import (
	"fmt"
	"time"
)

// Store обозначает источник подписки. Тип закрытый: реконсилиация
// платежей сопоставляет значения исчерпывающе.
type Store string

const (
	// StoreInternal — подписка, купленная через внутренний платёжный шлюз.
	StoreInternal Store = "INTERNAL"
	// StoreApple — подписка, подтверждённая чеком App Store.
	StoreApple Store = "APPLE"
	// StoreGoogle — подписка, подтверждённая покупкой Google Play.
	StoreGoogle Store = "GOOGLE"
)

// ParseStore преобразует строку из хранилища в Store.
func ParseStore(s string) (Store, error) {
	switch Store(s) {
	case StoreInternal, StoreApple, StoreGoogle:
		return Store(s), nil
	}
	return "", fmt.Errorf("unknown subscription store: %q", s)
}

// Subscription — одна строка на пользователя: активный тариф, источник
// и границы текущего периода. После появления строка является
// авторитетным источником статуса подписки, перекрывая легаси-поле
// PremiumUntil пользователя.
type Subscription struct {
	UserID             string
	ProductID          string // Идентификатор тарифа ("1month", "6months")
	Store              Store
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	UpdatedAt          time.Time
}

// SubscriptionStatus — разрешённый статус подписки пользователя:
// либо из строки Subscription, либо из легаси-поля PremiumUntil
// (тогда ProductID и Store пусты).
type SubscriptionStatus struct {
	ProductID        string     `json:"product_id,omitempty"`
	Store            Store      `json:"store,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}

// IsActive сообщает, действует ли подписка в момент now.
func (st SubscriptionStatus) IsActive(now time.Time) bool {
	return st.CurrentPeriodEnd != nil && now.Before(*st.CurrentPeriodEnd)
}
