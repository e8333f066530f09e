package models

import "time"

// Статусы платежа, отражающие состояние на стороне платёжного шлюза.
// Статус шлюза сохраняется в верхнем регистре с заменой дефисов на
// подчёркивания ("waiting-for-capture" → "WAITING_FOR_CAPTURE").
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusSucceeded = "SUCCEEDED"
	PaymentStatusCanceled  = "CANCELED"
)

// YooKassaPayment — одна строка на созданный платёж: идентификатор
// платежа у шлюза (ключ), запрошенный тариф и введённый покупателем
// email или id аккаунта. GrantedAt — идемпотентный барьер: подписка
// выдаётся по платежу не более одного раза.
type YooKassaPayment struct {
	ID        string // Идентификатор платежа у шлюза
	PlanID    string
	EmailOrID string // Email или id аккаунта, указанный покупателем
	Status    string
	UserID    *string    // Пользователь, получивший подписку
	GrantedAt *time.Time // Момент выдачи подписки, nil пока не выдана
	CreatedAt time.Time
}
