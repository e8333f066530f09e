package receipts

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/option"
)

// GoogleClient клиент androidpublisher для проверки подписок Google Play.
type GoogleClient struct {
	service     *androidpublisher.Service
	packageName string
}

// NewGoogleClient создаёт клиент по файлу сервисного аккаунта.
func NewGoogleClient(ctx context.Context, credentialsFile, packageName string) (*GoogleClient, error) {
	const op = "receipts.NewGoogleClient"

	service, err := androidpublisher.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(androidpublisher.AndroidpublisherScope),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &GoogleClient{service: service, packageName: packageName}, nil
}

// GetSubscriptionExpiry возвращает дату окончания подписки по токену покупки.
func (c *GoogleClient) GetSubscriptionExpiry(ctx context.Context, productID, purchaseToken string) (time.Time, error) {
	const op = "receipts.GetSubscriptionExpiry"

	purchase, err := c.service.Purchases.Subscriptions.
		Get(c.packageName, productID, purchaseToken).
		Context(ctx).Do()
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if purchase.ExpiryTimeMillis == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(purchase.ExpiryTimeMillis), nil
}
