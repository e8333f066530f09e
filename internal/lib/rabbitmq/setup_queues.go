package rabbitmq

// ExchangeName имя exchange для push уведомлений.
const ExchangeName = "notifications"

// QueueConfig описывает очередь и ее ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetPushQueues возвращает очереди push уведомлений для воркеров доставки.
func GetPushQueues(pushQueue string) []QueueConfig {
	return []QueueConfig{
		{QueueName: pushQueue, RoutingKey: "push"},
	}
}
