// Package sender отвечает за доставку писем с кодом подтверждения
// и публикацию push уведомлений в RabbitMQ.
package sender

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/streadway/amqp"

	"github.com/harmony-app/harmony-backend/internal/lib/rabbitmq"
	"github.com/harmony-app/harmony-backend/internal/lib/sl"
	"github.com/harmony-app/harmony-backend/internal/lib/smtp"
)

// PushMessage описывает push уведомление для воркера доставки.
type PushMessage struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// SenderService отправляет письма и push уведомления.
type SenderService struct {
	transport smtp.TransportInterface
	channel   *amqp.Channel
	pushKey   string
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
// channel может быть nil, тогда push уведомления не публикуются.
func NewSenderService(transport smtp.TransportInterface, channel *amqp.Channel, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		channel:   channel,
		pushKey:   "push",
		log:       log,
	}
}

// SendVerificationCode отправляет письмо с кодом подтверждения регистрации.
func (s *SenderService) SendVerificationCode(email, code string) error {
	to := []string{email}
	subject := "Подтверждение регистрации в Harmony"
	bodyText := fmt.Sprintf("Здравствуйте!\n\nВаш код подтверждения: %s\n\nКод действует 10 минут. Если вы не регистрировались в Harmony, просто проигнорируйте это письмо.", code)

	return s.sendEmail(to, subject, bodyText)
}

// PublishPush публикует push уведомление в очередь доставки.
func (s *SenderService) PublishPush(userID, title, body string) error {
	if s.channel == nil {
		return nil
	}
	msg := PushMessage{UserID: userID, Title: title, Body: body}
	if err := rabbitmq.PublishMessage(s.channel, rabbitmq.ExchangeName, s.pushKey, msg); err != nil {
		s.log.Error("failed to publish push notification", sl.Err(err))
		return err
	}
	return nil
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", "recipient", addr, sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
