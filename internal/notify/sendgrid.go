package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"settlement-engine/internal/domain"
	"settlement-engine/internal/logger"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridDispatcher delivers email offers, with the offer letter attached when present.
type SendGridDispatcher struct {
	client    mailClient
	fromEmail string
	fromName  string
}

func NewSendGridDispatcher(apiKey, fromEmail, fromName string) *SendGridDispatcher {
	return &SendGridDispatcher{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *SendGridDispatcher) Send(ctx context.Context, channel domain.Channel, msg domain.Message) (domain.DeliveryStatus, error) {
	if msg.Recipient == "" {
		return domain.DeliveryFailed, fmt.Errorf("customer has no email address")
	}

	logger.ExternalServiceCall("SendGrid", "Send", "offer_id", msg.OfferID)
	resp, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return domain.DeliveryFailed, fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
		logger.ExternalServiceResult("SendGrid", "Send", err)
		return domain.DeliveryFailed, err
	}
	logger.ExternalServiceResult("SendGrid", "Send", nil, "status", resp.StatusCode)
	return domain.DeliveryDelivered, nil
}

func (s *SendGridDispatcher) build(msg domain.Message) *mail.SGMailV3 {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.RecipientName, msg.Recipient)
	htmlBody := "<p>" + strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>") + "</p>"

	m := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, htmlBody)
	for _, a := range msg.Attachments {
		att := mail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		att.SetDisposition("attachment")
		m.AddAttachment(att)
	}
	return m
}
