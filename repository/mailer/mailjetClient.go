package mailer

import (
	"context"
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go"
)

type mailjetTransport struct {
	client *mailjet.Client
	sender string
}

func NewMailjet(publicKey, privateKey, sender string) Transport {
	return &mailjetTransport{
		client: mailjet.NewMailjetClient(publicKey, privateKey),
		sender: sender,
	}
}

func (t *mailjetTransport) Send(ctx context.Context, msg Message) error {
	info := []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: t.sender},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: msg.To, Name: msg.ToName}},
		Subject:  msg.Subject,
		TextPart: msg.Body,
		CustomID: msg.Key,
	}}

	msgs := mailjet.MessagesV31{Info: info}
	if _, err := t.client.SendMailV31(&msgs); err != nil {
		return fmt.Errorf("could not send mail: %w", err)
	}
	return nil
}
