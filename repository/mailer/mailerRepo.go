package mailer

import "context"

// Message is one email to deliver. Subject and body arrive fully
// rendered; the transport treats them as opaque strings. Key is an
// optional idempotency tag passed through to the provider.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
	Key     string
}

// Transport makes a single delivery attempt. Retry policy lives in
// service/notifier, not here.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}
