// Package mailer sends the service's outbound email: deregister mails,
// verification links and batch summaries.
package mailer

import "context"

// Attachment is a file attached to an outgoing message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outgoing email
type Message struct {
	Subject     string
	TextBody    string
	HTMLBody    string
	To          []string
	Cc          []string
	ReplyTo     string
	Attachments []Attachment
}

// Mailer sends messages. Implementations report transport failures as
// errors; callers decide whether a failure is fatal or per-item.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}
