package mailer

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cancelkit/cancelkit/internal/render"
)

//go:embed templates/verification.txt
var verificationText string

//go:embed templates/verification.html
var verificationHTML string

//go:embed templates/summary.txt
var summaryText string

//go:embed templates/summary.html
var summaryHTML string

//go:embed templates/contact.txt
var contactText string

//go:embed templates/request.txt
var requestText string

// Summary describes the outcome of one dispatched batch, by provider name
type Summary struct {
	SentEmails    []string
	FailedEmails  []string
	SentLetters   []string
	FailedLetters []string
	// Forward is true when the cancellation emails went to the user's
	// own address for manual forwarding.
	Forward bool
}

// NoticeMailer builds and sends the service's own notification emails:
// verification links, batch summaries, and contact form traffic.
type NoticeMailer struct {
	mailer Mailer
	engine *render.Engine
	// serviceAddress receives contact form and provider request mails
	serviceAddress string
}

// NewNoticeMailer creates a NoticeMailer
func NewNoticeMailer(m Mailer, engine *render.Engine, serviceAddress string) *NoticeMailer {
	return &NoticeMailer{mailer: m, engine: engine, serviceAddress: serviceAddress}
}

// renderPair renders the text and optional HTML variants of a notice
func (n *NoticeMailer) renderPair(textTmpl, htmlTmpl string, ctx map[string]interface{}) (string, string, error) {
	text, err := n.engine.Render(textTmpl, ctx, false)
	if err != nil {
		return "", "", fmt.Errorf("rendering notice text: %w", err)
	}
	if htmlTmpl == "" {
		return text, "", nil
	}
	html, err := n.engine.Render(htmlTmpl, ctx, false)
	if err != nil {
		return "", "", fmt.Errorf("rendering notice html: %w", err)
	}
	return text, html, nil
}

// SendVerificationEmail sends the confirm-your-request mail containing
// the tokenized verification link.
func (n *NoticeMailer) SendVerificationEmail(ctx context.Context, firstName, email, verificationURL string) error {
	text, html, err := n.renderPair(verificationText, verificationHTML, map[string]interface{}{
		"firstname":        firstName,
		"verification_url": verificationURL,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, &Message{
		Subject:  "Cancelkit: confirm your cancellation request",
		TextBody: text,
		HTMLBody: html,
		To:       []string{email},
	})
}

// nonNil keeps the template's size checks working on absent lists
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SendSummaryEmail sends the per-batch outcome report to the user, with
// the generated letters attached as PDFs.
func (n *NoticeMailer) SendSummaryEmail(ctx context.Context, contact render.Contact, summary Summary, pdfs []Attachment) error {
	text, html, err := n.renderPair(summaryText, summaryHTML, map[string]interface{}{
		"firstname":      contact.FirstName,
		"forward":        summary.Forward,
		"sent_emails":    nonNil(summary.SentEmails),
		"failed_emails":  nonNil(summary.FailedEmails),
		"sent_letters":   nonNil(summary.SentLetters),
		"failed_letters": nonNil(summary.FailedLetters),
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, &Message{
		Subject:     "Cancelkit: your cancellations have been processed",
		TextBody:    text,
		HTMLBody:    html,
		To:          []string{contact.Email},
		Attachments: pdfs,
	})
}

// SendContactEmail forwards a contact form submission to the service
// address, cc'ing the sender so they keep a copy.
func (n *NoticeMailer) SendContactEmail(ctx context.Context, name, email, title, message string) error {
	text, _, err := n.renderPair(contactText, "", map[string]interface{}{
		"name":    name,
		"email":   email,
		"title":   title,
		"message": message,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, &Message{
		Subject:  "Cancelkit: contact form",
		TextBody: text,
		To:       []string{n.serviceAddress},
		Cc:       []string{email},
		ReplyTo:  email,
	})
}

// SendRequestEmail forwards a missing-provider request to the service
// address.
func (n *NoticeMailer) SendRequestEmail(ctx context.Context, name, email, subscription, message string) error {
	text, _, err := n.renderPair(requestText, "", map[string]interface{}{
		"name":         name,
		"email":        email,
		"subscription": subscription,
		"message":      message,
	})
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, &Message{
		Subject:  "Cancelkit: provider requested",
		TextBody: text,
		To:       []string{n.serviceAddress},
		Cc:       []string{email},
		ReplyTo:  email,
	})
}
