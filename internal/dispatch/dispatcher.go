// Package dispatch orchestrates a confirmed cancellation batch: per-item
// emails and letters, the summary mail, and record finalization.
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cancelkit/cancelkit/internal/catalog"
	"github.com/cancelkit/cancelkit/internal/mailer"
	"github.com/cancelkit/cancelkit/internal/pending"
	"github.com/cancelkit/cancelkit/internal/render"
)

// SubscriptionStore is the catalog surface the dispatcher needs
type SubscriptionStore interface {
	ResolveSubscriptionIDs(ctx context.Context, ids []uuid.UUID) ([]*catalog.Subscription, error)
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

// TemplateSource resolves template text for a catalog object
type TemplateSource interface {
	ResolveLetter(ctx context.Context, obj catalog.TemplateOverrides) (string, error)
	ResolveEmail(ctx context.Context, obj catalog.TemplateOverrides) (string, error)
}

// Config wires the dispatcher's collaborators
type Config struct {
	Subscriptions SubscriptionStore
	Templates     TemplateSource
	Engine        *render.Engine
	Mailer        mailer.Mailer
	Notices       *mailer.NoticeMailer
	Pending       *pending.Store

	// BaseURL is the externally reachable service URL for verification links
	BaseURL string
	// DirectSend routes cancellation emails straight to providers instead
	// of to the user for manual forwarding
	DirectSend bool

	Logger *log.Logger
}

// Dispatcher runs the cancellation pipeline for pending requests
type Dispatcher struct {
	subs       SubscriptionStore
	templates  TemplateSource
	engine     *render.Engine
	mailer     mailer.Mailer
	notices    *mailer.NoticeMailer
	pending    *pending.Store
	baseURL    string
	directSend bool
	logger     *log.Logger
	now        func() time.Time
}

// NewDispatcher creates a dispatcher
func NewDispatcher(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		subs:       cfg.Subscriptions,
		templates:  cfg.Templates,
		engine:     cfg.Engine,
		mailer:     cfg.Mailer,
		notices:    cfg.Notices,
		pending:    cfg.Pending,
		baseURL:    cfg.BaseURL,
		directSend: cfg.DirectSend,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleVerificationRequest stores the user's intent and mails them the
// confirmation link. Unknown subscription ids are discarded. On any
// failure no partial record is left behind.
func (d *Dispatcher) HandleVerificationRequest(ctx context.Context, contact pending.Contact, ids []uuid.UUID) (*pending.Request, error) {
	subs, err := d.subs.ResolveSubscriptionIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving subscriptions: %w", err)
	}

	resolved := make([]uuid.UUID, 0, len(subs))
	for _, sub := range subs {
		resolved = append(resolved, sub.ID)
	}

	req, err := d.pending.Create(ctx, contact, resolved)
	if err != nil {
		return nil, err
	}

	verifyURL := fmt.Sprintf("%s/api/v1/verify/%s", d.baseURL, req.Token)
	if err := d.notices.SendVerificationEmail(ctx, contact.FirstName, contact.Email, verifyURL); err != nil {
		d.logger.Printf("[Dispatch] verification email to %s failed: %v", contact.Email, err)
		if delErr := d.pending.Delete(ctx, req.Token); delErr != nil {
			d.logger.Printf("[Dispatch] cleanup of %s failed: %v", req.Token, delErr)
		}
		return nil, fmt.Errorf("sending verification email: %w", err)
	}
	return req, nil
}

// HandleDeregisterRequest runs the full pipeline for a confirmed record:
// cancellation emails, letters, summary, finalization. Per-item failures
// end up in the summary, never abort the batch. Returns true iff the
// summary email went out.
func (d *Dispatcher) HandleDeregisterRequest(ctx context.Context, req *pending.Request) bool {
	subs, err := d.subs.ResolveSubscriptionIDs(ctx, req.SubscriptionIDs)
	if err != nil {
		d.logger.Printf("[Dispatch] resolving batch %s: %v", req.Token, err)
		return false
	}

	contact := render.Contact{
		FirstName:  req.Contact.FirstName,
		LastName:   req.Contact.LastName,
		Email:      req.Contact.Email,
		Address:    req.Contact.Address,
		PostalCode: req.Contact.PostalCode,
		Residence:  req.Contact.Residence,
	}
	date := d.now().Format("2 January 2006")

	summary := mailer.Summary{Forward: !d.directSend}

	// Email phase runs to completion before any letter is rendered
	for _, sub := range subs {
		if d.sendCancellationEmail(ctx, contact, sub, date) {
			summary.SentEmails = append(summary.SentEmails, sub.Name)
		} else {
			summary.FailedEmails = append(summary.FailedEmails, sub.Name)
		}
	}

	var pdfs []mailer.Attachment
	for _, sub := range subs {
		if pdf := d.renderLetter(ctx, contact, sub, date); pdf != nil {
			pdfs = append(pdfs, mailer.Attachment{
				Filename:    sub.Slug + ".pdf",
				ContentType: "application/pdf",
				Data:        pdf,
			})
			summary.SentLetters = append(summary.SentLetters, sub.Name)
		} else {
			summary.FailedLetters = append(summary.FailedLetters, sub.Name)
		}
	}

	sent := true
	if err := d.notices.SendSummaryEmail(ctx, contact, summary, pdfs); err != nil {
		d.logger.Printf("[Dispatch] summary email to %s failed: %v", contact.Email, err)
		sent = false
	}

	d.finalize(ctx, req, subs)
	return sent
}

// sendCancellationEmail renders and sends one provider's cancellation
// mail. Reports success; all failure detail goes to the log.
func (d *Dispatcher) sendCancellationEmail(ctx context.Context, contact render.Contact, sub *catalog.Subscription, date string) bool {
	if !sub.CanGenerateEmail() {
		return false
	}

	src, err := d.templates.ResolveEmail(ctx, sub)
	if err != nil {
		d.logger.Printf("[Dispatch] email template for %s: %v", sub.Slug, err)
		return false
	}

	var forwardAddress interface{}
	if !d.directSend {
		forwardAddress = sub.SupportEmail
	}
	body, err := d.engine.RenderText(src, render.EmailContext(contact, sub.Name, forwardAddress, date))
	if err != nil {
		d.logger.Printf("[Dispatch] rendering email for %s: %v", sub.Slug, err)
		return false
	}

	msg := &mailer.Message{
		Subject:  "Cancellation: " + sub.Name,
		TextBody: body,
	}
	if d.directSend {
		msg.To = []string{sub.SupportEmail}
		msg.Cc = []string{contact.Email}
		msg.ReplyTo = contact.Email
	} else {
		msg.To = []string{contact.Email}
	}

	if err := d.mailer.Send(ctx, msg); err != nil {
		d.logger.Printf("[Dispatch] sending email for %s: %v", sub.Slug, err)
		return false
	}
	return true
}

// renderLetter produces the cancellation letter PDF for one provider, or
// nil when the provider has no postal channel or rendering fails.
func (d *Dispatcher) renderLetter(ctx context.Context, contact render.Contact, sub *catalog.Subscription, date string) []byte {
	if !sub.CanGenerateLetter() {
		return nil
	}

	src, err := d.templates.ResolveLetter(ctx, sub)
	if err != nil {
		d.logger.Printf("[Dispatch] letter template for %s: %v", sub.Slug, err)
		return nil
	}

	pdf, err := d.engine.RenderPDF(src, render.LetterContext(contact, sub, date))
	if err != nil {
		d.logger.Printf("[Dispatch] rendering letter for %s: %v", sub.Slug, err)
		return nil
	}
	return pdf
}

// finalize counts usage, consumes the record and sweeps expired ones.
// Usage is incremented for every subscription in the batch regardless of
// channel outcome; an attempt is an attempt.
func (d *Dispatcher) finalize(ctx context.Context, req *pending.Request, subs []*catalog.Subscription) {
	for _, sub := range subs {
		if err := d.subs.IncrementUsage(ctx, sub.ID); err != nil {
			d.logger.Printf("[Dispatch] incrementing usage for %s: %v", sub.Slug, err)
		}
	}
	if err := d.pending.Delete(ctx, req.Token); err != nil {
		d.logger.Printf("[Dispatch] deleting record %s: %v", req.Token, err)
	}
	if n, err := d.pending.SweepExpired(ctx); err != nil {
		d.logger.Printf("[Dispatch] sweeping expired records: %v", err)
	} else if n > 0 {
		d.logger.Printf("[Dispatch] swept %d expired records", n)
	}
}
