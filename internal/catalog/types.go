// Package catalog holds the subscription catalog: providers that can be
// cancelled, their category tree, and deregistration template resolution.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Template kinds resolvable for a catalog object
const (
	TemplateLetter = "letter"
	TemplateEmail  = "email"
)

// Storage filenames for uploaded template overrides
const (
	LetterTemplateFile = "letter_template.html"
	EmailTemplateFile  = "email_template.txt"
)

// ReplyNumberPrefix is prepended to the support reply number when it is
// used as a postal address line.
const ReplyNumberPrefix = "Postbus "

// Subscription is a cancelable service provider entry.
//
// Optional text fields use the empty string as the single absence
// sentinel; there is no NULL/"" distinction at this layer.
type Subscription struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`

	CategoryID uuid.NullUUID `json:"category_id"`

	// Price per month in cents; 0 means unknown
	Price int64 `json:"price"`

	SupportEmail       string `json:"support_email"`
	SupportReplyNumber string `json:"support_reply_number"`
	SupportPostalCode  string `json:"support_postal_code"`
	SupportCity        string `json:"support_city"`

	CorrespondenceAddress    string `json:"correspondence_address"`
	CorrespondencePostalCode string `json:"correspondence_postal_code"`
	CorrespondenceCity       string `json:"correspondence_city"`

	SupportPhoneNumber string `json:"support_phone_number"`
	CancellationNumber string `json:"cancellation_number"`

	AmountUsed int `json:"amount_used"`

	// File-store keys of uploaded overrides; empty means "inherit"
	LetterTemplate    string `json:"letter_template"`
	EmailTemplateText string `json:"email_template_text"`

	// Derived capability flags, recomputed on every save
	CanLetter bool `json:"can_generate_letter"`
	CanEmail  bool `json:"can_generate_email"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category groups subscriptions hierarchically. It carries the same
// template-override shape as Subscription.
type Category struct {
	ID       uuid.UUID     `json:"id"`
	Name     string        `json:"name"`
	Slug     string        `json:"slug"`
	ParentID uuid.NullUUID `json:"parent_id"`
	Ordering int           `json:"ordering"`

	LetterTemplate    string `json:"letter_template"`
	EmailTemplateText string `json:"email_template_text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanGenerateEmail reports whether a deregister email can be produced
func (s *Subscription) CanGenerateEmail() bool {
	return s.SupportEmail != ""
}

// CanGenerateLetter reports whether a deregister letter can be produced:
// either the reply-number channel or the correspondence channel must be
// complete (address plus postal code).
func (s *Subscription) CanGenerateLetter() bool {
	if s.SupportReplyNumber != "" && s.SupportPostalCode != "" {
		return true
	}
	return s.CorrespondenceAddress != "" && s.CorrespondencePostalCode != ""
}

// ReplyNumberPrefixed returns the support reply number as a postal
// address line ("Postbus 12345"), or "" when no reply number is set.
func (s *Subscription) ReplyNumberPrefixed() string {
	if s.SupportReplyNumber == "" {
		return ""
	}
	return ReplyNumberPrefix + s.SupportReplyNumber
}

// AddressInformation selects the postal channel for letters. The
// reply-number channel wins when both the reply number and its postal
// code are present; otherwise the correspondence triple is returned
// verbatim, complete or not.
func (s *Subscription) AddressInformation() (address, postalCode, city string) {
	if s.SupportReplyNumber != "" && s.SupportPostalCode != "" {
		return s.ReplyNumberPrefixed(), s.SupportPostalCode, s.SupportCity
	}
	return s.CorrespondenceAddress, s.CorrespondencePostalCode, s.CorrespondenceCity
}

// HasRegisteredPrice reports whether a price is known for this entry
func (s *Subscription) HasRegisteredPrice() bool {
	return s.Price > 0
}

// RefreshFlags recomputes the derived capability flags; called on save
func (s *Subscription) RefreshFlags() {
	s.CanLetter = s.CanGenerateLetter()
	s.CanEmail = s.CanGenerateEmail()
}

// TemplateOverrides is the shared template-resolution surface of
// Subscription and Category.
type TemplateOverrides interface {
	// TemplateKind is the {kind} segment of override storage paths
	TemplateKind() string
	TemplateSlug() string
	// OverrideKey returns the file-store key of the uploaded override
	// for the given template kind, or "" when none is set
	OverrideKey(kind string) string
	// ParentCategory returns the next object in the inheritance chain
	ParentCategory() (uuid.UUID, bool)
}

func (s *Subscription) TemplateKind() string { return "subscription" }
func (s *Subscription) TemplateSlug() string { return s.Slug }

func (s *Subscription) OverrideKey(kind string) string {
	if kind == TemplateLetter {
		return s.LetterTemplate
	}
	return s.EmailTemplateText
}

func (s *Subscription) ParentCategory() (uuid.UUID, bool) {
	return s.CategoryID.UUID, s.CategoryID.Valid
}

func (c *Category) TemplateKind() string { return "category" }
func (c *Category) TemplateSlug() string { return c.Slug }

func (c *Category) OverrideKey(kind string) string {
	if kind == TemplateLetter {
		return c.LetterTemplate
	}
	return c.EmailTemplateText
}

func (c *Category) ParentCategory() (uuid.UUID, bool) {
	return c.ParentID.UUID, c.ParentID.Valid
}
