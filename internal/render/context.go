package render

import "github.com/cancelkit/cancelkit/internal/catalog"

// Contact carries the sender details interpolated into letters and emails
type Contact struct {
	FirstName  string
	LastName   string
	Email      string
	Address    string
	PostalCode string
	Residence  string
}

// LetterContext builds the context for a deregister letter. The date is
// caller-supplied so rendering stays deterministic.
func LetterContext(c Contact, sub *catalog.Subscription, date string) map[string]interface{} {
	address, postalCode, city := sub.AddressInformation()
	return map[string]interface{}{
		"firstname":                c.FirstName,
		"lastname":                 c.LastName,
		"address":                  c.Address,
		"postal_code":              c.PostalCode,
		"residence":                c.Residence,
		"subscription_name":        sub.Name,
		"subscription_address":     address,
		"subscription_postal_code": postalCode,
		"subscription_residence":   city,
		"date":                     date,
	}
}

// EmailContext builds the context for a deregister email. forwardAddress
// is false for a direct send, or the provider's email when the message
// is routed through the user for manual forwarding.
func EmailContext(c Contact, subscriptionName string, forwardAddress interface{}, date string) map[string]interface{} {
	if forwardAddress == nil || forwardAddress == "" {
		forwardAddress = false
	}
	return map[string]interface{}{
		"firstname":       c.FirstName,
		"lastname":        c.LastName,
		"address":         c.Address,
		"postalcode":      c.PostalCode,
		"residence":       c.Residence,
		"subscription":    subscriptionName,
		"forward_address": forwardAddress,
		"date":            date,
	}
}
