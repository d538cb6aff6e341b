// Package address reconciles the shipping and billing addresses used for an
// order, including the "same as shipping" shortcut.
package address

import (
	"fmt"

	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
)

// Address is a postal address. An empty string marks an unset field.
type Address struct {
	Street     string
	City       string
	PostalCode string
	Country    string
}

// Kind names which of the two addresses a field belongs to.
type Kind string

const (
	Shipping Kind = "shipping_address"
	Billing  Kind = "billing_address"
)

// MissingFieldError reports a required address field left empty.
type MissingFieldError struct {
	Kind  Kind
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s.%s is required", e.Kind, e.Field)
}

// Validation marks MissingFieldError as a client-side validation failure.
func (e *MissingFieldError) Validation() bool { return true }

var _ apierr.Validation = (*MissingFieldError)(nil)

// Validate checks that every field of a is set.
func (a Address) Validate(kind Kind) error {
	fields := [...]struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if f.value == "" {
			return &MissingFieldError{Kind: kind, Field: f.name}
		}
	}
	return nil
}
