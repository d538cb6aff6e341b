package order

import (
	"github.com/go-faster/errors"

	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
)

// Sentinel validation errors. None of them is ever sent to the server.
var (
	ErrConsentRequired       = &apierr.ValidationError{Field: "gdpr_consent", Reason: "consent required"}
	ErrEmptyCart             = &apierr.ValidationError{Field: "cart_items", Reason: "cart is empty"}
	ErrEmailRequired         = &apierr.ValidationError{Field: "email", Reason: "required"}
	ErrPaymentMethodRequired = &apierr.ValidationError{Field: "payment_method", Reason: "required"}
)

// ErrSubmitInProgress is returned when Submit is called while a previous
// submission has not finished yet.
var ErrSubmitInProgress = errors.New("order submission already in progress")

// ErrNotFound is returned by History.Get for unknown orders.
var ErrNotFound = errors.New("order not found")
