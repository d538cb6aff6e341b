package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
)

// Messages holds the user-visible strings of the checkout workflow.
type Messages struct {
	ConsentRequired string
	EmptyCart       string
	EmailRequired   string
	PaymentRequired string
	// MissingField is a format string taking the address kind and field.
	MissingField string
	AuthRequired string
	OrderSuccess string
	OrderError   string
	InProgress   string
	NotFound     string
}

var catalogs = map[string]Messages{
	"cs": {
		ConsentRequired: "Pro odeslání objednávky je nutný souhlas se zpracováním osobních údajů.",
		EmptyCart:       "Košík je prázdný.",
		EmailRequired:   "E-mail je povinný.",
		PaymentRequired: "Vyberte způsob platby.",
		MissingField:    "Pole %s.%s je povinné.",
		AuthRequired:    "Uživatel není přihlášen.",
		OrderSuccess:    "Objednávka byla úspěšně vytvořena.",
		OrderError:      "Při vytváření objednávky došlo k chybě.",
		InProgress:      "Objednávka se právě odesílá.",
		NotFound:        "Objednávka nenalezena.",
	},
	"en": {
		ConsentRequired: "You must consent to personal data processing to place the order.",
		EmptyCart:       "Your cart is empty.",
		EmailRequired:   "E-mail is required.",
		PaymentRequired: "Choose a payment method.",
		MissingField:    "Field %s.%s is required.",
		AuthRequired:    "You are not logged in.",
		OrderSuccess:    "Your order was created successfully.",
		OrderError:      "An error occurred while creating the order.",
		InProgress:      "The order is being submitted.",
		NotFound:        "Order not found.",
	},
}

// Catalog returns the messages for lang, falling back to Czech.
func Catalog(lang string) Messages {
	if m, ok := catalogs[lang]; ok {
		return m
	}
	return catalogs["cs"]
}

// Describe maps err to the message shown to the user. A server-provided
// message always wins; transport failures get the generic failure text.
func (m Messages) Describe(err error) string {
	if err == nil {
		return ""
	}
	if msg, ok := apierr.ServerMessage(err); ok {
		return msg
	}

	var mfErr *address.MissingFieldError
	switch {
	case errors.Is(err, ErrConsentRequired):
		return m.ConsentRequired
	case errors.Is(err, ErrEmptyCart):
		return m.EmptyCart
	case errors.Is(err, ErrEmailRequired):
		return m.EmailRequired
	case errors.Is(err, ErrPaymentMethodRequired):
		return m.PaymentRequired
	case errors.As(err, &mfErr):
		return fmt.Sprintf(m.MissingField, mfErr.Kind, mfErr.Field)
	case errors.Is(err, apierr.ErrAuthRequired):
		return m.AuthRequired
	case errors.Is(err, ErrSubmitInProgress):
		return m.InProgress
	case errors.Is(err, ErrNotFound):
		return m.NotFound
	default:
		return m.OrderError
	}
}
