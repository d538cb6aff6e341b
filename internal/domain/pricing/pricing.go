// Package pricing derives subtotal, payment surcharge and grand total for a
// set of cart line items. All amounts are CZK.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method enumerates the supported payment methods.
type Method string

const (
	// MethodUnset means no method has been chosen yet.
	MethodUnset Method = ""
	// CashOnDelivery adds a flat surcharge.
	CashOnDelivery Method = "cash_on_delivery"
	// BankTransfer is free of charge.
	BankTransfer Method = "bank_transfer"
	// CardOnline adds a percentage of the subtotal.
	CardOnline Method = "card_online"
)

// ErrUnknownMethod is returned by ParseMethod for unsupported values.
var ErrUnknownMethod = errors.New("unknown payment method")

var (
	cashOnDeliveryFee = decimal.NewFromInt(50)
	cardOnlineRate    = decimal.RequireFromString("0.01")
)

// ParseMethod converts the wire value into a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(s); m {
	case MethodUnset, CashOnDelivery, BankTransfer, CardOnline:
		return m, nil
	default:
		return MethodUnset, errors.Wrapf(ErrUnknownMethod, "%q", s)
	}
}

// Line is the pricing view of a single cart line item.
type Line struct {
	UnitPrice decimal.Decimal
	// Quantity of zero means absent and is counted as one.
	Quantity int
}

// EffectiveQuantity returns the quantity used for pricing.
func (l Line) EffectiveQuantity() int {
	if l.Quantity <= 0 {
		return 1
	}
	return l.Quantity
}

// Quote is the derived price breakdown. It is never stored; call Calculate
// again whenever the items or the method change.
type Quote struct {
	Subtotal decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal sums unit price times quantity over all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.EffectiveQuantity()))))
	}
	return sum
}

// Fee returns the surcharge for method applied to subtotal.
func Fee(method Method, subtotal decimal.Decimal) decimal.Decimal {
	switch method {
	case CashOnDelivery:
		return cashOnDeliveryFee
	case CardOnline:
		return subtotal.Mul(cardOnlineRate)
	default:
		return decimal.Zero
	}
}

// Calculate prices lines for the given method. Total is rounded to two
// decimal places, half away from zero.
func Calculate(lines []Line, method Method) Quote {
	subtotal := Subtotal(lines)
	fee := Fee(method, subtotal)
	return Quote{
		Subtotal: subtotal,
		Fee:      fee,
		Total:    subtotal.Add(fee).Round(2),
	}
}
