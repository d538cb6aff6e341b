// Package cart holds the session's view of the remote shopping cart.
package cart

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
)

// DefaultPageSize matches the server's default per_page.
const DefaultPageSize = 25

// LineItem is one book in the cart. Title and Author are display-only
// copies from the catalog.
type LineItem struct {
	ISBN10     string
	ISBN13     string
	Title      string
	Author     string
	CoverImage string
	UnitPrice  decimal.Decimal
	// Quantity of zero means the server did not send one; it counts as one.
	Quantity int
}

// ISBN returns the identifier orders are placed with: ISBN-10 when known,
// ISBN-13 otherwise.
func (i LineItem) ISBN() string {
	if i.ISBN10 != "" {
		return i.ISBN10
	}
	return i.ISBN13
}

// Line converts the item into its pricing view.
func (i LineItem) Line() pricing.Line {
	return pricing.Line{UnitPrice: i.UnitPrice, Quantity: i.Quantity}
}

// Lines converts items into pricing lines.
func Lines(items []LineItem) []pricing.Line {
	out := make([]pricing.Line, len(items))
	for n, it := range items {
		out[n] = it.Line()
	}
	return out
}

// Page is a single page of cart contents.
type Page struct {
	Items      []LineItem
	Number     int
	TotalPages int
	Message    string
}

func (p *Page) clone() *Page {
	c := *p
	c.Items = slices.Clone(p.Items)
	return &c
}

// Membership is the tagged result of a toggle.
type Membership int

const (
	Removed Membership = iota
	Added
)

func (m Membership) String() string {
	if m == Added {
		return "added"
	}
	return "removed"
}

// ToggleResult is what the server reports after flipping membership.
type ToggleResult struct {
	InCart  bool
	Message string
}

// Store is the remote cart endpoint set.
type Store interface {
	ListCart(ctx context.Context, page, perPage int) (*Page, error)
	ToggleCart(ctx context.Context, isbn string) (*ToggleResult, error)
	CartStatus(ctx context.Context, isbn string) (bool, error)
	ClearCart(ctx context.Context) error
}
