// Package order assembles, validates and submits orders built from the
// session's cart, and reads back order history.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
)

// Item is a frozen line of an order draft.
type Item struct {
	ISBN     string
	Quantity int
	Price    decimal.Decimal
}

// Draft is the order payload captured at submission time. It is built once
// and never mutated afterwards.
type Draft struct {
	Items       []Item
	Email       string
	Shipping    address.Address
	Billing     address.Address
	Payment     pricing.Method
	Subtotal    decimal.Decimal
	Fee         decimal.Decimal
	Total       decimal.Decimal
	GDPRConsent bool
}

// Status is the server-side lifecycle state of a placed order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Order is a placed order as returned by the order history endpoints.
type Order struct {
	ID        int
	CreatedAt time.Time
	Email     string
	Shipping  address.Address
	Billing   address.Address
	Payment   pricing.Method
	Fee       decimal.Decimal
	Total     decimal.Decimal
	Status    Status
	Items     []HistoryItem
}

// HistoryItem is a line of a placed order.
type HistoryItem struct {
	ISBN10       string
	Title        string
	Quantity     int
	PricePerItem decimal.Decimal
}

// Confirmation is the server acknowledgment of a created order.
type Confirmation struct {
	OrderID int
	Message string
}

// Gateway is the remote order endpoint set.
type Gateway interface {
	CreateOrder(ctx context.Context, d *Draft) (*Confirmation, error)
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, id int) (*Order, error)
}
