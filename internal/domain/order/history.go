package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

// History reads the session's placed orders.
type History struct {
	orders Gateway
}

// NewHistory creates a History backed by the given Gateway.
func NewHistory(orders Gateway) *History {
	return &History{orders: orders}
}

// List returns the session's orders, newest first as the server sends them.
func (h *History) List(ctx context.Context, sess session.Context) ([]Order, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	orders, err := h.orders.ListOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Get returns a single order. Unknown ids yield ErrNotFound.
func (h *History) Get(ctx context.Context, sess session.Context, id int) (*Order, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrNotFound
	}
	o, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return o, nil
}
