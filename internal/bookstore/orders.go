package bookstore

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/bookshop-checkout/internal/domain/order"
)

// CreateOrder posts d and returns the server's acknowledgment.
func (c *Client) CreateOrder(ctx context.Context, d *order.Draft) (*order.Confirmation, error) {
	data, err := c.do(ctx, "create order", http.MethodPost, nil, encodeDraft(d), "api", "orders")
	if err != nil {
		return nil, err
	}
	return decodeConfirmation(data)
}

// ListOrders returns the session's orders.
func (c *Client) ListOrders(ctx context.Context) ([]order.Order, error) {
	data, err := c.do(ctx, "list orders", http.MethodGet, nil, nil, "api", "orders")
	if err != nil {
		return nil, err
	}
	return decodeOrderList(data)
}

// GetOrder returns a single order. A 404 yields order.ErrNotFound.
func (c *Client) GetOrder(ctx context.Context, id int) (*order.Order, error) {
	data, err := c.do(ctx, "get order", http.MethodGet, nil, nil, "api", "orders", strconv.Itoa(id))
	if err != nil {
		if rejectedStatus(err) == http.StatusNotFound {
			return nil, errors.Wrapf(order.ErrNotFound, "order %d", id)
		}
		return nil, err
	}
	return decodeOrderDetail(data)
}
