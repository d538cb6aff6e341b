package bookstore

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xenking/bookshop-checkout/internal/domain/cart"
)

// ListCart fetches one page of the cart. page and perPage below one fall
// back to the first page and cart.DefaultPageSize.
func (c *Client) ListCart(ctx context.Context, page, perPage int) (*cart.Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = cart.DefaultPageSize
	}
	q := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	data, err := c.do(ctx, "list cart", http.MethodGet, q, nil, "api", "shoppingcart")
	if err != nil {
		return nil, err
	}
	return decodeCartPage(data, page)
}

// ToggleCart flips membership of isbn in the cart.
func (c *Client) ToggleCart(ctx context.Context, isbn string) (*cart.ToggleResult, error) {
	data, err := c.do(ctx, "toggle cart", http.MethodPost, nil, nil, "api", "shoppingcart", isbn)
	if err != nil {
		return nil, err
	}
	return decodeToggle(data)
}

// CartStatus reports whether isbn is in the cart.
func (c *Client) CartStatus(ctx context.Context, isbn string) (bool, error) {
	data, err := c.do(ctx, "cart status", http.MethodGet, nil, nil, "api", "shoppingcart", isbn, "status")
	if err != nil {
		return false, err
	}
	return decodeCartStatus(data)
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, "clear cart", http.MethodDelete, nil, nil, "api", "shoppingcart")
	return err
}
