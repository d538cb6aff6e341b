package bookstore

import (
	"context"
	"net/http"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

// User is the logged-in account. The address and consent fields are only
// filled when the server sends them.
type User struct {
	ID          int
	Username    string
	Name        string
	Email       string
	Shipping    address.Address
	Billing     address.Address
	GDPRConsent bool
}

// Session returns the session context for u.
func (u *User) Session() session.Context {
	if u == nil {
		return session.Context{}
	}
	return session.Context{UserID: u.ID, Username: u.Username, Name: u.Name}
}

// Login authenticates and stores the session cookie in the client.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	data, err := c.do(ctx, "login", http.MethodPost, nil, encodeCredentials(username, password), "api", "login")
	if err != nil {
		return nil, err
	}
	return decodeUserEnvelope(data)
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, "logout", http.MethodPost, nil, nil, "api", "logout")
	return err
}

// Profile returns the current user. Without a session it fails with
// apierr.ErrAuthRequired.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	data, err := c.do(ctx, "profile", http.MethodGet, nil, nil, "api", "user")
	if err != nil {
		return nil, err
	}
	return decodeUserEnvelope(data)
}
