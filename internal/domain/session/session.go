// Package session carries the explicit session value every checkout
// operation takes instead of reading a global "logged in" flag.
package session

import "github.com/xenking/bookshop-checkout/internal/domain/apierr"

// Context describes the authenticated user a request is made for.
// The zero value is an anonymous, inactive session.
type Context struct {
	UserID   int
	Username string
	Name     string
}

// Active reports whether the session belongs to a logged-in user.
func (c Context) Active() bool { return c.UserID != 0 }

// Require returns apierr.ErrAuthRequired when the session is not active.
func (c Context) Require() error {
	if !c.Active() {
		return apierr.ErrAuthRequired
	}
	return nil
}
