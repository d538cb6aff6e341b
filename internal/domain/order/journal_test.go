package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

type mockEditor struct {
	inCart  map[string]bool
	toggled []string
}

func (m *mockEditor) Status(_ context.Context, _ session.Context, isbn string) (bool, error) {
	return m.inCart[isbn], nil
}

func (m *mockEditor) Toggle(_ context.Context, _ session.Context, isbn string) (cart.Membership, error) {
	m.toggled = append(m.toggled, isbn)
	m.inCart[isbn] = !m.inCart[isbn]
	if m.inCart[isbn] {
		return cart.Added, nil
	}
	return cart.Removed, nil
}

func TestReconcile_RemovesOnlyOrderedBooks(t *testing.T) {
	j := newMockJournal()
	require.NoError(t, j.Record(context.Background(), &JournalEntry{
		ID:      uuid.New(),
		OrderID: 7,
		UserID:  user.UserID,
		Draft: &Draft{Items: []Item{
			{ISBN: "111", Quantity: 1},
			{ISBN: "222", Quantity: 1},
		}},
		ClearPending: true,
	}))
	ed := &mockEditor{inCart: map[string]bool{"111": true, "333": true}}

	n, err := NewReconciler(j, ed).Reconcile(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, []string{"111"}, ed.toggled)
	assert.False(t, ed.inCart["111"])
	assert.True(t, ed.inCart["333"], "books added after the order stay")

	pending, err := j.Pending(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcile_RequiresSession(t *testing.T) {
	_, err := NewReconciler(newMockJournal(), &mockEditor{}).Reconcile(context.Background(), session.Context{})
	require.ErrorIs(t, err, apierr.ErrAuthRequired)
}

func TestReconcile_NothingPending(t *testing.T) {
	n, err := NewReconciler(newMockJournal(), &mockEditor{}).Reconcile(context.Background(), user)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHistory(t *testing.T) {
	h := NewHistory(&mockGateway{})

	_, err := h.List(context.Background(), session.Context{})
	require.ErrorIs(t, err, apierr.ErrAuthRequired)

	_, err = h.Get(context.Background(), user, 0)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.Get(context.Background(), user, 5)
	require.ErrorIs(t, err, ErrNotFound)
}
