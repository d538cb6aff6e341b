package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

// --- Mock implementations ---

type mockCart struct {
	items       []cart.LineItem
	snapshotErr error
	clearErr    error
	snapshots   int
	clears      int
}

func (m *mockCart) Snapshot(_ context.Context, _ session.Context) ([]cart.LineItem, error) {
	m.snapshots++
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	out := make([]cart.LineItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *mockCart) Clear(_ context.Context, _ session.Context) error {
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.items = nil
	return nil
}

type mockGateway struct {
	lastDraft *Draft
	created   int
	err       error
	// block, when set, holds CreateOrder until closed.
	block   chan struct{}
	entered chan struct{}
}

func (m *mockGateway) CreateOrder(_ context.Context, d *Draft) (*Confirmation, error) {
	if m.entered != nil {
		close(m.entered)
	}
	if m.block != nil {
		<-m.block
	}
	m.created++
	m.lastDraft = d
	if m.err != nil {
		return nil, m.err
	}
	return &Confirmation{OrderID: 42}, nil
}

func (m *mockGateway) ListOrders(_ context.Context) ([]Order, error) { return nil, nil }

func (m *mockGateway) GetOrder(_ context.Context, _ int) (*Order, error) { return nil, ErrNotFound }

type mockJournal struct {
	mu      sync.Mutex
	entries map[int]*JournalEntry
	err     error
}

func newMockJournal() *mockJournal {
	return &mockJournal{entries: make(map[int]*JournalEntry)}
}

func (m *mockJournal) Record(_ context.Context, e *JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[e.OrderID] = e
	return nil
}

func (m *mockJournal) MarkCleared(_ context.Context, orderID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[orderID]; ok {
		e.ClearPending = false
	}
	return nil
}

func (m *mockJournal) Pending(_ context.Context, userID int) ([]JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JournalEntry
	for _, e := range m.entries {
		if e.ClearPending && e.UserID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

// --- Helpers ---

var (
	user     = session.Context{UserID: 1, Username: "jana"}
	shipping = address.Address{Street: "Studentská 2", City: "Liberec", PostalCode: "46117", Country: "CZ"}
)

func lineItem(isbn, price string, qty int) cart.LineItem {
	return cart.LineItem{ISBN10: isbn, Title: "Book " + isbn, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func validForm(method pricing.Method) Form {
	r := address.NewResolver()
	r.LoadProfile(shipping, shipping)
	return Form{
		Email:       "jana@example.com",
		Addresses:   r,
		Payment:     method,
		GDPRConsent: true,
	}
}

func newTestCoordinator(t *testing.T, c CartSource, g Gateway, j Journal) *Coordinator {
	t.Helper()
	coord, err := NewCoordinator(CoordinatorConfig{}, c, g, j)
	require.NoError(t, err)
	coord.afterFunc = func(_ time.Duration, f func()) { f() }
	return coord
}

// --- Tests ---

func TestSubmit_EndToEnd(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{
		lineItem("111", "200", 1),
		lineItem("222", "150", 2),
	}}
	gw := &mockGateway{}
	j := newMockJournal()

	var confirmed *Draft
	coord, err := NewCoordinator(CoordinatorConfig{
		ConfirmDelay: time.Second,
		OnConfirmed:  func(d *Draft) { confirmed = d },
	}, mc, gw, j)
	require.NoError(t, err)
	var gotDelay time.Duration
	coord.afterFunc = func(d time.Duration, f func()) { gotDelay = d; f() }

	res, err := coord.Submit(context.Background(), user, validForm(pricing.CardOnline))
	require.NoError(t, err)

	assert.Equal(t, 42, res.OrderID)
	assert.True(t, res.CartCleared)
	assert.Equal(t, StateSucceeded, coord.State())
	assert.Equal(t, Catalog("cs").OrderSuccess, coord.Message())

	d := gw.lastDraft
	require.NotNil(t, d)
	assert.Equal(t, "500.00", d.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", d.Fee.StringFixed(2))
	assert.Equal(t, "505.00", d.Total.StringFixed(2))
	assert.Equal(t, []Item{
		{ISBN: "111", Quantity: 1, Price: decimal.RequireFromString("200")},
		{ISBN: "222", Quantity: 2, Price: decimal.RequireFromString("150")},
	}, d.Items)
	assert.Equal(t, shipping, d.Billing)
	assert.True(t, d.GDPRConsent)

	assert.Equal(t, 1, mc.clears, "exactly one clear")
	assert.Empty(t, mc.items)

	assert.Same(t, d, confirmed)
	assert.Equal(t, time.Second, gotDelay)

	pending, err := j.Pending(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Contains(t, j.entries, 42)
}

func TestSubmit_ConsentRequired(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{}
	coord := newTestCoordinator(t, mc, gw, nil)

	f := validForm(pricing.BankTransfer)
	f.GDPRConsent = false

	_, err := coord.Submit(context.Background(), user, f)
	require.ErrorIs(t, err, ErrConsentRequired)
	assert.Equal(t, StateFailed, coord.State())
	assert.Equal(t, Catalog("cs").ConsentRequired, coord.Message())
	assert.Zero(t, mc.snapshots, "no cart read")
	assert.Zero(t, gw.created, "no order request")
	assert.Zero(t, mc.clears)
}

func TestSubmit_ValidationNeverReachesNetwork(t *testing.T) {
	tests := []struct {
		name    string
		sess    session.Context
		mutate  func(*Form)
		wantErr error
	}{
		{
			name:    "no session",
			sess:    session.Context{},
			mutate:  func(*Form) {},
			wantErr: apierr.ErrAuthRequired,
		},
		{
			name:    "empty email",
			sess:    user,
			mutate:  func(f *Form) { f.Email = "  " },
			wantErr: ErrEmailRequired,
		},
		{
			name:    "no payment method",
			sess:    user,
			mutate:  func(f *Form) { f.Payment = pricing.MethodUnset },
			wantErr: ErrPaymentMethodRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
			gw := &mockGateway{}
			coord := newTestCoordinator(t, mc, gw, nil)

			f := validForm(pricing.BankTransfer)
			tt.mutate(&f)

			_, err := coord.Submit(context.Background(), tt.sess, f)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, mc.snapshots)
			assert.Zero(t, gw.created)
		})
	}
}

func TestSubmit_MissingAddressField(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{}
	coord := newTestCoordinator(t, mc, gw, nil)

	f := validForm(pricing.BankTransfer)
	f.Addresses.SetSameAsShipping(false)
	f.Addresses.SetBilling(address.Address{Street: "Husova 10", City: "Praha", Country: "CZ"})

	_, err := coord.Submit(context.Background(), user, f)

	var mfErr *address.MissingFieldError
	require.ErrorAs(t, err, &mfErr)
	assert.Equal(t, address.Billing, mfErr.Kind)
	assert.Equal(t, "postal_code", mfErr.Field)
	assert.Equal(t, "Pole billing_address.postal_code je povinné.", coord.Message())
	assert.Zero(t, gw.created)
}

func TestSubmit_EmptyCart(t *testing.T) {
	mc := &mockCart{}
	gw := &mockGateway{}
	coord := newTestCoordinator(t, mc, gw, nil)

	_, err := coord.Submit(context.Background(), user, validForm(pricing.CashOnDelivery))
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, gw.lastDraft, "no payload constructed")
	assert.Zero(t, gw.created)
	assert.Zero(t, mc.clears)
}

func TestSubmit_ServerRejected(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{err: &apierr.RejectedError{Op: "create order", Status: 400, Message: "Kniha 111 není dostupná"}}
	coord := newTestCoordinator(t, mc, gw, nil)

	_, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.Error(t, err)
	assert.Equal(t, StateFailed, coord.State())
	assert.Equal(t, "Kniha 111 není dostupná", coord.Message())
	assert.Zero(t, mc.clears, "cart untouched on failure")
	assert.Len(t, mc.items, 1)
}

func TestSubmit_NetworkErrorGenericMessage(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{err: &apierr.NetworkError{Op: "create order", Status: 502}}
	coord := newTestCoordinator(t, mc, gw, nil)

	_, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.Error(t, err)
	assert.True(t, apierr.IsNetwork(err))
	assert.Equal(t, Catalog("cs").OrderError, coord.Message())
	assert.Equal(t, 1, gw.created, "no automatic retry")
}

func TestSubmit_ResubmitAfterFailure(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{}
	coord := newTestCoordinator(t, mc, gw, nil)

	f := validForm(pricing.BankTransfer)
	f.GDPRConsent = false
	_, err := coord.Submit(context.Background(), user, f)
	require.Error(t, err)

	f.GDPRConsent = true
	res, err := coord.Submit(context.Background(), user, f)
	require.NoError(t, err)
	assert.Equal(t, 42, res.OrderID)
	assert.Nil(t, coord.Err())
}

func TestSubmit_ClearFailureKeepsOrderPending(t *testing.T) {
	mc := &mockCart{
		items:    []cart.LineItem{lineItem("111", "200", 1)},
		clearErr: &apierr.NetworkError{Op: "clear cart", Err: errors.New("connection reset")},
	}
	gw := &mockGateway{}
	j := newMockJournal()
	coord := newTestCoordinator(t, mc, gw, j)

	res, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.NoError(t, err)
	assert.False(t, res.CartCleared)
	require.Error(t, res.ClearErr)
	assert.Equal(t, StateSucceeded, coord.State())

	pending, err := j.Pending(context.Background(), user.UserID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 42, pending[0].OrderID)
}

func TestSubmit_JournalFailureDoesNotFailOrder(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	j := newMockJournal()
	j.err = errors.New("disk full")
	coord := newTestCoordinator(t, mc, &mockGateway{}, j)

	res, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.NoError(t, err)
	assert.True(t, res.CartCleared)
}

func TestSubmit_InProgress(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{block: make(chan struct{}), entered: make(chan struct{})}
	coord := newTestCoordinator(t, mc, gw, nil)

	done := make(chan error, 1)
	go func() {
		_, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
		done <- err
	}()

	<-gw.entered
	assert.Equal(t, StateSubmitting, coord.State())

	_, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.ErrorIs(t, err, ErrSubmitInProgress)

	close(gw.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, gw.created)
}

func TestSubmit_DraftIsFrozen(t *testing.T) {
	mc := &mockCart{items: []cart.LineItem{lineItem("111", "200", 1)}}
	gw := &mockGateway{}
	coord := newTestCoordinator(t, mc, gw, nil)

	res, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.NoError(t, err)

	mc.items = []cart.LineItem{lineItem("999", "1", 5)}
	require.Len(t, res.Draft.Items, 1)
	assert.Equal(t, "111", res.Draft.Items[0].ISBN)
}

func TestNewDraft_Rounding(t *testing.T) {
	items := []cart.LineItem{lineItem("111", "100.005", 1)}
	d := NewDraft(items, "a@b.cz", address.Address{}, address.Address{}, pricing.CardOnline)

	assert.Equal(t, "100.005", d.Subtotal.String())
	assert.Equal(t, "1", d.Fee.String())
	assert.Equal(t, "101.01", d.Total.String())
}

func TestReset(t *testing.T) {
	coord := newTestCoordinator(t, &mockCart{}, &mockGateway{}, nil)
	_, err := coord.Submit(context.Background(), user, validForm(pricing.BankTransfer))
	require.Error(t, err)

	coord.Reset()
	assert.Equal(t, StateIdle, coord.State())
	assert.Empty(t, coord.Message())
}

func TestMessages_Describe(t *testing.T) {
	en := Catalog("en")
	assert.Equal(t, en.AuthRequired, en.Describe(errors.Wrap(apierr.ErrAuthRequired, "read cart")))
	assert.Equal(t, en.OrderError, en.Describe(errors.New("boom")))
	assert.Equal(t, "server says no", en.Describe(&apierr.RejectedError{Message: "server says no"}))
	assert.Equal(t, Catalog("cs"), Catalog("de"))
}
