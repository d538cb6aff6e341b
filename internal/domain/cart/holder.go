package cart

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

// EventKind describes why the cached cart was invalidated.
type EventKind int

const (
	Toggled EventKind = iota + 1
	Cleared
)

// Event is published to subscribers after every successful mutation.
type Event struct {
	Kind EventKind
	// ISBN is set for Toggled events.
	ISBN       string
	Membership Membership
}

// Holder caches one page of the cart and performs mutations against the
// remote Store. The server stays the source of truth: every mutation drops
// the cached page and notifies subscribers.
type Holder struct {
	store   Store
	perPage int
	sfg     singleflight.Group

	mu     sync.Mutex
	cached *Page
	gen    uint64
	subs   map[int]chan Event
	nextID int
}

// NewHolder returns a Holder reading perPage items per page. A non-positive
// perPage selects DefaultPageSize.
func NewHolder(store Store, perPage int) *Holder {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	return &Holder{
		store:   store,
		perPage: perPage,
		subs:    make(map[int]chan Event),
	}
}

// Load fetches one page of the cart. Without an active session it returns an
// empty page and no error. Concurrent loads of the same page share a single
// request.
func (h *Holder) Load(ctx context.Context, sess session.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if !sess.Active() {
		zctx.From(ctx).Debug("Cart load skipped, no session")
		return &Page{Number: page}, nil
	}

	h.mu.Lock()
	gen := h.gen
	h.mu.Unlock()

	// The shared request must outlive any single caller giving up.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := h.sfg.Do(strconv.Itoa(page), func() (any, error) {
		return h.store.ListCart(loadCtx, page, h.perPage)
	})
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	p := v.(*Page)

	h.mu.Lock()
	// A mutation that completed while we were loading makes p stale.
	if gen == h.gen {
		h.cached = p
	}
	h.mu.Unlock()

	return p.clone(), nil
}

// Cached returns the last loaded page, or nil when it was invalidated and
// must be re-fetched before display.
func (h *Holder) Cached() *Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached == nil {
		return nil
	}
	return h.cached.clone()
}

// Toggle flips membership of isbn with a single request and returns the
// membership reported by the server, which callers must treat as
// authoritative.
func (h *Holder) Toggle(ctx context.Context, sess session.Context, isbn string) (Membership, error) {
	if err := sess.Require(); err != nil {
		return Removed, err
	}
	if isbn == "" {
		return Removed, errors.New("isbn required")
	}

	res, err := h.store.ToggleCart(ctx, isbn)
	if err != nil {
		return Removed, errors.Wrapf(err, "toggle %s", isbn)
	}

	m := Removed
	if res.InCart {
		m = Added
	}
	zctx.From(ctx).Info("Cart toggled",
		zap.String("isbn", isbn),
		zap.Stringer("membership", m),
	)
	h.invalidate(Event{Kind: Toggled, ISBN: isbn, Membership: m})
	return m, nil
}

// Status reports whether isbn is currently in the cart.
func (h *Holder) Status(ctx context.Context, sess session.Context, isbn string) (bool, error) {
	if err := sess.Require(); err != nil {
		return false, err
	}
	in, err := h.store.CartStatus(ctx, isbn)
	if err != nil {
		return false, errors.Wrapf(err, "status %s", isbn)
	}
	return in, nil
}

// Clear empties the cart. It is meant to be called once, right after an
// order was acknowledged.
func (h *Holder) Clear(ctx context.Context, sess session.Context) error {
	if err := sess.Require(); err != nil {
		return err
	}
	if err := h.store.ClearCart(ctx); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	zctx.From(ctx).Info("Cart cleared")
	h.invalidate(Event{Kind: Cleared})
	return nil
}

// Snapshot reads every page of the cart and returns a copy of all items.
// The result is detached from the Holder and never changes afterwards.
func (h *Holder) Snapshot(ctx context.Context, sess session.Context) ([]LineItem, error) {
	if err := sess.Require(); err != nil {
		return nil, err
	}

	var items []LineItem
	for page := 1; ; page++ {
		p, err := h.store.ListCart(ctx, page, h.perPage)
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot page %d", page)
		}
		items = append(items, p.Items...)
		if page >= p.TotalPages {
			break
		}
	}
	return items, nil
}

// Subscribe registers for invalidation events. Events are coalesced: a slow
// subscriber sees at least one pending event, not every event. Call cancel
// to unsubscribe.
func (h *Holder) Subscribe() (events <-chan Event, cancel func()) {
	ch := make(chan Event, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Holder) invalidate(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cached = nil
	h.gen++
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (k EventKind) String() string {
	switch k {
	case Toggled:
		return "toggled"
	case Cleared:
		return "cleared"
	default:
		return "unknown"
	}
}
