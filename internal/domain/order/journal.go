package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

// JournalEntry records an acknowledged order of UserID together with
// whether the cart still has to be cleared for it.
type JournalEntry struct {
	ID           uuid.UUID
	OrderID      int
	UserID       int
	Draft        *Draft
	ClearPending bool
	CreatedAt    time.Time
	ClearedAt    time.Time
}

// Journal persists acknowledged orders locally.
type Journal interface {
	Record(ctx context.Context, e *JournalEntry) error
	MarkCleared(ctx context.Context, orderID int) error
	// Pending lists entries of userID whose cart clear is still outstanding,
	// oldest first.
	Pending(ctx context.Context, userID int) ([]JournalEntry, error)
}

// CartEditor is the part of the cart holder the Reconciler needs.
type CartEditor interface {
	Status(ctx context.Context, sess session.Context, isbn string) (bool, error)
	Toggle(ctx context.Context, sess session.Context, isbn string) (cart.Membership, error)
}

// Reconciler closes the window between an acknowledged order and a failed
// cart clear. It only runs when asked to; nothing retries on its own.
type Reconciler struct {
	journal Journal
	cart    CartEditor
}

// NewReconciler creates a Reconciler.
func NewReconciler(journal Journal, carts CartEditor) *Reconciler {
	return &Reconciler{journal: journal, cart: carts}
}

// Reconcile removes the books of every pending order from the cart and marks
// the order cleared. Only the ordered books are removed, so anything added
// to the cart after the order survives. It returns the number of orders
// reconciled.
func (r *Reconciler) Reconcile(ctx context.Context, sess session.Context) (int, error) {
	if err := sess.Require(); err != nil {
		return 0, err
	}
	pending, err := r.journal.Pending(ctx, sess.UserID)
	if err != nil {
		return 0, errors.Wrap(err, "list pending orders")
	}

	lg := zctx.From(ctx)
	done := 0
	for _, e := range pending {
		if err := r.removeOrdered(ctx, sess, e.Draft); err != nil {
			return done, errors.Wrapf(err, "reconcile order %d", e.OrderID)
		}
		if err := r.journal.MarkCleared(ctx, e.OrderID); err != nil {
			return done, errors.Wrapf(err, "mark order %d cleared", e.OrderID)
		}
		lg.Info("Order reconciled", zap.Int("order_id", e.OrderID))
		done++
	}
	return done, nil
}

func (r *Reconciler) removeOrdered(ctx context.Context, sess session.Context, d *Draft) error {
	if d == nil {
		return nil
	}
	for _, it := range d.Items {
		in, err := r.cart.Status(ctx, sess, it.ISBN)
		if err != nil {
			return err
		}
		if !in {
			continue
		}
		m, err := r.cart.Toggle(ctx, sess, it.ISBN)
		if err != nil {
			return err
		}
		if m != cart.Removed {
			return errors.Errorf("book %s re-added by concurrent toggle", it.ISBN)
		}
	}
	return nil
}
