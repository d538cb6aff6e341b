package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/order"
	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
)

// ErrEntryNotFound is returned by MarkCleared for unknown orders.
var ErrEntryNotFound = errors.New("journal entry not found")

var _ order.Journal = (*Journal)(nil)

// Journal implements order.Journal backed by SQLite.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// NewJournal returns a Journal that uses db. Migrations must already be
// applied, see Open.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Record stores e. The draft is serialized to JSON.
func (j *Journal) Record(ctx context.Context, e *order.JournalEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	draft, err := json.Marshal(toDraftRecord(e.Draft))
	if err != nil {
		return errors.Wrap(err, "marshal draft")
	}

	var clearedAt sql.NullInt64
	if !e.ClearedAt.IsZero() {
		clearedAt = sql.NullInt64{Int64: e.ClearedAt.UnixMilli(), Valid: true}
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO order_journal (id, order_id, user_id, draft, clear_pending, created_at, cleared_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.OrderID, e.UserID, string(draft), e.ClearPending, e.CreatedAt.UnixMilli(), clearedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "record order %d", e.OrderID)
	}
	return nil
}

// MarkCleared flags the cart of orderID as cleared.
func (j *Journal) MarkCleared(ctx context.Context, orderID int) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE order_journal SET clear_pending = 0, cleared_at = ?
		WHERE order_id = ?`,
		j.now().UnixMilli(), orderID,
	)
	if err != nil {
		return errors.Wrapf(err, "mark order %d cleared", orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(ErrEntryNotFound, "order %d", orderID)
	}
	return nil
}

// Pending lists the entries of userID still waiting for a cart clear,
// oldest first.
func (j *Journal) Pending(ctx context.Context, userID int) ([]order.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, order_id, user_id, draft, created_at
		FROM order_journal
		WHERE clear_pending = 1 AND user_id = ?
		ORDER BY created_at, order_id`,
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query pending")
	}
	defer func() { _ = rows.Close() }()

	var out []order.JournalEntry
	for rows.Next() {
		var (
			id        string
			draft     string
			createdAt int64
			e         = order.JournalEntry{ClearPending: true}
		)
		if err := rows.Scan(&id, &e.OrderID, &e.UserID, &draft, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan entry")
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "parse id of order %d", e.OrderID)
		}
		var rec draftRecord
		if err := json.Unmarshal([]byte(draft), &rec); err != nil {
			return nil, errors.Wrapf(err, "unmarshal draft of order %d", e.OrderID)
		}
		e.Draft = rec.draft()
		e.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate entries")
	}
	return out, nil
}

// draftRecord is the stored JSON form of order.Draft. Money is kept as
// decimal strings.
type draftRecord struct {
	Items       []itemRecord    `json:"items"`
	Email       string          `json:"email"`
	Shipping    addressRecord   `json:"shipping_address"`
	Billing     addressRecord   `json:"billing_address"`
	Payment     string          `json:"payment_method"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Fee         decimal.Decimal `json:"payment_fee"`
	Total       decimal.Decimal `json:"total_price"`
	GDPRConsent bool            `json:"gdpr_consent"`
}

type itemRecord struct {
	ISBN     string          `json:"isbn"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type addressRecord struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func toDraftRecord(d *order.Draft) *draftRecord {
	if d == nil {
		return nil
	}
	items := make([]itemRecord, len(d.Items))
	for i, it := range d.Items {
		items[i] = itemRecord(it)
	}
	return &draftRecord{
		Items:       items,
		Email:       d.Email,
		Shipping:    addressRecord(d.Shipping),
		Billing:     addressRecord(d.Billing),
		Payment:     string(d.Payment),
		Subtotal:    d.Subtotal,
		Fee:         d.Fee,
		Total:       d.Total,
		GDPRConsent: d.GDPRConsent,
	}
}

func (r *draftRecord) draft() *order.Draft {
	if r == nil {
		return nil
	}
	items := make([]order.Item, len(r.Items))
	for i, it := range r.Items {
		items[i] = order.Item(it)
	}
	return &order.Draft{
		Items:       items,
		Email:       r.Email,
		Shipping:    address.Address(r.Shipping),
		Billing:     address.Address(r.Billing),
		Payment:     pricing.Method(r.Payment),
		Subtotal:    r.Subtotal,
		Fee:         r.Fee,
		Total:       r.Total,
		GDPRConsent: r.GDPRConsent,
	}
}
