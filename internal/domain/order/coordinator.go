package order

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
	"github.com/xenking/bookshop-checkout/internal/domain/session"
)

// DefaultConfirmDelay is how long the success message stays visible before
// OnConfirmed fires.
const DefaultConfirmDelay = 2 * time.Second

// State is the submission state machine position.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// CartSource is the part of the cart holder the coordinator needs.
type CartSource interface {
	Snapshot(ctx context.Context, sess session.Context) ([]cart.LineItem, error)
	Clear(ctx context.Context, sess session.Context) error
}

// Form is the user input of a checkout.
type Form struct {
	Email       string
	Addresses   *address.Resolver
	Payment     pricing.Method
	GDPRConsent bool
}

// Result describes a submission the server acknowledged.
type Result struct {
	Draft   *Draft
	OrderID int
	Message string
	// CartCleared is false when the order was created but emptying the cart
	// failed; ClearErr holds the cause and the order stays journaled as
	// pending until Reconciler clears it.
	CartCleared bool
	ClearErr    error
}

// CoordinatorConfig holds non-dependency configuration for the Coordinator.
type CoordinatorConfig struct {
	// ConfirmDelay defaults to DefaultConfirmDelay when zero.
	ConfirmDelay time.Duration
	// OnConfirmed is called with the submitted draft once ConfirmDelay has
	// passed after a successful submission.
	OnConfirmed    func(*Draft)
	Messages       Messages
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Coordinator drives one checkout at a time through
// Idle -> Validating -> Submitting -> Succeeded | Failed.
type Coordinator struct {
	cart    CartSource
	orders  Gateway
	journal Journal

	confirmDelay time.Duration
	onConfirmed  func(*Draft)
	msgs         Messages
	afterFunc    func(time.Duration, func())

	tracer    trace.Tracer
	submitted metric.Int64Counter
	failed    metric.Int64Counter

	mu      sync.Mutex
	state   State
	lastErr error
	message string
}

// NewCoordinator creates a Coordinator. journal may be nil.
func NewCoordinator(cfg CoordinatorConfig, carts CartSource, orders Gateway, journal Journal) (*Coordinator, error) {
	if cfg.ConfirmDelay <= 0 {
		cfg.ConfirmDelay = DefaultConfirmDelay
	}
	if cfg.Messages == (Messages{}) {
		cfg.Messages = Catalog("")
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := cfg.MeterProvider.Meter("bookshop.order")
	submitted, err := meter.Int64Counter("orders.submitted",
		metric.WithDescription("Orders acknowledged by the server"))
	if err != nil {
		return nil, errors.Wrap(err, "create submitted counter")
	}
	failed, err := meter.Int64Counter("orders.failed",
		metric.WithDescription("Order submissions that ended in failure"))
	if err != nil {
		return nil, errors.Wrap(err, "create failed counter")
	}

	return &Coordinator{
		cart:         carts,
		orders:       orders,
		journal:      journal,
		confirmDelay: cfg.ConfirmDelay,
		onConfirmed:  cfg.OnConfirmed,
		msgs:         cfg.Messages,
		afterFunc:    func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		tracer:       cfg.TracerProvider.Tracer("bookshop.order"),
		submitted:    submitted,
		failed:       failed,
	}, nil
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Message returns the user-visible text of the last outcome.
func (c *Coordinator) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Err returns the error of the last failed submission.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Reset returns a finished coordinator to Idle.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSucceeded || c.state == StateFailed {
		c.state = StateIdle
		c.lastErr = nil
		c.message = ""
	}
}

// Submit validates f, submits the order and clears the cart. Validation
// failures never reach the network. The cart is cleared only after the
// server acknowledged the order; a failed clear does not fail the
// submission, see Result.CartCleared.
func (c *Coordinator) Submit(ctx context.Context, sess session.Context, f Form) (*Result, error) {
	c.mu.Lock()
	if c.state == StateValidating || c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.state = StateValidating
	c.lastErr = nil
	c.message = ""
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "order.Submit")
	defer span.End()

	draft, err := c.prepare(ctx, sess, f)
	if err != nil {
		return nil, c.fail(ctx, span, err)
	}

	c.setState(StateSubmitting)
	span.SetAttributes(
		attribute.Int("order.items", len(draft.Items)),
		attribute.String("order.payment_method", string(draft.Payment)),
		attribute.String("order.total", draft.Total.StringFixed(2)),
	)

	conf, err := c.orders.CreateOrder(ctx, draft)
	if err != nil {
		return nil, c.fail(ctx, span, errors.Wrap(err, "create order"))
	}

	lg := zctx.From(ctx).With(zap.Int("order_id", conf.OrderID))
	lg.Info("Order created", zap.String("total", draft.Total.StringFixed(2)))

	res := &Result{
		Draft:   draft,
		OrderID: conf.OrderID,
		Message: c.msgs.OrderSuccess,
	}

	journaled := c.record(ctx, sess, conf.OrderID, draft)

	if err := c.cart.Clear(ctx, sess); err != nil {
		res.ClearErr = err
		lg.Warn("Order created but cart was not cleared", zap.Error(err))
		span.AddEvent("cart clear failed")
	} else {
		res.CartCleared = true
		if journaled {
			if err := c.journal.MarkCleared(ctx, conf.OrderID); err != nil {
				lg.Warn("Mark journal entry cleared", zap.Error(err))
			}
		}
	}

	c.mu.Lock()
	c.state = StateSucceeded
	c.message = res.Message
	c.mu.Unlock()
	c.submitted.Add(ctx, 1)

	if c.onConfirmed != nil {
		c.afterFunc(c.confirmDelay, func() { c.onConfirmed(draft) })
	}
	return res, nil
}

// prepare runs Validating: consent first, then the rest of the form, and
// only then reads the cart to build the draft.
func (c *Coordinator) prepare(ctx context.Context, sess session.Context, f Form) (*Draft, error) {
	if !f.GDPRConsent {
		return nil, ErrConsentRequired
	}
	if err := sess.Require(); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(f.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if f.Payment == pricing.MethodUnset {
		return nil, ErrPaymentMethodRequired
	}
	if f.Addresses == nil {
		f.Addresses = address.NewResolver()
	}
	shipping, billing, err := f.Addresses.Resolve()
	if err != nil {
		return nil, err
	}

	items, err := c.cart.Snapshot(ctx, sess)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	return NewDraft(items, email, shipping, billing, f.Payment), nil
}

// NewDraft freezes items and prices them for method. Fee is rounded for
// display on its own; Total is rounded once from the exact subtotal and fee.
func NewDraft(items []cart.LineItem, email string, shipping, billing address.Address, method pricing.Method) *Draft {
	frozen := make([]Item, len(items))
	for i, it := range items {
		frozen[i] = Item{
			ISBN:     it.ISBN(),
			Quantity: it.Line().EffectiveQuantity(),
			Price:    it.UnitPrice,
		}
	}
	q := pricing.Calculate(cart.Lines(items), method)
	return &Draft{
		Items:       frozen,
		Email:       email,
		Shipping:    shipping,
		Billing:     billing,
		Payment:     method,
		Subtotal:    q.Subtotal,
		Fee:         q.Fee.Round(2),
		Total:       q.Total,
		GDPRConsent: true,
	}
}

func (c *Coordinator) record(ctx context.Context, sess session.Context, orderID int, d *Draft) bool {
	if c.journal == nil {
		return false
	}
	err := c.journal.Record(ctx, &JournalEntry{
		ID:           uuid.New(),
		OrderID:      orderID,
		UserID:       sess.UserID,
		Draft:        d,
		ClearPending: true,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		zctx.From(ctx).Warn("Journal order", zap.Int("order_id", orderID), zap.Error(err))
		return false
	}
	return true
}

func (c *Coordinator) fail(ctx context.Context, span trace.Span, err error) error {
	msg := c.msgs.Describe(err)

	c.mu.Lock()
	c.state = StateFailed
	c.lastErr = err
	c.message = msg
	c.mu.Unlock()

	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	c.failed.Add(ctx, 1)
	zctx.From(ctx).Info("Order submission failed", zap.String("message", msg), zap.Error(err))
	return err
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
