package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/bookshop-checkout/internal/domain/address"
	"github.com/xenking/bookshop-checkout/internal/domain/apierr"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/order"
	"github.com/xenking/bookshop-checkout/internal/domain/pricing"
	"github.com/xenking/bookshop-checkout/pkg/health"
)

type command struct {
	usage string
	run   func(s *Shell, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"whoami":    {usage: "whoami", run: (*Shell).whoami},
	"cart":      {usage: "cart [page]", run: (*Shell).showCart},
	"toggle":    {usage: "toggle <isbn>", run: (*Shell).toggle},
	"status":    {usage: "status <isbn>", run: (*Shell).status},
	"quote":     {usage: "quote <method>", run: (*Shell).quote},
	"submit":    {usage: "submit -email <email> -method <method> -consent [address flags]", run: (*Shell).submit},
	"orders":    {usage: "orders", run: (*Shell).orders},
	"order":     {usage: "order <id>", run: (*Shell).showOrder},
	"reconcile": {usage: "reconcile", run: (*Shell).reconcile},
	"doctor":    {usage: "doctor", run: (*Shell).doctor},
}

func (s *Shell) usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintln(s.out, "usage: checkout [flags] <command>")
	for _, name := range names {
		_, _ = fmt.Fprintf(s.out, "  %s\n", commands[name].usage)
	}
}

func oneArg(args []string, name string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", errors.Errorf("expected exactly one %s", name)
	}
	return args[0], nil
}

func (s *Shell) whoami(_ context.Context, _ []string) error {
	if !s.session().Active() {
		_, _ = fmt.Fprintln(s.out, s.msgs.AuthRequired)
		return nil
	}
	_, _ = fmt.Fprintf(s.out, "%s (%s), id %d\n", s.user.Name, s.user.Username, s.user.ID)
	return nil
}

func (s *Shell) showCart(ctx context.Context, args []string) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return errors.Errorf("invalid page %q", args[0])
		}
		page = n
	}

	p, err := s.carts.Load(ctx, s.session(), page)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	if len(p.Items) == 0 {
		_, _ = fmt.Fprintln(s.out, s.msgs.EmptyCart)
		return nil
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ISBN\tTITLE\tAUTHOR\tQTY\tPRICE")
	for _, it := range p.Items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			it.ISBN(), it.Title, it.Author, it.Line().EffectiveQuantity(), it.UnitPrice.StringFixed(2))
	}
	_, _ = fmt.Fprintf(w, "\t\t\tsubtotal\t%s\n", pricing.Subtotal(cart.Lines(p.Items)).StringFixed(2))
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "page %d/%d\n", p.Number, max(p.TotalPages, 1))
	return nil
}

func (s *Shell) toggle(ctx context.Context, args []string) error {
	isbn, err := oneArg(args, "isbn")
	if err != nil {
		return err
	}
	m, err := s.carts.Toggle(ctx, s.session(), isbn)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "%s %s\n", isbn, m)
	return nil
}

func (s *Shell) status(ctx context.Context, args []string) error {
	isbn, err := oneArg(args, "isbn")
	if err != nil {
		return err
	}
	in, err := s.carts.Status(ctx, s.session(), isbn)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "%s in cart: %t\n", isbn, in)
	return nil
}

func (s *Shell) quote(ctx context.Context, args []string) error {
	raw, err := oneArg(args, "payment method")
	if err != nil {
		return err
	}
	method, err := pricing.ParseMethod(raw)
	if err != nil {
		return err
	}
	if err := s.session().Require(); err != nil {
		return err
	}
	items, err := s.carts.Snapshot(ctx, s.session())
	if err != nil {
		return errors.Wrap(err, "read cart")
	}
	printQuote(s.out, pricing.Calculate(cart.Lines(items), method))
	return nil
}

func printQuote(out io.Writer, q pricing.Quote) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(w, "subtotal\t%s\t\n", q.Subtotal.StringFixed(2))
	_, _ = fmt.Fprintf(w, "fee\t%s\t\n", q.Fee.StringFixed(2))
	_, _ = fmt.Fprintf(w, "total\t%s\t\n", q.Total.StringFixed(2))
	_ = w.Flush()
}

// addressFlags binds the four fields of an address to flags named
// prefix+field.
func addressFlags(fs *flag.FlagSet, prefix string, a *address.Address) {
	fs.StringVar(&a.Street, prefix+"street", a.Street, "street")
	fs.StringVar(&a.City, prefix+"city", a.City, "city")
	fs.StringVar(&a.PostalCode, prefix+"postal-code", a.PostalCode, "postal code")
	fs.StringVar(&a.Country, prefix+"country", a.Country, "country")
}

func (s *Shell) submit(ctx context.Context, args []string) error {
	var (
		form   order.Form
		method string
		same   bool
	)
	resolver := address.NewResolver()
	shipping, billing := address.Address{}, address.Address{}
	if s.user != nil {
		resolver.LoadProfile(s.user.Shipping, s.user.Billing)
		shipping, billing = s.user.Shipping, s.user.Billing
		form.Email = s.user.Email
		form.GDPRConsent = s.user.GDPRConsent
	}

	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(s.out)
	fs.StringVar(&form.Email, "email", form.Email, "contact e-mail")
	fs.StringVar(&method, "method", "", "payment method: cash_on_delivery, bank_transfer or card_online")
	fs.BoolVar(&form.GDPRConsent, "consent", form.GDPRConsent, "consent to personal data processing")
	fs.BoolVar(&same, "same-as-shipping", resolver.SameAsShipping(), "bill to the shipping address")
	addressFlags(fs, "", &shipping)
	addressFlags(fs, "billing-", &billing)
	if err := fs.Parse(args); err != nil {
		return err
	}
	// Billing flags imply a separate billing address unless
	// -same-as-shipping was given explicitly.
	var sameSet, billingSet bool
	fs.Visit(func(f *flag.Flag) {
		switch {
		case f.Name == "same-as-shipping":
			sameSet = true
		case strings.HasPrefix(f.Name, "billing-"):
			billingSet = true
		}
	})
	if billingSet && !sameSet {
		same = false
	}

	if method != "" {
		m, err := pricing.ParseMethod(method)
		if err != nil {
			return err
		}
		form.Payment = m
	}

	resolver.SetShipping(shipping)
	resolver.SetBilling(billing)
	resolver.SetSameAsShipping(same)
	form.Addresses = resolver

	res, err := s.coord.Submit(ctx, s.session(), form)
	if err != nil {
		_, _ = fmt.Fprintln(s.out, s.coord.Message())
		return err
	}

	_, _ = fmt.Fprintf(s.out, "%s (#%d)\n", res.Message, res.OrderID)
	printQuote(s.out, pricing.Quote{Subtotal: res.Draft.Subtotal, Fee: res.Draft.Fee, Total: res.Draft.Total})
	if !res.CartCleared {
		_, _ = fmt.Fprintf(s.out, "cart was not cleared (%v), run reconcile\n", res.ClearErr)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.confirmed:
	}
	o, err := s.history.Get(ctx, s.session(), res.OrderID)
	if err != nil {
		return err
	}
	printOrder(s.out, o)
	return nil
}

func (s *Shell) orders(ctx context.Context, _ []string) error {
	list, err := s.history.List(ctx, s.session())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		_, _ = fmt.Fprintln(s.out, "no orders")
		return nil
	}

	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tPAYMENT\tITEMS\tTOTAL")
	for _, o := range list {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.Status, o.Payment, len(o.Items), o.Total.StringFixed(2))
	}
	return w.Flush()
}

func (s *Shell) showOrder(ctx context.Context, args []string) error {
	raw, err := oneArg(args, "order id")
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return errors.Errorf("invalid order id %q", raw)
	}
	o, err := s.history.Get(ctx, s.session(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			_, _ = fmt.Fprintln(s.out, s.msgs.NotFound)
		}
		return err
	}
	printOrder(s.out, o)
	return nil
}

func printOrder(out io.Writer, o *order.Order) {
	_, _ = fmt.Fprintf(out, "order #%d  %s  %s\n", o.ID, o.Status, o.CreatedAt.Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintf(out, "e-mail:   %s\n", o.Email)
	_, _ = fmt.Fprintf(out, "shipping: %s, %s %s, %s\n", o.Shipping.Street, o.Shipping.PostalCode, o.Shipping.City, o.Shipping.Country)
	_, _ = fmt.Fprintf(out, "billing:  %s, %s %s, %s\n", o.Billing.Street, o.Billing.PostalCode, o.Billing.City, o.Billing.Country)
	_, _ = fmt.Fprintf(out, "payment:  %s (fee %s)\n", o.Payment, o.Fee.StringFixed(2))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, it := range o.Items {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%dx\t%s\n", it.ISBN10, it.Title, it.Quantity, it.PricePerItem.StringFixed(2))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "total:    %s\n", o.Total.StringFixed(2))
}

func (s *Shell) reconcile(ctx context.Context, _ []string) error {
	n, err := s.reconciler.Reconcile(ctx, s.session())
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "reconciled %d order(s)\n", n)
	return nil
}

// doctor probes the API and the local journal.
func (s *Shell) doctor(ctx context.Context, _ []string) error {
	h := health.New()
	// A 401 still proves the API answers.
	h.Add("api", s.cfg.Timeout, health.Accept(func(ctx context.Context) error {
		_, err := s.client.Profile(ctx)
		return err
	}, apierr.ErrAuthRequired))
	if s.db != nil {
		h.Add("journal", 5*time.Second, health.PingCheck(s.db))
	}

	report := h.Run(ctx)
	w := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, res := range report {
		state := "ok"
		if !res.Healthy() {
			state = "FAIL: " + res.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", res.Name, res.Took.Round(time.Millisecond), state)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !report.Healthy() {
		return errors.Errorf("%d check(s) failed", len(report.Failures()))
	}
	return nil
}
