package app

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookshop-checkout/internal/bookstore"
	"github.com/xenking/bookshop-checkout/internal/domain/cart"
	"github.com/xenking/bookshop-checkout/internal/domain/order"
	"github.com/xenking/bookshop-checkout/internal/domain/session"
	"github.com/xenking/bookshop-checkout/internal/storage/sqlite"
	"github.com/xenking/bookshop-checkout/pkg/health"
	"github.com/xenking/bookshop-checkout/pkg/httptransport"
)

// Shell wires the checkout workflow for one command invocation.
type Shell struct {
	cfg  *Config
	out  io.Writer
	msgs order.Messages

	client     *bookstore.Client
	carts      *cart.Holder
	coord      *order.Coordinator
	history    *order.History
	reconciler *order.Reconciler

	// db is the journal database, probed by the doctor command.
	db   health.Pinger
	user *bookstore.User
	// confirmed receives the draft once the confirmation delay has passed.
	confirmed chan *order.Draft
}

// Run creates all dependencies, logs in, executes the command in args and
// logs out again. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, args []string, out io.Writer) error {
	ctx = zctx.Base(ctx, lg)
	lg.Debug("Initializing", zap.String("api_url", cfg.APIURL), zap.String("journal", cfg.JournalPath))

	db, err := sqlite.Open(ctx, cfg.JournalPath)
	if err != nil {
		return errors.Wrap(err, "open journal")
	}
	defer func() { _ = db.Close() }()

	client, err := bookstore.NewClient(bookstore.ClientConfig{
		BaseURL: cfg.APIURL,
		Timeout: cfg.Timeout,
		RateLimit: httptransport.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		},
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create api client")
	}

	sh, err := newShell(cfg, out, client, sqlite.NewJournal(db), m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}
	sh.db = db

	if cfg.Username != "" {
		if sh.user, err = client.Login(ctx, cfg.Username, cfg.Password); err != nil {
			return errors.Wrap(err, "login")
		}
		lg.Debug("Logged in", zap.Int("user_id", sh.user.ID))
		defer func() {
			if err := client.Logout(context.WithoutCancel(ctx)); err != nil {
				lg.Warn("Logout", zap.Error(err))
			}
		}()
	}

	return sh.Execute(ctx, args)
}

func newShell(
	cfg *Config,
	out io.Writer,
	client *bookstore.Client,
	journal order.Journal,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Shell, error) {
	msgs := order.Catalog(cfg.Language)
	carts := cart.NewHolder(client, cfg.PageSize)
	confirmed := make(chan *order.Draft, 1)

	coord, err := order.NewCoordinator(order.CoordinatorConfig{
		ConfirmDelay: cfg.ConfirmDelay,
		OnConfirmed: func(d *order.Draft) {
			select {
			case confirmed <- d:
			default:
			}
		},
		Messages:       msgs,
		TracerProvider: tp,
		MeterProvider:  mp,
	}, carts, client, journal)
	if err != nil {
		return nil, errors.Wrap(err, "create coordinator")
	}

	return &Shell{
		cfg:        cfg,
		out:        out,
		msgs:       msgs,
		client:     client,
		carts:      carts,
		coord:      coord,
		history:    order.NewHistory(client),
		reconciler: order.NewReconciler(journal, carts),
		confirmed:  confirmed,
	}, nil
}

// session returns the session of the logged-in user, or the anonymous one.
func (s *Shell) session() session.Context {
	return s.user.Session()
}

// Execute runs the command named by args[0]. Cart changes made by the
// command are logged by a watcher running next to it.
func (s *Shell) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		s.usage()
		return errors.New("no command given")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		s.usage()
		return errors.Errorf("unknown command %q", args[0])
	}

	events, cancel := s.carts.Subscribe()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watchCart(gctx, events)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return cmd.run(s, gctx, args[1:])
	})
	return g.Wait()
}

func watchCart(ctx context.Context, events <-chan cart.Event) {
	lg := zctx.From(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			lg.Debug("Cart changed",
				zap.Stringer("kind", ev.Kind),
				zap.String("isbn", ev.ISBN),
				zap.Stringer("membership", ev.Membership),
			)
		}
	}
}
