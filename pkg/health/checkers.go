package health

import (
	"context"

	"github.com/go-faster/errors"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingCheck returns a CheckFunc that pings p.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.PingContext(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// Accept returns a CheckFunc that runs fn and treats any error matching one
// of ok as healthy. Use it for probes where a refusal still proves the
// dependency is reachable.
func Accept(fn CheckFunc, ok ...error) CheckFunc {
	return func(ctx context.Context) error {
		err := fn(ctx)
		for _, target := range ok {
			if errors.Is(err, target) {
				return nil
			}
		}
		return err
	}
}
