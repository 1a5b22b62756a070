package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 5 * time.Second

// ShutdownFunc flushes and stops the installed providers
type ShutdownFunc func(context.Context) error

type shutdowner interface {
	Shutdown(context.Context) error
}

type component struct {
	name string
	s    shutdowner
}

// newShutdownFunc stops components in order, collecting every failure.
// A context without deadline is bounded by defaultShutdownTimeout.
func newShutdownFunc(components ...component) ShutdownFunc {
	return func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
			defer cancel()
		}

		var errs []error
		for _, c := range components {
			if c.s == nil {
				continue
			}
			if err := c.s.Shutdown(ctx); err != nil {
				zap.L().Warn("observability: shutdown failed", zap.String("component", c.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}
		return errors.Join(errs...)
	}
}
