package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/pkg/logger"
)

const defaultBackgroundTimeout = 30 * time.Second

// Dispatcher runs fire-and-forget work off the request path. Jobs outlive
// the request that spawned them but are bounded by a timeout, and Wait lets
// shutdown drain them.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
	log     *zap.Logger
}

// NewDispatcher returns a dispatcher whose jobs each get timeout to finish.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultBackgroundTimeout
	}
	return &Dispatcher{
		timeout: timeout,
		log:     logger.WithModule("dispatcher"),
	}
}

// Go runs fn in the background. ctx only contributes values; its
// cancellation does not reach fn.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(context.Context) error) {
	if ctx == nil {
		ctx = context.Background()
	}
	base := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("background job panicked", zap.String("job", name), zap.String("panic", fmt.Sprint(r)))
			}
		}()

		jobCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()

		if err := fn(jobCtx); err != nil {
			d.log.Warn("background job failed", zap.String("job", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched job has returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
