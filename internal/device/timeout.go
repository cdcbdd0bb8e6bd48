package device

import (
	"context"
	"fmt"
	"time"
)

type timeoutGateway struct {
	inner   Gateway
	timeout time.Duration
}

// WithTimeout bounds every call on g by d. A call that outlives d fails with
// ErrCommunication even if g ignores its context. A non-positive d returns g
// unchanged.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return g
	}
	return &timeoutGateway{inner: g, timeout: d}
}

func (t *timeoutGateway) Dispense(ctx context.Context, compartment int) (Outcome, error) {
	type result struct {
		out Outcome
		err error
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		out, err := t.inner.Dispense(ctx, compartment)
		ch <- result{out, err}
	}()

	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return Outcome{}, t.expired(ctx)
	}
}

func (t *timeoutGateway) CheckStatus(ctx context.Context) (Status, error) {
	type result struct {
		status Status
		err    error
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		s, err := t.inner.CheckStatus(ctx)
		ch <- result{s, err}
	}()

	select {
	case r := <-ch:
		return r.status, r.err
	case <-ctx.Done():
		return Status{}, t.expired(ctx)
	}
}

func (t *timeoutGateway) expired(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return communicationError(fmt.Errorf("no answer within %s", t.timeout))
	}
	return communicationError(ctx.Err())
}
