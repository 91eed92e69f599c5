package papersources

import (
	"context"
	"time"
)

// DefaultGateInterval is the minimum spacing between gated requests.
const DefaultGateInterval = time.Second

// Gate serializes calls to a provider that forbids bursts. At most one call
// holds the gate at a time, and a call is not started until Interval has
// passed since the previous call through the same gate completed.
//
// The gate is held for the whole wait plus request, so concurrent callers
// queue behind each other instead of racing on the timestamp. The last
// completion time is only touched while the gate is held.
type Gate struct {
	interval time.Duration
	slot     chan struct{}
	last     time.Time
	now      func() time.Time
	onWait   func(time.Duration)
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithClock replaces the time source. Intended for tests.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

// WithWaitObserver registers a callback receiving every wait spent inside the gate.
func WithWaitObserver(fn func(time.Duration)) GateOption {
	return func(g *Gate) {
		g.onWait = fn
	}
}

// NewGate creates a gate enforcing interval between calls. A non-positive
// interval uses DefaultGateInterval.
func NewGate(interval time.Duration, opts ...GateOption) *Gate {
	if interval <= 0 {
		interval = DefaultGateInterval
	}
	g := &Gate{
		interval: interval,
		slot:     make(chan struct{}, 1),
		now:      time.Now,
		onWait:   func(time.Duration) {},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do runs fn once the gate admits the caller. It returns ctx.Err() without
// running fn if the context ends while queued or waiting. The completion
// time is recorded whether or not fn fails.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	if !g.last.IsZero() {
		if wait := g.interval - g.now().Sub(g.last); wait > 0 {
			g.onWait(wait)
			if err := sleepContext(ctx, wait); err != nil {
				return err
			}
		}
	}

	defer func() { g.last = g.now() }()
	return fn(ctx)
}
