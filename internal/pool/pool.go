// Package pool provides a fixed-size pool of interchangeable stateful resources.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAcquireTimeout is returned when no resource frees up within the acquire timeout.
	ErrAcquireTimeout = errors.New("pool: acquire timeout")
	// ErrOverRelease is returned when a release would exceed pool capacity.
	ErrOverRelease = errors.New("pool: release exceeds capacity")
)

// Observer receives acquisition events. Implementations must be safe for concurrent use.
type Observer interface {
	Acquired(wait time.Duration)
	Released()
	TimedOut()
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	acquireTimeout time.Duration
	observer       Observer
}

// WithAcquireTimeout bounds how long Acquire waits. Zero waits until ctx is done.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) { o.acquireTimeout = d }
}

// WithObserver attaches an acquisition observer (metrics).
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Pool hands out one resource per caller at a time.
type Pool[T any] struct {
	items   chan T
	size    int
	timeout time.Duration
	obs     Observer
}

// New eagerly constructs size resources with factory(param).
// The first factory error aborts construction; no partial pool is returned.
func New[T, P any](factory func(P) (T, error), param P, size int, opts ...Option) (*Pool[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool: size must be positive, got %d", size)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	items := make(chan T, size)
	for i := 0; i < size; i++ {
		r, err := factory(param)
		if err != nil {
			return nil, fmt.Errorf("pool: construct resource %d/%d: %w", i+1, size, err)
		}
		items <- r
	}

	return &Pool[T]{items: items, size: size, timeout: o.acquireTimeout, obs: o.observer}, nil
}

// Acquire removes a resource from the pool, blocking until one is available,
// the acquire timeout elapses or ctx is done.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	start := time.Now()

	// Fast path keeps uncontended acquisitions off the timer.
	select {
	case r := <-p.items:
		p.acquired(start)
		return r, nil
	default:
	}

	var timeoutC <-chan time.Time
	if p.timeout > 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var zero T
	select {
	case r := <-p.items:
		p.acquired(start)
		return r, nil
	case <-timeoutC:
		if p.obs != nil {
			p.obs.TimedOut()
		}
		return zero, fmt.Errorf("%w after %s", ErrAcquireTimeout, p.timeout)
	case <-ctx.Done():
		return zero, fmt.Errorf("pool: acquire: %w", ctx.Err())
	}
}

// Release returns a resource to the pool and wakes at most one waiting acquirer.
func (p *Pool[T]) Release(r T) error {
	select {
	case p.items <- r:
		if p.obs != nil {
			p.obs.Released()
		}
		return nil
	default:
		return ErrOverRelease
	}
}

// Use acquires a resource, runs fn and releases the resource on every exit path.
func (p *Pool[T]) Use(ctx context.Context, fn func(T) error) error {
	r, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = p.Release(r) }()

	return fn(r)
}

// Size returns the pool capacity.
func (p *Pool[T]) Size() int { return p.size }

// Available returns the number of resources currently idle.
func (p *Pool[T]) Available() int { return len(p.items) }

func (p *Pool[T]) acquired(start time.Time) {
	if p.obs != nil {
		p.obs.Acquired(time.Since(start))
	}
}
