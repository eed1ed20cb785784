// Package workerpool wraps ants pools behind a small interface used for
// background work: bulk cache repopulation and seeding.
package workerpool

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pitabwire/util"
)

// WorkerPool defines the common methods for worker pool operations.
type WorkerPool interface {
	Submit(ctx context.Context, task func()) error
	Shutdown()
}

// Manager owns the pool lifecycle.
type Manager interface {
	GetPool() (WorkerPool, error)
	Shutdown(ctx context.Context) error
}

// Options defines configurable options for the worker pool.
type Options struct {
	Capacity       int
	ExpiryDuration time.Duration
	Nonblocking    bool
	PreAlloc       bool
	PanicHandler   func(any)
	Logger         *util.LogEntry
}

// Option defines a function that configures worker pool options.
type Option func(*Options)

// WithCapacity sets the worker pool capacity.
func WithCapacity(capacity int) Option {
	return func(opts *Options) {
		opts.Capacity = capacity
	}
}

// WithExpiryDuration sets the expiry duration for idle workers.
func WithExpiryDuration(duration time.Duration) Option {
	return func(opts *Options) {
		opts.ExpiryDuration = duration
	}
}

// WithNonblocking sets the non-blocking option for the pool.
func WithNonblocking(nonblocking bool) Option {
	return func(opts *Options) {
		opts.Nonblocking = nonblocking
	}
}

// WithPanicHandler sets a panic handler for the pool.
func WithPanicHandler(handler func(any)) Option {
	return func(opts *Options) {
		opts.PanicHandler = handler
	}
}

const defaultPoolCapacity = 10

type manager struct {
	pool WorkerPool
}

// NewManager creates a worker pool manager around a single ants pool.
func NewManager(ctx context.Context, opts ...Option) (Manager, error) {
	log := util.Log(ctx)

	poolOpts := &Options{
		Capacity:    defaultPoolCapacity,
		Nonblocking: false,
		Logger:      log,
	}

	for _, opt := range opts {
		opt(poolOpts)
	}

	var antsOpts []ants.Option
	if poolOpts.ExpiryDuration > 0 {
		antsOpts = append(antsOpts, ants.WithExpiryDuration(poolOpts.ExpiryDuration))
	}
	antsOpts = append(antsOpts, ants.WithNonblocking(poolOpts.Nonblocking))
	if poolOpts.PreAlloc {
		antsOpts = append(antsOpts, ants.WithPreAlloc(poolOpts.PreAlloc))
	}
	if poolOpts.PanicHandler != nil {
		antsOpts = append(antsOpts, ants.WithPanicHandler(poolOpts.PanicHandler))
	}
	antsOpts = append(antsOpts, ants.WithLogger(poolOpts.Logger))

	pool, err := ants.NewPool(poolOpts.Capacity, antsOpts...)
	if err != nil {
		return nil, err
	}

	return &manager{pool: &poolWrapper{pool: pool}}, nil
}

func (m *manager) GetPool() (WorkerPool, error) {
	if m.pool == nil {
		return nil, errors.New("worker pool is not configured")
	}
	return m.pool, nil
}

func (m *manager) Shutdown(_ context.Context) error {
	if m.pool != nil {
		m.pool.Shutdown()
	}
	return nil
}

// poolWrapper adapts *ants.Pool to the WorkerPool interface.
type poolWrapper struct {
	pool *ants.Pool
}

func (w *poolWrapper) Submit(ctx context.Context, task func()) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return w.pool.Submit(task)
}

func (w *poolWrapper) Shutdown() {
	w.pool.Release()
}
