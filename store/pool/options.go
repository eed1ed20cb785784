package pool

import (
	"time"
)

// Option configures database connection settings.
type Option func(*Options)

// Options holds store connection configuration.
type Options struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration

	PreferSimpleProtocol   bool
	SkipDefaultTransaction bool

	LogQueries         bool
	SlowQueryThreshold time.Duration
}

func defaultOptions() *Options {
	return &Options{
		PreferSimpleProtocol:   true,
		SkipDefaultTransaction: true,
		SlowQueryThreshold:     DefaultSlowQueryThreshold,
	}
}

// WithMaxOpen returns an Option to configure the max open connections.
func WithMaxOpen(maxOpen int) Option {
	return func(o *Options) {
		o.MaxOpen = maxOpen
	}
}

// WithMaxLifetime returns an Option to configure the connection max lifetime.
func WithMaxLifetime(maxLifetime time.Duration) Option {
	return func(o *Options) {
		o.MaxLifetime = maxLifetime
	}
}

// WithLogQueries returns an Option that turns on query logging.
func WithLogQueries(logQueries bool) Option {
	return func(o *Options) {
		o.LogQueries = logQueries
	}
}

// WithSlowQueryThreshold returns an Option to configure the slow query log threshold.
func WithSlowQueryThreshold(threshold time.Duration) Option {
	return func(o *Options) {
		o.SlowQueryThreshold = threshold
	}
}
