package cache

import (
	"time"
)

// Option configures cache connection settings.
type Option func(*Options)

// Options holds cache connection configuration.
type Options struct {
	URI    string
	Name   string
	MaxAge time.Duration
}

// WithURI returns an Option to configure the cache connection string.
func WithURI(uri string) Option {
	return func(o *Options) {
		o.URI = uri
	}
}

// WithName returns an Option to configure the cache name.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMaxAge returns an Option to configure the default entry lifetime.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}
