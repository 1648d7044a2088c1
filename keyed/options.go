package keyed

import (
	"github.com/hupe1980/diskcache"
	"github.com/hupe1980/diskcache/codec"
	"github.com/hupe1980/diskcache/internal/resource"
)

type options struct {
	codec        codec.Codec
	limits       resource.Config
	logger       *diskcache.Logger
	cacheOptions []diskcache.Option
}

// Option configures a Manager.
type Option func(*options)

// WithCodec encodes values before they are stored. Every process opening the
// same directory must use the same codec. Default is codec.None.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithWriteLimits bounds the number of concurrent Puts and their combined
// write rate in bytes per second. Zero means unlimited.
func WithWriteLimits(maxConcurrentWrites, bytesPerSec int64) Option {
	return func(o *options) {
		o.limits = resource.Config{
			MaxConcurrentWrites: maxConcurrentWrites,
			IOLimitBytesPerSec:  bytesPerSec,
		}
	}
}

// WithLogger sets the logger of the manager and its cache.
func WithLogger(l *diskcache.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = diskcache.NoopLogger()
		}
		o.logger = l
	}
}

// WithCacheOptions passes options through to diskcache.Open.
func WithCacheOptions(opts ...diskcache.Option) Option {
	return func(o *options) {
		o.cacheOptions = append(o.cacheOptions, opts...)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:  codec.Default,
		logger: diskcache.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}
