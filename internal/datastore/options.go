package datastore

import (
	"github.com/rs/zerolog"

	"github.com/roach88/tessera/internal/ir"
	"github.com/roach88/tessera/internal/metrics"
	"github.com/roach88/tessera/internal/predicate"
	"github.com/roach88/tessera/internal/storage"
)

// Option configures a DataStore.
type Option func(*DataStore)

// WithLogger sets the logger used by the store and its storage.
func WithLogger(l zerolog.Logger) Option {
	return func(d *DataStore) { d.logger = l }
}

// WithMetrics sets the metrics recorded by the store and its storage.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *DataStore) { d.metrics = m }
}

// WithClock sets the clock stamping change events.
func WithClock(c *storage.Clock) Option {
	return func(d *DataStore) { d.clock = c }
}

// SaveOption configures one Save.
type SaveOption func(*saveConfig)

type saveConfig struct {
	condition predicate.CriteriaFunc
}

// WithCondition makes Save fail with ErrConditionFailed unless the
// currently stored version of the record matches fn. A record that is
// not stored yet always passes.
func WithCondition(fn predicate.CriteriaFunc) SaveOption {
	return func(c *saveConfig) { c.condition = fn }
}

// QueryOption configures one query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	page ir.Page
}

// WithPage windows a list result. page is zero-based; a limit of 0
// means no limit.
func WithPage(page, limit uint) QueryOption {
	return func(c *queryConfig) {
		c.page = ir.Page{Page: page, Limit: limit}
	}
}

func applyQueryOptions(opts []QueryOption) queryConfig {
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
