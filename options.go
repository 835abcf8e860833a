package rowpager

import (
	"github.com/rs/zerolog"
)

// Option configures paginators.
type Option func(*base)

// WithLogger sets the logger used for fail-open and resource events.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithLimits overrides the default limit, the max limit and the default sort
// order.
func WithLimits(limits LimitConfig) Option {
	return func(b *base) {
		if limits.DefaultLimit > 0 {
			b.limits.DefaultLimit = limits.DefaultLimit
		}
		if limits.MaxLimit > 0 {
			b.limits.MaxLimit = limits.MaxLimit
		}
		if limits.DefaultSortOrder != "" {
			b.limits.DefaultSortOrder = limits.DefaultSortOrder
		}
	}
}

// base holds the static configuration shared by every paginator. It never
// carries per-request state.
type base struct {
	logger zerolog.Logger
	limits LimitConfig
}

func newBase(opts []Option) base {
	b := base{
		logger: zerolog.Nop(),
		limits: DefaultLimitConfig(),
	}
	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b base) limit(requested int) int {
	limit, clamped := clampLimit(requested, b.limits.DefaultLimit, b.limits.MaxLimit)
	if clamped {
		b.logger.Debug().
			Int("requested", requested).
			Int("limit", limit).
			Msg("page limit clamped to max limit")
	}

	return limit
}

func (b base) sortOrder(requested string) (SortOrder, error) {
	def, err := ParseSortOrder(b.limits.DefaultSortOrder, SortDESC)
	if err != nil {
		def = SortDESC
	}

	return ParseSortOrder(requested, def)
}
