package engine

import (
	"log/slog"
	"maps"

	"github.com/leapstack-labs/leaptmpl/pkg/eval"
)

// DefaultMaxDepth bounds the nesting of block, super, macro and loop frames
// within one render.
const DefaultMaxDepth = 64

// Option configures a Registry.
type Option func(*options)

type options struct {
	policy     eval.UndefinedPolicy
	autoescape bool
	maxDepth   int
	logger     *slog.Logger
	filters    eval.Filters
}

func defaultOptions() options {
	return options{
		policy:     eval.Strict,
		autoescape: true,
		maxDepth:   DefaultMaxDepth,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// WithStrict fails renders that use undefined values. This is the default.
func WithStrict() Option {
	return func(o *options) { o.policy = eval.Strict }
}

// WithLenient renders undefined values as empty text.
func WithLenient() Option {
	return func(o *options) { o.policy = eval.Lenient }
}

// WithAutoescape toggles HTML escaping of output tags. On by default.
func WithAutoescape(on bool) Option {
	return func(o *options) { o.autoescape = on }
}

// WithMaxDepth sets the render recursion limit. Values below 1 keep the
// default.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithLogger sets the logger used for registration and resolution events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFilters adds filters, replacing built-ins of the same name. May be
// given more than once.
func WithFilters(f eval.Filters) Option {
	return func(o *options) {
		if o.filters == nil {
			o.filters = make(eval.Filters, len(f))
		}
		maps.Copy(o.filters, f)
	}
}
