package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/n9te9/go-graphql-stitching-gateway/logger"
)

type Option func(*options)

type options struct {
	maxBatch int
	logger   logger.Logger
}

func newOptions(opts []Option) *options {
	o := &options{logger: logger.NewNoopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithMaxBatch seals a window once it holds n distinct keys. Zero means no limit.
func WithMaxBatch(n int) Option {
	return func(o *options) {
		o.maxBatch = n
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type closer interface {
	close(err error)
}

// Scope owns the collectors of a single request. Windows never outlive the
// scope and are never shared with another request.
type Scope struct {
	opts []Option

	mu         sync.Mutex
	collectors map[string]closer
	closed     bool
}

func NewScope(opts ...Option) *Scope {
	return &Scope{
		opts:       opts,
		collectors: make(map[string]closer),
	}
}

// Loader returns the collector registered under name, creating it with fetch
// on first use.
func Loader[K comparable, V any](s *Scope, name string, fetch BatchFunc[K, V]) *Collector[K, V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.collectors[name]; ok {
		c, ok := existing.(*Collector[K, V])
		if !ok {
			panic(fmt.Sprintf("batch: loader %q already registered with a different type", name))
		}
		return c
	}

	c := NewCollector(name, fetch, s.opts...)
	if s.closed {
		c.closed = true
	}
	s.collectors[name] = c
	return c
}

// Close rejects every window that is still collecting with ErrScopeClosed.
func (s *Scope) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for _, c := range s.collectors {
		c.close(ErrScopeClosed)
	}
}

type scopeKey struct{}

func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}
