package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/n9te9/go-graphql-stitching-gateway/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrMisaligned is returned to every key of a window whose batch function
	// answered with a result list that does not match the submitted keys.
	ErrMisaligned = errors.New("batch: results are not aligned with keys")

	// ErrScopeClosed is returned for keys registered into a scope that has been
	// closed, and for windows that were still collecting when it closed.
	ErrScopeClosed = errors.New("batch: scope closed")
)

var tracer = otel.Tracer("github.com/n9te9/go-graphql-stitching-gateway/stitching/batch")

// BatchFunc resolves a list of distinct keys with a single downstream call.
// The returned values must be positionally aligned with keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// Thunk is the pending result of one registered key.
type Thunk[V any] func() (V, error)

type windowState int

const (
	collecting windowState = iota
	dispatching
	done
)

// window holds the distinct keys registered between two dispatches.
// state is guarded by the owning collector's mutex.
type window[K comparable, V any] struct {
	keys  []K
	index map[K]int
	state windowState

	values []V
	err    error
	done   chan struct{}
}

func newWindow[K comparable, V any]() *window[K, V] {
	return &window[K, V]{
		index: make(map[K]int),
		done:  make(chan struct{}),
	}
}

func (w *window[K, V]) add(key K) int {
	if i, ok := w.index[key]; ok {
		return i
	}
	w.index[key] = len(w.keys)
	w.keys = append(w.keys, key)
	return len(w.keys) - 1
}

func (w *window[K, V]) finish(values []V, err error) {
	w.values = values
	w.err = err
	close(w.done)
}

// Collector groups keys registered during one execution pass and resolves
// them with one call to its BatchFunc.
//
// A window stays open until the first of its thunks is awaited. graphql-go
// awaits thunks only once every field of the current pass has been resolved,
// so every key registered during that pass lands in the same window.
type Collector[K comparable, V any] struct {
	name     string
	fetch    BatchFunc[K, V]
	maxBatch int
	logger   logger.Logger

	mu         sync.Mutex
	current    *window[K, V]
	pending    []*window[K, V]
	closed     bool
	dispatches int
}

// NewCollector returns a collector that resolves keys with fetch.
func NewCollector[K comparable, V any](name string, fetch BatchFunc[K, V], opts ...Option) *Collector[K, V] {
	o := newOptions(opts)
	return &Collector[K, V]{
		name:     name,
		fetch:    fetch,
		maxBatch: o.maxBatch,
		logger:   o.logger,
	}
}

// Load registers key in the collecting window and returns its pending result.
func (c *Collector[K, V]) Load(ctx context.Context, key K) Thunk[V] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return failed[V](ErrScopeClosed)
	}

	w := c.current
	if w != nil {
		if i, ok := w.index[key]; ok {
			return c.thunk(ctx, w, i)
		}
		if c.maxBatch > 0 && len(w.keys) >= c.maxBatch {
			// sealed: its own thunks still dispatch it
			w = nil
		}
	}

	if w == nil {
		w = newWindow[K, V]()
		c.current = w
		c.pending = append(c.pending, w)
	}

	return c.thunk(ctx, w, w.add(key))
}

// Dispatches reports how many downstream calls the collector has made.
func (c *Collector[K, V]) Dispatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatches
}

func (c *Collector[K, V]) thunk(ctx context.Context, w *window[K, V], i int) Thunk[V] {
	return func() (V, error) {
		var zero V

		c.dispatch(ctx, w)

		select {
		case <-w.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		if w.err != nil {
			return zero, w.err
		}
		return w.values[i], nil
	}
}

// dispatch moves w from collecting to dispatching and runs the batch
// function. It is a no-op for a window that has already left collecting.
func (c *Collector[K, V]) dispatch(ctx context.Context, w *window[K, V]) {
	c.mu.Lock()
	if w.state != collecting {
		c.mu.Unlock()
		return
	}
	w.state = dispatching
	c.detach(w)
	c.dispatches++
	c.mu.Unlock()

	keys := w.keys

	ctx, span := tracer.Start(ctx, "batch.dispatch", trace.WithAttributes(
		attribute.String("batch.loader", c.name),
		attribute.Int("batch.keys", len(keys)),
	))
	defer span.End()

	values, err := c.call(ctx, keys)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("batch failed",
			zap.String("loader", c.name),
			zap.Int("keys", len(keys)),
			zap.Error(err),
		)
	} else {
		c.logger.Debug("batch dispatched",
			zap.String("loader", c.name),
			zap.Int("keys", len(keys)),
		)
	}

	w.finish(values, err)
}

func (c *Collector[K, V]) call(ctx context.Context, keys []K) (values []V, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			values = nil
			err = fmt.Errorf("batch: %s panicked: %v", c.name, r)
		}
	}()

	values, err = c.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}

	if len(values) != len(keys) {
		return nil, fmt.Errorf("%w: %s returned %d results for %d keys", ErrMisaligned, c.name, len(values), len(keys))
	}

	return values, nil
}

// detach must be called with c.mu held.
func (c *Collector[K, V]) detach(w *window[K, V]) {
	if c.current == w {
		c.current = nil
	}
	for i, p := range c.pending {
		if p == w {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			break
		}
	}
}

// close rejects every window that has not been dispatched yet and refuses
// further registrations.
func (c *Collector[K, V]) close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, w := range c.pending {
		w.state = done
		w.finish(nil, err)
	}
	c.pending = nil
	c.current = nil
}

func failed[V any](err error) Thunk[V] {
	return func() (V, error) {
		var zero V
		return zero, err
	}
}
