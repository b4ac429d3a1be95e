package pagination

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/stitchr/internal/shared"
)

// DefaultBatchSize is used when Options.BatchSize is not positive.
const DefaultBatchSize = 20

// FetchFunc returns up to amount items beginning at start.
type FetchFunc[T any] func(ctx context.Context, start, amount int) ([]T, error)

// FilterFunc selects the items of a raw page that become visible. It must be pure.
type FilterFunc[T any] func(page []T) []T

// Options configures an [Engine].
type Options[T any] struct {
	Name      string
	BatchSize int
	Fetch     FetchFunc[T]
	Filter    FilterFunc[T]
	Logger    *log.Logger
}

// Engine is a resumable, filterable cursor pager.
type Engine[T any] struct {
	fetch  FetchFunc[T]
	filter FilterFunc[T]
	batch  int
	logger *log.Logger

	mu        sync.Mutex
	items     []T
	cursor    int
	exhausted bool
	gen       uint64
	inflight  int

	// pending snapshots are delivered in order by whichever goroutine is draining.
	pending   [][]T
	draining  bool
	observers shared.Observers[[]T]
}

// New creates an engine. Fetch is required.
func New[T any](opts Options[T]) *Engine[T] {
	if opts.Fetch == nil {
		panic("pagination: Options.Fetch is required")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Filter == nil {
		opts.Filter = func(page []T) []T { return page }
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Name == "" {
		opts.Name = "pager"
	}
	return &Engine[T]{
		fetch:  opts.Fetch,
		filter: opts.Filter,
		batch:  opts.BatchSize,
		logger: shared.WithLogger(opts.Logger, "pager", opts.Name),
	}
}

// Refresh resets the cursor and exhaustion flag, then replaces the items with the
// filtered first page.
//
// On a fetch error the previous items stay visible and the cursor stays at 0.
func (e *Engine[T]) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.cursor = 0
	e.exhausted = false
	e.inflight++
	e.mu.Unlock()

	return e.run(ctx, gen, 0, true)
}

// LoadMoreIfNeeded appends the next filtered page.
//
// It is a no-op when the engine is exhausted or another fetch is outstanding.
func (e *Engine[T]) LoadMoreIfNeeded(ctx context.Context) error {
	e.mu.Lock()
	if e.exhausted || e.inflight > 0 {
		e.mu.Unlock()
		return nil
	}
	gen := e.gen
	start := e.cursor
	e.inflight++
	e.mu.Unlock()

	return e.run(ctx, gen, start, false)
}

func (e *Engine[T]) run(ctx context.Context, gen uint64, start int, overwrite bool) error {
	raw, err := e.fetch(ctx, start, e.batch)

	e.mu.Lock()
	e.inflight--
	if gen != e.gen {
		e.mu.Unlock()
		e.logger.Debug("discarding superseded page", "start", start)
		return shared.ErrStaleResult
	}
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("fetch failed", "start", start, "error", err)
		return err
	}

	e.exhausted = len(raw) < e.batch
	e.cursor += e.batch
	visible := e.filter(raw)
	if overwrite {
		e.items = slices.Clone(visible)
	} else {
		e.items = append(e.items, visible...)
	}
	e.logger.Debug("page loaded", "start", start, "raw", len(raw), "kept", len(visible), "exhausted", e.exhausted)
	e.publish()
	return nil
}

// RemoveItem deletes the item at index and steps the cursor back by one.
func (e *Engine[T]) RemoveItem(index int) error {
	e.mu.Lock()
	if index < 0 || index >= len(e.items) {
		n := len(e.items)
		e.mu.Unlock()
		return fmt.Errorf("%w: remove %d of %d", shared.ErrOutOfBounds, index, n)
	}

	e.items = slices.Delete(e.items, index, index+1)
	if e.cursor > 0 {
		e.cursor--
	}
	e.publish()
	return nil
}

// MoveItem moves the item at from so that it ends up at index to.
func (e *Engine[T]) MoveItem(from, to int) error {
	e.mu.Lock()
	n := len(e.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		e.mu.Unlock()
		return fmt.Errorf("%w: move %d to %d of %d", shared.ErrOutOfBounds, from, to, n)
	}

	item := e.items[from]
	e.items = slices.Delete(e.items, from, from+1)
	e.items = slices.Insert(e.items, to, item)
	e.publish()
	return nil
}

// Update replaces each loaded item with fn(item) and publishes the result.
func (e *Engine[T]) Update(fn func(T) T) {
	e.mu.Lock()
	for i, item := range e.items {
		e.items[i] = fn(item)
	}
	e.publish()
}

// Clear drops every item, discards outstanding fetches and marks the engine
// exhausted until the next Refresh.
func (e *Engine[T]) Clear() {
	e.mu.Lock()
	e.gen++
	e.items = nil
	e.cursor = 0
	e.exhausted = true
	e.publish()
}

// Invalidate discards the results of any fetch still in flight.
func (e *Engine[T]) Invalidate() {
	e.mu.Lock()
	e.gen++
	e.mu.Unlock()
}

// publish must be called with mu held; it releases mu.
//
// Observers run without mu held. If another goroutine is already delivering, the
// snapshot is queued behind it and this call returns immediately.
func (e *Engine[T]) publish() {
	e.pending = append(e.pending, slices.Clone(e.items))
	if e.draining {
		e.mu.Unlock()
		return
	}

	e.draining = true
	for len(e.pending) > 0 {
		batch := e.pending
		e.pending = nil
		e.mu.Unlock()
		for _, snapshot := range batch {
			e.observers.Notify(snapshot)
		}
		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}

// Items returns a copy of the visible items.
func (e *Engine[T]) Items() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.items)
}

// Len returns the number of visible items.
func (e *Engine[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Cursor returns the offset the next LoadMoreIfNeeded will request.
func (e *Engine[T]) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

func (e *Engine[T]) Exhausted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exhausted
}

// Loading reports whether a fetch is outstanding.
func (e *Engine[T]) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight > 0
}

func (e *Engine[T]) BatchSize() int { return e.batch }

// Subscribe registers fn for item changes. Observers may call back into the engine.
func (e *Engine[T]) Subscribe(fn func(items []T)) func() {
	return e.observers.Add(fn)
}

// Drain refreshes e and keeps loading until it is exhausted, returning every
// visible item.
func Drain[T any](ctx context.Context, e *Engine[T]) ([]T, error) {
	if err := e.Refresh(ctx); err != nil {
		return nil, err
	}
	for !e.Exhausted() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}
		if err := e.LoadMoreIfNeeded(ctx); err != nil {
			return nil, err
		}
	}
	return e.Items(), nil
}
