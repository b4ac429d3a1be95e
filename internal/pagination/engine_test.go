package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/stitchr/internal/shared"
)

// source is a remote collection of n integers, 0..n-1.
type source struct {
	mu    sync.Mutex
	n     int
	calls [][2]int
	err   error
}

func (s *source) fetch(ctx context.Context, start, amount int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, [2]int{start, amount})
	if s.err != nil {
		return nil, s.err
	}
	var out []int
	for i := start; i < start+amount && i < s.n; i++ {
		out = append(out, i)
	}
	return out, nil
}

func dropAll(page []int) []int { return nil }

func dropFirstFive(page []int) []int {
	if len(page) <= 5 {
		return nil
	}
	return page[5:]
}

func TestEngineCursorAndExhaustion(t *testing.T) {
	ctx := context.Background()

	t.Run("full page advances by batch size", func(t *testing.T) {
		src := &source{n: 100}
		e := New(Options[int]{BatchSize: 10, Fetch: src.fetch})

		require.NoError(t, e.Refresh(ctx))
		assert.Equal(t, 10, e.Cursor())
		assert.False(t, e.Exhausted())

		require.NoError(t, e.LoadMoreIfNeeded(ctx))
		assert.Equal(t, 20, e.Cursor())
		assert.False(t, e.Exhausted())
		assert.Equal(t, [][2]int{{0, 10}, {10, 10}}, src.calls)
	})

	t.Run("short page exhausts", func(t *testing.T) {
		for _, n := range []int{0, 1, 9} {
			t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
				e := New(Options[int]{BatchSize: 10, Fetch: (&source{n: n}).fetch})
				require.NoError(t, e.Refresh(ctx))
				assert.True(t, e.Exhausted())
				assert.Len(t, e.Items(), n)
			})
		}
	})

	t.Run("filter never changes bookkeeping", func(t *testing.T) {
		identity := New(Options[int]{BatchSize: 10, Fetch: (&source{n: 25}).fetch})
		filtered := New(Options[int]{BatchSize: 10, Fetch: (&source{n: 25}).fetch, Filter: dropAll})

		for _, e := range []*Engine[int]{identity, filtered} {
			require.NoError(t, e.Refresh(ctx))
			require.NoError(t, e.LoadMoreIfNeeded(ctx))
		}
		assert.Equal(t, identity.Cursor(), filtered.Cursor())
		assert.Equal(t, identity.Exhausted(), filtered.Exhausted())
		assert.Empty(t, filtered.Items())

		for _, e := range []*Engine[int]{identity, filtered} {
			require.NoError(t, e.LoadMoreIfNeeded(ctx))
		}
		assert.Equal(t, 30, filtered.Cursor())
		assert.True(t, filtered.Exhausted())
		assert.Equal(t, identity.Exhausted(), filtered.Exhausted())
	})

	t.Run("full page filtered to nothing is not exhausted", func(t *testing.T) {
		e := New(Options[int]{BatchSize: 10, Fetch: (&source{n: 50}).fetch, Filter: dropAll})
		require.NoError(t, e.Refresh(ctx))
		assert.Equal(t, 10, e.Cursor())
		assert.False(t, e.Exhausted())
	})

	t.Run("refresh resets", func(t *testing.T) {
		src := &source{n: 15}
		e := New(Options[int]{BatchSize: 10, Fetch: src.fetch})
		require.NoError(t, e.Refresh(ctx))
		require.NoError(t, e.LoadMoreIfNeeded(ctx))
		require.True(t, e.Exhausted())
		require.Equal(t, 20, e.Cursor())

		src.mu.Lock()
		src.n = 40
		src.mu.Unlock()

		require.NoError(t, e.Refresh(ctx))
		assert.Equal(t, 10, e.Cursor())
		assert.False(t, e.Exhausted())
		assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, e.Items())
	})

	t.Run("refresh resets cursor even when the fetch fails", func(t *testing.T) {
		src := &source{n: 15}
		e := New(Options[int]{BatchSize: 10, Fetch: src.fetch})
		require.NoError(t, e.Refresh(ctx))
		require.NoError(t, e.LoadMoreIfNeeded(ctx))

		src.err = errors.New("offline")
		assert.Error(t, e.Refresh(ctx))
		assert.Zero(t, e.Cursor())
		assert.False(t, e.Exhausted())
		assert.Len(t, e.Items(), 15)
	})

	t.Run("failed load more changes nothing", func(t *testing.T) {
		src := &source{n: 50}
		e := New(Options[int]{BatchSize: 10, Fetch: src.fetch})
		require.NoError(t, e.Refresh(ctx))

		src.err = shared.ErrTransport
		err := e.LoadMoreIfNeeded(ctx)

		assert.ErrorIs(t, err, shared.ErrTransport)
		assert.Equal(t, 10, e.Cursor())
		assert.False(t, e.Exhausted())
		assert.Len(t, e.Items(), 10)
		assert.False(t, e.Loading())
	})

	t.Run("exhausted load more is a no-op", func(t *testing.T) {
		src := &source{n: 3}
		e := New(Options[int]{BatchSize: 10, Fetch: src.fetch})
		require.NoError(t, e.Refresh(ctx))
		require.NoError(t, e.LoadMoreIfNeeded(ctx))
		require.NoError(t, e.LoadMoreIfNeeded(ctx))
		assert.Len(t, src.calls, 1)
	})

	t.Run("default batch size", func(t *testing.T) {
		e := New(Options[int]{Fetch: (&source{}).fetch})
		assert.Equal(t, DefaultBatchSize, e.BatchSize())
	})

	t.Run("requires fetch", func(t *testing.T) {
		assert.Panics(t, func() { New(Options[int]{}) })
	})
}

func TestEngineScenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("filtered first page then a short second page", func(t *testing.T) {
		src := &source{n: 23}
		e := New(Options[int]{BatchSize: 20, Fetch: src.fetch, Filter: dropFirstFive})

		require.NoError(t, e.Refresh(ctx))
		assert.Len(t, e.Items(), 15)
		assert.Equal(t, 20, e.Cursor())
		assert.False(t, e.Exhausted())

		e2 := New(Options[int]{BatchSize: 20, Fetch: src.fetch})
		require.NoError(t, e2.Refresh(ctx))
		require.NoError(t, e2.LoadMoreIfNeeded(ctx))
		assert.Len(t, e2.Items(), 23)
		assert.True(t, e2.Exhausted())

		calls := len(src.calls)
		require.NoError(t, e2.LoadMoreIfNeeded(ctx))
		assert.Len(t, src.calls, calls)
	})

	t.Run("remove the last of five items at cursor 20", func(t *testing.T) {
		e := New(Options[int]{BatchSize: 20, Fetch: (&source{n: 5}).fetch})
		require.NoError(t, e.Refresh(ctx))
		require.Equal(t, 20, e.Cursor())

		require.NoError(t, e.RemoveItem(4))
		assert.Equal(t, 19, e.Cursor())
		assert.Len(t, e.Items(), 4)
	})
}

func seeded(t *testing.T, n, batch int) *Engine[int] {
	t.Helper()
	e := New(Options[int]{BatchSize: batch, Fetch: (&source{n: n}).fetch})
	require.NoError(t, e.Refresh(context.Background()))
	return e
}

func TestEngineEdits(t *testing.T) {
	t.Run("move 2 to 0", func(t *testing.T) {
		e := seeded(t, 4, 10)
		require.NoError(t, e.MoveItem(2, 0))
		assert.Equal(t, []int{2, 0, 1, 3}, e.Items())
		assert.Equal(t, 10, e.Cursor())
	})

	t.Run("move 0 to 3", func(t *testing.T) {
		e := seeded(t, 4, 10)
		require.NoError(t, e.MoveItem(0, 3))
		assert.Equal(t, []int{1, 2, 3, 0}, e.Items())
	})

	t.Run("update rewrites every item and notifies", func(t *testing.T) {
		e := seeded(t, 3, 10)
		var got []int
		e.Subscribe(func(items []int) { got = items })

		e.Update(func(v int) int { return v * 10 })
		assert.Equal(t, []int{0, 10, 20}, e.Items())
		assert.Equal(t, []int{0, 10, 20}, got)
		assert.Equal(t, 10, e.Cursor())
	})

	t.Run("remove 1", func(t *testing.T) {
		e := seeded(t, 3, 10)
		require.NoError(t, e.RemoveItem(1))
		assert.Equal(t, []int{0, 2}, e.Items())
		assert.Equal(t, 9, e.Cursor())
	})

	t.Run("remove never takes the cursor below zero", func(t *testing.T) {
		e := seeded(t, 3, 10)
		for range 12 {
			if e.Len() == 0 {
				break
			}
			require.NoError(t, e.RemoveItem(0))
		}
		assert.Zero(t, e.Len())
		assert.Equal(t, 7, e.Cursor())
	})

	t.Run("bounds", func(t *testing.T) {
		e := seeded(t, 3, 10)
		var notified int
		e.Subscribe(func([]int) { notified++ })

		assert.ErrorIs(t, e.RemoveItem(3), shared.ErrOutOfBounds)
		assert.ErrorIs(t, e.RemoveItem(-1), shared.ErrOutOfBounds)
		assert.ErrorIs(t, e.MoveItem(0, 3), shared.ErrOutOfBounds)
		assert.ErrorIs(t, e.MoveItem(-1, 0), shared.ErrOutOfBounds)

		assert.Equal(t, []int{0, 1, 2}, e.Items())
		assert.Equal(t, 10, e.Cursor())
		assert.Zero(t, notified)
	})
}

func TestEngineObservers(t *testing.T) {
	ctx := context.Background()

	t.Run("every mutation notifies with the full list", func(t *testing.T) {
		e := New(Options[int]{BatchSize: 2, Fetch: (&source{n: 3}).fetch})
		var got [][]int
		unsub := e.Subscribe(func(items []int) { got = append(got, items) })

		require.NoError(t, e.Refresh(ctx))
		require.NoError(t, e.LoadMoreIfNeeded(ctx))
		require.NoError(t, e.MoveItem(2, 0))
		require.NoError(t, e.RemoveItem(0))
		unsub()
		e.Clear()

		assert.Equal(t, [][]int{{0, 1}, {0, 1, 2}, {2, 0, 1}, {0, 1}}, got)
	})

	t.Run("observer may call back into the engine", func(t *testing.T) {
		e := New(Options[int]{BatchSize: 5, Fetch: (&source{n: 5}).fetch})
		var lens []int
		e.Subscribe(func(items []int) {
			lens = append(lens, e.Len())
			if len(items) == 5 {
				_ = e.RemoveItem(0)
			}
		})

		require.NoError(t, e.Refresh(ctx))
		assert.Equal(t, 4, e.Len())
		assert.Len(t, lens, 2)
	})

	t.Run("failed fetch does not notify", func(t *testing.T) {
		e := New(Options[int]{BatchSize: 5, Fetch: (&source{err: errors.New("x")}).fetch})
		called := false
		e.Subscribe(func([]int) { called = true })

		assert.Error(t, e.Refresh(ctx))
		assert.False(t, called)
	})
}

func TestEngineConcurrency(t *testing.T) {
	ctx := context.Background()

	// gated fetch blocks each call until released.
	type gated struct {
		started chan int
		release chan struct{}
	}
	newGated := func() *gated { return &gated{started: make(chan int, 10), release: make(chan struct{})} }
	fetchFn := func(g *gated) FetchFunc[int] {
		return func(ctx context.Context, start, amount int) ([]int, error) {
			g.started <- start
			<-g.release
			return make([]int, amount), nil
		}
	}

	t.Run("load more while a fetch is outstanding is a no-op", func(t *testing.T) {
		g := newGated()
		e := New(Options[int]{BatchSize: 5, Fetch: fetchFn(g)})

		done := make(chan error, 1)
		go func() { done <- e.LoadMoreIfNeeded(ctx) }()
		<-g.started
		assert.True(t, e.Loading())

		require.NoError(t, e.LoadMoreIfNeeded(ctx))
		close(g.release)
		require.NoError(t, <-done)

		assert.Equal(t, 5, e.Cursor())
		assert.False(t, e.Loading())
	})

	t.Run("refresh supersedes an outstanding load more", func(t *testing.T) {
		var mu sync.Mutex
		first := true
		block := make(chan struct{})
		entered := make(chan struct{})
		e := New(Options[int]{BatchSize: 3, Fetch: func(ctx context.Context, start, amount int) ([]int, error) {
			mu.Lock()
			isFirst := first
			first = false
			mu.Unlock()
			if isFirst {
				close(entered)
				<-block
				return []int{-1, -1, -1}, nil
			}
			return []int{start, start + 1}, nil
		}})

		stale := make(chan error, 1)
		go func() { stale <- e.LoadMoreIfNeeded(ctx) }()
		<-entered

		require.NoError(t, e.Refresh(ctx))
		close(block)

		assert.ErrorIs(t, <-stale, shared.ErrStaleResult)
		assert.Equal(t, []int{0, 1}, e.Items())
		assert.Equal(t, 3, e.Cursor())
		assert.True(t, e.Exhausted())
	})

	t.Run("invalidate discards in-flight results", func(t *testing.T) {
		g := newGated()
		e := New(Options[int]{BatchSize: 2, Fetch: fetchFn(g)})

		done := make(chan error, 1)
		go func() { done <- e.Refresh(ctx) }()
		<-g.started
		e.Invalidate()
		close(g.release)

		assert.ErrorIs(t, <-done, shared.ErrStaleResult)
		assert.Empty(t, e.Items())
	})

	t.Run("clear marks exhausted", func(t *testing.T) {
		e := seeded(t, 30, 10)
		e.Clear()
		assert.Empty(t, e.Items())
		assert.True(t, e.Exhausted())
		assert.Zero(t, e.Cursor())
	})

	t.Run("parallel edits and reads are race free", func(t *testing.T) {
		e := seeded(t, 200, 200)
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_ = e.MoveItem(i, j)
					_ = e.RemoveItem(0)
					_ = e.Items()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 120, e.Len())
	})
}

func TestDrain(t *testing.T) {
	t.Run("loads until exhausted", func(t *testing.T) {
		src := &source{n: 45}
		e := New(Options[int]{BatchSize: 10, Fetch: src.fetch})

		items, err := Drain(context.Background(), e)
		require.NoError(t, err)
		assert.Len(t, items, 45)
		assert.Len(t, src.calls, 5)
	})

	t.Run("stops on error", func(t *testing.T) {
		e := New(Options[int]{BatchSize: 10, Fetch: (&source{err: shared.ErrTransport}).fetch})
		_, err := Drain(context.Background(), e)
		assert.ErrorIs(t, err, shared.ErrTransport)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		e := New(Options[int]{BatchSize: 1, Fetch: func(ctx context.Context, start, amount int) ([]int, error) {
			if start == 3 {
				cancel()
			}
			return []int{start}, nil
		}})

		_, err := Drain(ctx, e)
		assert.ErrorIs(t, err, shared.ErrCancelled)
	})

	t.Run("timeout is reported as cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)
		e := New(Options[int]{BatchSize: 1, Fetch: func(ctx context.Context, start, amount int) ([]int, error) {
			return []int{start}, nil
		}})

		_, err := Drain(ctx, e)
		assert.ErrorIs(t, err, shared.ErrCancelled)
	})
}
