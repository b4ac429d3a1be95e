package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/stitchr/internal/models"
	"github.com/desertthunder/stitchr/internal/pagination"
	"github.com/desertthunder/stitchr/internal/shared"
)

// Searcher runs track searches. Each Search supersedes the previous one: the older
// request is cancelled and its results never reach the engine.
type Searcher struct {
	spotify Spotify
	results *pagination.Engine[models.Track]
	exclude func(uri string) bool
	logger  *log.Logger

	mu     sync.Mutex
	term   string
	cancel context.CancelCauseFunc
}

var errSuperseded = errors.New("superseded by a newer search")

// NewSearcher creates a searcher. Tracks for which exclude returns true are hidden;
// exclude may be nil.
func NewSearcher(sp Spotify, exclude func(uri string) bool, opts Options) *Searcher {
	s := &Searcher{spotify: sp, exclude: exclude, logger: opts.logger("search")}
	s.results = pagination.New(pagination.Options[models.Track]{
		Name:      "search",
		BatchSize: opts.BatchSize,
		Logger:    opts.Logger,
		Fetch:     s.fetch,
		Filter:    s.filter,
	})
	return s
}

// Results returns the engine holding the current search results.
func (s *Searcher) Results() *pagination.Engine[models.Track] { return s.results }

// Term returns the active search term.
func (s *Searcher) Term() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term
}

func (s *Searcher) filter(page []models.Track) []models.Track {
	if s.exclude == nil {
		return page
	}
	out := make([]models.Track, 0, len(page))
	for _, tr := range page {
		if !s.exclude(tr.URI) {
			out = append(out, tr)
		}
	}
	return out
}

type searchResult struct {
	page *models.Paging[models.Track]
	err  error
}

// fetch bridges the callback based search into the engine. Leaving early cancels
// the in-flight request.
func (s *Searcher) fetch(ctx context.Context, start, amount int) ([]models.Track, error) {
	term := s.Term()
	if term == "" {
		return nil, nil
	}

	ch := make(chan searchResult, 1)
	h := s.spotify.SearchTracksAsync(ctx, term, start, amount, func(p *models.Paging[models.Track], err error) {
		ch <- searchResult{page: p, err: err}
	})

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.page.Items, nil
	case <-ctx.Done():
		h.Cancel()
		return nil, fmt.Errorf("%w: search %q: %v", shared.ErrCancelled, term, ctx.Err())
	}
}

// Search replaces the results with the first page for term. A blank term clears them.
//
// A search overtaken by a newer one returns an error wrapping [shared.ErrStaleResult].
func (s *Searcher) Search(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)

	s.mu.Lock()
	if s.cancel != nil {
		// Pages already fetched by the older search must not be published.
		s.results.Invalidate()
		s.cancel(errSuperseded)
		s.cancel = nil
	}
	s.term = term
	if term == "" {
		s.mu.Unlock()
		s.results.Clear()
		return nil
	}
	ctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Debug("search", "term", term)
	err := s.results.Refresh(ctx)
	if err != nil && errors.Is(context.Cause(ctx), errSuperseded) && !isStale(err) {
		return fmt.Errorf("%w: %v", shared.ErrStaleResult, err)
	}
	return err
}

// LoadMore fetches the next page of the active search, if any.
func (s *Searcher) LoadMore(ctx context.Context) error {
	if s.Term() == "" {
		return nil
	}
	return s.results.LoadMoreIfNeeded(ctx)
}

// Close cancels the active search.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel(context.Canceled)
		s.cancel = nil
	}
}

func isStale(err error) bool {
	return errors.Is(err, shared.ErrStaleResult)
}
