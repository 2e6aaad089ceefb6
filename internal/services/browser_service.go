package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sangnt1552314/cineview/internal/models"
	"golang.org/x/sync/errgroup"
)

const (
	MsgFetchFailed    = "Error fetching movies. Please try again later."
	MsgAuthMissing    = "TMDB API key not configured. Set TMDB_API_KEY and restart."
	BannerAuthMissing = "TMDB API key missing. Set TMDB_API_KEY."
)

var ErrBrowserClosed = errors.New("browser closed")

type MovieFetcher interface {
	FetchMovies(ctx context.Context, query string) ([]models.Movie, error)
}

// State is what the screen renders.
type State struct {
	SearchTerm   string
	Movies       []models.Movie
	ErrorMessage string
	Loading      bool
	Trending     []models.TrendingMovie
	AuthWarning  bool
	Generation   uint64
}

type BrowserConfig struct {
	Movies         MovieFetcher
	Trending       TrendingStore
	Debounce       time.Duration
	TrendingLimit  int
	AuthConfigured bool
	Logger         zerolog.Logger
	// OnChange is called after every state change, outside any lock.
	// Read the state with Snapshot.
	OnChange func()
}

// Browser owns search state. Fetches are debounced, and a fetch only
// applies its results while it is the newest one started.
type Browser struct {
	movies         MovieFetcher
	trending       TrendingStore
	trendingLimit  int
	authConfigured bool
	logger         zerolog.Logger
	onChange       func()
	debouncer      *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       State
	cancelFetch context.CancelFunc
	closed      bool
}

func NewBrowser(cfg BrowserConfig) *Browser {
	ctx, cancel := context.WithCancel(context.Background())

	limit := cfg.TrendingLimit
	if limit <= 0 {
		limit = 5
	}

	b := &Browser{
		movies:         cfg.Movies,
		trending:       cfg.Trending,
		trendingLimit:  limit,
		authConfigured: cfg.AuthConfigured,
		logger:         cfg.Logger,
		onChange:       cfg.OnChange,
		ctx:            ctx,
		cancel:         cancel,
		state: State{
			AuthWarning: !cfg.AuthConfigured,
		},
	}
	b.debouncer = NewDebouncer(cfg.Debounce, func(term string) {
		if !b.track() {
			return
		}
		defer b.wg.Done()
		b.fetch(term)
	})
	return b
}

// Start loads the trending list and the initial movie list concurrently and
// returns when both are done.
func (b *Browser) Start(ctx context.Context) error {
	if !b.track() {
		return ErrBrowserClosed
	}
	defer b.wg.Done()

	var g errgroup.Group
	g.Go(func() error {
		b.loadTrending(ctx)
		return nil
	})
	g.Go(func() error {
		b.fetch(b.Snapshot().SearchTerm)
		return nil
	})
	return g.Wait()
}

// SetSearchTerm updates the visible term and schedules a debounced fetch.
func (b *Browser) SetSearchTerm(term string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.state.SearchTerm = term
	b.mu.Unlock()

	b.notify()
	b.debouncer.Trigger(term)
}

// Refresh fetches the current term now, skipping the debounce delay.
func (b *Browser) Refresh() {
	b.debouncer.Cancel()
	if !b.track() {
		return
	}
	term := b.Snapshot().SearchTerm
	go func() {
		defer b.wg.Done()
		b.fetch(term)
	}()
}

func (b *Browser) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.state
	if b.state.Movies != nil {
		s.Movies = append([]models.Movie(nil), b.state.Movies...)
	}
	if b.state.Trending != nil {
		s.Trending = append([]models.TrendingMovie(nil), b.state.Trending...)
	}
	return s
}

// Close cancels in-flight work and waits for it to finish.
func (b *Browser) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	b.debouncer.Stop()
	b.cancel()
	b.wg.Wait()
}

func (b *Browser) track() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.wg.Add(1)
	return true
}

func (b *Browser) fetch(term string) {
	query := strings.TrimSpace(term)

	b.mu.Lock()
	if b.cancelFetch != nil {
		b.cancelFetch()
	}
	ctx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	b.cancelFetch = cancel
	b.state.Generation++
	gen := b.state.Generation
	b.state.Loading = true
	b.state.ErrorMessage = ""
	b.mu.Unlock()
	b.notify()

	movies, err := b.movies.FetchMovies(ctx, query)

	b.mu.Lock()
	if gen != b.state.Generation || ctx.Err() != nil {
		b.mu.Unlock()
		b.logger.Debug().Str("query", query).Uint64("generation", gen).Msg("discarding stale movie results")
		return
	}
	b.cancelFetch = nil
	b.state.Loading = false
	if err != nil {
		b.logger.Error().Err(err).Str("query", query).Msg("Error fetching movies")
		b.state.Movies = []models.Movie{}
		b.state.ErrorMessage = b.errorMessage(err)
	} else {
		b.state.Movies = movies
		if query != "" && len(movies) == 0 {
			b.state.ErrorMessage = fmt.Sprintf("No movies found for %q.", query)
		}
	}
	b.mu.Unlock()
	b.notify()

	if err != nil || query == "" || len(movies) == 0 || b.trending == nil {
		return
	}
	if err := b.trending.UpdateSearchCount(b.ctx, query, movies[0]); err != nil {
		b.logger.Error().Err(err).Str("query", query).Msg("failed to update search count")
		return
	}
	b.loadTrending(b.ctx)
}

func (b *Browser) loadTrending(ctx context.Context) {
	if b.trending == nil {
		return
	}
	trending, err := b.trending.GetTrendingMovies(ctx, b.trendingLimit)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to load trending movies")
		return
	}

	b.mu.Lock()
	b.state.Trending = trending
	b.mu.Unlock()
	b.notify()
}

func (b *Browser) errorMessage(err error) string {
	if errors.Is(err, ErrAPI) {
		return err.Error()
	}
	if !b.authConfigured {
		return MsgAuthMissing
	}
	return MsgFetchFailed
}

func (b *Browser) notify() {
	if b.onChange != nil {
		b.onChange()
	}
}
