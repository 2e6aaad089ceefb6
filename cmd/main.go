package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
	"github.com/sangnt1552314/cineview/internal/config"
	"github.com/sangnt1552314/cineview/internal/logging"
	"github.com/sangnt1552314/cineview/internal/models"
	"github.com/sangnt1552314/cineview/internal/services"
	"go.mongodb.org/mongo-driver/mongo"
)

type App struct {
	app            *tview.Application
	browser        *services.Browser
	cfg            config.Config
	logger         zerolog.Logger
	search_box     *tview.InputField
	movie_list     *tview.Table
	trending_list  *tview.Table
	detail_box     *tview.TextView
	status_box     *tview.TextView
	warning_banner *tview.TextView
	movies         []models.Movie
	redraws        chan struct{}
	stopped        atomic.Bool
}

func NewApp(cfg config.Config, logger zerolog.Logger) *App {
	return &App{
		app:            tview.NewApplication(),
		cfg:            cfg,
		logger:         logger,
		search_box:     tview.NewInputField(),
		movie_list:     tview.NewTable(),
		trending_list:  tview.NewTable(),
		detail_box:     tview.NewTextView().SetWrap(true).SetWordWrap(true),
		status_box:     tview.NewTextView().SetTextAlign(tview.AlignLeft),
		warning_banner: tview.NewTextView().SetTextAlign(tview.AlignCenter),
		redraws:        make(chan struct{}, 1),
	}
}

func headerCell(text string, maxWidth int) *tview.TableCell {
	return tview.NewTableCell(text).
		SetMaxWidth(maxWidth).
		SetSelectable(false).
		SetTextColor(tcell.ColorYellow).
		SetAttributes(tcell.AttrBold)
}

func (app *App) setMovieTableHeader() {
	app.movie_list.SetCell(0, 0, headerCell("Title", 40).SetExpansion(1))
	app.movie_list.SetCell(0, 1, headerCell("Rating", 6))
	app.movie_list.SetCell(0, 2, headerCell("Lang", 4))
	app.movie_list.SetCell(0, 3, headerCell("Year", 4))

	app.movie_list.SetFixed(1, 0)
}

func (app *App) setTrendingTableHeader() {
	app.trending_list.SetCell(0, 0, headerCell("#", 2))
	app.trending_list.SetCell(0, 1, headerCell("Movie", 30).SetExpansion(1))
	app.trending_list.SetCell(0, 2, headerCell("Searches", 8))

	app.trending_list.SetFixed(1, 0)
}

// render redraws every widget from the browser state. It must run on the
// tview event loop.
func (app *App) render(state services.State) {
	if state.AuthWarning {
		app.warning_banner.SetText(services.BannerAuthMissing)
	} else {
		app.warning_banner.SetText("")
	}

	switch {
	case state.Loading:
		app.status_box.SetTextColor(tcell.ColorYellow)
		app.status_box.SetText("Loading...")
	case state.ErrorMessage != "":
		app.status_box.SetTextColor(tcell.ColorRed)
		app.status_box.SetText(state.ErrorMessage)
	default:
		app.status_box.SetTextColor(tcell.ColorGreen)
		app.status_box.SetText(fmt.Sprintf("%d movies", len(state.Movies)))
	}

	app.renderTrending(state.Trending)
	if !state.Loading {
		app.renderMovies(state.Movies, state.ErrorMessage)
	}
}

func (app *App) renderTrending(trending []models.TrendingMovie) {
	app.trending_list.Clear()
	app.setTrendingTableHeader()

	if len(trending) == 0 {
		app.trending_list.SetCell(1, 1, tview.NewTableCell("No searches yet").SetSelectable(false))
		return
	}

	for i, entry := range trending {
		title := entry.Title
		if title == "" {
			title = entry.SearchTerm
		}
		app.trending_list.SetCell(i+1, 0, tview.NewTableCell(strconv.Itoa(i+1)))
		app.trending_list.SetCell(i+1, 1, tview.NewTableCell(title))
		app.trending_list.SetCell(i+1, 2, tview.NewTableCell(strconv.FormatInt(entry.Count, 10)).SetAlign(tview.AlignRight))
	}
}

func (app *App) renderMovies(movies []models.Movie, errorMessage string) {
	app.movie_list.Clear()
	app.setMovieTableHeader()
	app.movies = movies

	if errorMessage != "" {
		app.movie_list.SetCell(1, 0, tview.NewTableCell(errorMessage).
			SetTextColor(tcell.ColorRed).
			SetSelectable(false))
		app.detail_box.Clear()
		return
	}

	for i, movie := range movies {
		app.movie_list.SetCell(i+1, 0, tview.NewTableCell(movie.Title).SetReference(i))
		app.movie_list.SetCell(i+1, 1, tview.NewTableCell(movie.Rating()))
		app.movie_list.SetCell(i+1, 2, tview.NewTableCell(movie.Language()))
		app.movie_list.SetCell(i+1, 3, tview.NewTableCell(movie.Year()))
	}
}

func (app *App) showDetail(movie models.Movie) {
	poster := movie.PosterURL(app.cfg.TMDBImageBaseURL)
	if poster == "" {
		poster = "no poster"
	}

	app.logger.Debug().Int64("movie_id", movie.ID).Msg("showing details")
	app.detail_box.Clear()
	app.detail_box.SetTitle(" " + movie.Title + " ")
	fmt.Fprintf(app.detail_box, "%s • %s • %s\n\n%s\n\nPoster: %s",
		movie.Rating(), movie.Language(), movie.Year(), movie.Overview, poster)
}

// redraw is the browser's OnChange hook. It may be called from the tview
// event loop itself, so it only signals the pump and never blocks.
func (app *App) redraw() {
	if app.stopped.Load() {
		return
	}
	select {
	case app.redraws <- struct{}{}:
	default:
	}
}

// runRedrawPump renders the latest snapshot once per pending signal until
// done is closed. Bursts of changes collapse into one draw.
func (app *App) runRedrawPump(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-app.redraws:
			if app.stopped.Load() {
				return
			}
			app.app.QueueUpdateDraw(func() {
				app.render(app.browser.Snapshot())
			})
		}
	}
}

// stop marks the UI as gone so later state changes are dropped.
func (app *App) stop() {
	app.stopped.Store(true)
	app.app.Stop()
}

func newTrendingStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (services.TrendingStore, *mongo.Client) {
	if cfg.MongoURI == "" {
		logger.Info().Msg("MONGO_URI not set, trending searches are kept in memory")
		return services.NewMemoryTrendingStore(cfg.TMDBImageBaseURL), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := services.ConnectMongo(connectCtx, cfg.MongoURI)
	if err != nil {
		logger.Error().Err(err).Msg("falling back to in-memory trending store")
		return services.NewMemoryTrendingStore(cfg.TMDBImageBaseURL), nil
	}

	store, err := services.NewMongoTrendingStore(connectCtx, client.Database(cfg.MongoDatabase),
		cfg.MongoCollection, cfg.TMDBImageBaseURL, logging.WithComponent(logger, "trending"))
	if err != nil {
		logger.Error().Err(err).Msg("falling back to in-memory trending store")
		disconnectMongo(client, logger)
		return services.NewMemoryTrendingStore(cfg.TMDBImageBaseURL), nil
	}
	return store, client
}

func disconnectMongo(client *mongo.Client, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to disconnect from mongo")
	}
}

// layout builds the widget tree and wires the input handlers to the browser.
func (app *App) layout() *tview.Flex {
	// Ctrl+C quits everywhere, 'q' only when not typing in the search box
	app.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			app.stop()
			return nil
		}
		if event.Rune() == 'q' && app.app.GetFocus() != app.search_box {
			app.stop()
			return nil
		}
		return event
	})

	// Containers
	main_box := tview.NewFlex()
	main_box.SetDirection(tview.FlexRow)
	main_box.SetFullScreen(true)

	// Search box
	app.search_box.SetBorder(true)
	app.search_box.SetTitle("Find Movies You'll Enjoy")
	app.search_box.SetTitleAlign(tview.AlignLeft)
	app.search_box.SetPlaceholder("Search through thousands of movies")
	app.search_box.SetFieldBackgroundColor(tcell.ColorNone)
	app.search_box.SetFieldTextColor(tcell.ColorWhite)
	app.search_box.SetChangedFunc(func(text string) {
		app.browser.SetSearchTerm(text)
	})
	app.search_box.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			app.browser.Refresh()
			app.app.SetFocus(app.movie_list)
		case tcell.KeyTab, tcell.KeyEscape:
			app.app.SetFocus(app.movie_list)
		}
	})

	app.warning_banner.SetTextColor(tcell.ColorRed)

	header_box := tview.NewFlex().SetDirection(tview.FlexRow)
	header_box.AddItem(app.search_box, 3, 0, true)
	header_box.AddItem(app.warning_banner, 1, 0, false)

	// Container - Trending box
	trending_box := tview.NewFlex().SetDirection(tview.FlexRow)
	trending_box.SetBorder(true)
	trending_box.SetTitle("Trending Movies")
	trending_box.SetTitleAlign(tview.AlignLeft)
	app.setTrendingTableHeader()
	trending_box.AddItem(app.trending_list, 0, 1, false)

	// Container - Movies box
	movies_box := tview.NewFlex().SetDirection(tview.FlexRow)
	movies_box.SetBorder(true)
	movies_box.SetTitle("All Movies")
	movies_box.SetTitleAlign(tview.AlignLeft)
	app.setMovieTableHeader()
	app.movie_list.SetCell(1, 0, tview.NewTableCell("Loading movies...").SetSelectable(false))
	movies_box.AddItem(app.movie_list, 0, 1, true)

	app.movie_list.SetSelectable(true, false)
	app.movie_list.SetSelectionChangedFunc(func(row, column int) {
		if row <= 0 {
			return
		}
		idx, ok := app.movie_list.GetCell(row, 0).GetReference().(int)
		if ok && idx < len(app.movies) {
			app.showDetail(app.movies[idx])
		}
	})
	app.movie_list.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape || key == tcell.KeyTab {
			app.app.SetFocus(app.search_box)
		}
	})

	// Container - Detail box
	app.detail_box.SetBorder(true)
	app.detail_box.SetTitle(" Details ")
	app.detail_box.SetTitleAlign(tview.AlignLeft)

	side_box := tview.NewFlex().SetDirection(tview.FlexRow)
	side_box.AddItem(trending_box, 0, 1, false)
	side_box.AddItem(app.detail_box, 0, 1, false)

	content_box := tview.NewFlex().SetDirection(tview.FlexColumn)
	content_box.AddItem(movies_box, 0, 3, false)
	content_box.AddItem(side_box, 0, 2, false)

	// Status box
	app.status_box.SetBorder(true)
	app.status_box.SetTitle("Status")
	app.status_box.SetTitleAlign(tview.AlignLeft)
	app.status_box.SetText("...")

	// Setup layout
	main_box.AddItem(header_box, 4, 0, true)
	main_box.AddItem(content_box, 0, 1, false)
	main_box.AddItem(app.status_box, 3, 0, false)

	app.render(app.browser.Snapshot())
	return main_box
}

func main() {
	cfg, warnings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Logs go to a file, the terminal belongs to tview
	logger, logCloser, err := logging.Setup(logging.Config{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})
	if err != nil {
		panic(err)
	}
	defer logCloser.Close()

	for _, w := range warnings {
		logger.Warn().Msg(w)
	}
	if !cfg.AuthConfigured() {
		logger.Warn().Msg("TMDB API key not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trendingStore, mongoClient := newTrendingStore(ctx, cfg, logger)
	if mongoClient != nil {
		defer disconnectMongo(mongoClient, logger)
	}

	tmdb := services.NewTMDBClient(services.TMDBConfig{
		APIKey:     cfg.TMDBAPIKey,
		BaseURL:    cfg.TMDBBaseURL,
		MaxRetries: cfg.TMDBMaxRetries,
		RateLimit:  cfg.TMDBRateLimit,
		CacheTTL:   cfg.TMDBCacheTTL,
	}, logging.WithComponent(logger, "tmdb"))

	app := NewApp(cfg, logger)
	app.browser = services.NewBrowser(services.BrowserConfig{
		Movies:         tmdb,
		Trending:       trendingStore,
		Debounce:       cfg.SearchDebounce,
		TrendingLimit:  cfg.TrendingLimit,
		AuthConfigured: cfg.AuthConfigured(),
		Logger:         logging.WithComponent(logger, "browser"),
		OnChange:       app.redraw,
	})

	// Setup signal handling for cleanup
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-c
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
		app.stop()
	}()

	root := app.layout()

	pumpDone := make(chan struct{})
	go app.runRedrawPump(pumpDone)

	go func() {
		if err := app.browser.Start(ctx); err != nil {
			logger.Error().Err(err).Msg("initial load failed")
		}
	}()

	runErr := app.app.
		SetRoot(root, true).
		EnableMouse(true).
		Run()

	// The event loop is gone: drop redraws, then unwind background work
	app.stopped.Store(true)
	close(pumpDone)
	cancel()
	app.browser.Close()

	if runErr != nil {
		logger.Error().Err(runErr).Msg("tview exited with error")
		panic(runErr)
	}
}
