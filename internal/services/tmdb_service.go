package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/sangnt1552314/cineview/internal/models"
	"golang.org/x/time/rate"
)

// ErrAPI is returned when TMDB answers 200 with an error payload.
var ErrAPI = errors.New("tmdb api error")

type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Failed to fetch movies (%s)", e.Status)
}

func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type apiError struct {
	msg string
}

func (e *apiError) Error() string { return e.msg }
func (e *apiError) Unwrap() error { return ErrAPI }

type TMDBConfig struct {
	APIKey     string
	BaseURL    string
	MaxRetries uint
	RateLimit  float64 // requests per second, 0 disables limiting
	CacheTTL   time.Duration
	RetryDelay time.Duration
	HTTPClient *http.Client
}

type TMDBClient struct {
	apiKey     string
	isV4Token  bool
	baseURL    string
	maxRetries uint
	retryDelay time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *expirable.LRU[string, []models.Movie]
	logger     zerolog.Logger
}

func NewTMDBClient(cfg TMDBConfig, logger zerolog.Logger) *TMDBClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 300 * time.Millisecond
	}

	client := &TMDBClient{
		apiKey:     cfg.APIKey,
		isV4Token:  strings.HasPrefix(cfg.APIKey, "eyJ"),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
	if cfg.CacheTTL > 0 {
		client.cache = expirable.NewLRU[string, []models.Movie](128, nil, cfg.CacheTTL)
	}
	return client
}

// BuildURL joins the base URL and path, skipping empty params. Keys that are
// not v4 tokens travel as the api_key query parameter.
func (c *TMDBClient) BuildURL(path string, params map[string]string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("parse tmdb url: %w", err)
	}

	q := u.Query()
	for key, value := range params {
		if value != "" {
			q.Set(key, value)
		}
	}
	if c.apiKey != "" && !c.isV4Token {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *TMDBClient) SearchMovies(ctx context.Context, query string) ([]models.Movie, error) {
	endpoint, err := c.BuildURL("/search/movie", map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	return c.getMovies(ctx, endpoint)
}

func (c *TMDBClient) DiscoverMovies(ctx context.Context) ([]models.Movie, error) {
	endpoint, err := c.BuildURL("/discover/movie", map[string]string{"sort_by": "popularity.desc"})
	if err != nil {
		return nil, err
	}
	return c.getMovies(ctx, endpoint)
}

// FetchMovies searches when query is non-empty and falls back to the
// popularity-sorted discover list otherwise.
func (c *TMDBClient) FetchMovies(ctx context.Context, query string) ([]models.Movie, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.DiscoverMovies(ctx)
	}
	return c.SearchMovies(ctx, query)
}

func (c *TMDBClient) getMovies(ctx context.Context, endpoint string) ([]models.Movie, error) {
	if c.cache != nil {
		if movies, ok := c.cache.Get(endpoint); ok {
			return movies, nil
		}
	}

	c.logger.Debug().Str("endpoint", c.redact(endpoint)).Msg("TMDB endpoint")

	movies, err := retry.DoWithData(
		func() ([]models.Movie, error) {
			return c.doRequest(ctx, endpoint)
		},
		retry.Context(ctx),
		retry.Attempts(c.maxRetries+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Err(err).Uint("attempt", n+1).Msg("retrying TMDB request")
		}),
	)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Add(endpoint, movies)
	}
	return movies, nil
}

func (c *TMDBClient) doRequest(ctx context.Context, endpoint string) ([]models.Movie, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	if c.isV4Token {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var data models.MovieListResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode tmdb response: %w", err)
	}

	if data.Response == "False" {
		msg := data.Error
		if msg == "" {
			msg = "Failed to fetch movies"
		}
		return nil, &apiError{msg: msg}
	}

	if data.Results == nil {
		return []models.Movie{}, nil
	}
	return data.Results, nil
}

// redact hides the api_key value in logged URLs.
func (c *TMDBClient) redact(endpoint string) string {
	if c.apiKey == "" || c.isV4Token {
		return endpoint
	}
	return strings.ReplaceAll(endpoint, url.QueryEscape(c.apiKey), "REDACTED")
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
