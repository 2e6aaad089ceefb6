package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTMDB(t *testing.T, apiKey string, handler http.HandlerFunc, opts ...func(*TMDBConfig)) (*TMDBClient, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := TMDBConfig{
		APIKey:     apiKey,
		BaseURL:    srv.URL + "/3",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewTMDBClient(cfg, zerolog.Nop()), &hits
}

func TestBuildURLQueryKey(t *testing.T) {
	client := NewTMDBClient(TMDBConfig{APIKey: "k3y", BaseURL: "https://api.themoviedb.org/3/"}, zerolog.Nop())

	raw, err := client.BuildURL("/search/movie", map[string]string{"query": "star wars", "page": ""})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/3/search/movie", u.Path)
	assert.Equal(t, "star wars", u.Query().Get("query"))
	assert.Equal(t, "k3y", u.Query().Get("api_key"))
	assert.False(t, u.Query().Has("page"))
}

func TestBuildURLV4TokenStaysOutOfQuery(t *testing.T) {
	client := NewTMDBClient(TMDBConfig{APIKey: "eyJtoken", BaseURL: "https://api.themoviedb.org/3"}, zerolog.Nop())

	raw, err := client.BuildURL("/discover/movie", nil)
	require.NoError(t, err)
	assert.NotContains(t, raw, "api_key")
}

func TestSearchMoviesSendsBearerToken(t *testing.T) {
	client, _ := newTestTMDB(t, "eyJtoken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/search/movie", r.URL.Path)
		assert.Equal(t, "alien", r.URL.Query().Get("query"))
		assert.Equal(t, "Bearer eyJtoken", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("accept"))
		w.Write([]byte(`{"page":1,"results":[{"id":348,"title":"Alien","poster_path":"/a.jpg"}]}`))
	})

	movies, err := client.SearchMovies(context.Background(), "alien")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, int64(348), movies[0].ID)
	assert.Equal(t, "Alien", movies[0].Title)
}

func TestFetchMoviesEmptyQueryDiscovers(t *testing.T) {
	client, _ := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/3/discover/movie", r.URL.Path)
		assert.Equal(t, "popularity.desc", r.URL.Query().Get("sort_by"))
		assert.Equal(t, "k3y", r.URL.Query().Get("api_key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"results":[{"id":1,"title":"A"},{"id":2,"title":"B"}]}`))
	})

	movies, err := client.FetchMovies(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, movies, 2)
}

func TestFetchMoviesNilResultsBecomeEmpty(t *testing.T) {
	client, _ := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":1}`))
	})

	movies, err := client.FetchMovies(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, movies)
	assert.Empty(t, movies)
}

func TestFetchMoviesStatusErrorNotRetried(t *testing.T) {
	client, hits := newTestTMDB(t, "bad", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.FetchMovies(context.Background(), "alien")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "Failed to fetch movies (401 Unauthorized)", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchMoviesRetriesServerErrors(t *testing.T) {
	client, hits := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.FetchMovies(context.Background(), "alien")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestFetchMoviesRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	client, _ := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"results":[{"id":7,"title":"Se7en"}]}`))
	})

	movies, err := client.FetchMovies(context.Background(), "seven")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	assert.Equal(t, "Se7en", movies[0].Title)
}

func TestFetchMoviesAPIErrorPayload(t *testing.T) {
	client, hits := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"False","Error":"Movie not found!"}`))
	})

	_, err := client.FetchMovies(context.Background(), "zzzz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))
	assert.Equal(t, "Movie not found!", err.Error())
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchMoviesAPIErrorDefaultMessage(t *testing.T) {
	client, _ := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"False"}`))
	})

	_, err := client.FetchMovies(context.Background(), "zzzz")
	require.ErrorIs(t, err, ErrAPI)
	assert.Equal(t, "Failed to fetch movies", err.Error())
}

func TestFetchMoviesCachesResponses(t *testing.T) {
	client, hits := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"id":1,"title":"Heat"}]}`))
	}, func(cfg *TMDBConfig) {
		cfg.CacheTTL = time.Minute
	})

	for i := 0; i < 3; i++ {
		movies, err := client.FetchMovies(context.Background(), "heat")
		require.NoError(t, err)
		require.Len(t, movies, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetchMoviesCanceledContext(t *testing.T) {
	client, hits := newTestTMDB(t, "k3y", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchMovies(ctx, "heat")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestRedactHidesQueryKey(t *testing.T) {
	client := NewTMDBClient(TMDBConfig{APIKey: "s3cret", BaseURL: "https://api.themoviedb.org/3"}, zerolog.Nop())
	raw, err := client.BuildURL("/discover/movie", nil)
	require.NoError(t, err)
	assert.NotContains(t, client.redact(raw), "s3cret")
}
