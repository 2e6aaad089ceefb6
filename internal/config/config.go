package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultTMDBBaseURL      = "https://api.themoviedb.org/3"
	DefaultTMDBImageBaseURL = "https://image.tmdb.org/t/p/w500"
	DefaultMongoDatabase    = "cineview"
	DefaultMongoCollection  = "metrics"
	DefaultLogFile          = "storage/logs/cineview.log"
)

type Config struct {
	TMDBAPIKey       string
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBMaxRetries   uint
	TMDBRateLimit    float64
	TMDBCacheTTL     time.Duration

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	SearchDebounce time.Duration
	TrendingLimit  int

	LogLevel string
	LogFile  string
}

// Load reads the optional .env file and then the process environment.
// A missing TMDB key is not an error; callers check AuthConfigured.
func Load() (Config, []string, error) {
	var warnings []string
	if err := godotenv.Load(); err != nil {
		warnings = append(warnings, ".env file not found")
	}

	cfg, err := FromEnv(os.Getenv)
	return cfg, warnings, err
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		TMDBAPIKey:       strings.TrimSpace(getenv("TMDB_API_KEY")),
		TMDBBaseURL:      orDefault(getenv("TMDB_BASE_URL"), DefaultTMDBBaseURL),
		TMDBImageBaseURL: orDefault(getenv("TMDB_IMAGE_BASE_URL"), DefaultTMDBImageBaseURL),
		TMDBMaxRetries:   2,
		TMDBRateLimit:    20,
		TMDBCacheTTL:     5 * time.Minute,
		MongoURI:         strings.TrimSpace(getenv("MONGO_URI")),
		MongoDatabase:    orDefault(getenv("MONGO_DATABASE"), DefaultMongoDatabase),
		MongoCollection:  orDefault(getenv("MONGO_COLLECTION"), DefaultMongoCollection),
		SearchDebounce:   500 * time.Millisecond,
		TrendingLimit:    5,
		LogLevel:         orDefault(getenv("LOG_LEVEL"), "info"),
		LogFile:          orDefault(getenv("LOG_FILE"), DefaultLogFile),
	}
	if cfg.TMDBAPIKey == "" {
		cfg.TMDBAPIKey = strings.TrimSpace(getenv("VITE_TMDB_API_KEY"))
	}

	if v := getenv("SEARCH_DEBOUNCE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid SEARCH_DEBOUNCE %q", v)
		}
		cfg.SearchDebounce = d
	}

	if v := getenv("TMDB_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("invalid TMDB_CACHE_TTL %q", v)
		}
		cfg.TMDBCacheTTL = d
	}

	if v := getenv("TRENDING_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid TRENDING_LIMIT %q", v)
		}
		cfg.TrendingLimit = n
	}

	if v := getenv("TMDB_MAX_RETRIES"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TMDB_MAX_RETRIES %q", v)
		}
		cfg.TMDBMaxRetries = uint(n)
	}

	if v := getenv("TMDB_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return Config{}, fmt.Errorf("invalid TMDB_RATE_LIMIT %q", v)
		}
		cfg.TMDBRateLimit = f
	}

	return cfg, nil
}

// AuthConfigured reports whether a TMDB credential is present.
func (c Config) AuthConfigured() bool {
	return c.TMDBAPIKey != ""
}

// IsV4Token reports whether the credential is a v4 read access token (a JWT),
// which is sent as a bearer header instead of the api_key query parameter.
func (c Config) IsV4Token() bool {
	return strings.HasPrefix(c.TMDBAPIKey, "eyJ")
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
