package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sangnt1552314/cineview/internal/models"
)

// TrendingStore records how often each search term is used.
type TrendingStore interface {
	UpdateSearchCount(ctx context.Context, term string, movie models.Movie) error
	GetTrendingMovies(ctx context.Context, limit int) ([]models.TrendingMovie, error)
}

func normalizeSearchTerm(term string) string {
	return strings.TrimSpace(term)
}

func newTrendingEntry(term string, movie models.Movie, imageBaseURL string, now time.Time) models.TrendingMovie {
	return models.TrendingMovie{
		SearchTerm: term,
		Count:      1,
		MovieID:    movie.ID,
		Title:      movie.Title,
		PosterURL:  movie.PosterURL(imageBaseURL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// MemoryTrendingStore keeps counters in process. Used when no database is
// configured.
type MemoryTrendingStore struct {
	mu           sync.Mutex
	entries      map[string]*models.TrendingMovie
	imageBaseURL string
	now          func() time.Time
}

func NewMemoryTrendingStore(imageBaseURL string) *MemoryTrendingStore {
	return &MemoryTrendingStore{
		entries:      make(map[string]*models.TrendingMovie),
		imageBaseURL: imageBaseURL,
		now:          time.Now,
	}
}

func (s *MemoryTrendingStore) UpdateSearchCount(ctx context.Context, term string, movie models.Movie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	term = normalizeSearchTerm(term)
	if term == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if entry, ok := s.entries[term]; ok {
		entry.Count++
		entry.UpdatedAt = now
		return nil
	}
	entry := newTrendingEntry(term, movie, s.imageBaseURL, now)
	s.entries[term] = &entry
	return nil
}

func (s *MemoryTrendingStore) GetTrendingMovies(ctx context.Context, limit int) ([]models.TrendingMovie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	out := make([]models.TrendingMovie, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, *entry)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
