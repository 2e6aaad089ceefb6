package models

import (
	"strconv"
	"strings"
)

type Movie struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	OriginalTitle    string  `json:"original_title"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	ReleaseDate      string  `json:"release_date"`
	OriginalLanguage string  `json:"original_language"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	GenreIDs         []int   `json:"genre_ids"`
	Adult            bool    `json:"adult"`
}

// MovieListResponse is the page envelope returned by /search/movie and
// /discover/movie. Response and Error are only set by error payloads.
type MovieListResponse struct {
	Page         int     `json:"page"`
	Results      []Movie `json:"results"`
	TotalPages   int     `json:"total_pages"`
	TotalResults int     `json:"total_results"`

	Response string `json:"response,omitempty"`
	Error    string `json:"Error,omitempty"`
}

func (m Movie) Year() string {
	if m.ReleaseDate == "" {
		return "N/A"
	}
	year, _, _ := strings.Cut(m.ReleaseDate, "-")
	return year
}

func (m Movie) Rating() string {
	if m.VoteAverage == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(m.VoteAverage, 'f', 1, 64)
}

func (m Movie) Language() string {
	if m.OriginalLanguage == "" {
		return "N/A"
	}
	return strings.ToUpper(m.OriginalLanguage)
}

// PosterURL joins the image base with the poster path, or returns "" when
// the movie has no poster.
func (m Movie) PosterURL(base string) string {
	if m.PosterPath == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(m.PosterPath, "/")
}
