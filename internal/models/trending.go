package models

import "time"

type TrendingMovie struct {
	SearchTerm string    `bson:"searchTerm" json:"search_term"`
	Count      int64     `bson:"count" json:"count"`
	MovieID    int64     `bson:"movie_id" json:"movie_id"`
	Title      string    `bson:"title" json:"title"`
	PosterURL  string    `bson:"poster_url" json:"poster_url"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}
