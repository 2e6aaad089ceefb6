package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sangnt1552314/cineview/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo dials and pings the server so a bad URI fails at startup.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		err = fmt.Errorf("ping mongo: %w", err)
		if derr := client.Disconnect(context.Background()); derr != nil {
			err = errors.Join(err, fmt.Errorf("disconnect mongo: %w", derr))
		}
		return nil, err
	}
	return client, nil
}

type MongoTrendingStore struct {
	collection   *mongo.Collection
	imageBaseURL string
	logger       zerolog.Logger
}

func NewMongoTrendingStore(ctx context.Context, db *mongo.Database, collection, imageBaseURL string, logger zerolog.Logger) (*MongoTrendingStore, error) {
	coll := db.Collection(collection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "searchTerm", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create searchTerm index: %w", err)
	}

	return &MongoTrendingStore{
		collection:   coll,
		imageBaseURL: imageBaseURL,
		logger:       logger,
	}, nil
}

// UpdateSearchCount upserts the entry for term: the first search stores the
// movie it matched, every search bumps the counter.
func (s *MongoTrendingStore) UpdateSearchCount(ctx context.Context, term string, movie models.Movie) error {
	term = normalizeSearchTerm(term)
	if term == "" {
		return nil
	}

	now := time.Now().UTC()
	entry := newTrendingEntry(term, movie, s.imageBaseURL, now)

	filter := bson.M{"searchTerm": term}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updated_at": now},
		"$setOnInsert": bson.M{
			"movie_id":   entry.MovieID,
			"title":      entry.Title,
			"poster_url": entry.PosterURL,
			"created_at": entry.CreatedAt,
		},
	}

	result, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("update search count for %q: %w", term, err)
	}

	s.logger.Debug().
		Str("term", term).
		Int64("upserted", result.UpsertedCount).
		Int64("modified", result.ModifiedCount).
		Msg("search count updated")
	return nil
}

func (s *MongoTrendingStore) GetTrendingMovies(ctx context.Context, limit int) ([]models.TrendingMovie, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "count", Value: -1},
		{Key: "updated_at", Value: -1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find trending movies: %w", err)
	}
	defer cursor.Close(ctx)

	movies := []models.TrendingMovie{}
	if err := cursor.All(ctx, &movies); err != nil {
		return nil, fmt.Errorf("decode trending movies: %w", err)
	}
	return movies, nil
}
