// Package mongodb implements the movie store on a MongoDB-compatible
// document database.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Options configures the connection.
type Options struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// DB owns a MongoDB client and the collection movies live in.
type DB struct {
	client *mongo.Client
	movies *mongo.Collection
}

// Connect dials the server and verifies it with a ping.
func Connect(ctx context.Context, opts Options) (*DB, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &DB{
		client: client,
		movies: client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Migrate ensures the indexes the repository relies on exist.
// CreateOne is a no-op when an identical index is already present.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.movies.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("createdAt_id"),
	})
	if err != nil {
		return fmt.Errorf("create createdAt index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (d *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Movies returns the movie repository.
func (d *DB) Movies() *MovieRepository {
	return newMovieRepository(d.movies)
}
