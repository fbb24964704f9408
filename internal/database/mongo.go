// Package database handles document store connections and indexes.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"socialapp/internal/config"
	"socialapp/internal/observability"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Collection names.
const (
	PostsCollection = "posts"
	UsersCollection = "users"
)

const slowCommandThreshold = 200 * time.Millisecond

// commandMonitor routes driver command events into the structured logger.
func commandMonitor() *event.CommandMonitor {
	return &event.CommandMonitor{
		Succeeded: func(ctx context.Context, e *event.CommandSucceededEvent) {
			if e.Duration > slowCommandThreshold {
				observability.Logger.WarnContext(ctx, "mongo slow command",
					slog.String("command", e.CommandName),
					slog.String("database", e.DatabaseName),
					slog.Duration("elapsed", e.Duration),
				)
			}
		},
		Failed: func(ctx context.Context, e *event.CommandFailedEvent) {
			observability.Logger.ErrorContext(ctx, "mongo command error",
				slog.String("command", e.CommandName),
				slog.String("database", e.DatabaseName),
				slog.Duration("elapsed", e.Duration),
				slog.Any("error", e.Failure),
			)
		},
	}
}

// Connect creates the process-wide client, verifies connectivity and returns
// the configured database. The client is safe for concurrent use and pools
// connections; callers inject it rather than sharing a global.
func Connect(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	timeout := time.Duration(cfg.MongoTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName("socialapp").
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetMonitor(commandMonitor())
	if cfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MongoMaxPoolSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	observability.Logger.Info("Mongo connected successfully",
		slog.String("database", cfg.MongoDatabase),
		slog.Uint64("max_pool_size", cfg.MongoMaxPoolSize),
	)

	return client, client.Database(cfg.MongoDatabase), nil
}

// EnsureIndexes creates the indexes the repositories rely on. Creating an
// index that already exists is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userName", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userEmail", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	posts := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "userName", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: -1}}},
	}
	if _, err := db.Collection(PostsCollection).Indexes().CreateMany(ctx, posts); err != nil {
		return fmt.Errorf("failed to create post indexes: %w", err)
	}

	return nil
}

// Ping checks connectivity to the primary.
func Ping(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return fmt.Errorf("mongo client is nil")
	}
	return client.Ping(ctx, readpref.Primary())
}
