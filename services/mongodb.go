package services

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"social-dashboard/store"
)

// InitMongoDB initializes MongoDB connection
func InitMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.Info("Connected to MongoDB")
	return client, nil
}

// InitCredentialStore picks the key/value backend for stored credentials.
// An empty uri keeps everything in memory. A non-empty secret seals the
// token fields at rest. The returned close func releases the backend.
func InitCredentialStore(ctx context.Context, uri, databaseName, secret string) (store.KV, func(context.Context) error, error) {
	var (
		kv      store.KV
		closeFn = func(context.Context) error { return nil }
	)

	if uri == "" {
		slog.Warn("No MongoDB URI configured, credentials are kept in memory")
		kv = store.NewMemoryKV()
	} else {
		client, err := InitMongoDB(ctx, uri)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		mongoKV, err := store.NewMongoKV(ctx, client.Database(databaseName))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		kv = mongoKV
		closeFn = client.Disconnect
	}

	if secret == "" {
		return kv, closeFn, nil
	}
	sealed, err := store.NewSealedKV(kv, secret, store.SecretKeys...)
	if err != nil {
		_ = closeFn(ctx)
		return nil, nil, err
	}
	return sealed, closeFn, nil
}
