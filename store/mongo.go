package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// KVCollection is the collection holding dashboard key/value entries
const KVCollection = "dashboard_kv"

// kvEntry is one stored key
type kvEntry struct {
	Namespace string    `bson:"namespace"`
	Key       string    `bson:"key"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoKV stores dashboard keys in MongoDB so credentials survive restarts
type MongoKV struct {
	collection *mongo.Collection
}

var _ KV = (*MongoKV)(nil)

// NewMongoKV creates the store and its indexes
func NewMongoKV(ctx context.Context, db *mongo.Database) (*MongoKV, error) {
	collection := db.Collection(KVCollection)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.M{"updated_at": -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kv indexes: %w", err)
	}

	return &MongoKV{collection: collection}, nil
}

func (m *MongoKV) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	var entry kvEntry
	err := m.collection.FindOne(ctx, bson.M{"namespace": namespace, "key": key}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (m *MongoKV) Set(ctx context.Context, namespace, key, value string) error {
	filter := bson.M{"namespace": namespace, "key": key}
	update := bson.M{"$set": kvEntry{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		slog.Error("Failed to save key", "error", err, "key", key)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (m *MongoKV) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := m.collection.DeleteMany(ctx, bson.M{
		"namespace": namespace,
		"key":       bson.M{"$in": keys},
	})
	if err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
