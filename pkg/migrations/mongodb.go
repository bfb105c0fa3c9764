package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureMongoCollection creates ascending secondary indexes on fields.
// Records are keyed by _id, which needs no index.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database, collection string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	indexes := make([]mongo.IndexModel, 0, len(fields))
	for _, field := range fields {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetName(fmt.Sprintf("idx_%s_%s", strings.ToLower(collection), field)),
		})
	}

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}

	return nil
}
