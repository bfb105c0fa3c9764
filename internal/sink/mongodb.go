package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fanout/pkg/models"
)

// MongoDBSink stores each table as a collection and each record as a
// document whose _id is the record key.
type MongoDBSink struct {
	db *mongo.Database
}

func NewMongoDBSink(db *mongo.Database) *MongoDBSink {
	return &MongoDBSink{db: db}
}

func (s *MongoDBSink) Name() string {
	return "mongodb"
}

func (s *MongoDBSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	if err := checkRecord(table, rec); err != nil {
		return err
	}

	doc := make(bson.M, len(rec.Item)+1)
	for k, v := range rec.Item {
		doc[k] = models.MapNumbers(v, toBSONNumber)
	}
	doc["_id"] = rec.Key

	_, err := s.db.Collection(table).ReplaceOne(ctx,
		bson.M{"_id": rec.Key},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return classifyMongoError(fmt.Errorf("replace into %s failed: %w", table, err))
	}
	return nil
}

func (s *MongoDBSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	var doc bson.M
	err := s.db.Collection(table).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find in %s failed: %w", table, err)
	}

	delete(doc, "_id")
	return map[string]interface{}(doc), true, nil
}

// toBSONNumber stores integers as int64 and every other number as a
// decimal so no digits are rounded away.
func toBSONNumber(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if d, err := primitive.ParseDecimal128(n.String()); err == nil {
		return d
	}
	return models.NumberToFloat(n)
}

func (s *MongoDBSink) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoDBSink) Close(context.Context) error {
	return nil
}

func classifyMongoError(err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return transient(err)
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0 {
		return permanent(ErrMalformedRecord, err)
	}
	return transient(err)
}
