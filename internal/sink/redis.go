package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fanout/pkg/models"
)

// RedisSink stores each record as a JSON string under "<table>:<key>".
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func recordKey(table, key string) string {
	return table + ":" + key
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	if err := checkRecord(table, rec); err != nil {
		return err
	}

	data, err := encodeItem(rec)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, recordKey(table, rec.Key), data, 0).Err(); err != nil {
		return transient(fmt.Errorf("redis SET failed: %w", err))
	}
	return nil
}

func (s *RedisSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	data, err := s.client.Get(ctx, recordKey(table, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET failed: %w", err)
	}

	item, err := decodeItem(data)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close(context.Context) error {
	return nil
}
