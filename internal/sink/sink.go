// Package sink persists transformed records into a durable keyed store.
// Every implementation upserts: writing the same record twice leaves exactly
// one stored record.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fanout/pkg/models"
	"fanout/pkg/retry"
)

type Sink interface {
	Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error
	Name() string
	Close(ctx context.Context) error
}

// Reader is implemented by sinks that can read a record back.
type Reader interface {
	Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error)
}

// Pinger is implemented by sinks that can check their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

var (
	ErrTargetNotFound  = errors.New("target table not found")
	ErrMalformedRecord = errors.New("malformed record")
	ErrUnavailable     = errors.New("sink unavailable")
)

// permanent marks err as not worth retrying.
func permanent(sentinel error, cause error) error {
	if cause == nil {
		return retry.NewFatalError(sentinel)
	}
	return retry.NewFatalError(fmt.Errorf("%w: %v", sentinel, cause))
}

func transient(cause error) error {
	return retry.NewRetryableError(fmt.Errorf("%w: %v", ErrUnavailable, cause))
}

// IsPermanent reports whether a sink error will fail again on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrTargetNotFound) || errors.Is(err, ErrMalformedRecord) || retry.IsFatal(err)
}

func checkRecord(table string, rec models.PersistenceRecord) error {
	if table == "" {
		return permanent(ErrTargetNotFound, errors.New("empty table name"))
	}
	if rec.Key == "" {
		return permanent(ErrMalformedRecord, errors.New("empty record key"))
	}
	if rec.Item == nil {
		return permanent(ErrMalformedRecord, errors.New("record has no item"))
	}
	return nil
}

func encodeItem(rec models.PersistenceRecord) ([]byte, error) {
	data, err := json.Marshal(rec.Item)
	if err != nil {
		return nil, permanent(ErrMalformedRecord, err)
	}
	return data, nil
}

func decodeItem(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var item map[string]interface{}
	if err := dec.Decode(&item); err != nil {
		return nil, fmt.Errorf("failed to decode stored item: %w", err)
	}
	return item, nil
}
