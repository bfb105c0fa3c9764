package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fanout/internal/constants"
	"fanout/pkg/models"
)

// sqlDialect holds what differs between the database/sql backed sinks.
type sqlDialect struct {
	name      string
	upsertSQL string
	selectSQL string
	classify  func(err error) error
}

// SQLSink stores every logical table as a partition of the shared
// fanout_records table, keyed by (table_name, record_key).
type SQLSink struct {
	db      *sql.DB
	dialect sqlDialect
}

func (s *SQLSink) Name() string {
	return s.dialect.name
}

func (s *SQLSink) Upsert(ctx context.Context, table string, rec models.PersistenceRecord) error {
	if err := checkRecord(table, rec); err != nil {
		return err
	}

	data, err := encodeItem(rec)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.dialect.upsertSQL, table, rec.Key, string(data)); err != nil {
		return s.dialect.classify(fmt.Errorf("upsert into %s failed: %w", constants.RecordsTableName, err))
	}
	return nil
}

func (s *SQLSink) Get(ctx context.Context, table, key string) (map[string]interface{}, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.dialect.selectSQL, table, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select from %s failed: %w", constants.RecordsTableName, err)
	}

	item, err := decodeItem([]byte(data))
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

func (s *SQLSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op: the pool belongs to whoever opened it.
func (s *SQLSink) Close(context.Context) error {
	return nil
}
