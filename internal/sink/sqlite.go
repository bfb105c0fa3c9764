package sink

import (
	"database/sql"
	"strings"
)

const (
	sqliteUpsertSQL = `
		INSERT INTO fanout_records (table_name, record_key, item, updated_at)
		VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (table_name, record_key)
		DO UPDATE SET item = excluded.item, updated_at = excluded.updated_at`

	sqliteSelectSQL = `SELECT item FROM fanout_records WHERE table_name = ? AND record_key = ?`
)

func NewSQLiteSink(db *sql.DB) *SQLSink {
	return &SQLSink{
		db: db,
		dialect: sqlDialect{
			name:      "sqlite",
			upsertSQL: sqliteUpsertSQL,
			selectSQL: sqliteSelectSQL,
			classify:  classifySQLiteError,
		},
	}
}

func classifySQLiteError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return permanent(ErrTargetNotFound, err)
	case strings.Contains(msg, "constraint failed"):
		return permanent(ErrMalformedRecord, err)
	}
	return transient(err)
}
