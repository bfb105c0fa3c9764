package sink

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const (
	postgresUpsertSQL = `
		INSERT INTO fanout_records (table_name, record_key, item, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (table_name, record_key)
		DO UPDATE SET item = EXCLUDED.item, updated_at = NOW()`

	postgresSelectSQL = `SELECT item::text FROM fanout_records WHERE table_name = $1 AND record_key = $2`
)

func NewPostgresSink(db *sql.DB) *SQLSink {
	return &SQLSink{
		db: db,
		dialect: sqlDialect{
			name:      "postgres",
			upsertSQL: postgresUpsertSQL,
			selectSQL: postgresSelectSQL,
			classify:  classifyPostgresError,
		},
	}
}

// classifyPostgresError maps SQLSTATE classes: 42 (undefined table and
// friends) means the schema is missing, 22/23 mean the row was rejected.
func classifyPostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "42":
			return permanent(ErrTargetNotFound, err)
		case "22", "23":
			return permanent(ErrMalformedRecord, err)
		}
	}
	return transient(err)
}
