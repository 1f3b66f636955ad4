package db

import (
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jmoiron/sqlx"
)

// NewClickHouseConnection opens the delivery event log store.
// dsn e.g. clickhouse://default:@localhost:9000/mailgw?dial_timeout=5s
func NewClickHouseConnection(dsn string, opts PoolOpts) (*sqlx.DB, error) {
	db, err := sqlx.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	if err := configurePool(db, opts, 3*time.Second); err != nil {
		return nil, err
	}
	return db, nil
}
