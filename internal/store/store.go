package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
)

// Open connects to PostgreSQL and wraps the pool in a bun handle.
func Open(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	sqldb.SetMaxOpenConns(50)
	sqldb.SetMaxIdleConns(25)
	sqldb.SetConnMaxLifetime(15 * time.Minute)
	sqldb.SetConnMaxIdleTime(5 * time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// InTx executes fn against a transaction-scoped handle.
//
// With tx == nil the helper owns the transaction: it opens one, commits when
// fn returns nil, rolls back when fn returns an error, and the connection is
// released on every exit path. With a non-nil tx the callback simply joins
// it; commit, rollback and release stay with the outer owner, which lets a
// service method run standalone or as one step of a larger unit of work.
// Errors from fn propagate unchanged either way.
func InTx(ctx context.Context, db *bun.DB, tx bun.IDB, fn func(ctx context.Context, idb bun.IDB) error) error {
	if tx != nil {
		return fn(ctx, tx)
	}
	return db.RunInTx(ctx, nil, func(ctx context.Context, btx bun.Tx) error {
		return fn(ctx, btx)
	})
}
