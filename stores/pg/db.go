package pg

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-streams-go/we"
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Option func(*DB)

func WithLogger(logger *zerolog.Logger) Option {
	return func(db *DB) {
		db.log = logger
	}
}

// DB is a Postgres backed transactor. Repositories built on it write through
// the transaction carried by ctx.
type DB struct {
	pool *pgxpool.Pool
	log  *zerolog.Logger
}

func Open(ctx context.Context, url string, options ...Option) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to reach postgres")
	}

	return New(pool, options...), nil
}

func New(pool *pgxpool.Pool, options ...Option) *DB {
	db := &DB{pool: pool}
	for _, option := range options {
		option(db)
	}

	if db.log == nil {
		db.log = &log.Logger
	}

	return db
}

func (db *DB) Close() {
	db.pool.Close()
}

type txKey struct{}

func (db *DB) tx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := db.tx(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(ctx, tx)
			panic(p)
		}
	}()

	if err := fn(we.BeginUnitOfWork(context.WithValue(ctx, txKey{}, tx))); err != nil {
		db.rollback(ctx, tx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(errors.Wrap(err, "failed to commit transaction"))
	}

	return nil
}

func (db *DB) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		db.log.Err(err).Msg("transaction rollback failed")
	}
}

// reader returns the transaction in ctx or the pool.
func (db *DB) reader(ctx context.Context) querier {
	if tx, ok := db.tx(ctx); ok {
		return tx
	}

	return db.pool
}

func (db *DB) writer(ctx context.Context) (querier, error) {
	tx, ok := db.tx(ctx)
	if !ok {
		return nil, we.ErrNoTransaction
	}

	return tx, nil
}

// classify maps Postgres failures onto the runtime's error taxonomy.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505", "40001", "40P01":
			return errors.Wrap(we.ErrConcurrencyConflict, err.Error())
		}
	}

	return err
}
