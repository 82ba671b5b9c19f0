package memory

import (
	"context"
	"sync"

	"github.com/weegigs/wee-streams-go/we"
)

// DB is an in-memory database with serialized transactions. Each transaction
// holds the database lock until it commits or rolls back, and a rollback
// restores the state captured when it began.
type DB struct {
	mu        sync.Mutex
	tables    map[string]map[string]any
	log       []we.Record
	published int64
}

func New() *DB {
	return &DB{tables: map[string]map[string]any{}}
}

type txKey struct{}

func (db *DB) inTx(ctx context.Context) bool {
	tx, ok := ctx.Value(txKey{}).(*DB)
	return ok && tx == db
}

type state struct {
	tables    map[string]map[string]any
	log       int
	published int64
}

func (db *DB) save() state {
	tables := make(map[string]map[string]any, len(db.tables))
	for name, rows := range db.tables {
		copied := make(map[string]any, len(rows))
		for key, row := range rows {
			copied[key] = row
		}
		tables[name] = copied
	}

	return state{tables: tables, log: len(db.log), published: db.published}
}

func (db *DB) restore(s state) {
	db.tables = s.tables
	db.log = db.log[:s.log]
	db.published = s.published
}

func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	saved := db.save()
	committed := false
	defer func() {
		if !committed {
			db.restore(saved)
		}
	}()

	ctx = we.BeginUnitOfWork(context.WithValue(ctx, txKey{}, db))
	if err := fn(ctx); err != nil {
		return err
	}

	committed = true
	return nil
}

// view runs fn with the database locked unless ctx already holds the lock.
func (db *DB) view(ctx context.Context, fn func()) {
	if db.inTx(ctx) {
		fn()
		return
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	fn()
}

func (db *DB) write(ctx context.Context, fn func() error) error {
	if !db.inTx(ctx) {
		return we.ErrNoTransaction
	}

	return fn()
}

func (db *DB) get(table string, key string) (any, bool) {
	row, ok := db.tables[table][key]
	return row, ok
}

func (db *DB) put(table string, key string, row any) {
	rows, ok := db.tables[table]
	if !ok {
		rows = map[string]any{}
		db.tables[table] = rows
	}
	rows[key] = row
}

func (db *DB) remove(table string, key string) {
	delete(db.tables[table], key)
}
