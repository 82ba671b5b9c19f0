package pg

import (
	"context"

	"github.com/google/wire"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/we"
)

type DatabaseURL string

var Live = wire.NewSet(
	LiveDB,
	NewEventLog,
	NewBuffer,
	wire.Bind(new(we.Transactor), new(*DB)),
	wire.Bind(new(we.EventLog), new(*EventLog)),
	wire.Bind(new(businesstx.Buffer), new(*Buffer)),
)

// LiveDB opens and migrates the database.
func LiveDB(ctx context.Context, url DatabaseURL) (*DB, func(), error) {
	db, err := Open(ctx, string(url))
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, db.Close, nil
}
