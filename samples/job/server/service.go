package main

import (
	"github.com/google/wire"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/samples/job"
	"github.com/weegigs/wee-streams-go/stores/pg"
	"github.com/weegigs/wee-streams-go/we"
)

// Online is everything the command side of the job service needs.
type Online struct {
	DB      *pg.DB
	Log     *pg.EventLog
	Buffer  *pg.Buffer
	Codec   *we.Codec
	Service *job.Service
}

// Restoring rebuilds the job snapshots of a fresh database from the log.
type Restoring struct {
	DB      *pg.DB
	Codec   *we.Codec
	Store   *we.Store[job.Job]
	Offsets restore.OffsetSource
}

func NewCodec() *we.Codec {
	return businesstx.RegisterMarkers(job.RegisterEvents(we.NewCodec()))
}

func NewJobStore(db *pg.DB) *we.Store[job.Job] {
	return job.NewStore(pg.NewSnapshotRepository[job.Job](db))
}

func NewBus(log we.EventLog, store *we.Store[job.Job]) *we.LocalEventBus {
	return we.NewLocalEventBus(log, we.WithSnapshotStores(store))
}

var jobs = wire.NewSet(
	NewCodec,
	NewJobStore,
)

var online = wire.NewSet(
	jobs,
	NewBus,
	job.NewService,
	wire.Struct(new(Online), "*"),
)

var restoring = wire.NewSet(
	jobs,
	wire.Struct(new(Restoring), "*"),
)
