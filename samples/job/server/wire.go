//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/stores/kafka"
	"github.com/weegigs/wee-streams-go/stores/pg"
)

func OnlineJobs(ctx context.Context, url pg.DatabaseURL) (Online, func(), error) {
	panic(wire.Build(online, pg.Live))
}

func RestoreJobs(ctx context.Context, url pg.DatabaseURL, brokers kafka.Brokers) (Restoring, func(), error) {
	panic(wire.Build(
		restoring,
		pg.LiveDB,
		kafka.ProducerClient,
		kafka.AdminClient,
		kafka.NewOffsetSource,
		wire.Bind(new(restore.OffsetSource), new(*kafka.OffsetSource)),
	))
}
