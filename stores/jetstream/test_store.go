package jetstream

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/weegigs/wee-streams-go/we"
)

// NewTestStream starts a JetStream enabled NATS server in a container.
func NewTestStream(ctx context.Context, codec *we.Codec, options ...Option) (*Stream, func(), error) {
	server, err := testcontainers.GenericContainer(
		ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "nats:alpine",
				ExposedPorts: []string{"4222/tcp"},
				WaitingFor:   wait.ForListeningPort("4222"),
				Cmd:          []string{"--jetstream"},
			},
			Started: true,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	terminate := func() {
		if err := server.Terminate(ctx); err != nil {
			panic(err)
		}
	}

	host, err := server.Host(ctx)
	if err != nil {
		terminate()
		return nil, nil, err
	}

	port, err := server.MappedPort(ctx, "4222")
	if err != nil {
		terminate()
		return nil, nil, err
	}

	nc, err := nats.Connect(fmt.Sprintf("nats://%s:%s", host, port.Port()))
	if err != nil {
		terminate()
		return nil, nil, err
	}

	stream, err := NewStream("test", nc, codec, options...)
	if err != nil {
		nc.Close()
		terminate()
		return nil, nil, err
	}

	return stream, func() {
		nc.Close()
		terminate()
	}, nil
}
