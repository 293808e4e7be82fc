package jetstream

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/weegigs/wee-ledger-go/internal/containers"
)

// NewTestServer starts a JetStream enabled NATS server in a container and
// returns a connection to it.
func NewTestServer(ctx context.Context) (*nats.Conn, func(), error) {
	address, stop, err := containers.Start(ctx, containers.Service{Image: "nats:alpine", Port: "4222", Cmd: []string{"--jetstream"}})
	if err != nil {
		return nil, nil, err
	}

	nc, err := nats.Connect("nats://" + address)
	if err != nil {
		stop()
		return nil, nil, err
	}

	return nc, func() {
		nc.Close()
		stop()
	}, nil
}

func NewTestStore(ctx context.Context, options ...EventStoreOption) (*EventStore, func(), error) {
	nc, cleanup, err := NewTestServer(ctx)
	if err != nil {
		return nil, nil, err
	}

	store, err := NewEventStore("test", nc, options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return store, cleanup, nil
}
