package esdbs

import (
	"context"

	"github.com/weegigs/wee-ledger-go/internal/containers"
)

var eventstore = containers.Service{
	Image: "eventstore/eventstore:latest",
	Port:  "2113",
	Env: map[string]string{
		"EVENTSTORE_CLUSTER_SIZE": "1",
		"EVENTSTORE_INSECURE":     "true",
		"EVENTSTORE_HTTP_PORT":    "2113",
	},
}

// NewESDBTestStore starts a single insecure EventStoreDB node in a container.
func NewESDBTestStore(ctx context.Context, options ...EventStoreOption) (*ESDBEventStore, func(), error) {
	address, stop, err := containers.Start(ctx, eventstore)
	if err != nil {
		return nil, nil, err
	}

	store, err := Connect(ctx, "esdb://admin:changeit@"+address+"?tls=false", options...)
	if err != nil {
		stop()
		return nil, nil, err
	}

	return store, stop, nil
}
