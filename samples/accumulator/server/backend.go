package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-ledger-go/stores/dynamo"
	"github.com/weegigs/wee-ledger-go/stores/esdbs"
	"github.com/weegigs/wee-ledger-go/stores/jetstream"
	"github.com/weegigs/wee-ledger-go/stores/memory"
	"github.com/weegigs/wee-ledger-go/stores/sqlite"
	"github.com/weegigs/wee-ledger-go/support"
	"github.com/weegigs/wee-ledger-go/we"
)

// Backend is the host storage and notification log selected by
// configuration.
type Backend struct {
	Store    we.EventStore
	Notifier we.Notifier
}

func ProvideBackend(ctx context.Context, cfg support.Config) (Backend, func(), error) {
	logged := we.NewLoggingNotifier(&log.Logger)
	noop := func() {}

	switch cfg.Store {
	case support.MemoryBackend:
		return Backend{Store: memory.NewEventStore(), Notifier: logged}, noop, nil

	case support.SQLiteBackend:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return Backend{}, nil, err
		}
		return Backend{Store: store, Notifier: logged}, func() { _ = store.Close() }, nil

	case support.DynamoBackend:
		aws, err := support.AWSConfig(ctx)
		if err != nil {
			return Backend{}, nil, err
		}
		store := dynamo.NewEventStore(dynamo.Client(aws), dynamo.EventsTableName(cfg.DynamoTable))
		return Backend{Store: store, Notifier: logged}, noop, nil

	case support.LocalDynamoBackend:
		store, err := dynamo.LocalDynamoStore(ctx, dynamo.LocalEndpoint(cfg.DynamoEndpoint), dynamo.EventsTableName(cfg.DynamoTable))
		if err != nil {
			return Backend{}, nil, err
		}
		return Backend{Store: store, Notifier: logged}, noop, nil

	case support.JetStreamBackend:
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return Backend{}, nil, err
		}
		store, err := jetstream.NewEventStore(cfg.NatsStream, nc)
		if err != nil {
			nc.Close()
			return Backend{}, nil, err
		}
		notifier := we.Notifiers(jetstream.NewNotifier(nc, cfg.NotificationPrefix), logged)
		return Backend{Store: store, Notifier: notifier}, nc.Close, nil

	case support.ESDBBackend:
		store, err := esdbs.Connect(ctx, cfg.ESDBConnection)
		if err != nil {
			return Backend{}, nil, err
		}
		return Backend{Store: store, Notifier: logged}, noop, nil
	}

	return Backend{}, nil, fmt.Errorf("unknown store backend %q", cfg.Store)
}

func ProvideStore(backend Backend) we.EventStore {
	return backend.Store
}

func ProvideNotifier(backend Backend) we.Notifier {
	return backend.Notifier
}
