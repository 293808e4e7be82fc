package dynamo

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/google/wire"
	"github.com/pkg/errors"

	"github.com/weegigs/wee-ledger-go/we"
)

var Live = wire.NewSet(
	DefaultAWSConfig,
	Client,
	LiveEventsTableName,
	NewEventStore,
	wire.Bind(new(we.EventStore), new(*EventStore)),
)

var Local = wire.NewSet(
	LocalEventsEndpoint,
	LocalEventsTableName,
	LocalDynamoStore,
	wire.Bind(new(we.EventStore), new(*EventStore)),
)

var Test = wire.NewSet(
	TestStore,
	wire.Bind(new(we.EventStore), new(*EventStore)),
)

type tableConfig struct {
	Table    string `env:"DYNAMODB_EVENTS_TABLE_NAME"`
	Endpoint string `env:"DYNAMODB_ENDPOINT" envDefault:"http://localhost:8000"`
}

func LiveEventsTableName() (EventsTableName, error) {
	cfg, err := env.ParseAs[tableConfig]()
	if err != nil {
		return "", err
	}

	if len(cfg.Table) == 0 {
		return "", errors.New("DYNAMODB_EVENTS_TABLE_NAME is not set")
	}

	return EventsTableName(cfg.Table), nil
}

func LocalEventsTableName() EventsTableName {
	return EventsTableName("wee-events")
}

func LocalEventsEndpoint() (LocalEndpoint, error) {
	cfg, err := env.ParseAs[tableConfig]()
	if err != nil {
		return "", err
	}

	return LocalEndpoint(cfg.Endpoint), nil
}

func TestStore(ctx context.Context) (*EventStore, func(), error) {
	return DynamoTestStore(ctx)
}
