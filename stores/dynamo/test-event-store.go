package dynamo

import (
	"context"

	"github.com/weegigs/wee-ledger-go/internal/containers"
)

// DynamoTestStore starts DynamoDB Local in a container and returns a store
// backed by a fresh table. The returned function terminates the container.
func DynamoTestStore(ctx context.Context) (*EventStore, func(), error) {
	address, stop, err := containers.Start(ctx, containers.Service{Image: "amazon/dynamodb-local", Port: "8000"})
	if err != nil {
		return nil, nil, err
	}

	store, err := LocalDynamoStore(ctx, LocalEndpoint("http://"+address), EventsTableName("test-events"))
	if err != nil {
		stop()
		return nil, nil, err
	}

	return store, stop, nil
}
