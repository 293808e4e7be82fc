package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

func DefaultAWSConfig(ctx context.Context) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx)
}

// Client returns a DynamoDB client whose calls are traced.
func Client(cfg aws.Config) *dynamodb.Client {
	traced := cfg.Copy()
	otelaws.AppendMiddlewares(&traced.APIOptions)

	return dynamodb.NewFromConfig(traced)
}

type LocalEndpoint string

const DefaultLocalEndpoint = LocalEndpoint("http://localhost:8000")

// LocalClient talks to DynamoDB Local, which accepts any credentials.
func LocalClient(endpoint LocalEndpoint) *dynamodb.Client {
	return dynamodb.New(dynamodb.Options{
		Region:           "local",
		Credentials:      credentials.NewStaticCredentialsProvider("local", "local", ""),
		EndpointResolver: dynamodb.EndpointResolverFromURL(string(endpoint)),
	})
}

// LocalDynamoStore connects to DynamoDB Local, creating the events table on
// first use.
func LocalDynamoStore(ctx context.Context, endpoint LocalEndpoint, table EventsTableName) (*EventStore, error) {
	client := LocalClient(endpoint)
	if err := EnsureTable(ctx, client, table); err != nil {
		return nil, err
	}

	return NewEventStore(client, table), nil
}
