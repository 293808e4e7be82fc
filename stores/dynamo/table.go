package dynamo

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

// tableSchema is the layout both the head and change-set items rely on: the
// encoded aggregate id as the hash key and the item kind as the range key.
func tableSchema(table string) *dynamodb.CreateTableInput {
	key := func(name string, kind types.KeyType) (types.AttributeDefinition, types.KeySchemaElement) {
		return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS},
			types.KeySchemaElement{AttributeName: aws.String(name), KeyType: kind}
	}

	pkDefinition, pkSchema := key("pk", types.KeyTypeHash)
	skDefinition, skSchema := key("sk", types.KeyTypeRange)

	return &dynamodb.CreateTableInput{
		TableName:            aws.String(table),
		AttributeDefinitions: []types.AttributeDefinition{pkDefinition, skDefinition},
		KeySchema:            []types.KeySchemaElement{pkSchema, skSchema},
		BillingMode:          types.BillingModePayPerRequest,
	}
}

// EnsureTable creates the events table when it is missing and waits until it
// is active.
func EnsureTable(ctx context.Context, client *dynamodb.Client, table EventsTableName) error {
	logger := log.WithField("table", table.String())
	describe := &dynamodb.DescribeTableInput{TableName: aws.String(table.String())}

	_, err := client.DescribeTable(ctx, describe)

	var missing *types.ResourceNotFoundException
	switch {
	case err == nil:
		logger.Debug("events table exists")
	case errors.As(err, &missing):
		logger.Info("creating events table")

		_, err = client.CreateTable(ctx, tableSchema(table.String()))

		var creating *types.ResourceInUseException
		if err != nil && !errors.As(err, &creating) {
			return err
		}
	default:
		return err
	}

	return dynamodb.NewTableExistsWaiter(client).Wait(ctx, describe, 2*time.Minute)
}
