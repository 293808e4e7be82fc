package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"
	"github.com/google/wire"
	"github.com/rs/zerolog/log"

	"github.com/weegigs/wee-ledger-go/accumulator"
	"github.com/weegigs/wee-ledger-go/connectors/wehttp"
	"github.com/weegigs/wee-ledger-go/stores/dynamo"
	"github.com/weegigs/wee-ledger-go/we"
)

type GatewayHandler = func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

func respond(status int, body any) (events.APIGatewayProxyResponse, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(encoded),
	}, nil
}

func failed(err error) (events.APIGatewayProxyResponse, error) {
	status := wehttp.StatusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = http.StatusText(status)
	}

	return respond(status, wehttp.ErrorResponse{Error: message})
}

func createHandler(loader *we.EntityLoader[accumulator.Accumulation]) GatewayHandler {
	return func(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		id := we.AggregateId{Type: event.PathParameters["type"], Key: event.PathParameters["key"]}

		if id.Type == "" || id.Key == "" {
			return respond(http.StatusBadRequest, wehttp.ErrorResponse{Error: "type and key are required"})
		}

		if id != accumulator.StorageKey {
			return failed(we.UnknownAggregate(id))
		}

		entity, err := loader.Load(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("aggregate", id.String()).Msg("failed to load accumulation")
			return failed(err)
		}

		resource, err := we.Resource(&entity, nil)
		if err != nil {
			return failed(err)
		}

		return respond(http.StatusOK, resource)
	}
}

var Live = wire.NewSet(createHandler, accumulator.Loader, dynamo.Live)
