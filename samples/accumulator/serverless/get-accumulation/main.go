package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"
)

func main() {
	handler, err := live(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure handler")
	}

	lambda.Start(handler)
}
