// Command ffcs-cascade is the AWS Lambda that deletes the wells of plates
// removed from the DynamoDB plates table. Run it with FFCS_BACKEND=dynamodb.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/ffcs/internal/config"
	"github.com/jacentio/ffcs/store"
	"github.com/jacentio/ffcs/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx := context.Background()
	backend, err := store.OpenDynamo(ctx, cfg.AWSRegion, cfg.DynamoEndpoint, cfg.Store)
	if err != nil {
		logger.Error("open dynamodb", "error", err)
		os.Exit(1)
	}
	s := store.New(backend, cfg.Store)
	s.SetLogger(logger)

	lambda.Start(stream.NewHandler(s, logger).HandlePlateRemoval)
}
