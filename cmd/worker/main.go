package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/app"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/config"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("STOREFRONT_CONFIG"))
	if err != nil {
		logging.New("worker", "info").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New("worker", cfg.LogLevel)

	// The mirror consumer only talks to the users and products services.
	p := app.NewWithClients(cfg, nil, logger).MirrorProcessor()

	// With run_local, process one message from LOCAL_SQS_BODY and exit.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			logger.Error("LOCAL_SQS_BODY is empty")
			os.Exit(1)
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			logger.Error("local message failed", "error", err, "failures", len(resp.BatchItemFailures))
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
