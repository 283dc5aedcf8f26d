package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"timeoff-bot/internal/app"
	"timeoff-bot/internal/config"
	"timeoff-bot/internal/logger"
	"timeoff-bot/internal/queue"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.Env)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	bot, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to start", "error", err)
		os.Exit(1)
	}

	// The Lambda service deletes the batch itself, so the worker has no queue.
	worker := queue.NewWorker(nil, bot.Service.HandleEnvelope, log)
	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, worker, log, evt), nil
	})
}

// handle processes the records of one SQS batch in order and reports those that
// should be redelivered.
func handle(ctx context.Context, worker *queue.Worker, log *slog.Logger, evt events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		redeliver := worker.HandleMessage(ctx, queue.Message{ID: record.MessageId, Body: record.Body})
		if redeliver {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	if n := len(resp.BatchItemFailures); n > 0 {
		log.WarnContext(ctx, "sqs batch partially failed", "failed", n, "records", len(evt.Records))
	}
	return resp
}
