// Package app wires the bot's collaborators from configuration. It is shared by
// the HTTP server and the Lambda worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"timeoff-bot/internal/config"
	"timeoff-bot/internal/conversation"
	"timeoff-bot/internal/dedup"
	"timeoff-bot/internal/handler"
	"timeoff-bot/internal/i18n"
	"timeoff-bot/internal/metrics"
	"timeoff-bot/internal/nlp"
	"timeoff-bot/internal/queue"
	"timeoff-bot/internal/service"
	"timeoff-bot/internal/slackbot"
	"timeoff-bot/internal/store"
)

type App struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.BotMetrics
	Slack    *slackbot.Client
	Service  *service.LeaveService
	// Checks back the readiness probe.
	Checks map[string]handler.Check

	awsCfg  *aws.Config
	closers []func(context.Context) error
	log     *slog.Logger
}

// New connects the store, the Slack client and the classifier and builds the
// leave service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Checks:   make(map[string]handler.Check),
		log:      log,
	}
	a.Metrics = metrics.NewBotMetrics(a.Registry)

	catalog, err := i18n.New(i18n.WithDefaultLocale(cfg.DefaultLocale), i18n.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("load message catalog: %w", err)
	}

	userStore, err := a.openStore(ctx)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}

	a.Slack = slackbot.NewClient(cfg.SlackBotToken, cfg.SlackAPIURL)
	a.Checks["slack"] = a.Slack.Ping

	classifier, err := nlp.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.NLPLanguage, conversation.IntentNames())
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return classifier.Close() })

	a.Service = service.NewLeaveService(userStore, classifier, a.Slack, catalog, service.Options{
		DefaultApproverID: cfg.DefaultApproverID,
		ReplyPacing:       cfg.ReplyPacing,
		Retry:             service.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay},
		Metrics:           a.Metrics,
		Logger:            log,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.UserStore, error) {
	cfg := a.Config
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		a.log.Info("using dynamodb user store", "table", cfg.DynamoDBTable)
		return store.NewDynamoUserStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.InitialLeaveCount, a.log), nil
	default:
		db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.Checks["mongodb"] = db.Ping
		return store.NewMongoUserStore(ctx, db, cfg.InitialLeaveCount)
	}
}

// Queue returns the SQS queue when EVENT_QUEUE_URL is set and an in-process
// queue otherwise.
func (a *App) Queue(ctx context.Context) (queue.Queue, error) {
	if a.Config.EventQueueURL == "" {
		a.log.Warn("EVENT_QUEUE_URL not set, using in-memory queue")
		return queue.NewMemoryQueue(256), nil
	}
	awsCfg, err := a.aws(ctx)
	if err != nil {
		return nil, err
	}
	return queue.NewSQSQueue(sqs.NewFromConfig(awsCfg), a.Config.EventQueueURL), nil
}

// Deduper returns the Redis event de-duplicator, or nil when REDIS_ADDR is unset.
func (a *App) Deduper() *dedup.RedisDeduper {
	if a.Config.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.RedisAddr,
		Password: a.Config.RedisPassword,
	})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	a.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return dedup.NewRedisDeduper(client, a.Config.DedupTTL)
}

func (a *App) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	awsCfg, err := LoadAWSConfig(ctx, a.Config)
	if err != nil {
		return aws.Config{}, err
	}
	a.awsCfg = &awsCfg
	return awsCfg, nil
}

// LoadAWSConfig loads the default credential chain for AWS_REGION. AWS_ENDPOINT_URL
// points DynamoDB and SQS at a local emulator.
func LoadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.AWSEndpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWSEndpoint)
	}
	return awsCfg, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
