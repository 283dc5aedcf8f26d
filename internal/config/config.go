package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongoDB  = "mongodb"
	StoreDynamoDB = "dynamodb"
)

type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DefaultLocale string

	SlackBotToken      string
	SlackSigningSecret string
	SlackAPIURL        string
	DefaultApproverID  string
	InitialLeaveCount  int

	StoreBackend  string
	MongoURI      string
	MongoDB       string
	AWSRegion     string
	AWSEndpoint   string
	DynamoDBTable string

	EventQueueURL    string
	WorkerCount      int
	QueueWaitSeconds int

	RedisAddr     string
	RedisPassword string
	DedupTTL      time.Duration

	GeminiAPIKey string
	GeminiModel  string
	NLPLanguage  string

	ReplyPacing      time.Duration
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

// Load reads the environment, after applying a .env file when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "3000"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),

		SlackBotToken:      getEnv("SLACK_BOT_TOKEN", ""),
		SlackSigningSecret: getEnv("SLACK_SIGNING_SECRET", ""),
		SlackAPIURL:        strings.TrimRight(getEnv("SLACK_API_URL", ""), "/"),
		DefaultApproverID:  getEnv("DEFAULT_APPROVER_ID", ""),
		InitialLeaveCount:  getEnvAsInt("INITIAL_LEAVE_COUNT", 25),

		StoreBackend:  strings.ToLower(getEnv("STORE_BACKEND", StoreMongoDB)),
		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGODB_DATABASE", "timeoff"),
		AWSRegion:     getEnv("AWS_REGION", "eu-west-2"),
		AWSEndpoint:   getEnv("AWS_ENDPOINT_URL", ""),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "timeoff-users"),

		EventQueueURL:    getEnv("EVENT_QUEUE_URL", ""),
		WorkerCount:      getEnvAsInt("WORKER_COUNT", 4),
		QueueWaitSeconds: getEnvAsInt("QUEUE_WAIT_SECONDS", 20),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		DedupTTL:      getEnvAsDuration("DEDUP_TTL", time.Hour),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		NLPLanguage:  getEnv("NLP_LANGUAGE", "en"),

		ReplyPacing:      getEnvAsDuration("REPLY_PACING", 500*time.Millisecond),
		RetryMaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", 200*time.Millisecond),
	}
}

// Validate reports settings the bot cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.SlackBotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}
	if c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	switch c.StoreBackend {
	case StoreMongoDB, StoreDynamoDB:
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of %s, %s", c.StoreBackend, StoreMongoDB, StoreDynamoDB))
	}
	if c.WorkerCount < 1 {
		errs = append(errs, errors.New("WORKER_COUNT must be at least 1"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, errors.New("RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
