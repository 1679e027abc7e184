package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/push-dispatcher/internal/apperr"
)

type Config struct {
	HTTPPort         int
	MetricsPort      int
	APIKey           string
	ParameterPath    string
	AWSRegion        string
	OTLPEndpoint     string
	ServiceName      string
	RecipientTable   string
	RecipientColumn  string
	ScheduledTitle   string
	ScheduledBody    string
	ExpoPushURL      string
	ProviderTimeout  time.Duration
	KafkaBrokers     []string
	DispatchTopic    string
	Schedule         string
	ScheduleTimezone string
	RunOnce          bool
}

// LoadConfig reads the process configuration once at start-up. The API key is
// only required by services that authenticate inbound requests.
func LoadConfig(service string, requireAPIKey bool) (*Config, error) {
	cfg := &Config{ServiceName: service}

	httpPort, err := getEnvInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.HTTPPort = httpPort

	metricsPort, err := getEnvInt("METRICS_PORT", httpPort+1000)
	if err != nil {
		return nil, err
	}
	cfg.MetricsPort = metricsPort

	cfg.ParameterPath = os.Getenv("SSM_PARAMETER_PATH")
	if cfg.ParameterPath == "" {
		return nil, apperr.MissingEnvVar("SSM_PARAMETER_PATH")
	}
	cfg.APIKey = os.Getenv("API_KEY")
	if requireAPIKey && cfg.APIKey == "" {
		return nil, apperr.MissingEnvVar("API_KEY")
	}

	cfg.AWSRegion = os.Getenv("AWS_REGION")
	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")

	cfg.RecipientTable = getEnv("RECIPIENT_TABLE", "users")
	cfg.RecipientColumn = getEnv("RECIPIENT_TOKEN_COLUMN", "push_token")
	cfg.ScheduledTitle = getEnv("SCHEDULED_TITLE", "It's the 25th")
	cfg.ScheduledBody = getEnv("SCHEDULED_BODY", "Time to send your partner the bill")
	cfg.ExpoPushURL = getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send")

	timeout, err := getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.ProviderTimeout = timeout

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.DispatchTopic = getEnv("DISPATCH_EVENTS_TOPIC", "push.dispatch")

	cfg.Schedule = getEnv("SCHEDULE", "0 9 25 * *")
	cfg.ScheduleTimezone = getEnv("SCHEDULE_TIMEZONE", "UTC")

	runOnce, err := getEnvBool("RUN_ONCE", false)
	if err != nil {
		return nil, err
	}
	cfg.RunOnce = runOnce

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}
