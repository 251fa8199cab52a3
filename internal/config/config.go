package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/LJTian/GovNewsHub/internal/buffer"
	"github.com/LJTian/GovNewsHub/internal/collector"
	"github.com/LJTian/GovNewsHub/internal/ledger"
	"github.com/LJTian/GovNewsHub/internal/models"
	"github.com/LJTian/GovNewsHub/internal/retry"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSheets   = "sheets"
)

type Config struct {
	AppPort       string
	BasicAuthUser string
	BasicAuthPass string

	StoreBackend          string
	StoreKey              string
	PostgresDSN           string
	GoogleCredentialsFile string
	RedisAddr             string

	Timezone    string
	LedgerTable string
	BatchSize   int
	Placeholder string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryJitter      float64

	FetchTimeout     time.Duration
	FetchUserAgent   string
	FetchInsecureTLS bool
	FetchRPS         float64

	SourcesFile string
}

// Load reads .env (when present) and the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:       getEnv("APP_PORT", "9000"),
		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),

		StoreBackend:          strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		StoreKey:              getEnv("STORE_KEY", "govnews"),
		PostgresDSN:           getEnv("POSTGRES_DSN", "host=localhost user=govnews password=govnews dbname=govnews port=5432 sslmode=disable TimeZone=UTC"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		RedisAddr:             getEnv("REDIS_ADDR", ""),

		Timezone:    getEnv("TIMEZONE", "America/Sao_Paulo"),
		LedgerTable: getEnv("LEDGER_TABLE", ledger.DefaultTable),
		BatchSize:   getInt("BATCH_SIZE", buffer.DefaultBatchSize),
		Placeholder: getEnv("PLACEHOLDER", models.NotAvailable),

		RetryMaxAttempts: getInt("RETRY_MAX_ATTEMPTS", retry.DefaultMaxAttempts),
		RetryBaseDelay:   getDuration("RETRY_BASE_DELAY", retry.DefaultBaseDelay),
		RetryJitter:      getFloat("RETRY_JITTER", retry.DefaultJitterRatio),

		FetchTimeout:     getDuration("FETCH_TIMEOUT", collector.DefaultFetchTimeout),
		FetchUserAgent:   getEnv("FETCH_USER_AGENT", collector.DefaultUserAgent),
		FetchInsecureTLS: getBool("FETCH_INSECURE_TLS", false),
		FetchRPS:         getFloat("FETCH_RPS", 0),

		SourcesFile: getEnv("SOURCES_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendPostgres, BackendSheets:
	default:
		return fmt.Errorf("config: STORE_BACKEND must be memory, postgres or sheets, got %q", c.StoreBackend)
	}
	if c.StoreKey == "" {
		return fmt.Errorf("config: STORE_KEY is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("config: BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: RETRY_MAX_ATTEMPTS must be positive, got %d", c.RetryMaxAttempts)
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("config: RETRY_BASE_DELAY must be positive, got %s", c.RetryBaseDelay)
	}
	if c.RetryJitter < 0 || c.RetryJitter > 0.5 {
		return fmt.Errorf("config: RETRY_JITTER must be within [0, 0.5], got %v", c.RetryJitter)
	}
	if c.FetchTimeout < 10*time.Second || c.FetchTimeout > 25*time.Second {
		return fmt.Errorf("config: FETCH_TIMEOUT must be within 10s..25s, got %s", c.FetchTimeout)
	}
	if c.FetchRPS < 0 {
		return fmt.Errorf("config: FETCH_RPS must not be negative, got %v", c.FetchRPS)
	}
	if (c.BasicAuthUser == "") != (c.BasicAuthPass == "") {
		return fmt.Errorf("config: APP_BASIC_USER and APP_BASIC_PASS must be set together")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// getDuration accepts Go durations ("1500ms") or plain seconds ("1.5").
func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}
