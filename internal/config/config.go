package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App     AppConfig
	Store   StoreConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Auth    AuthConfig
	Summary SummaryConfig
	Poll    PollConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects and parameterizes the persistence backend.
// When ForceLocal is set, or RemoteDSN is empty, the embedded local store is
// used regardless of the remote settings. The choice is made once at startup.
type StoreConfig struct {
	LocalPath     string
	RemoteDSN     string
	RemoteAuthURL string
	RemoteAPIKey  string
	ForceLocal    bool
	MaxConns      int32
	MinConns      int32
	RunMigrations bool
}

// RedisConfig holds Redis connection values for the remote session cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SummaryConfig points at the text-generation collaborator. Best effort:
// an empty APIKey disables report generation without failing anything else.
type SummaryConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// PollConfig controls the background issue re-fetch interval.
type PollConfig struct {
	IntervalSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "fixmate-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			LocalPath:     getEnv("STORE_LOCAL_PATH", "data/fixmate"),
			RemoteDSN:     os.Getenv("STORE_REMOTE_DSN"),
			RemoteAuthURL: os.Getenv("STORE_REMOTE_AUTH_URL"),
			RemoteAPIKey:  os.Getenv("STORE_REMOTE_API_KEY"),
			ForceLocal:    getEnvAsBool("STORE_FORCE_LOCAL", false),
			MaxConns:      int32(getEnvAsInt("STORE_REMOTE_MAX_CONNS", 10)),
			MinConns:      int32(getEnvAsInt("STORE_REMOTE_MIN_CONNS", 2)),
			RunMigrations: getEnvAsBool("STORE_REMOTE_RUN_MIGRATIONS", false),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Summary: SummaryConfig{
			Endpoint:       getEnv("SUMMARY_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:         os.Getenv("SUMMARY_API_KEY"),
			Model:          getEnv("SUMMARY_MODEL", "gemini-2.5-flash"),
			TimeoutSeconds: getEnvAsInt("SUMMARY_TIMEOUT_SECONDS", 20),
		},
		Poll: PollConfig{
			IntervalSeconds: getEnvAsInt("POLL_INTERVAL_SECONDS", 30),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// UseLocal reports whether the embedded store should be selected.
func (s StoreConfig) UseLocal() bool {
	return s.ForceLocal || s.RemoteDSN == ""
}

// Timeout returns the summary request timeout.
func (s SummaryConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Interval returns the polling interval, never below one second.
func (p PollConfig) Interval() time.Duration {
	if p.IntervalSeconds < 1 {
		return time.Second
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
