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
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Scheduler SchedulerConfig
	FollowUp  FollowUpConfig
	Messaging MessagingConfig
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

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines service-token parameters for the ops API.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SchedulerConfig tunes slot assignment.
type SchedulerConfig struct {
	// BlocksJSON overrides the default time-block catalog when set.
	// Format: [{"id":"B1","start":"09:00","end":"10:30","capacity":2}, ...]
	BlocksJSON         string
	SlotLockTTLSeconds int
}

// FollowUpConfig tunes the post-visit verification protocol.
type FollowUpConfig struct {
	MaxAttempts         int
	RetryIntervalHours  int
	InitialDelayHours   int
	TickIntervalMinutes int
}

// MessagingConfig points at the outbound chat bridge.
type MessagingConfig struct {
	BridgeURL      string
	TimeoutSeconds int
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
			Name:                  getEnv("APP_NAME", "condo-scheduler"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
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
		},
		Scheduler: SchedulerConfig{
			BlocksJSON:         os.Getenv("SCHEDULER_BLOCKS_JSON"),
			SlotLockTTLSeconds: getEnvAsInt("SCHEDULER_SLOT_LOCK_TTL_SECONDS", 10),
		},
		FollowUp: FollowUpConfig{
			MaxAttempts:         getEnvAsInt("FOLLOWUP_MAX_ATTEMPTS", 7),
			RetryIntervalHours:  getEnvAsInt("FOLLOWUP_RETRY_INTERVAL_HOURS", 24),
			InitialDelayHours:   getEnvAsInt("FOLLOWUP_INITIAL_DELAY_HOURS", 4),
			TickIntervalMinutes: getEnvAsInt("FOLLOWUP_TICK_INTERVAL_MINUTES", 60),
		},
		Messaging: MessagingConfig{
			BridgeURL:      getEnv("MESSAGING_BRIDGE_URL", ""),
			TimeoutSeconds: getEnvAsInt("MESSAGING_TIMEOUT_SECONDS", 10),
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

// RetryInterval returns the spacing between follow-up attempts.
func (f FollowUpConfig) RetryInterval() time.Duration {
	if f.RetryIntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(f.RetryIntervalHours) * time.Hour
}

// InitialDelay returns the pause between visit completion and the first prompt.
func (f FollowUpConfig) InitialDelay() time.Duration {
	if f.InitialDelayHours < 0 {
		return 0
	}
	return time.Duration(f.InitialDelayHours) * time.Hour
}

// TickInterval returns the ScheduleClock period.
func (f FollowUpConfig) TickInterval() time.Duration {
	if f.TickIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(f.TickIntervalMinutes) * time.Minute
}

// SlotLockTTL returns the lease duration for slot locks.
func (s SchedulerConfig) SlotLockTTL() time.Duration {
	if s.SlotLockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.SlotLockTTLSeconds) * time.Second
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
