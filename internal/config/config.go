// Package config loads service configuration from config.toml and RESTOPOS_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Log       LogConfig
	Worker    WorkerConfig
	Analytics AnalyticsConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration
	MigrateOnStart   bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
	LockTTL  time.Duration
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level       string
	Development bool
}

type WorkerConfig struct {
	PollInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	CleanupInterval  time.Duration
	OutboxRetention  time.Duration
	HistoryRetention int
}

type AnalyticsConfig struct {
	FastMovingWindowDays int
	AnomalyFactor        float64
	ExpiryHorizonDays    int
}

// Load reads configuration. A missing config file is not an error; defaults and env apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/restopos")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("RESTOPOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Port:            v.GetString("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			AllowedOrigins:  v.GetStringSlice("http.allowed_origins"),
		},
		Database: DatabaseConfig{
			DSN:              v.GetString("database.dsn"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			MigrateOnStart:   v.GetBool("database.migrate_on_start"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cache_ttl"),
			LockTTL:  v.GetDuration("redis.lock_ttl"),
		},
		Kafka: KafkaConfig{
			Enabled:      v.GetBool("kafka.enabled"),
			Brokers:      splitList(v.GetStringSlice("kafka.brokers")),
			Topic:        v.GetString("kafka.topic"),
			WriteTimeout: v.GetDuration("kafka.write_timeout"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Worker: WorkerConfig{
			PollInterval:     v.GetDuration("worker.poll_interval"),
			BatchSize:        v.GetInt("worker.batch_size"),
			MaxRetries:       v.GetInt("worker.max_retries"),
			CleanupInterval:  v.GetDuration("worker.cleanup_interval"),
			OutboxRetention:  v.GetDuration("worker.outbox_retention"),
			HistoryRetention: v.GetInt("worker.history_retention"),
		},
		Analytics: AnalyticsConfig{
			FastMovingWindowDays: v.GetInt("analytics.fast_moving_window_days"),
			AnomalyFactor:        v.GetFloat64("analytics.anomaly_factor"),
			ExpiryHorizonDays:    v.GetInt("analytics.expiry_horizon_days"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "restopos")
	v.SetDefault("app.env", "development")

	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.cache_ttl", 5*time.Minute)
	v.SetDefault("redis.lock_ttl", 30*time.Second)

	v.SetDefault("kafka.topic", "restopos.inventory")
	v.SetDefault("kafka.write_timeout", 5*time.Second)

	v.SetDefault("jwt.issuer", "restopos")

	v.SetDefault("log.level", "info")

	v.SetDefault("worker.poll_interval", 2*time.Second)
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.max_retries", 5)
	v.SetDefault("worker.cleanup_interval", time.Hour)
	v.SetDefault("worker.outbox_retention", 7*24*time.Hour)
	v.SetDefault("worker.history_retention", 200)

	v.SetDefault("analytics.fast_moving_window_days", 30)
	v.SetDefault("analytics.anomaly_factor", 1.5)
	v.SetDefault("analytics.expiry_horizon_days", 3)
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (RESTOPOS_DATABASE_DSN)")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be positive")
	}
	if c.Worker.HistoryRetention <= 0 {
		return fmt.Errorf("worker.history_retention must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// splitList accepts both TOML arrays and comma-separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
