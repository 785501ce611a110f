package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WebhookConfig struct {
	// SigningSecret is the shared secret used to verify provider signatures.
	SigningSecret string `mapstructure:"signing_secret"`
	// SignatureTolerance bounds how far a signed timestamp may drift.
	SignatureTolerance time.Duration `mapstructure:"signature_tolerance"`
	// SeenCacheTTL controls how long processed event ids are cached in Redis.
	SeenCacheTTL time.Duration `mapstructure:"seen_cache_ttl"`
}

type BillingConfig struct {
	Currency           string `mapstructure:"currency"`
	GracePeriodDays    int    `mapstructure:"grace_period_days"`
	FreeSeatsIncluded  int    `mapstructure:"free_seats_included"`
	EventRetentionDays int    `mapstructure:"event_retention_days"` // 0 keeps the ledger forever
}

type SchedulerConfig struct {
	SweepHourUTC int `mapstructure:"sweep_hour_utc"`
}

type TelemetryConfig struct {
	// OTLPEndpoint enables span and metric export when set (host:port).
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPProtocol string `mapstructure:"otlp_protocol"` // grpc | http
	ServiceName  string `mapstructure:"service_name"`
}

type Config struct {
	Mode      string          `mapstructure:"mode"` // debug | release
	HTTPAddr  string          `mapstructure:"http_addr"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LAUNCHKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=postgres dbname=launchkit port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("webhook.signature_tolerance", 5*time.Minute)
	v.SetDefault("webhook.seen_cache_ttl", 24*time.Hour)
	v.SetDefault("billing.currency", "USD")
	v.SetDefault("billing.grace_period_days", 28)
	v.SetDefault("billing.free_seats_included", 3)
	v.SetDefault("billing.event_retention_days", 0)
	v.SetDefault("scheduler.sweep_hour_utc", 3)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_protocol", "grpc")
	v.SetDefault("telemetry.service_name", "launchkit")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
