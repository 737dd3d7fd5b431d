package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "GLAM"

type Config struct {
	HTTP      HTTPConfig      `yaml:"http" envconfig:"HTTP"`
	Backend   BackendConfig   `yaml:"backend" envconfig:"BACKEND"`
	Redis     RedisConfig     `yaml:"redis" envconfig:"REDIS"`
	Kafka     KafkaConfig     `yaml:"kafka" envconfig:"KAFKA"`
	Payment   PaymentConfig   `yaml:"payment" envconfig:"PAYMENT"`
	Booking   BookingConfig   `yaml:"booking" envconfig:"BOOKING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Auth      AuthConfig      `yaml:"auth" envconfig:"AUTH"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address" envconfig:"ADDRESS"`
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// AuthConfig.JWTSecret is the identity provider's HS256 key. Every bearer token is verified with it.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
}

type BackendConfig struct {
	BaseURL        string `yaml:"base_url" envconfig:"BASE_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
}

func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// RedisConfig with an empty Addr selects the in-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers" envconfig:"BROKERS"`
	BookingEventsTopic string   `yaml:"booking_events_topic" envconfig:"BOOKING_EVENTS_TOPIC"`
	NotificationsTopic string   `yaml:"notifications_topic" envconfig:"NOTIFICATIONS_TOPIC"`
	GroupID            string   `yaml:"group_id" envconfig:"GROUP_ID"`
}

type PaymentConfig struct {
	InitialDelaySeconds int `yaml:"initial_delay_seconds" envconfig:"INITIAL_DELAY_SECONDS"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds" envconfig:"POLL_INTERVAL_SECONDS"`
	TimeoutSeconds      int `yaml:"timeout_seconds" envconfig:"TIMEOUT_SECONDS"`
}

func (p PaymentConfig) InitialDelay() time.Duration {
	return time.Duration(p.InitialDelaySeconds) * time.Second
}

func (p PaymentConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

func (p PaymentConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type BookingConfig struct {
	RemovalGraceDays     int `yaml:"removal_grace_days" envconfig:"REMOVAL_GRACE_DAYS"`
	ActionLockTTLSeconds int `yaml:"action_lock_ttl_seconds" envconfig:"ACTION_LOCK_TTL_SECONDS"`
	CacheTTLMinutes      int `yaml:"cache_ttl_minutes" envconfig:"CACHE_TTL_MINUTES"`
}

func (b BookingConfig) RemovalGrace() time.Duration {
	return time.Duration(b.RemovalGraceDays) * 24 * time.Hour
}

func (b BookingConfig) ActionLockTTL() time.Duration {
	return time.Duration(b.ActionLockTTLSeconds) * time.Second
}

func (b BookingConfig) CacheTTL() time.Duration {
	return time.Duration(b.CacheTTLMinutes) * time.Minute
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" envconfig:"OTLP_ENDPOINT"`
	Insecure     bool   `yaml:"insecure" envconfig:"INSECURE"`
}

// LoadConfig reads the YAML file at path and overlays GLAM_* environment variables.
// A missing file is not an error when the environment supplies the backend URL.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fills defaults for unset values and rejects unusable settings.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = 15
	}
	if c.Payment.InitialDelaySeconds <= 0 {
		c.Payment.InitialDelaySeconds = 5
	}
	if c.Payment.PollIntervalSeconds <= 0 {
		c.Payment.PollIntervalSeconds = 10
	}
	if c.Payment.TimeoutSeconds <= 0 {
		c.Payment.TimeoutSeconds = 300
	}
	if c.Booking.RemovalGraceDays <= 0 {
		c.Booking.RemovalGraceDays = 30
	}
	if c.Booking.ActionLockTTLSeconds <= 0 {
		c.Booking.ActionLockTTLSeconds = 30
	}
	if c.Booking.CacheTTLMinutes <= 0 {
		c.Booking.CacheTTLMinutes = 60
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "glamexpress-notifier"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "glamexpress-bff"
	}
	return nil
}
