package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
	Flights   FlightsConfig   `yaml:"flights"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerDir  string   `yaml:"swagger_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxTxRetries int    `yaml:"max_tx_retries"`
	// InMemory swaps Postgres for the process-local store.
	InMemory bool `yaml:"in_memory"`
}

// DSN prefers an explicit URL over the discrete fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	BookingTopic string   `yaml:"booking_topic"`
	FlightTopic  string   `yaml:"flight_topic"`
	GroupID      string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
	BcryptCost      int    `yaml:"bcrypt_cost"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// RateLimitConfig throttles session creation per client IP.
type RateLimitConfig struct {
	SessionPerMinute int `yaml:"session_per_minute"`
	SessionBurst     int `yaml:"session_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FlightsConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

func (f FlightsConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSeconds) * time.Second
}

// LoadConfig reads the YAML file, loads .env if present, applies environment
// overrides and fills defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

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

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret (or JWT_SECRET) is required")
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		c.HTTP.Address = v
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxTxRetries <= 0 {
		c.Database.MaxTxRetries = 3
	}
	if c.Kafka.BookingTopic == "" {
		c.Kafka.BookingTopic = "booking-events"
	}
	if c.Kafka.FlightTopic == "" {
		c.Kafka.FlightTopic = "flight-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "skybooking-worker"
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		c.Auth.TokenTTLMinutes = 24 * 60
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.RateLimit.SessionPerMinute <= 0 {
		c.RateLimit.SessionPerMinute = 10
	}
	if c.RateLimit.SessionBurst <= 0 {
		c.RateLimit.SessionBurst = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Flights.CacheTTLSeconds <= 0 {
		c.Flights.CacheTTLSeconds = 30
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
