// Package config loads service settings from a YAML file overlaid by
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	BrokerURL     string
	Prefetch      int
	DatabaseURL   string
	MaxDBConns    int32
	AutoMigrate   bool
	RedisURL      string
	KafkaBrokers  []string
	EventsBackend string

	ConsumerPollInterval time.Duration
	CacheTTL             time.Duration
	RPCTimeout           time.Duration
	HealthTimeout        time.Duration

	JWTSecret  string
	JWTIssuer  string
	RateLimit  int
	RateWindow time.Duration

	MaxUploadBytes int64
	BlobDir        string
	BlobBaseURL    string
}

// Event backends.
const (
	BackendAMQP  = "amqp"
	BackendKafka = "kafka"
	BackendLog   = "log"
)

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		RabbitMQURL  string   `yaml:"rabbitmq_url"`
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		AutoMigrate  *bool    `yaml:"auto_migrate"`
	} `yaml:"dependencies"`
	Events struct {
		Backend string `yaml:"backend"`
	} `yaml:"events"`
	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	RPC struct {
		TimeoutMS       int `yaml:"timeout_ms"`
		HealthTimeoutMS int `yaml:"health_timeout_ms"`
	} `yaml:"rpc"`
	Auth struct {
		JWTSecret         string `yaml:"jwt_secret"`
		JWTIssuer         string `yaml:"jwt_issuer"`
		RateLimit         int    `yaml:"rate_limit"`
		RateWindowSeconds int    `yaml:"rate_window_seconds"`
	} `yaml:"auth"`
	Media struct {
		BlobDir        string `yaml:"blob_dir"`
		BlobBaseURL    string `yaml:"blob_base_url"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"media"`
}

// Load reads path (a missing file is not an error) and applies the
// environment on top of it.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPPort:             8080,
		GRPCPort:             9090,
		Prefetch:             10,
		MaxDBConns:           20,
		AutoMigrate:          true,
		EventsBackend:        BackendAMQP,
		ConsumerPollInterval: 2 * time.Second,
		CacheTTL:             60 * time.Second,
		RPCTimeout:           5 * time.Second,
		HealthTimeout:        2 * time.Second,
		RateLimit:            100,
		RateWindow:           60 * time.Second,
		MaxUploadBytes:       5 << 20,
		BlobDir:              "./data/blobs",
		BlobBaseURL:          "http://localhost:8080/media",
	}

	raw, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	}
	applyEnv(&cfg)

	if cfg.ServiceID == "" {
		return Config{}, fmt.Errorf("missing SERVICE_ID")
	}
	switch cfg.EventsBackend {
	case BackendAMQP, BackendKafka, BackendLog:
	default:
		return Config{}, fmt.Errorf("unknown EVENTS_BACKEND %q", cfg.EventsBackend)
	}
	if cfg.EventsBackend == BackendKafka && len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("missing KAFKA_BROKERS for kafka event backend")
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.RabbitMQURL != "" {
		cfg.BrokerURL = f.Dependencies.RabbitMQURL
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if f.Dependencies.AutoMigrate != nil {
		cfg.AutoMigrate = *f.Dependencies.AutoMigrate
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
	}
	if f.Events.Backend != "" {
		cfg.EventsBackend = strings.ToLower(f.Events.Backend)
	}
	if f.Cache.TTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(f.Cache.TTLSeconds) * time.Second
	}
	if f.RPC.TimeoutMS > 0 {
		cfg.RPCTimeout = time.Duration(f.RPC.TimeoutMS) * time.Millisecond
	}
	if f.RPC.HealthTimeoutMS > 0 {
		cfg.HealthTimeout = time.Duration(f.RPC.HealthTimeoutMS) * time.Millisecond
	}
	cfg.JWTSecret = f.Auth.JWTSecret
	cfg.JWTIssuer = f.Auth.JWTIssuer
	if f.Auth.RateLimit > 0 {
		cfg.RateLimit = f.Auth.RateLimit
	}
	if f.Auth.RateWindowSeconds > 0 {
		cfg.RateWindow = time.Duration(f.Auth.RateWindowSeconds) * time.Second
	}
	if f.Media.BlobDir != "" {
		cfg.BlobDir = f.Media.BlobDir
	}
	if f.Media.BlobBaseURL != "" {
		cfg.BlobBaseURL = f.Media.BlobBaseURL
	}
	if f.Media.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = f.Media.MaxUploadBytes
	}
}

func applyEnv(cfg *Config) {
	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BrokerURL = envOrDefault("RABBITMQ_URL", cfg.BrokerURL)
	cfg.Prefetch = envInt("RABBITMQ_PREFETCH", cfg.Prefetch)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.AutoMigrate = envBool("DB_AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.EventsBackend = strings.ToLower(envOrDefault("EVENTS_BACKEND", cfg.EventsBackend))
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.CacheTTL = time.Duration(envInt("CACHE_TTL_SECONDS", int(cfg.CacheTTL.Seconds()))) * time.Second
	cfg.RPCTimeout = time.Duration(envInt("RPC_TIMEOUT_MS", int(cfg.RPCTimeout.Milliseconds()))) * time.Millisecond
	cfg.HealthTimeout = time.Duration(envInt("HEALTH_TIMEOUT_MS", int(cfg.HealthTimeout.Milliseconds()))) * time.Millisecond
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.RateLimit = envInt("RATE_LIMIT", cfg.RateLimit)
	cfg.RateWindow = time.Duration(envInt("RATE_WINDOW_SECONDS", int(cfg.RateWindow.Seconds()))) * time.Second
	cfg.BlobDir = envOrDefault("BLOB_DIR", cfg.BlobDir)
	cfg.BlobBaseURL = envOrDefault("BLOB_BASE_URL", cfg.BlobBaseURL)
	cfg.MaxUploadBytes = int64(envInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
}

// Need names a dependency a service cannot start without.
type Need int

const (
	NeedBroker Need = iota
	NeedDatabase
	NeedRedis
	NeedJWT
	NeedBlobs
)

// Require reports the first missing required setting.
func (c Config) Require(needs ...Need) error {
	for _, n := range needs {
		switch n {
		case NeedBroker:
			if c.BrokerURL == "" {
				return fmt.Errorf("missing RABBITMQ_URL")
			}
		case NeedDatabase:
			if c.DatabaseURL == "" {
				return fmt.Errorf("missing DB_URL/POSTGRES_URL")
			}
		case NeedRedis:
			if c.RedisURL == "" {
				return fmt.Errorf("missing REDIS_URL")
			}
		case NeedJWT:
			if c.JWTSecret == "" {
				return fmt.Errorf("missing JWT_SECRET")
			}
		case NeedBlobs:
			if c.BlobDir == "" || c.BlobBaseURL == "" {
				return fmt.Errorf("missing BLOB_DIR/BLOB_BASE_URL")
			}
		}
	}
	return nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
