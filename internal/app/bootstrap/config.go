package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration. It merges file defaults and
// environment overrides so local and deployed runs share one code path.
type Config struct {
	ServiceName string
	HTTPPort    int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	JWTSecret string
	JWTIssuer string

	TokenPepper string

	DetectorURL     string
	DetectorTimeout time.Duration

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
	StorageUseSSL    bool

	WorkerCount      int
	WorkerPoll       time.Duration
	QueuePollTimeout time.Duration
	StaleAfter       time.Duration
	SweepInterval    time.Duration
	MaxTaskRetries   int

	ServiceCacheTTL time.Duration
	UsageBufferSize int
}

// configFile mirrors the YAML schema used by configs/default.yaml. It is
// separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		Name     string `yaml:"name"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		DetectorURL string `yaml:"detector_url"`
	} `yaml:"dependencies"`
	Storage struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		Region    string `yaml:"region"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"storage"`
	Worker struct {
		Count            int `yaml:"count"`
		PollSeconds      int `yaml:"poll_seconds"`
		StaleMinutes     int `yaml:"stale_minutes"`
		SweepSeconds     int `yaml:"sweep_seconds"`
		MaxRetries       int `yaml:"max_retries"`
		DetectionTimeout int `yaml:"detection_timeout_seconds"`
	} `yaml:"worker"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceName:      "vision-box",
		HTTPPort:         8080,
		MaxDBConns:       20,
		JWTIssuer:        "vision-box",
		DetectorTimeout:  2 * time.Minute,
		StorageBucket:    "vision-box-media",
		WorkerCount:      2,
		WorkerPoll:       time.Second,
		QueuePollTimeout: 5 * time.Second,
		StaleAfter:       10 * time.Minute,
		SweepInterval:    time.Minute,
		MaxTaskRetries:   3,
		ServiceCacheTTL:  30 * time.Second,
		UsageBufferSize:  256,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.Name != "" {
			cfg.ServiceName = f.Service.Name
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.DetectorURL != "" {
			cfg.DetectorURL = f.Dependencies.DetectorURL
		}
		if f.Storage.Endpoint != "" {
			cfg.StorageEndpoint = f.Storage.Endpoint
		}
		if f.Storage.AccessKey != "" {
			cfg.StorageAccessKey = f.Storage.AccessKey
		}
		if f.Storage.SecretKey != "" {
			cfg.StorageSecretKey = f.Storage.SecretKey
		}
		if f.Storage.Bucket != "" {
			cfg.StorageBucket = f.Storage.Bucket
		}
		if f.Storage.Region != "" {
			cfg.StorageRegion = f.Storage.Region
		}
		cfg.StorageUseSSL = f.Storage.UseSSL
		if f.Worker.Count > 0 {
			cfg.WorkerCount = f.Worker.Count
		}
		if f.Worker.PollSeconds > 0 {
			cfg.WorkerPoll = time.Duration(f.Worker.PollSeconds) * time.Second
		}
		if f.Worker.StaleMinutes > 0 {
			cfg.StaleAfter = time.Duration(f.Worker.StaleMinutes) * time.Minute
		}
		if f.Worker.SweepSeconds > 0 {
			cfg.SweepInterval = time.Duration(f.Worker.SweepSeconds) * time.Second
		}
		if f.Worker.MaxRetries > 0 {
			cfg.MaxTaskRetries = f.Worker.MaxRetries
		}
		if f.Worker.DetectionTimeout > 0 {
			cfg.DetectorTimeout = time.Duration(f.Worker.DetectionTimeout) * time.Second
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.DetectorURL = envOrDefault("DETECTOR_URL", cfg.DetectorURL)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.TokenPepper = envOrDefault("TOKEN_PEPPER", cfg.TokenPepper)
	cfg.StorageEndpoint = envOrDefault("STORAGE_ENDPOINT", cfg.StorageEndpoint)
	cfg.StorageAccessKey = envOrDefault("STORAGE_ACCESS_KEY", cfg.StorageAccessKey)
	cfg.StorageSecretKey = envOrDefault("STORAGE_SECRET_KEY", cfg.StorageSecretKey)
	cfg.StorageBucket = envOrDefault("STORAGE_BUCKET", cfg.StorageBucket)
	cfg.StorageRegion = envOrDefault("STORAGE_REGION", cfg.StorageRegion)
	cfg.StorageUseSSL = envBool("STORAGE_USE_SSL", cfg.StorageUseSSL)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxTaskRetries = envInt("TASK_MAX_RETRIES", cfg.MaxTaskRetries)
	cfg.WorkerPoll = time.Duration(envInt("WORKER_POLL_SECONDS", int(cfg.WorkerPoll.Seconds()))) * time.Second
	cfg.StaleAfter = time.Duration(envInt("TASK_STALE_MINUTES", int(cfg.StaleAfter.Minutes()))) * time.Minute
	cfg.SweepInterval = time.Duration(envInt("SWEEP_INTERVAL_SECONDS", int(cfg.SweepInterval.Seconds()))) * time.Second
	cfg.DetectorTimeout = time.Duration(envInt("DETECTOR_TIMEOUT_SECONDS", int(cfg.DetectorTimeout.Seconds()))) * time.Second
	cfg.ServiceCacheTTL = time.Duration(envInt("SERVICE_CACHE_TTL_SECONDS", int(cfg.ServiceCacheTTL.Seconds()))) * time.Second
	cfg.UsageBufferSize = envInt("USAGE_BUFFER_SIZE", cfg.UsageBufferSize)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("missing JWT_SECRET")
	}
	if cfg.TokenPepper == "" {
		return Config{}, fmt.Errorf("missing TOKEN_PEPPER")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
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

// envBool parses common boolean env forms with a deterministic fallback.
func envBool(name string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}
