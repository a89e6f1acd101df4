// Package config loads service settings from the environment, after
// reading an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jacentio/ffcs/store"
)

// Backends accepted by FFCS_BACKEND.
const (
	BackendMongo    = "mongo"
	BackendDynamo   = "dynamodb"
	BackendMemory   = "memory"
	defaultHTTPAddr = ":8080"
)

type Config struct {
	Backend            string
	URI                string
	HTTPAddr           string
	CORSAllowedOrigins []string
	LogLevel           slog.Level

	DynamoEndpoint string
	AWSRegion      string

	Store store.Config
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Backend:        strings.ToLower(getenv("FFCS_BACKEND", BackendMongo)),
		URI:            getenv("URI", ""),
		HTTPAddr:       getenv("HTTP_ADDR", defaultHTTPAddr),
		DynamoEndpoint: getenv("DYNAMODB_ENDPOINT", ""),
		AWSRegion:      getenv("AWS_REGION", ""),
		Store:          store.DefaultConfig(),
	}

	switch cfg.Backend {
	case BackendMongo:
		if cfg.URI == "" {
			return cfg, fmt.Errorf("%w: URI is required for the mongo backend", store.ErrConfiguration)
		}
	case BackendDynamo, BackendMemory:
	default:
		return cfg, fmt.Errorf("%w: unknown FFCS_BACKEND %q", store.ErrConfiguration, cfg.Backend)
	}

	for _, o := range strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("%w: LOG_LEVEL: %v", store.ErrConfiguration, err)
	}

	cfg.Store.Database = getenv("DATABASE_NAME", cfg.Store.Database)
	cfg.Store.ScopeIndex = getenv("DYNAMODB_SCOPE_INDEX", "")

	if v := getenv("SERVER_SELECTION_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("%w: SERVER_SELECTION_TIMEOUT %q", store.ErrConfiguration, v)
		}
		cfg.Store.ServerSelectionTimeout = d
	}
	if v := getenv("FFCS_TRANSACTIONAL", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: FFCS_TRANSACTIONAL %q", store.ErrConfiguration, v)
		}
		cfg.Store.Transactional = b
	}
	if v := getenv("DYNAMODB_SCOPE_SHARDS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("%w: DYNAMODB_SCOPE_SHARDS %q", store.ErrConfiguration, v)
		}
		cfg.Store.ScopeShards = n
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
