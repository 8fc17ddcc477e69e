package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"HTTP_SERVER_PORT"` specify the environment variable
// name, `default:""` provides a fallback and `required:"true"` makes a
// variable mandatory.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	HttpServer ServerConfig
	Postgres   PostgresConfig
	Catalog    CatalogConfig
	Browse     BrowseConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"60s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// PostgresConfig holds PostgreSQL database connection details. Postgres only
// persists the favorite set; the creature catalog itself lives upstream.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DBNAME" required:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName)
}

// CatalogConfig holds settings for the upstream creature catalog client.
type CatalogConfig struct {
	BaseURL         string        `envconfig:"CATALOG_BASE_URL" default:"https://pokeapi.co/api/v2"`
	Timeout         time.Duration `envconfig:"CATALOG_TIMEOUT" default:"30s"`
	RequestInterval time.Duration `envconfig:"CATALOG_REQUEST_INTERVAL" default:"100ms"`
	NameCap         int           `envconfig:"CATALOG_NAME_CAP" default:"1000"`
}

// BrowseConfig holds settings for the browse surface.
type BrowseConfig struct {
	PageLimit      int           `envconfig:"BROWSE_PAGE_LIMIT" default:"20"`
	SearchDebounce time.Duration `envconfig:"BROWSE_SEARCH_DEBOUNCE" default:"500ms"`
	AllowedOrigins []string      `envconfig:"BROWSE_ALLOWED_ORIGINS" default:"*"`
}

var cfg Config

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	log.Println("Loading service configuration...")
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	log.Printf("Configuration loaded successfully for APP_ENV: %s", cfg.AppEnv)
	return &cfg, nil
}
