package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the API server configuration.
type Config struct {
	// Server settings
	ServerPort  string   `yaml:"port" env:"PORT" env-default:"5000"`
	CORSOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://127.0.0.1:3000"`

	Database DatabaseConfig `yaml:"database"`

	// OpenTelemetry settings
	OTelEnabled  bool   `yaml:"otel_enabled" env:"OTEL_ENABLED" env-default:"false"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"todo-api"`
	Environment  string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
}

// DatabaseConfig selects and tunes the task store.
type DatabaseConfig struct {
	// URL picks the backend by scheme: mongodb://, postgres://, sqlite://, memory://.
	URL            string        `yaml:"url" env:"DATABASE_URL"`
	LegacyMongoURI string        `yaml:"-" env:"MONGO_URI"`
	Name           string        `yaml:"name" env:"DATABASE_NAME" env-default:"todo"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DATABASE_CONNECT_TIMEOUT" env-default:"10s"`
}

// ConnectionURL returns the configured store URL, falling back to MONGO_URI
// and then to the in-memory store.
func (d DatabaseConfig) ConnectionURL() string {
	switch {
	case d.URL != "":
		return d.URL
	case d.LegacyMongoURI != "":
		return d.LegacyMongoURI
	default:
		return "memory://"
	}
}

// ClientConfig holds the terminal client configuration.
type ClientConfig struct {
	APIURL  string        `yaml:"api_url" env:"TODO_API_URL" env-default:"http://localhost:5000/api/todos"`
	LogFile string        `yaml:"log_file" env:"TODO_LOG_FILE" env-default:"todo-client.log"`
	Timeout time.Duration `yaml:"timeout" env:"TODO_TIMEOUT" env-default:"10s"`
}

// Load reads the server configuration. When CONFIG_PATH points to a YAML,
// TOML or JSON file it is read first; environment variables override it.
func Load() (*Config, error) {
	var cfg Config
	if err := read(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads the terminal client configuration the same way as Load.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := read(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func read(cfg any) error {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
