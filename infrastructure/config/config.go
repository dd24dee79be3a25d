package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/panel-extensions/panel-reactflow/application/editors"
)

// Storage backends for snapshots.
const (
	StorageMemory   = "memory"
	StorageDynamoDB = "dynamodb"
	StorageBadger   = "badger"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string
	LogLevel      string

	// Graph
	GraphID        string
	GraphFile      string
	WatchGraphFile bool

	// Storage
	StorageBackend   string
	TableName        string
	ConnectionsTable string
	BadgerDir        string

	// AWS configuration
	AWSRegion         string
	EventBusName      string
	WebSocketEndpoint string

	// Authentication
	JWTSecret      string
	JWTIssuer      string
	AllowedOrigins []string

	// Persistence cadence
	AutosaveInterval  time.Duration
	SaveOnEveryChange bool

	// Observability
	EnableMetrics    bool
	MetricsNamespace string
	EnableTracing    bool

	// Engine
	ValidateOnAdd   bool
	ValidateOnPatch bool
	EditorMode      string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		GraphID:        getEnv("GRAPH_ID", "default"),
		GraphFile:      getEnv("GRAPH_FILE", ""),
		WatchGraphFile: getEnvBool("WATCH_GRAPH_FILE", false),

		StorageBackend:   getEnv("STORAGE_BACKEND", StorageMemory),
		TableName:        getEnv("TABLE_NAME", "reactflow-snapshots"),
		ConnectionsTable: getEnv("CONNECTIONS_TABLE", "reactflow-connections"),
		BadgerDir:        getEnv("BADGER_DIR", "./data"),

		AWSRegion:         getEnv("AWS_REGION", "us-west-2"),
		EventBusName:      getEnv("EVENT_BUS_NAME", ""),
		WebSocketEndpoint: getEnv("WS_ENDPOINT", ""),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		JWTIssuer:      getEnv("JWT_ISSUER", "panel-reactflow"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),

		AutosaveInterval:  getEnvDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		SaveOnEveryChange: getEnvBool("SAVE_ON_EVERY_CHANGE", false),

		EnableMetrics:    getEnvBool("ENABLE_METRICS", false),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "PanelReactFlow"),
		EnableTracing:    getEnvBool("ENABLE_TRACING", false),

		ValidateOnAdd:   getEnvBool("VALIDATE_ON_ADD", false),
		ValidateOnPatch: getEnvBool("VALIDATE_ON_PATCH", false),
		EditorMode:      getEnv("EDITOR_MODE", string(editors.ModeToolbar)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageDynamoDB:
		if c.TableName == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
		}
	case StorageBadger:
		if c.BadgerDir == "" {
			return fmt.Errorf("BADGER_DIR is required for the badger backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if _, err := editors.ParseMode(c.EditorMode); err != nil {
		return fmt.Errorf("EDITOR_MODE: %w", err)
	}
	if c.WatchGraphFile && c.GraphFile == "" {
		return fmt.Errorf("WATCH_GRAPH_FILE needs GRAPH_FILE")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
