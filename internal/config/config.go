package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is read when CONFIG_FILE is unset. Its absence is not an error.
const DefaultConfigFile = "config.yaml"

type Config struct {
	Port    string
	GinMode string

	// Ollama (OpenAI-compatible endpoint used for title generation)
	OllamaBaseURL string
	OllamaAPIKey  string

	// Title generation
	TitleDefaultModel   string
	TitleRequestTimeout time.Duration
	TitleGeneration     *TitleGenerationConfig `yaml:"title_generation"`

	// Base URL of the title server, used by the title CLI.
	TitleServerURL string

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	AppConfig *Config

	DefaultTitleRequestTimeout = 30 * time.Second
)

// LoadConfig loads the configuration into AppConfig and exits on failure.
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.TitleDefaultModel == "" {
		log.Println("Warning: TITLE_DEFAULT_MODEL is not set. Requests without a model will be rejected by the backend.")
	}

	AppConfig = cfg
}

// Load builds a Config from the environment and the optional YAML config file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Ollama
		OllamaBaseURL: strings.TrimRight(getEnvOrDefault("OLLAMA_BASE_URL", "http://localhost:11434/v1"), "/"),
		OllamaAPIKey:  getEnvOrDefault("OLLAMA_API_KEY", "ollama"),

		// Title generation
		TitleDefaultModel:   getEnvOrDefault("TITLE_DEFAULT_MODEL", ""),
		TitleRequestTimeout: getEnvAsDuration("TITLE_REQUEST_TIMEOUT", DefaultTitleRequestTimeout),
		TitleServerURL:      strings.TrimRight(getEnvOrDefault("TITLE_SERVER_URL", "http://localhost:8080"), "/"),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	configFilePath := os.Getenv("CONFIG_FILE")
	explicit := configFilePath != ""
	if !explicit {
		configFilePath = DefaultConfigFile
	}

	configFile, err := os.Open(configFilePath)
	switch {
	case err == nil:
		defer configFile.Close()
		if err := LoadConfigFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configFilePath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults only.
	default:
		return nil, fmt.Errorf("open config file: %w", err)
	}

	if cfg.TitleGeneration == nil {
		cfg.TitleGeneration = &TitleGenerationConfig{}
	}
	if err := cfg.TitleGeneration.Validate(); err != nil {
		return nil, fmt.Errorf("title_generation: %w", err)
	}

	if cfg.TitleRequestTimeout <= 0 {
		return nil, fmt.Errorf("TITLE_REQUEST_TIMEOUT must be positive, got %v", cfg.TitleRequestTimeout)
	}

	return cfg, nil
}

// CORSOrigins splits CORSAllowedOrigins on commas.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

// LoadConfigFile decodes YAML settings from reader into config.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader, yaml.DisallowUnknownField())

	if err := decoder.Decode(config); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	return nil
}
