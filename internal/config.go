package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"http_server"`
	Store      StoreConfig      `mapstructure:"store"`
	LocalStore LocalStoreConfig `mapstructure:"local_store"`
	Security   SecurityConfig   `mapstructure:"security"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	BaseURL        string        `mapstructure:"base_url"`
	AllowedOrigins string        `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig configures the cloud document store. An empty URI selects
// local mode for the lifetime of the process.
type StoreConfig struct {
	MongoURI       string        `mapstructure:"mongo_uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LocalStoreConfig configures the on-device snapshot store. MaxBytes is the
// hard capacity ceiling; writes past it fail with a quota error.
type LocalStoreConfig struct {
	Path     string `mapstructure:"path"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration"`
	BCryptCost          int           `mapstructure:"bcrypt_cost"`
}

type ExtractionConfig struct {
	APIURL  string        `mapstructure:"api_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds a Config from environment variables, used for
// container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:        getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			AllowedOrigins: getEnv("SERVER_ALLOWED_ORIGINS", "*"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			MongoURI:       getEnv("STORE_MONGO_URI", ""),
			Database:       getEnv("STORE_DATABASE", "snapexpense"),
			ConnectTimeout: getEnvAsDuration("STORE_CONNECT_TIMEOUT", 10*time.Second),
		},
		LocalStore: LocalStoreConfig{
			Path:     getEnv("LOCAL_STORE_PATH", "snapexpense.db"),
			MaxBytes: int64(getEnvAsInt("LOCAL_STORE_MAX_BYTES", 5*1024*1024)),
		},
		Security: SecurityConfig{
			JWTSecret:           getEnv("SECURITY_JWT_SECRET", ""),
			AccessTokenDuration: getEnvAsDuration("SECURITY_ACCESS_TOKEN_DURATION", 24*time.Hour),
			BCryptCost:          getEnvAsInt("SECURITY_BCRYPT_COST", 10),
		},
		Extraction: ExtractionConfig{
			APIURL:  getEnv("EXTRACTION_API_URL", ""),
			APIKey:  getEnv("EXTRACTION_API_KEY", ""),
			Timeout: getEnvAsDuration("EXTRACTION_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOGGING_LEVEL", "info"),
			Format: getEnv("LOGGING_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("store config: %v", err))
	}

	if err := c.LocalStore.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("local store config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AllowedOrigins != "" {
		for _, origin := range strings.Split(c.AllowedOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	return nil
}

func (c *StoreConfig) Validate() error {
	if c.MongoURI == "" {
		// local mode
		return nil
	}
	if !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
		return fmt.Errorf("invalid mongo uri %q", c.MongoURI)
	}
	if c.Database == "" {
		return errors.New("database name is required when mongo_uri is set")
	}
	return nil
}

func (c *LocalStoreConfig) Validate() error {
	if c.Path == "" {
		return errors.New("path is required")
	}
	if c.MaxBytes <= 0 {
		return errors.New("max_bytes must be positive")
	}
	return nil
}

func (c *SecurityConfig) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt secret is required")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 15 {
		return errors.New("bcrypt cost must be between 4 and 15")
	}
	if c.AccessTokenDuration < time.Minute {
		return errors.New("access token duration must be at least 1m")
	}
	return nil
}

// CloudMode reports whether a remote store handle can be constructed from
// this configuration. Mode is fixed at process start.
func (c *StoreConfig) CloudMode() bool {
	return c.MongoURI != ""
}
