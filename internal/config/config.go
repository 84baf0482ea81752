package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration with validation
type Config struct {
	// Application settings
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`
	Push     PushConfig     `yaml:"push"`
	Email    EmailConfig    `yaml:"email"`
	Auth     AuthConfig     `yaml:"auth"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Resolver ResolverConfig `yaml:"resolver"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Security SecurityConfig `yaml:"security"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ApplySchema     bool          `yaml:"apply_schema"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Leaving either key empty disables the push channel.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subject         string        `yaml:"subject"`
	TTL             int           `yaml:"ttl"`
	Timeout         time.Duration `yaml:"timeout"`
}

// EmailConfig holds SMTP settings. An empty host disables the email channel.
type EmailConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	From          string        `yaml:"from"`
	FromName      string        `yaml:"from_name"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	Concurrency   int           `yaml:"concurrency"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// SweepConfig controls the allocation expiry sweep
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ResolverConfig controls recipient resolution caching
type ResolverConfig struct {
	RoleCacheTTL time.Duration `yaml:"role_cache_ttl"`
}

// TracingConfig controls the OpenTelemetry stdout exporter
type TracingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	OutputFile string `yaml:"output_file"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimitRPS    int           `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EnableCORS      bool          `yaml:"enable_cors"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	TrustedProxies  []string      `yaml:"trusted_proxies"`
}

// ServerConfig holds server performance configuration
type ServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// Default returns the built-in configuration used before file and
// environment overrides are applied.
func Default() *Config {
	return &Config{
		Port:     8080,
		LogLevel: "info",
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			ApplySchema:     true,
		},
		Push: PushConfig{
			Subject: "mailto:it-assets@example.com",
			TTL:     3600,
			Timeout: 10 * time.Second,
		},
		Email: EmailConfig{
			Port:          587,
			From:          "it-assets@example.com",
			FromName:      "IT Assets",
			Timeout:       10 * time.Second,
			RetryAttempts: 2,
			RetryDelay:    time.Second,
			Concurrency:   8,
		},
		Auth: AuthConfig{
			Issuer: "asset-management-api",
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
		},
		Resolver: ResolverConfig{
			RoleCacheTTL: time.Minute,
		},
		Security: SecurityConfig{
			RateLimitRPS:    100,
			RateLimitBurst:  200,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			EnableCORS:      true,
			AllowedOrigins:  []string{"*"},
			TrustedProxies:  []string{},
		},
		Server: ServerConfig{
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1MB
		},
	}
}

// LoadConfig loads and validates the configuration. Sources are applied in
// order: built-in defaults, the YAML file named by CONFIG_FILE, a .env file
// in the working directory, then process environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Failed to load .env file: %v", err)
	}

	config := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to load configuration file %s: %w", path, err)
		}
	}

	applyEnv(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile decodes a YAML configuration file over the current values
func loadFile(path string, config *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	return decoder.Decode(config)
}

func applyEnv(c *Config) {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)
	c.Database.ApplySchema = getEnvAsBool("DB_APPLY_SCHEMA", c.Database.ApplySchema)

	c.Push.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", c.Push.VAPIDPublicKey)
	c.Push.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", c.Push.VAPIDPrivateKey)
	c.Push.Subject = getEnv("VAPID_SUBJECT", c.Push.Subject)
	c.Push.TTL = getEnvAsInt("PUSH_TTL", c.Push.TTL)
	c.Push.Timeout = getEnvAsDuration("PUSH_TIMEOUT", c.Push.Timeout)

	c.Email.Host = getEnv("SMTP_HOST", c.Email.Host)
	c.Email.Port = getEnvAsInt("SMTP_PORT", c.Email.Port)
	c.Email.Username = getEnv("SMTP_USERNAME", c.Email.Username)
	c.Email.Password = getEnv("SMTP_PASSWORD", c.Email.Password)
	c.Email.From = getEnv("SMTP_FROM", c.Email.From)
	c.Email.FromName = getEnv("SMTP_FROM_NAME", c.Email.FromName)
	c.Email.Timeout = getEnvAsDuration("SMTP_TIMEOUT", c.Email.Timeout)
	c.Email.RetryAttempts = getEnvAsInt("SMTP_RETRY_ATTEMPTS", c.Email.RetryAttempts)
	c.Email.RetryDelay = getEnvAsDuration("SMTP_RETRY_DELAY", c.Email.RetryDelay)
	c.Email.Concurrency = getEnvAsInt("SMTP_CONCURRENCY", c.Email.Concurrency)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Issuer = getEnv("JWT_ISSUER", c.Auth.Issuer)

	c.Sweep.Enabled = getEnvAsBool("SWEEP_ENABLED", c.Sweep.Enabled)
	c.Sweep.Interval = getEnvAsDuration("SWEEP_INTERVAL", c.Sweep.Interval)

	c.Resolver.RoleCacheTTL = getEnvAsDuration("ROLE_CACHE_TTL", c.Resolver.RoleCacheTTL)

	c.Tracing.Enabled = getEnvAsBool("TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.OutputFile = getEnv("TRACING_OUTPUT_FILE", c.Tracing.OutputFile)

	c.Security.RateLimitRPS = getEnvAsInt("RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvAsInt("RATE_LIMIT_BURST", c.Security.RateLimitBurst)
	c.Security.RequestTimeout = getEnvAsDuration("REQUEST_TIMEOUT", c.Security.RequestTimeout)
	c.Security.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Security.ShutdownTimeout)
	c.Security.EnableCORS = getEnvAsBool("ENABLE_CORS", c.Security.EnableCORS)
	c.Security.AllowedOrigins = getEnvAsSlice("ALLOWED_ORIGINS", c.Security.AllowedOrigins)
	c.Security.TrustedProxies = getEnvAsSlice("TRUSTED_PROXIES", c.Security.TrustedProxies)

	c.Server.ReadTimeout = getEnvAsDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.MaxHeaderBytes = getEnvAsInt("SERVER_MAX_HEADER_BYTES", c.Server.MaxHeaderBytes)
}

// validateConfig performs basic validation on the configuration
func validateConfig(config *Config) error {
	var errors []string

	// Validate required database fields
	if config.Database.User == "" {
		errors = append(errors, "database user is required")
	}
	if config.Database.Password == "" {
		errors = append(errors, "database password is required in production")
	}
	if config.Database.Name == "" {
		errors = append(errors, "database name is required")
	}
	switch config.Database.SSLMode {
	case "disable", "require", "verify-ca", "verify-full":
	default:
		errors = append(errors, fmt.Sprintf("unsupported database ssl mode %q", config.Database.SSLMode))
	}

	if config.Auth.JWTSecret == "" {
		errors = append(errors, "JWT secret is required")
	}

	// Validate port ranges
	if config.Port < 1 || config.Port > 65535 {
		errors = append(errors, "port must be between 1 and 65535")
	}
	if config.Database.Port < 1 || config.Database.Port > 65535 {
		errors = append(errors, "database port must be between 1 and 65535")
	}
	if config.Email.Host != "" && (config.Email.Port < 1 || config.Email.Port > 65535) {
		errors = append(errors, "SMTP port must be between 1 and 65535")
	}

	if config.Sweep.Enabled && config.Sweep.Interval <= 0 {
		errors = append(errors, "sweep interval must be positive")
	}
	if config.Email.Concurrency < 1 {
		errors = append(errors, "SMTP concurrency must be at least 1")
	}
	if config.Security.RateLimitRPS < 1 || config.Security.RateLimitBurst < 1 {
		errors = append(errors, "rate limit and burst must be at least 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
