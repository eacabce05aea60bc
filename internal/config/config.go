package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Policy    PolicyConfig    `yaml:"policy"`
	Engine    EngineConfig    `yaml:"engine"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects the offer store backend. Driver "memory" keeps all state
// in-process; "postgres" uses the connection settings below.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
	SeedFile string `yaml:"seed_file"` // memory driver only: loans to preload
}

// PolicyConfig holds the settlement policy bands (percent of outstanding balance).
type PolicyConfig struct {
	SecuredMin              float64 `yaml:"secured_min"`
	SecuredMax              float64 `yaml:"secured_max"`
	UnsecuredMin            float64 `yaml:"unsecured_min"`
	UnsecuredMax            float64 `yaml:"unsecured_max"`
	MaxDueHorizonDays       int     `yaml:"max_due_horizon_days"`
	HighValueThresholdCents int64   `yaml:"high_value_threshold_cents"`
}

// EngineConfig contains negotiation engine settings
type EngineConfig struct {
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	DefaultChannel string        `yaml:"default_channel"`
	AttachLetter   bool          `yaml:"attach_letter"`
}

// SendGridConfig contains email delivery settings. An empty API key disables email
// delivery and offers are logged instead.
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// JWTConfig contains the secret used to verify caller identity tokens
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ExpireOffers string `yaml:"expire_offers"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes, applies environment overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("DB_SEED_FILE"); val != "" {
		c.Database.SeedFile = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}
	if val := os.Getenv("SENDGRID_FROM_EMAIL"); val != "" {
		c.SendGrid.FromEmail = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Engine
	if val := os.Getenv("ENGINE_LOCK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Engine.LockTimeout = d
		}
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "", "memory":
		c.Database.Driver = "memory"
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if err := c.Policy.validate(); err != nil {
		return err
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	if c.SendGrid.APIKey != "" && c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from_email is required when api_key is set")
	}
	if c.SendGrid.FromName == "" {
		c.SendGrid.FromName = "Collections Team"
	}

	// Engine defaults
	if c.Engine.LockTimeout <= 0 {
		c.Engine.LockTimeout = 2 * time.Second
	}
	if c.Engine.DefaultChannel == "" {
		c.Engine.DefaultChannel = "EMAIL"
	}

	// Scheduler defaults
	if c.Scheduler.ExpireOffers == "" {
		c.Scheduler.ExpireOffers = "0 */15 * * * *" // every 15 minutes
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	return nil
}

func (p *PolicyConfig) validate() error {
	if p.SecuredMin == 0 && p.SecuredMax == 0 {
		p.SecuredMin, p.SecuredMax = 40, 70
	}
	if p.UnsecuredMin == 0 && p.UnsecuredMax == 0 {
		p.UnsecuredMin, p.UnsecuredMax = 35, 65
	}
	if err := checkBand("secured", p.SecuredMin, p.SecuredMax); err != nil {
		return err
	}
	if err := checkBand("unsecured", p.UnsecuredMin, p.UnsecuredMax); err != nil {
		return err
	}
	if p.MaxDueHorizonDays == 0 {
		p.MaxDueHorizonDays = 90
	}
	if p.MaxDueHorizonDays < 0 {
		return fmt.Errorf("invalid max due horizon: %d days", p.MaxDueHorizonDays)
	}
	if p.HighValueThresholdCents == 0 {
		p.HighValueThresholdCents = 1000000 // $10,000.00
	}
	return nil
}

func checkBand(name string, min, max float64) error {
	if min < 0 || max > 100 || min > max {
		return fmt.Errorf("invalid %s policy band: %.2f-%.2f", name, min, max)
	}
	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxDueHorizon returns the policy horizon as a duration.
func (p PolicyConfig) MaxDueHorizon() time.Duration {
	return time.Duration(p.MaxDueHorizonDays) * 24 * time.Hour
}
