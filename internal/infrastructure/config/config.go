package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the LunaSphere server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Security  SecurityConfig  `yaml:"security"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Contact   ContactConfig   `yaml:"contact"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig contains site-level information.
type SiteConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	TLS      TLSConfig     `yaml:"tls"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig    `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// TimeoutConfig contains HTTP timeout settings in seconds.
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
//
// AccessSecret and RefreshSecret must differ: a leaked access secret must not
// allow forging refresh tokens, and vice versa.
type JWTConfig struct {
	AccessSecret    string `yaml:"access_secret"`
	RefreshSecret   string `yaml:"refresh_secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`  // minutes
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"` // minutes
}

// AnalyticsConfig contains visitor tracking settings.
type AnalyticsConfig struct {
	// RetentionHours is how long visitor sightings are kept before pruning.
	RetentionHours int `yaml:"retention_hours"`

	// OnlineWindowMinutes is the activity window used to compute onlineNow.
	OnlineWindowMinutes int `yaml:"online_window_minutes"`

	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// InfluxDBConfig contains the optional page-view time-series sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // milliseconds
}

// ContactConfig contains contact-form mail delivery settings.
type ContactConfig struct {
	// Recipient is the address contact submissions are delivered to.
	Recipient string     `yaml:"recipient"`
	SMTP      SMTPConfig `yaml:"smtp"`
}

// SMTPConfig contains SMTP relay settings. When Host is empty the server
// logs contact messages instead of sending them.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUNASPHERE_SECTION_KEY
// For example: LUNASPHERE_DATABASE_PATH, LUNASPHERE_JWT_ACCESS_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Name: "LunaSphere",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/lunasphere.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  15,
				RefreshTokenTTL: 30 * 24 * 60, // 30 days
			},
		},
		Analytics: AnalyticsConfig{
			RetentionHours:      24,
			OnlineWindowMinutes: 5,
			InfluxDB: InfluxDBConfig{
				BatchSize:     100,
				FlushInterval: 1000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUNASPHERE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUNASPHERE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LUNASPHERE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Secrets should always come from the environment in production.
	if v := os.Getenv("LUNASPHERE_JWT_ACCESS_SECRET"); v != "" {
		cfg.Security.JWT.AccessSecret = v
	}
	if v := os.Getenv("LUNASPHERE_JWT_REFRESH_SECRET"); v != "" {
		cfg.Security.JWT.RefreshSecret = v
	}
	if v := os.Getenv("LUNASPHERE_SMTP_PASSWORD"); v != "" {
		cfg.Contact.SMTP.Password = v
	}
	if v := os.Getenv("LUNASPHERE_INFLUXDB_TOKEN"); v != "" {
		cfg.Analytics.InfluxDB.Token = v
	}
}

// minJWTSecretLength is the minimum accepted length for signing secrets.
const minJWTSecretLength = 32

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch {
	case c.Security.JWT.AccessSecret == "":
		errs = append(errs, "security.jwt.access_secret is required (set LUNASPHERE_JWT_ACCESS_SECRET)")
	case len(c.Security.JWT.AccessSecret) < minJWTSecretLength:
		errs = append(errs, "security.jwt.access_secret must be at least 32 characters")
	}
	switch {
	case c.Security.JWT.RefreshSecret == "":
		errs = append(errs, "security.jwt.refresh_secret is required (set LUNASPHERE_JWT_REFRESH_SECRET)")
	case len(c.Security.JWT.RefreshSecret) < minJWTSecretLength:
		errs = append(errs, "security.jwt.refresh_secret must be at least 32 characters")
	}
	if c.Security.JWT.AccessSecret != "" && c.Security.JWT.AccessSecret == c.Security.JWT.RefreshSecret {
		errs = append(errs, "security.jwt.access_secret and refresh_secret must differ")
	}

	if c.Security.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "security.jwt.access_token_ttl must be positive")
	}
	if c.Security.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, "security.jwt.refresh_token_ttl must be positive")
	}

	if c.Analytics.RetentionHours <= 0 {
		errs = append(errs, "analytics.retention_hours must be positive")
	}
	if c.Analytics.OnlineWindowMinutes <= 0 {
		errs = append(errs, "analytics.online_window_minutes must be positive")
	}
	if c.Analytics.InfluxDB.Enabled && c.Analytics.InfluxDB.URL == "" {
		errs = append(errs, "analytics.influxdb.url is required when the sink is enabled")
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			errs = append(errs, "server.tls.cert_file and key_file are required when TLS is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// AccessTokenTTL returns the access token lifetime as a Duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime as a Duration.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.RefreshTokenTTL) * time.Minute
}

// VisitorRetention returns the visitor sighting retention as a Duration.
func (c *Config) VisitorRetention() time.Duration {
	return time.Duration(c.Analytics.RetentionHours) * time.Hour
}

// OnlineWindow returns the online-visitor activity window as a Duration.
func (c *Config) OnlineWindow() time.Duration {
	return time.Duration(c.Analytics.OnlineWindowMinutes) * time.Minute
}

// ReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// WriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// IdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
