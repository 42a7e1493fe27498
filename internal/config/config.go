package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// Config represents the main application configuration
type Config struct {
	Database   Database   `json:"database" mapstructure:"database"`
	Migrations Migrations `json:"migrations" mapstructure:"migrations"`
	Server     Server     `json:"server" mapstructure:"server"`
	JWT        JWT        `json:"jwt" mapstructure:"jwt"`
	HTTP       HTTP       `json:"http" mapstructure:"http"`
}

// Database represents database configuration
type Database struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	User            string        `json:"user" mapstructure:"user"`
	Password        string        `json:"password" mapstructure:"password"`
	DBName          string        `json:"dbname" mapstructure:"dbname"`
	SSLMode         string        `json:"sslmode" mapstructure:"sslmode"`
	MaxConnections  int           `json:"max_connections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	ConnectRetries  int           `json:"connect_retries" mapstructure:"connect_retries"`
	RetryDelay      time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	LogLevel        string        `json:"log_level" mapstructure:"log_level"`
}

// Migrations represents the schema migration runner configuration
type Migrations struct {
	// Directories is searched in order; the first one holding .sql files wins
	Directories []string `json:"directories" mapstructure:"directories"`
	Table       string   `json:"table" mapstructure:"table"`
	// Ordering is "filename" (byte order) or "version" (parsed prefix)
	Ordering string `json:"ordering" mapstructure:"ordering"`
	// MaxConnections sizes the pool opened by the standalone migrate command
	MaxConnections int `json:"max_connections" mapstructure:"max_connections"`
	// Skip disables the startup run in the HTTP server
	Skip bool `json:"skip" mapstructure:"skip"`
	// FailOnError aborts HTTP server startup when the startup run fails
	FailOnError bool `json:"fail_on_error" mapstructure:"fail_on_error"`
}

// Server represents server configuration
type Server struct {
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	Debug    bool   `json:"debug" mapstructure:"debug"`
}

// JWT represents JWT configuration
type JWT struct {
	Secret string `json:"secret" mapstructure:"secret"`
}

// HTTP represents HTTP server configuration
type HTTP struct {
	Port         int      `json:"port" mapstructure:"port"`
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

// DefaultMigrationDirectories mirrors the locations the seller back-office
// has historically shipped its .sql files in.
var DefaultMigrationDirectories = []string{
	"./migrations",
	"./db/migrations",
	"../migrations",
	"/app/migrations",
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// NewDefault returns a Config instance with default values
func NewDefault() *Config {
	dirs := make([]string, len(DefaultMigrationDirectories))
	copy(dirs, DefaultMigrationDirectories)

	return &Config{
		Database: Database{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			DBName:          "seller",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 1 * time.Minute,
			ConnectRetries:  5,
			RetryDelay:      2 * time.Second,
			LogLevel:        "error",
		},
		Migrations: Migrations{
			Directories:    dirs,
			Table:          "schema_migrations",
			Ordering:       "filename",
			MaxConnections: 2,
			Skip:           false,
			FailOnError:    true,
		},
		Server: Server{
			LogLevel: "info",
			Debug:    false,
		},
		JWT: JWT{
			Secret: "change-me-in-production",
		},
		HTTP: HTTP{
			Port:         8082,
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be greater than 0")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxConnections {
		return fmt.Errorf("max idle connections cannot exceed max connections")
	}
	if c.Database.ConnectRetries < 0 {
		return fmt.Errorf("connect retries cannot be negative")
	}

	// Migrations validation
	if len(c.Migrations.Directories) == 0 {
		return fmt.Errorf("at least one migrations directory is required")
	}
	if !tableNamePattern.MatchString(c.Migrations.Table) {
		return fmt.Errorf("invalid migrations table name: %q", c.Migrations.Table)
	}
	switch c.Migrations.Ordering {
	case "filename", "version":
	default:
		return fmt.Errorf("migrations ordering must be 'filename' or 'version', got %q", c.Migrations.Ordering)
	}
	if c.Migrations.MaxConnections <= 0 {
		return fmt.Errorf("migrations max connections must be greater than 0")
	}

	// Server validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}

	// HTTP validation
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	return nil
}

// DatabaseURL constructs a PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return c.Database.URL()
}

// URL builds an escaped PostgreSQL connection URL. Sessions run in UTC.
func (d Database) URL() string {
	params := url.Values{}
	params.Set("sslmode", d.SSLMode)
	params.Set("TimeZone", "UTC")

	var userInfo *url.Userinfo
	if d.Password == "" {
		userInfo = url.User(d.User)
	} else {
		userInfo = url.UserPassword(d.User, d.Password)
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: params.Encode(),
	}

	return u.String()
}
