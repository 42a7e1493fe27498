package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	v.SetConfigName("config")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/seller-backoffice")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".seller-backoffice"))
		}
	}

	// Defaults are overridden by the config file and then by env vars
	setDefaults(v)

	v.SetEnvPrefix("SELLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if err := parseDatabaseURL(v, dbURL); err != nil {
			return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}

	// MIGRATIONS_DIRS uses the OS path list separator, like PATH
	if dirs := os.Getenv("MIGRATIONS_DIRS"); dirs != "" {
		v.Set("migrations.directories", filepath.SplitList(dirs))
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	defaults := NewDefault()

	// Database defaults
	v.SetDefault("database.host", defaults.Database.Host)
	v.SetDefault("database.port", defaults.Database.Port)
	v.SetDefault("database.user", defaults.Database.User)
	v.SetDefault("database.password", defaults.Database.Password)
	v.SetDefault("database.dbname", defaults.Database.DBName)
	v.SetDefault("database.sslmode", defaults.Database.SSLMode)
	v.SetDefault("database.max_connections", defaults.Database.MaxConnections)
	v.SetDefault("database.max_idle_conns", defaults.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "1m")
	v.SetDefault("database.connect_retries", defaults.Database.ConnectRetries)
	v.SetDefault("database.retry_delay", "2s")
	v.SetDefault("database.log_level", defaults.Database.LogLevel)

	// Migration defaults
	v.SetDefault("migrations.directories", defaults.Migrations.Directories)
	v.SetDefault("migrations.table", defaults.Migrations.Table)
	v.SetDefault("migrations.ordering", defaults.Migrations.Ordering)
	v.SetDefault("migrations.max_connections", defaults.Migrations.MaxConnections)
	v.SetDefault("migrations.skip", defaults.Migrations.Skip)
	v.SetDefault("migrations.fail_on_error", defaults.Migrations.FailOnError)

	// Server defaults
	v.SetDefault("server.log_level", defaults.Server.LogLevel)
	v.SetDefault("server.debug", defaults.Server.Debug)

	v.SetDefault("jwt.secret", defaults.JWT.Secret)

	v.SetDefault("http.port", defaults.HTTP.Port)
	v.SetDefault("http.allow_origins", defaults.HTTP.AllowOrigins)
}

// bindEnvVars binds the unprefixed environment variables operators already use
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.log_level", "LOG_LEVEL", "SELLER_SERVER_LOG_LEVEL")
	v.BindEnv("server.debug", "DEBUG", "SELLER_SERVER_DEBUG")
	v.BindEnv("jwt.secret", "JWT_SECRET", "SELLER_JWT_SECRET")
	v.BindEnv("http.port", "PORT", "SELLER_HTTP_PORT")
	v.BindEnv("migrations.skip", "SKIP_MIGRATIONS", "SELLER_MIGRATIONS_SKIP")
}

// parseDatabaseURL parses a PostgreSQL connection URL and sets individual database config values
func parseDatabaseURL(v *viper.Viper, dbURL string) error {
	u, err := url.Parse(dbURL)
	if err != nil {
		return err
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("URL must start with postgres:// or postgresql://")
	}
	if u.Host == "" {
		return fmt.Errorf("host not found in URL")
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name not found in URL")
	}

	if u.User != nil {
		v.Set("database.user", u.User.Username())
		if password, ok := u.User.Password(); ok {
			v.Set("database.password", password)
		}
	}

	v.Set("database.host", u.Hostname())
	if port := u.Port(); port != "" {
		v.Set("database.port", port)
	}
	v.Set("database.dbname", dbName)

	if sslmode := u.Query().Get("sslmode"); sslmode != "" {
		v.Set("database.sslmode", sslmode)
	}

	return nil
}

// LoadConfigOrDefault loads configuration or returns default if loading fails
func LoadConfigOrDefault(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v. Using defaults.\n", err)
		return NewDefault()
	}
	return config
}
