package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	API       APIConfig        `mapstructure:"api"`
	Databases []DatabaseConfig `mapstructure:"databases"`
	Schema    SchemaConfig     `mapstructure:"schema"`
	Debug     bool             `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// APIConfig contains request-shaping settings for the RPC surface
type APIConfig struct {
	MaxPageSize        int `mapstructure:"max_page_size"`
	DefaultSearchLimit int `mapstructure:"default_search_limit"`
}

// SchemaConfig controls schema discovery caching
type SchemaConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DatabaseConfig contains PostgreSQL connection settings for one
// queryable database. The ID is how RPC callers address it.
type DatabaseConfig struct {
	ID              int64         `mapstructure:"id"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections"`
	MinConnections  int32         `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheck     time.Duration `mapstructure:"health_check_period"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	viper.SetConfigName("rowline")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/rowline")

	// Set defaults
	setDefaults()

	// Enable environment variable support with underscore replacer
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ROWLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
		log.Info().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// A single database can be configured entirely through the flat
	// database.* keys, which is how the container image is wired.
	if len(config.Databases) == 0 {
		config.Databases = []DatabaseConfig{defaultDatabase()}
	}
	applyDatabaseDefaults(config.Databases)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
		"../.env", // For when running from subdirectories
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Info().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.body_limit", 4*1024*1024) // 4MB

	// API defaults
	viper.SetDefault("api.max_page_size", 500)
	viper.SetDefault("api.default_search_limit", 10)

	// Schema cache defaults
	viper.SetDefault("schema.cache_ttl", "5m")

	// Flat single-database defaults
	viper.SetDefault("database.id", 1)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.database", "rowline")
	viper.SetDefault("database.ssl_mode", "disable")

	viper.SetDefault("debug", false)
}

func defaultDatabase() DatabaseConfig {
	return DatabaseConfig{
		ID:       viper.GetInt64("database.id"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		Database: viper.GetString("database.database"),
		SSLMode:  viper.GetString("database.ssl_mode"),
	}
}

func applyDatabaseDefaults(dbs []DatabaseConfig) {
	for i := range dbs {
		if dbs[i].Port == 0 {
			dbs[i].Port = 5432
		}
		if dbs[i].SSLMode == "" {
			dbs[i].SSLMode = "disable"
		}
		if dbs[i].MaxConnections == 0 {
			dbs[i].MaxConnections = 25
		}
		if dbs[i].MinConnections == 0 {
			dbs[i].MinConnections = 2
		}
		if dbs[i].MaxConnLifetime == 0 {
			dbs[i].MaxConnLifetime = time.Hour
		}
		if dbs[i].MaxConnIdleTime == 0 {
			dbs[i].MaxConnIdleTime = 30 * time.Minute
		}
		if dbs[i].HealthCheck == 0 {
			dbs[i].HealthCheck = time.Minute
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database must be configured")
	}

	seen := make(map[int64]bool)
	for _, db := range c.Databases {
		if db.ID <= 0 {
			return fmt.Errorf("database id must be a positive integer, got %d", db.ID)
		}
		if seen[db.ID] {
			return fmt.Errorf("duplicate database id %d", db.ID)
		}
		seen[db.ID] = true

		if db.Host == "" || db.Database == "" {
			return fmt.Errorf("database %d: host and database name are required", db.ID)
		}
		if db.MaxConnections < db.MinConnections {
			return fmt.Errorf("database %d: max_connections must be greater than or equal to min_connections", db.ID)
		}
	}

	if c.API.MaxPageSize < 1 {
		return fmt.Errorf("api.max_page_size must be positive")
	}
	if c.API.DefaultSearchLimit < 1 {
		return fmt.Errorf("api.default_search_limit must be positive")
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (dc *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		dc.User, dc.Password, dc.Host, dc.Port, dc.Database, dc.SSLMode)
}
