package config

import (
	"log"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Admin     AdminConfig
	Rates     RatesConfig
	Uploads   UploadsConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// AdminConfig holds the token compared against the "auth" cookie to gate
// write-capable routes.
type AdminConfig struct {
	Token string
}

// RatesConfig configures the outbound exchange-rate lookup used to
// pre-fill (never auto-apply) rate edits.
type RatesConfig struct {
	APIURL string
}

type UploadsConfig struct {
	Dir     string
	BaseURL string
}

// ReconcileConfig controls the background settlement reconciliation job
type ReconcileConfig struct {
	Interval time.Duration
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATES_API_URL", "https://api.exchangerate-api.com/v4/latest/USD")
	viper.SetDefault("UPLOADS_DIR", "uploads")
	viper.SetDefault("UPLOADS_BASE_URL", "/uploads")
	viper.SetDefault("RECONCILE_INTERVAL", "1h")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Admin: AdminConfig{
			Token: viper.GetString("ADMIN_TOKEN"),
		},
		Rates: RatesConfig{
			APIURL: viper.GetString("RATES_API_URL"),
		},
		Uploads: UploadsConfig{
			Dir:     viper.GetString("UPLOADS_DIR"),
			BaseURL: viper.GetString("UPLOADS_BASE_URL"),
		},
		Reconcile: ReconcileConfig{
			Interval: reconcileInterval(),
		},
	}
}

func reconcileInterval() time.Duration {
	interval := cast.ToDuration(viper.GetString("RECONCILE_INTERVAL"))
	if interval <= 0 {
		interval = time.Hour
	}
	return interval
}
