package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Server      ServerConfig      `json:"server"`
	Logging     LoggingConfig     `json:"logging"`
	Database    DatabaseConfig    `json:"database"`
	Redis       RedisConfig       `json:"redis"`
	Aggregation AggregationConfig `json:"aggregation"`
	Seed        SeedConfig        `json:"seed"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// DatabaseConfig configures the optional durable store. When Host is empty
// the engine runs on in-memory stores only.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

// DSN renders the database connection string, or "" when unconfigured.
func (c *DatabaseConfig) DSN() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// RedisConfig configures the optional shared result cache. When Addr is
// empty the engine uses its in-memory cache.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// AggregationConfig tunes the fan-out engine. Durations are
// time.ParseDuration strings.
type AggregationConfig struct {
	Timeout           string `json:"timeout"`  // whole-call deadline
	CacheTTL          string `json:"cacheTTL"` // result cache staleness bound
	AdapterTimeout    string `json:"adapterTimeout"`
	DefaultDatasource string `json:"defaultDatasource"`
}

// SeedConfig points at an optional YAML file of datasources and policy
// rules loaded at startup.
type SeedConfig struct {
	File string `json:"file"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()

	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "unimon"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "unimon"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Aggregation: AggregationConfig{
			Timeout:           getEnv("AGG_TIMEOUT", "5s"),
			CacheTTL:          getEnv("AGG_CACHE_TTL", "30s"),
			AdapterTimeout:    getEnv("AGG_ADAPTER_TIMEOUT", "10s"),
			DefaultDatasource: getEnv("AGG_DEFAULT_DATASOURCE", ""),
		},
		Seed: SeedConfig{
			File: getEnv("SEED_FILE", ""),
		},
	}

	if *configFile != "" {
		if err := loadFromFile(cfg, *configFile); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
