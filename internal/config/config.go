package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries everything the scheduling service needs to start.
type Config struct {
	DB     DBConfig     `yaml:"db"`
	Redis  RedisConfig  `yaml:"redis"`
	AMQP   AMQPConfig   `yaml:"amqp"`
	Server ServerConfig `yaml:"server"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// ConnStr builds a lib/pq connection string.
func (c DBConfig) ConnStr() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Name, sslMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// TTLSeconds bounds staleness of cached schedule reads. Zero disables
	// the cache entirely.
	TTLSeconds int `yaml:"ttl_seconds"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads the optional YAML config file pointed to by CONFIG_FILE, then
// applies .env and process environment overrides on top. Environment always
// wins over the file.
func Load() (*Config, error) {
	cfg := &Config{
		DB:     DBConfig{Host: "localhost", Port: "5432", SSLMode: "disable"},
		Redis:  RedisConfig{Addr: "localhost:6379", TTLSeconds: 300},
		AMQP:   AMQPConfig{Exchange: "schedule.events"},
		Server: ServerConfig{Port: 8080},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// .env is optional, absence is not an error
	_ = godotenv.Load()

	overrideString(&cfg.DB.Host, "DB_HOST")
	overrideString(&cfg.DB.Port, "DB_PORT")
	overrideString(&cfg.DB.Username, "DB_USERNAME")
	overrideString(&cfg.DB.Password, "DB_PASSWORD")
	overrideString(&cfg.DB.Name, "DB_NAME")
	overrideString(&cfg.DB.SSLMode, "DB_SSLMODE")
	overrideString(&cfg.Redis.Addr, "REDIS_ADDR")
	overrideString(&cfg.Redis.Password, "REDIS_PASSWORD")
	overrideInt(&cfg.Redis.DB, "REDIS_DB")
	overrideInt(&cfg.Redis.TTLSeconds, "REDIS_TTL_SECONDS")
	overrideString(&cfg.AMQP.URL, "AMQP_URL")
	overrideString(&cfg.AMQP.Exchange, "AMQP_EXCHANGE")
	overrideInt(&cfg.Server.Port, "SERVER_PORT")

	if cfg.DB.Username == "" || cfg.DB.Password == "" || cfg.DB.Name == "" {
		return nil, fmt.Errorf("incomplete database config: DB_USERNAME, DB_PASSWORD and DB_NAME are required")
	}
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
