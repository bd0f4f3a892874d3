package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Log        LogConfig
	Migrations string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration. An empty broker list disables both
// the event producer and the trade consumer.
type KafkaConfig struct {
	Brokers     []string
	TradesTopic string
	EventsTopic string
	GroupID     string
}

// RedisConfig holds holdings cache configuration. Without a URL the cache is
// kept in process.
type RedisConfig struct {
	URL       string
	LocalSize int
	TTL       time.Duration
}

// AuthConfig holds bearer token settings
type AuthConfig struct {
	JWTSecret string
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Output string
	Pretty bool
}

var envBindings = map[string]string{
	"server.port":        "SERVER_PORT",
	"server.host":        "SERVER_HOST",
	"db.host":            "DB_HOST",
	"db.port":            "DB_PORT",
	"db.user":            "DB_USER",
	"db.password":        "DB_PASSWORD",
	"db.name":            "DB_NAME",
	"db.sslmode":         "DB_SSLMODE",
	"kafka.brokers":      "KAFKA_BROKERS",
	"kafka.trades_topic": "KAFKA_TRADES_TOPIC",
	"kafka.events_topic": "KAFKA_EVENTS_TOPIC",
	"kafka.group_id":     "KAFKA_GROUP_ID",
	"redis.url":          "REDIS_URL",
	"redis.local_size":   "REDIS_LOCAL_SIZE",
	"redis.ttl":          "REDIS_TTL",
	"auth.jwt_secret":    "JWT_SECRET",
	"log.level":          "LOG_LEVEL",
	"log.output":         "LOG_OUTPUT",
	"log.pretty":         "LOG_PRETTY",
	"migrations":         "MIGRATIONS_PATH",
}

// SetDefaults registers default values and environment bindings on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "portfolio_ledger")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.trades_topic", "trading.orders")
	v.SetDefault("kafka.events_topic", "ledger.events")
	v.SetDefault("kafka.group_id", "portfolio-ledger")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.local_size", 1024)
	v.SetDefault("redis.ttl", "5m")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.pretty", false)
	v.SetDefault("migrations", "db/migrations")

	v.AllowEmptyEnv(true)
	for key, env := range envBindings {
		// BindEnv only fails when no key is given
		_ = v.BindEnv(key, env)
	}
}

// Load reads configuration from v, which must have had SetDefaults applied
func Load(v *viper.Viper) (*Config, error) {
	ttl := v.GetDuration("redis.ttl")
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid redis ttl %q", v.GetString("redis.ttl"))
	}

	return &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Host: v.GetString("server.host"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(v.GetString("kafka.brokers")),
			TradesTopic: v.GetString("kafka.trades_topic"),
			EventsTopic: v.GetString("kafka.events_topic"),
			GroupID:     v.GetString("kafka.group_id"),
		},
		Redis: RedisConfig{
			URL:       v.GetString("redis.url"),
			LocalSize: v.GetInt("redis.local_size"),
			TTL:       ttl,
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Output: v.GetString("log.output"),
			Pretty: v.GetBool("log.pretty"),
		},
		Migrations: v.GetString("migrations"),
	}, nil
}

// FromEnv loads configuration from defaults and environment variables only
func FromEnv() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return Load(v)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Addr returns the listen address for the HTTP server
func (s *ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
