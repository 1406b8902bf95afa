package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration of the trackit server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	DB       DBConfig       `yaml:"db"`
	JWT      JWTConfig      `yaml:"jwt"`
	MQ       MQConfig       `yaml:"mq"`
	Redis    RedisConfig    `yaml:"redis"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Otel     OtelConfig     `yaml:"otel"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port            string        `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig zap logger settings
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// StorageConfig selects the entity store backend: postgres, sqlite or memory.
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// DBConfig Postgres settings
type DBConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	Name          string        `yaml:"name"`
	MaxConns      int32         `yaml:"max_conns"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// JWTConfig token settings
type JWTConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	TTL      time.Duration `yaml:"ttl"`
}

// MQConfig RabbitMQ settings
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RealtimeConfig board channel settings.
// Relay is one of none, rabbitmq, redis.
type RealtimeConfig struct {
	Relay          string        `yaml:"relay"`
	RequireAuth    bool          `yaml:"require_auth"`
	SendBuffer     int           `yaml:"send_buffer"`
	UpdateThrottle time.Duration `yaml:"update_throttle"`
}

// OtelConfig OpenTelemetry settings
type OtelConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            ":5091",
			AllowedOrigins:  []string{"http://localhost:5173"},
			ShutdownTimeout: 30 * time.Second,
		},
		Log:     LogConfig{Level: "info"},
		Storage: StorageConfig{Driver: "sqlite", SQLitePath: "data/trackit.db"},
		DB: DBConfig{
			Host:          "localhost",
			Port:          5432,
			User:          "trackit",
			Name:          "trackit",
			MaxConns:      10,
			SlowThreshold: 100 * time.Millisecond,
		},
		JWT: JWTConfig{
			Issuer:   "trackit",
			Audience: "trackit-client",
			TTL:      7 * 24 * time.Hour,
		},
		Realtime: RealtimeConfig{
			Relay:          "none",
			SendBuffer:     16,
			UpdateThrottle: time.Second,
		},
		Otel: OtelConfig{ServiceName: "trackit", ServiceVersion: "dev"},
	}
}

// DSN renders the Postgres connection string with escaped credentials.
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// MinJWTSecretLength is the shortest signing key serve accepts.
const MinJWTSecretLength = 16

// Validate rejects settings the server must not start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is empty: set JWT_SECRET")
	}
	if len(c.JWT.Secret) < MinJWTSecretLength {
		return fmt.Errorf("jwt.secret must be at least %d bytes", MinJWTSecretLength)
	}
	return nil
}

// OverrideFromEnv applies every well-known environment variable.
func OverrideFromEnv(cfg *Config) {
	OverrideServerFromEnv(&cfg.Server)
	OverrideStorageFromEnv(&cfg.Storage)
	OverrideDBFromEnv(&cfg.DB)
	OverrideJWTFromEnv(&cfg.JWT)
	OverrideMQFromEnv(&cfg.MQ)
	OverrideRedisFromEnv(&cfg.Redis)
	OverrideRealtimeFromEnv(&cfg.Realtime)
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideStorageFromEnv picks the store backend from STORAGE_DRIVER / SQLITE_PATH.
func OverrideStorageFromEnv(cfg *StorageConfig) {
	if driver := os.Getenv("STORAGE_DRIVER"); driver != "" {
		cfg.Driver = strings.ToLower(driver)
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}
}

// OverrideRealtimeFromEnv selects the board relay from REALTIME_RELAY.
func OverrideRealtimeFromEnv(cfg *RealtimeConfig) {
	if relay := os.Getenv("REALTIME_RELAY"); relay != "" {
		cfg.Relay = strings.ToLower(relay)
	}
}
