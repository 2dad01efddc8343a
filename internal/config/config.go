package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	BotToken       string        `env:"BOT_TOKEN,required,notEmpty"`
	AdminID        int64         `env:"ADMIN_ID,required,notEmpty"`
	VIPLink        string        `env:"VIP_LINK,required,notEmpty"`
	SupportContact string        `env:"SUPPORT_CONTACT" envDefault:"@wachazzin"`
	PollTimeout    time.Duration `env:"POLL_TIMEOUT" envDefault:"50s"`

	Store    StoreConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Sweep    SweepConfig
	Notify   NotifyConfig

	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":3000"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

type StoreConfig struct {
	Driver     string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/orders.db"`
	Retries    int    `env:"STORE_RETRIES" envDefault:"5"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	Prefix   string `env:"REDIS_PREFIX" envDefault:"vip_orders"`
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// PostgresConfig takes POSTGRES_DSN as is, or builds one from the parts.
type PostgresConfig struct {
	DSN      string `env:"POSTGRES_DSN"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	DB       string `env:"POSTGRES_DB" envDefault:"vip_orders"`
	User     string `env:"POSTGRES_USER" envDefault:"vip_orders"`
	Password string `env:"POSTGRES_PASSWORD"`
}

func (p PostgresConfig) ConnString() string {
	if dsn := strings.TrimSpace(p.DSN); dsn != "" {
		return dsn
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     net.JoinHostPort(p.Host, p.Port),
		Path:     "/" + p.DB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

type SweepConfig struct {
	Hour    int  `env:"SWEEP_HOUR" envDefault:"12"`
	Minute  int  `env:"SWEEP_MINUTE" envDefault:"0"`
	OnStart bool `env:"SWEEP_ON_START" envDefault:"false"`
}

type NotifyConfig struct {
	Workers int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	Queue   int           `env:"NOTIFY_QUEUE" envDefault:"64"`
	Timeout time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

// Load reads the optional env file at path, then parses the environment.
// Variables already set in the environment win over the file.
func Load(path string) (Config, error) {
	if err := LoadEnvFile(path); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres, DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Sweep.Hour < 0 || c.Sweep.Hour > 23 {
		return fmt.Errorf("SWEEP_HOUR out of range: %d", c.Sweep.Hour)
	}
	if c.Sweep.Minute < 0 || c.Sweep.Minute > 59 {
		return fmt.Errorf("SWEEP_MINUTE out of range: %d", c.Sweep.Minute)
	}
	if c.AdminID == 0 {
		return errors.New("ADMIN_ID must be a chat id")
	}
	return nil
}
