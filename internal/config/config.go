package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "LIBRARY"
	EnvConfig = "LIBRARY_CONFIG"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid config")

type (
	Config struct {
		HTTP      HTTP      `mapstructure:"http"`
		GRPC      GRPC      `mapstructure:"grpc"`
		Storage   Storage   `mapstructure:"storage"`
		MySQL     MySQL     `mapstructure:"mysql"`
		Postgres  Postgres  `mapstructure:"postgres"`
		Redis     Redis     `mapstructure:"redis"`
		Auth      Auth      `mapstructure:"auth"`
		Lending   Lending   `mapstructure:"lending"`
		RateLimit RateLimit `mapstructure:"ratelimit"`
		Log       Log       `mapstructure:"log"`
	}

	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	}

	GRPC struct {
		Addr string `mapstructure:"addr"`
	}

	Storage struct {
		Driver  string `mapstructure:"driver"`
		Migrate bool   `mapstructure:"migrate"`
	}

	MySQL struct {
		DSN          string        `mapstructure:"dsn"`
		MaxOpenConns int           `mapstructure:"max_open_conns"`
		MaxIdleConns int           `mapstructure:"max_idle_conns"`
		ConnLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	}

	Postgres struct {
		URL string `mapstructure:"url"`
	}

	// Redis backs idempotency keys. An empty Addr keeps them in process.
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	}

	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	}

	Lending struct {
		LoanDays             int           `mapstructure:"loan_days"`
		IdempotencyTTL       time.Duration `mapstructure:"idempotency_ttl"`
		OverdueSweepInterval time.Duration `mapstructure:"overdue_sweep_interval"`
	}

	RateLimit struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	}

	Log struct {
		Development bool `mapstructure:"development"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("storage.driver", DriverMySQL)
	v.SetDefault("storage.migrate", false)
	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/library")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("postgres.url", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("lending.loan_days", 14)
	v.SetDefault("lending.idempotency_ttl", 24*time.Hour)
	v.SetDefault("lending.overdue_sweep_interval", time.Hour)
	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)
	v.SetDefault("log.development", false)
}

// Load reads defaults, then the YAML file named by LIBRARY_CONFIG if set,
// then LIBRARY_* environment variables (LIBRARY_MYSQL_DSN for mysql.dsn).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvConfig); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverMySQL:
		if c.MySQL.DSN == "" {
			return fmt.Errorf("%w: mysql.dsn is required for the mysql driver", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: postgres.url is required for the postgres driver", ErrInvalidConfig)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Lending.LoanDays <= 0 {
		return fmt.Errorf("%w: lending.loan_days must be positive", ErrInvalidConfig)
	}
	if c.Lending.OverdueSweepInterval < 0 {
		return fmt.Errorf("%w: lending.overdue_sweep_interval must not be negative", ErrInvalidConfig)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("%w: ratelimit.rps and ratelimit.burst must be positive", ErrInvalidConfig)
	}
	return nil
}
