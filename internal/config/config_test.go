package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIBRARY_AUTH_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":50051", cfg.GRPC.Addr)
	assert.Equal(t, DriverMySQL, cfg.Storage.Driver)
	assert.Equal(t, 14, cfg.Lending.LoanDays)
	assert.Equal(t, 24*time.Hour, cfg.Lending.IdempotencyTTL)
	assert.Equal(t, time.Hour, cfg.Lending.OverdueSweepInterval)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIBRARY_AUTH_JWT_SECRET", "secret")
	t.Setenv("LIBRARY_STORAGE_DRIVER", "postgres")
	t.Setenv("LIBRARY_POSTGRES_URL", "postgres://u:p@localhost:5432/library")
	t.Setenv("LIBRARY_LENDING_LOAN_DAYS", "21")
	t.Setenv("LIBRARY_LENDING_OVERDUE_SWEEP_INTERVAL", "15m")
	t.Setenv("LIBRARY_REDIS_ADDR", "redis:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@localhost:5432/library", cfg.Postgres.URL)
	assert.Equal(t, 21, cfg.Lending.LoanDays)
	assert.Equal(t, 15*time.Minute, cfg.Lending.OverdueSweepInterval)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
auth:
  jwt_secret: from-file
lending:
  loan_days: 7
`), 0o600))
	t.Setenv(EnvConfig, path)
	t.Setenv("LIBRARY_LENDING_LOAN_DAYS", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 10, cfg.Lending.LoanDays, "env wins over file")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("LIBRARY_AUTH_JWT_SECRET", "secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage:   Storage{Driver: DriverMemory},
			Auth:      Auth{JWTSecret: "secret"},
			Lending:   Lending{LoanDays: 14},
			RateLimit: RateLimit{RPS: 1, Burst: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }},
		{"mysql without dsn", func(c *Config) { c.Storage.Driver = DriverMySQL }},
		{"postgres without url", func(c *Config) { c.Storage.Driver = DriverPostgres }},
		{"zero loan days", func(c *Config) { c.Lending.LoanDays = 0 }},
		{"negative sweep", func(c *Config) { c.Lending.OverdueSweepInterval = -time.Second }},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }},
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
