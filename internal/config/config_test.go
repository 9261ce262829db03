package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reseller-ledger-backend/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8080
database:
  driver: memory
jwt:
  secret: 0123456789abcdef0123456789abcdef
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.GRPCPort)
	assert.Equal(t, 10, cfg.Ledger.UndoDepth)
	assert.Equal(t, 5, cfg.Compensation.MaxAttempts)
	assert.Equal(t, "0 */5 * * * *", cfg.Scheduler.RetryCompensations)
	assert.Equal(t, "0 0 2 * * *", cfg.Scheduler.AuditBalances)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.GetServerAddress())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  driver: postgres
  host: db
  user: ledger
  database: ledger
jwt:
  secret: 0123456789abcdef0123456789abcdef
`)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_HOST", "cache")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://ledger:@db.internal:6543/ledger?sslmode=disable", cfg.GetDatabaseConnectionString())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.GetRedisAddress())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short secret", "server:\n  port: 8080\ndatabase:\n  driver: memory\njwt:\n  secret: short\n"},
		{"bad driver", "server:\n  port: 8080\ndatabase:\n  driver: mysql\njwt:\n  secret: 0123456789abcdef0123456789abcdef\n"},
		{"missing host", "server:\n  port: 8080\ndatabase:\n  driver: pgx\njwt:\n  secret: 0123456789abcdef0123456789abcdef\n"},
		{"bad port", "server:\n  port: 0\ndatabase:\n  driver: memory\njwt:\n  secret: 0123456789abcdef0123456789abcdef\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRequiredSecurityLevel(t *testing.T) {
	assert.Equal(t, config.SecurityPublic, config.RequiredSecurityLevel("Health"))
	assert.Equal(t, config.SecurityReseller, config.RequiredSecurityLevel("GetResellerBalance"))
	assert.Equal(t, config.SecurityAdmin, config.RequiredSecurityLevel("CreateSale"))
	assert.Equal(t, config.SecurityAdmin, config.RequiredSecurityLevel("SomethingNew"))
}
