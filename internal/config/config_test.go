package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
server:
  port: 8080
jwt:
  secret: 0123456789abcdef0123456789abcdef
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 40.0, cfg.Policy.SecuredMin)
	assert.Equal(t, 70.0, cfg.Policy.SecuredMax)
	assert.Equal(t, 35.0, cfg.Policy.UnsecuredMin)
	assert.Equal(t, 65.0, cfg.Policy.UnsecuredMax)
	assert.Equal(t, 90, cfg.Policy.MaxDueHorizonDays)
	assert.Equal(t, 90*24*time.Hour, cfg.Policy.MaxDueHorizon())
	assert.Equal(t, int64(1000000), cfg.Policy.HighValueThresholdCents)
	assert.Equal(t, 2*time.Second, cfg.Engine.LockTimeout)
	assert.Equal(t, "EMAIL", cfg.Engine.DefaultChannel)
	assert.Equal(t, "0 */15 * * * *", cfg.Scheduler.ExpireOffers)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_Validation(t *testing.T) {
	t.Run("Inverted policy band", func(t *testing.T) {
		_, err := Parse([]byte(minimalYAML + `
policy:
  unsecured_min: 70
  unsecured_max: 60
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid unsecured policy band")
	})

	t.Run("Short JWT secret", func(t *testing.T) {
		_, err := Parse([]byte("server:\n  port: 8080\njwt:\n  secret: short\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 32 characters")
	})

	t.Run("Postgres requires host", func(t *testing.T) {
		_, err := Parse([]byte(minimalYAML + "database:\n  driver: postgres\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database host is required")
	})

	t.Run("Unknown driver", func(t *testing.T) {
		_, err := Parse([]byte(minimalYAML + "database:\n  driver: mongo\n"))
		require.Error(t, err)
	})
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_LOCK_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "svc")
	t.Setenv("DB_NAME", "offers")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.LockTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://svc:@db.internal:0/offers?sslmode=disable", cfg.GetDatabaseConnectionString())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.GetServerAddress())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("healthz"))
	assert.Equal(t, SecurityAgent, GetSecurityLevel("createOffer"))
	assert.Equal(t, SecuritySupervisor, GetSecurityLevel("supervisorDecision"))
	assert.Equal(t, SecurityStaff, GetSecurityLevel("cancelOffer"))
	assert.Equal(t, SecuritySupervisor, GetSecurityLevel("somethingNew"))
}
