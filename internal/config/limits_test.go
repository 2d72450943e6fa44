package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLimits = `
version: "2024-06-01"
roles:
  admin: 1000
  service: 5000
paths:
  - prefix: /api/auth
    limit: 20
  - prefix: /api/auth/login
    limit: 10
sensitivity:
  - prefix: /api/auth
    level: 5
  - prefix: /api/reports
    level: 3
`

func writeLimits(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadLimitsFile_ParsesTables(t *testing.T) {
	provider, err := LoadLimitsFile(writeLimits(t, sampleLimits))
	require.NoError(t, err)

	tables := provider.Tables()

	limit, ok := tables.RoleLimit("admin")
	assert.True(t, ok)
	assert.Equal(t, uint(1000), limit)

	_, ok = tables.RoleLimit("anonymous")
	assert.False(t, ok)
}

func TestPathLimit_MostSpecificPrefixWins(t *testing.T) {
	provider, err := LoadLimitsFile(writeLimits(t, sampleLimits))
	require.NoError(t, err)

	tables := provider.Tables()

	limit, ok := tables.PathLimit("/api/auth/login")
	assert.True(t, ok)
	assert.Equal(t, uint(10), limit)

	limit, ok = tables.PathLimit("/api/auth/refresh")
	assert.True(t, ok)
	assert.Equal(t, uint(20), limit)

	_, ok = tables.PathLimit("/api/public")
	assert.False(t, ok)
}

func TestSensitivity_DefaultsToOne(t *testing.T) {
	provider, err := LoadLimitsFile(writeLimits(t, sampleLimits))
	require.NoError(t, err)

	tables := provider.Tables()

	assert.Equal(t, 5, tables.Sensitivity("/api/auth/login"))
	assert.Equal(t, 3, tables.Sensitivity("/api/reports/daily"))
	assert.Equal(t, 1, tables.Sensitivity("/api/public"))
}

func TestLoadLimitsFile_RejectsBadSensitivity(t *testing.T) {
	bad := `
sensitivity:
  - prefix: /api
    level: 9
`
	_, err := LoadLimitsFile(writeLimits(t, bad))
	assert.Error(t, err)
}

func TestReload_KeepsPreviousTablesOnFailure(t *testing.T) {
	path := writeLimits(t, sampleLimits)
	provider, err := LoadLimitsFile(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("roles: {admin: 0}"), 0o600))
	assert.Error(t, provider.Reload())

	limit, ok := provider.Tables().RoleLimit("admin")
	assert.True(t, ok)
	assert.Equal(t, uint(1000), limit)
}

func TestNewLimitsProvider_EmptyTables(t *testing.T) {
	provider := NewLimitsProvider()

	_, ok := provider.Tables().RoleLimit("admin")
	assert.False(t, ok)
	assert.Equal(t, 1, provider.Tables().Sensitivity("/anything"))
}
