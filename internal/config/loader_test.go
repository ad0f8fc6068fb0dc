package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadInDir(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 30*time.Second, cfg.Vendor.Timeout)
	assert.Equal(t, 5.0, cfg.Vendor.RatePerSecond)
	assert.Equal(t, 100, cfg.Import.PageSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "safeguard.db", cfg.Database.Path)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  listen: ":9090"
  webhook_secret: hushhush
vendor:
  base_url: https://vendor.example.com/api/v2
  access_token: tok
  timeout: 10s
import:
  page_size: 25
log:
  level: debug
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "hushhush", cfg.Server.WebhookSecret)
	assert.Equal(t, "https://vendor.example.com/api/v2", cfg.Vendor.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Vendor.Timeout)
	assert.Equal(t, 25, cfg.Import.PageSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SAFEGUARD_SERVER_LISTEN", ":7070")
	t.Setenv("SAFEGUARD_VENDOR_ACCESS_TOKEN", "env-token")

	cfg, err := loadInDir(t, t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Listen)
	assert.Equal(t, "env-token", cfg.Vendor.AccessToken)
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	content := `
vendor:
  base_url: "not a url"
import:
  page_size: 0
log:
  level: chatty
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := NewLoader().WithConfigFile(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor.base_url")
	assert.Contains(t, err.Error(), "import.page_size")
	assert.Contains(t, err.Error(), "log.level")
}

// loadInDir loads with the default search path rooted in dir so tests never
// pick up a developer's real config file.
func loadInDir(t *testing.T, dir string) (*Config, error) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return NewLoader().Load()
}
