package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 1816, cfg.Web.Port)
	assert.Equal(t, "/var/hms/logs", cfg.GetLogDir())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hms.yml")
	content := []byte("system:\n  workdir: " + dir + "\ndatabase:\n  type: SQLite\n  name: hms.db\nweb:\n  port: 9000\n")
	require.NoError(t, os.WriteFile(file, content, 0o644))

	t.Setenv("HMS_WEB_PORT", "9100")
	t.Setenv("HMS_SMTP_HOST", "smtp.example.org")

	cfg := LoadConfig(file)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "hms.db", cfg.Database.Name)
	assert.Equal(t, 9100, cfg.Web.Port)
	assert.Equal(t, "smtp.example.org", cfg.Notify.SmtpHost)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())

	// defaults must not be mutated by a load
	assert.Equal(t, 1816, DefaultAppConfig.Web.Port)
}
