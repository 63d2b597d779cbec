package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "s3cret")

	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, c.HTTP.Port)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, 10, c.Security.LoginLimit)
	assert.Equal(t, 1600, c.Media.MaxDimension)
	assert.False(t, c.MailEnabled())
}

func TestLoad_FileThenEnv(t *testing.T) {
	p := writeYAML(t, `
jwt:
  secret: from-file
  issuer: rent
db:
  driver: postgres
  dsn: postgres://file
http:
  port: 9000
`)
	t.Setenv("APP_DB_DSN", "postgres://env")

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.JWT.Secret)
	assert.Equal(t, "rent", c.JWT.Issuer)
	assert.Equal(t, "postgres://env", c.DB.DSN)
	assert.Equal(t, 9000, c.HTTP.Port)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("JWT_SECRET", "legacy")
	t.Setenv("PORT", "3000")
	t.Setenv("EMAIL_HOST", "smtp.example.com")
	t.Setenv("EMAIL", "bot@example.com")

	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "legacy", c.JWT.Secret)
	assert.Equal(t, 3000, c.HTTP.Port)
	assert.Equal(t, "bot@example.com", c.Mail.Username)
	assert.True(t, c.MailEnabled())
}

func TestLoad_PrefixedBeatsLegacy(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "prefixed")
	t.Setenv("JWT_SECRET", "legacy")

	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "prefixed", c.JWT.Secret)
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")

	t.Setenv("APP_JWT_SECRET", "x")
	t.Setenv("APP_MEDIA_BACKEND", "s3")
	_, err = Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media.s3bucket")
}

func TestValidate_ProductionMailNeedsBaseURL(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "x")
	t.Setenv("APP_APP_ENV", "production")
	t.Setenv("EMAIL_HOST", "smtp.example.com")

	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.baseurl")

	t.Setenv("APP_APP_BASEURL", "https://easyrent.example.com")
	c, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://easyrent.example.com", c.App.BaseURL)
}
