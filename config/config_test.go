package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
application:
  port: 9000
  jwt_secret: file-secret
database:
  driver: mysql
  host: db
  port: 3306
  username: app
  password: pw
  database_name: newsletter
email:
  base_url: http://localhost:4000
  sender: noreply@example.com
  authorization_token: token
  timeout: 2s
worker:
  concurrency: 3
  poll_interval: 5s
log:
  level: debug
  format: console
`)

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, s.Application.Port)
	assert.Equal(t, "0.0.0.0:9000", s.Application.Address())
	assert.Equal(t, "mysql", s.Database.Driver)
	assert.Equal(t, 3306, s.Database.Port)
	assert.Equal(t, 2*time.Second, s.Email.Timeout)
	assert.Equal(t, 3, s.Worker.Concurrency)
	assert.Equal(t, 5*time.Second, s.Worker.PollInterval)
	// untouched keys keep their defaults
	assert.Equal(t, time.Second, s.Worker.ErrorBackoff)
	assert.Equal(t, 24*time.Hour, s.Application.JWTTTL)
	assert.Equal(t, "console", s.Log.Format)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
application:
  jwt_secret: file-secret
database:
  driver: postgres
worker:
  concurrency: 2
`)
	t.Setenv("APP_JWT_SECRET", "env-secret")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("DATABASE_REQUIRE_SSL", "true")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", s.Application.JWTSecret)
	assert.Equal(t, "sqlite", s.Database.Driver)
	assert.Equal(t, 4, s.Worker.Concurrency)
	assert.Equal(t, 250*time.Millisecond, s.Worker.PollInterval)
	assert.True(t, s.Database.RequireSSL)
}

func TestMalformedEnvKeepsPreviousValue(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "secret")
	t.Setenv("APP_PORT", "not-a-number")
	t.Setenv("EMAIL_TIMEOUT", "soon")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, s.Application.Port)
	assert.Equal(t, 10*time.Second, s.Email.Timeout)
}

func TestValidateCollectsProblems(t *testing.T) {
	s := Default()
	s.Database.Driver = "oracle"
	s.Email.Sender = "not an address"
	s.Worker.Concurrency = 0

	err := s.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "jwt_secret")
	assert.Contains(t, msg, "oracle")
	assert.Contains(t, msg, "email.sender")
	assert.Contains(t, msg, "worker.concurrency")
}

func TestSenderMustBeBareAddress(t *testing.T) {
	s := Default()
	s.Application.JWTSecret = "secret"

	s.Email.Sender = "Newsletter <news@example.com>"
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email.sender")

	s.Email.Sender = "news@example.com"
	assert.NoError(t, s.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "application: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
