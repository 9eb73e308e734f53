package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	auth "github.com/goliatone/go-console-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "console.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CONSOLE_SIGNING_KEY", testKey)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "Paints Console", cfg.GetAppName())
	assert.Equal(t, "ar", cfg.GetLocale())
	assert.Equal(t, 10*time.Minute, cfg.GetIdleTimeout())
	assert.Equal(t, auth.DisclosureConceal, cfg.GetDisclosurePolicy())
	assert.Equal(t, "127.0.0.1:8978", cfg.Addr, "loopback unless configured")
	assert.Equal(t, "127.0.0.1:9978", cfg.MetricsAddr)
	assert.Equal(t, "console_session", cfg.GetSessionCookie())
	assert.Equal(t, 12*time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, "paints-console", cfg.GetIssuer())
	assert.Equal(t, testKey, cfg.GetSigningKey())

	lc := cfg.LocalProviderConfig()
	assert.Equal(t, testKey, lc.SigningKey)
	assert.Equal(t, 720*time.Hour, lc.RefreshTokenTTL)
	assert.Equal(t, 48*time.Hour, lc.VerificationTokenTTL)
	assert.Equal(t, time.Hour, lc.ResetTokenTTL)
	assert.Equal(t, 5, lc.MaxLoginAttempts)
	assert.Equal(t, 24*time.Hour, lc.LoginCoolDown)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	t.Setenv("CONSOLE_TEST_KEY", testKey)
	t.Setenv("CONSOLE_IDLE_TIMEOUT", "5m")
	t.Setenv("CONSOLE_DEBUG", "true")
	t.Setenv("CONSOLE_SESSION_TTL", "2h")

	path := writeConfig(t, `
app_name: Branch Console
addr: 0.0.0.0:8080
metrics_addr: ""
locale: en
auth:
  signing_key: ${CONSOLE_TEST_KEY}
  idle_timeout: 15m
  max_login_attempts: 3
  password_reset_disclosure: reveal
storage:
  blob_dir: /var/lib/console/blobs
  blob_url_prefix: /media
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Branch Console", cfg.GetAppName())
	assert.Equal(t, "en", cfg.GetLocale())
	assert.Equal(t, testKey, cfg.Auth.SigningKey)
	assert.Equal(t, 5*time.Minute, cfg.GetIdleTimeout(), "env wins over file")
	assert.Equal(t, 3, cfg.LocalProviderConfig().MaxLoginAttempts)
	assert.Equal(t, auth.DisclosureReveal, cfg.GetDisclosurePolicy())
	assert.Equal(t, "/var/lib/console/blobs", cfg.GetBlobDir())
	assert.Equal(t, "/media", cfg.GetBlobURLPrefix())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "console_rejected_route", cfg.GetRejectedRouteKey(), "unset keys keep defaults")
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Empty(t, cfg.MetricsAddr, "an empty metrics address disables the listener")
	assert.Equal(t, 2*time.Hour, cfg.GetSessionTTL())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{
			name: "missing signing key",
			body: "app_name: x\n",
		},
		{
			name: "short signing key",
			body: "auth:\n  signing_key: short\n",
		},
		{
			name: "bad duration",
			body: "auth:\n  signing_key: " + testKey + "\n  idle_timeout: ten minutes\n",
		},
		{
			name: "negative duration",
			body: "auth:\n  signing_key: " + testKey + "\n  reset_token_ttl: -1h\n",
		},
		{
			name: "unsupported locale",
			body: "locale: fr\nauth:\n  signing_key: " + testKey + "\n",
		},
		{
			name: "bad env int",
			body: "auth:\n  signing_key: " + testKey + "\n",
			env:  map[string]string{"CONSOLE_MAX_LOGIN_ATTEMPTS": "many"},
		},
		{
			name: "bad session ttl",
			body: "auth:\n  signing_key: " + testKey + "\n  session_ttl: forever\n",
		},
		{
			name: "session cookie shadows rejected route cookie",
			body: "rejected_route_key: shared\nauth:\n  signing_key: " + testKey + "\n  session_cookie: shared\n",
		},
		{
			name: "malformed yaml",
			body: "auth: [\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("CONSOLE_SOMETHING", "value")
	assert.Equal(t, "value", GetEnv("CONSOLE_SOMETHING", "default"))
	assert.Equal(t, "default", GetEnv("CONSOLE_NOT_SET_ANYWHERE", "default"))
}
