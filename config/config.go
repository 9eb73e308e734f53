// Package config loads the console configuration from a YAML file with
// CONSOLE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	auth "github.com/goliatone/go-console-auth"
	"github.com/goliatone/go-console-auth/provider/local"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONSOLE_"

// Config is the console configuration. Durations are Go duration
// expressions such as "10m" or "720h".
type Config struct {
	AppName          string `yaml:"app_name"`
	Addr             string `yaml:"addr"`
	MetricsAddr      string `yaml:"metrics_addr"`
	Locale           string `yaml:"locale"`
	RejectedRouteKey string `yaml:"rejected_route_key"`
	Debug            bool   `yaml:"debug"`

	Auth    Auth    `yaml:"auth"`
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
}

// Auth configures the session lifecycle and the local identity provider.
type Auth struct {
	SigningKey              string `yaml:"signing_key"`
	Issuer                  string `yaml:"issuer"`
	SessionCookie           string `yaml:"session_cookie"`
	SessionTTLExpr          string `yaml:"session_ttl"`
	BaseURL                 string `yaml:"base_url"`
	IdleTimeoutExpr         string `yaml:"idle_timeout"`
	RefreshTokenTTLExpr     string `yaml:"refresh_token_ttl"`
	VerifyTokenTTLExpr      string `yaml:"verification_token_ttl"`
	ResetTokenTTLExpr       string `yaml:"reset_token_ttl"`
	MaxLoginAttempts        int    `yaml:"max_login_attempts"`
	LoginCoolDownExpr       string `yaml:"login_cool_down"`
	PasswordResetDisclosure string `yaml:"password_reset_disclosure"`
	PhoneRegion             string `yaml:"phone_region"`
}

// Storage configures the database and file locations.
type Storage struct {
	DSN              string `yaml:"dsn"`
	BlobDir          string `yaml:"blob_dir"`
	BlobURLPrefix    string `yaml:"blob_url_prefix"`
	RefreshTokenFile string `yaml:"refresh_token_file"`
}

// Log configures the zerolog output.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Defaults returns the built in configuration.
func Defaults() *Config {
	return &Config{
		AppName:          "Paints Console",
		Addr:             "127.0.0.1:8978",
		MetricsAddr:      "127.0.0.1:9978",
		Locale:           "ar",
		RejectedRouteKey: "console_rejected_route",
		Auth: Auth{
			Issuer:                  "paints-console",
			SessionCookie:           "console_session",
			SessionTTLExpr:          "12h",
			BaseURL:                 "http://localhost:8978",
			IdleTimeoutExpr:         "10m",
			RefreshTokenTTLExpr:     "720h",
			VerifyTokenTTLExpr:      "48h",
			ResetTokenTTLExpr:       "1h",
			MaxLoginAttempts:        5,
			LoginCoolDownExpr:       "24h",
			PasswordResetDisclosure: string(auth.DisclosureConceal),
			PhoneRegion:             "SA",
		},
		Storage: Storage{
			DSN:              "file:console.db?cache=shared",
			BlobDir:          "data/blobs",
			BlobURLPrefix:    "/blobs",
			RefreshTokenFile: "data/session/refresh_token",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("unmarshal config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns the value of envVar, or defaultValue when unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func (c *Config) applyEnv() error {
	c.AppName = GetEnv(EnvPrefix+"APP_NAME", c.AppName)
	c.Addr = GetEnv(EnvPrefix+"ADDR", c.Addr)
	c.MetricsAddr = GetEnv(EnvPrefix+"METRICS_ADDR", c.MetricsAddr)
	c.Locale = GetEnv(EnvPrefix+"LOCALE", c.Locale)
	c.RejectedRouteKey = GetEnv(EnvPrefix+"REJECTED_ROUTE_KEY", c.RejectedRouteKey)

	c.Auth.SigningKey = GetEnv(EnvPrefix+"SIGNING_KEY", c.Auth.SigningKey)
	c.Auth.Issuer = GetEnv(EnvPrefix+"ISSUER", c.Auth.Issuer)
	c.Auth.SessionCookie = GetEnv(EnvPrefix+"SESSION_COOKIE", c.Auth.SessionCookie)
	c.Auth.SessionTTLExpr = GetEnv(EnvPrefix+"SESSION_TTL", c.Auth.SessionTTLExpr)
	c.Auth.BaseURL = GetEnv(EnvPrefix+"BASE_URL", c.Auth.BaseURL)
	c.Auth.IdleTimeoutExpr = GetEnv(EnvPrefix+"IDLE_TIMEOUT", c.Auth.IdleTimeoutExpr)
	c.Auth.RefreshTokenTTLExpr = GetEnv(EnvPrefix+"REFRESH_TOKEN_TTL", c.Auth.RefreshTokenTTLExpr)
	c.Auth.VerifyTokenTTLExpr = GetEnv(EnvPrefix+"VERIFICATION_TOKEN_TTL", c.Auth.VerifyTokenTTLExpr)
	c.Auth.ResetTokenTTLExpr = GetEnv(EnvPrefix+"RESET_TOKEN_TTL", c.Auth.ResetTokenTTLExpr)
	c.Auth.LoginCoolDownExpr = GetEnv(EnvPrefix+"LOGIN_COOL_DOWN", c.Auth.LoginCoolDownExpr)
	c.Auth.PasswordResetDisclosure = GetEnv(EnvPrefix+"PASSWORD_RESET_DISCLOSURE", c.Auth.PasswordResetDisclosure)
	c.Auth.PhoneRegion = GetEnv(EnvPrefix+"PHONE_REGION", c.Auth.PhoneRegion)

	c.Storage.DSN = GetEnv(EnvPrefix+"DSN", c.Storage.DSN)
	c.Storage.BlobDir = GetEnv(EnvPrefix+"BLOB_DIR", c.Storage.BlobDir)
	c.Storage.BlobURLPrefix = GetEnv(EnvPrefix+"BLOB_URL_PREFIX", c.Storage.BlobURLPrefix)
	c.Storage.RefreshTokenFile = GetEnv(EnvPrefix+"REFRESH_TOKEN_FILE", c.Storage.RefreshTokenFile)

	c.Log.Level = GetEnv(EnvPrefix+"LOG_LEVEL", c.Log.Level)

	var err error
	if c.Auth.MaxLoginAttempts, err = envInt(EnvPrefix+"MAX_LOGIN_ATTEMPTS", c.Auth.MaxLoginAttempts); err != nil {
		return err
	}
	if c.Log.Pretty, err = envBool(EnvPrefix+"LOG_PRETTY", c.Log.Pretty); err != nil {
		return err
	}
	if c.Debug, err = envBool(EnvPrefix+"DEBUG", c.Debug); err != nil {
		return err
	}
	return nil
}

func envInt(name string, def int) (int, error) {
	raw := GetEnv(name, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func envBool(name string, def bool) (bool, error) {
	raw := GetEnv(name, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// Validate checks required keys and duration expressions.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AppName, validation.Required),
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.Locale, validation.Required, validation.In("ar", "en")),
		validation.Field(&c.RejectedRouteKey, validation.Required, validation.NotIn(c.Auth.SessionCookie)),
	); err != nil {
		return err
	}

	a := &c.Auth
	return validation.ValidateStruct(a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&a.Issuer, validation.Required),
		validation.Field(&a.SessionCookie, validation.Required),
		validation.Field(&a.SessionTTLExpr, validation.Required, validation.By(positiveDuration)),
		validation.Field(&a.IdleTimeoutExpr, validation.Required, validation.By(positiveDuration)),
		validation.Field(&a.RefreshTokenTTLExpr, validation.Required, validation.By(positiveDuration)),
		validation.Field(&a.VerifyTokenTTLExpr, validation.Required, validation.By(positiveDuration)),
		validation.Field(&a.ResetTokenTTLExpr, validation.Required, validation.By(positiveDuration)),
		validation.Field(&a.LoginCoolDownExpr, validation.Required, validation.By(positiveDuration)),
		validation.Field(&a.MaxLoginAttempts, validation.Min(0)),
	)
}

func positiveDuration(value any) error {
	s, _ := value.(string)
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a duration such as 10m")
	}
	if d <= 0 {
		return errors.New("must be positive")
	}
	return nil
}

func mustDuration(expr string) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(expr))
	if err != nil {
		panic(fmt.Sprintf("unable to parse duration: expr %s", expr))
	}
	return d
}

// GetAppName returns the application name.
func (c *Config) GetAppName() string { return c.AppName }

// GetLocale returns the UI locale.
func (c *Config) GetLocale() string { return c.Locale }

// GetRejectedRouteKey returns the cookie holding the route to resume after login.
func (c *Config) GetRejectedRouteKey() string { return c.RejectedRouteKey }

// GetBlobDir returns the profile image directory.
func (c *Config) GetBlobDir() string { return c.Storage.BlobDir }

// GetBlobURLPrefix returns the URL prefix profile images are served under.
func (c *Config) GetBlobURLPrefix() string { return c.Storage.BlobURLPrefix }

// GetSigningKey returns the HMAC key for session cookies and provider tokens.
func (c *Config) GetSigningKey() string { return c.Auth.SigningKey }

// GetIssuer returns the token issuer.
func (c *Config) GetIssuer() string { return c.Auth.Issuer }

// GetSessionCookie returns the name of the cookie binding a browser to the session.
func (c *Config) GetSessionCookie() string { return c.Auth.SessionCookie }

// GetSessionTTL returns the session cookie lifetime.
func (c *Config) GetSessionTTL() time.Duration { return mustDuration(c.Auth.SessionTTLExpr) }

// GetIdleTimeout returns the inactivity sign out timeout.
func (c *Config) GetIdleTimeout() time.Duration { return mustDuration(c.Auth.IdleTimeoutExpr) }

// GetDisclosurePolicy returns the password reset disclosure policy.
func (c *Config) GetDisclosurePolicy() auth.DisclosurePolicy {
	return auth.ParseDisclosurePolicy(c.Auth.PasswordResetDisclosure)
}

// LocalProviderConfig builds the local identity provider configuration.
func (c *Config) LocalProviderConfig() local.Config {
	return local.Config{
		SigningKey:           c.Auth.SigningKey,
		Issuer:               c.Auth.Issuer,
		BaseURL:              c.Auth.BaseURL,
		RefreshTokenTTL:      mustDuration(c.Auth.RefreshTokenTTLExpr),
		VerificationTokenTTL: mustDuration(c.Auth.VerifyTokenTTLExpr),
		ResetTokenTTL:        mustDuration(c.Auth.ResetTokenTTLExpr),
		MaxLoginAttempts:     c.Auth.MaxLoginAttempts,
		LoginCoolDown:        mustDuration(c.Auth.LoginCoolDownExpr),
	}
}
