// Package config loads linkauthd settings from LINKAUTH_* environment
// variables.
package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth"
	"github.com/MrEthical07/linkauth/identity"
	"github.com/caarlos0/env/v11"
)

const envPrefix = "LINKAUTH_"

// Provider is one OAuth client registration. A provider without a client ID
// is disabled.
type Provider struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURL  string   `env:"REDIRECT_URL"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
	AuthURL      string   `env:"AUTH_URL"`
	TokenURL     string   `env:"TOKEN_URL"`
	UserInfoURL  string   `env:"USERINFO_URL"`
}

type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	DatabaseURL     string        `env:"DATABASE_URL" envDefault:"file:linkauth.db"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"true"`

	// SigningKey is base64: a 32-byte seed for ed25519, the secret for hs256.
	SigningMethod string        `env:"JWT_SIGNING_METHOD" envDefault:"ed25519"`
	SigningKey    string        `env:"JWT_SIGNING_KEY"`
	KeyID         string        `env:"JWT_KEY_ID"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"linkauth"`
	Audience      string        `env:"JWT_AUDIENCE"`
	AccessTTL     time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"336h"`
	StateTTL      time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	CookieName     string   `env:"COOKIE_NAME" envDefault:"refresh_token"`
	CookieDomain   string   `env:"COOKIE_DOMAIN"`
	CookieInsecure bool     `env:"COOKIE_INSECURE"`
	AllowedOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	AuditEnabled   bool `env:"AUDIT_ENABLED"`
	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// OTLPEndpoint enables push export of the engine metrics over OTLP/HTTP.
	OTLPEndpoint string        `env:"OTLP_ENDPOINT"`
	OTLPInsecure bool          `env:"OTLP_INSECURE"`
	OTLPInterval time.Duration `env:"OTLP_INTERVAL" envDefault:"30s"`

	Google Provider `envPrefix:"GOOGLE_"`
	GitHub Provider `envPrefix:"GITHUB_"`
	Kakao  Provider `envPrefix:"KAKAO_"`
	Naver  Provider `envPrefix:"NAVER_"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: envPrefix})
}

// LoadFrom reads environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: envPrefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Engine builds the engine configuration, decoding key material.
func (c *Config) Engine() (linkauth.Config, error) {
	out := linkauth.DefaultConfig()
	out.JWT.SigningMethod = strings.ToLower(c.SigningMethod)
	out.JWT.Issuer = c.Issuer
	out.JWT.Audience = c.Audience
	out.JWT.KeyID = c.KeyID
	out.JWT.AccessTTL = c.AccessTTL
	out.JWT.RefreshTTL = c.RefreshTTL
	out.OAuth.StateTTL = c.StateTTL
	out.Audit.Enabled = c.AuditEnabled
	out.Metrics.Enabled = c.MetricsEnabled
	out.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	out.Cookie.Name = c.CookieName
	out.Cookie.Domain = c.CookieDomain
	out.Cookie.Secure = !c.CookieInsecure
	out.Cookie.SameSite = http.SameSiteLaxMode

	if c.SigningKey == "" {
		return linkauth.Config{}, errors.New("LINKAUTH_JWT_SIGNING_KEY is required")
	}
	raw, err := base64.StdEncoding.DecodeString(c.SigningKey)
	if err != nil {
		return linkauth.Config{}, fmt.Errorf("decode signing key: %w", err)
	}
	switch out.JWT.SigningMethod {
	case "ed25519":
		if len(raw) != ed25519.SeedSize {
			return linkauth.Config{}, fmt.Errorf("ed25519 signing key must be a %d-byte seed", ed25519.SeedSize)
		}
		priv := ed25519.NewKeyFromSeed(raw)
		out.JWT.PrivateKey = priv
		out.JWT.PublicKey = priv.Public().(ed25519.PublicKey)
	default:
		out.JWT.PrivateKey = raw
	}

	if err := out.Validate(); err != nil {
		return linkauth.Config{}, err
	}
	return out, nil
}

// Identity returns the client registrations of every enabled provider.
func (c *Config) Identity() identity.Config {
	providers := map[identity.Provider]identity.ProviderConfig{}
	for p, pc := range map[identity.Provider]Provider{
		identity.Google: c.Google,
		identity.GitHub: c.GitHub,
		identity.Kakao:  c.Kakao,
		identity.Naver:  c.Naver,
	} {
		if pc.ClientID == "" {
			continue
		}
		providers[p] = identity.ProviderConfig{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			RedirectURL:  pc.RedirectURL,
			Scopes:       pc.Scopes,
			AuthURL:      pc.AuthURL,
			TokenURL:     pc.TokenURL,
			UserInfoURL:  pc.UserInfoURL,
		}
	}
	return identity.Config{Providers: providers}
}
