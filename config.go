package linkauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/linkauth/internal/stores"
	"github.com/MrEthical07/linkauth/password"
)

// Config is built once at startup, validated by Builder.Build and copied into
// the Engine. Later changes to the caller's value have no effect.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	OAuth    OAuthConfig
	Password PasswordConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Cookie   CookieConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token issuer. PrivateKey is an Ed25519 seed,
// private key or PEM for "ed25519", and the shared secret for "hs256".
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the refresh-token store.
type SessionConfig struct {
	RedisPrefix string
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig configures the OAuth state protocol.
type OAuthConfig struct {
	StateTTL    time.Duration
	StatePrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig tunes the default argon2id hasher. It is ignored when a
// hasher is supplied through Builder.WithPasswordHasher.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds abuse limits. A zero max disables that limit.
type SecurityConfig struct {
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

/*
====================================
AUDIT / METRICS
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the refresh-token cookie written by the HTTP layer.
// Max-Age always equals JWT.RefreshTTL.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Key material is left empty and
// must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    14 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Issuer:        "linkauth",
		},
		Session: SessionConfig{
			RedisPrefix: "rt",
		},
		OAuth: OAuthConfig{
			StateTTL:    stores.DefaultStateTTL,
			StatePrefix: "aos",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      password.MinPasswordLen,
			UpgradeOnLogin: true,
		},
		Security: SecurityConfig{
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			EnableRefreshThrottle:   true,
			MaxRefreshAttempts:      30,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Cookie: CookieConfig{
			Name:     "refresh_token",
			Path:     "/",
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Redis key namespaces
	if c.Session.RedisPrefix == "" || strings.ContainsAny(c.Session.RedisPrefix, ":*?[]\\ ") {
		return errors.New("Session RedisPrefix must be a non-empty key segment")
	}
	if c.OAuth.StatePrefix == "" || strings.ContainsAny(c.OAuth.StatePrefix, ":*?[]\\ ") {
		return errors.New("OAuth StatePrefix must be a non-empty key segment")
	}
	if c.OAuth.StatePrefix == c.Session.RedisPrefix {
		return errors.New("OAuth StatePrefix must differ from Session RedisPrefix")
	}

	// OAuth
	if c.OAuth.StateTTL < time.Minute || c.OAuth.StateTTL > 15*time.Minute {
		return errors.New("OAuth StateTTL must be between 1m and 15m")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < password.MinPasswordLen {
		return errors.New("Password MinLength must be >= 10")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRefreshAttempts < 0 {
		return errors.New("Security attempt limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.EnableRefreshThrottle && c.Security.MaxRefreshAttempts > 0 && c.Security.RefreshCooldownDuration <= 0 {
		return errors.New("Security RefreshCooldownDuration must be > 0 when refresh throttling is enabled")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must be set")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	return nil
}
