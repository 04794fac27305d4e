package linkauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "test config valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "refresh not longer than access",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = c.JWT.AccessTTL
			},
			wantValid: false,
		},
		{
			name: "zero access ttl",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "hs256 short key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("short")
			},
			wantValid: false,
		},
		{
			name: "ed25519 without public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "state ttl below minimum",
			mutate: func(c *Config) {
				c.OAuth.StateTTL = 30 * time.Second
			},
			wantValid: false,
		},
		{
			name: "state ttl above maximum",
			mutate: func(c *Config) {
				c.OAuth.StateTTL = 16 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "state ttl at maximum",
			mutate: func(c *Config) {
				c.OAuth.StateTTL = 15 * time.Minute
			},
			wantValid: true,
		},
		{
			name: "prefix with separator",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "rt:x"
			},
			wantValid: false,
		},
		{
			name: "prefixes collide",
			mutate: func(c *Config) {
				c.OAuth.StatePrefix = c.Session.RedisPrefix
			},
			wantValid: false,
		},
		{
			name: "password min length too small",
			mutate: func(c *Config) {
				c.Password.MinLength = 6
			},
			wantValid: false,
		},
		{
			name: "argon memory too small",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "login cooldown missing",
			mutate: func(c *Config) {
				c.Security.LoginCooldownDuration = 0
			},
			wantValid: false,
		},
		{
			name: "refresh cooldown ignored when throttle off",
			mutate: func(c *Config) {
				c.Security.EnableRefreshThrottle = false
				c.Security.RefreshCooldownDuration = 0
			},
			wantValid: true,
		},
		{
			name: "audit enabled zero buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
			wantValid: false,
		},
		{
			name: "cookie name empty",
			mutate: func(c *Config) {
				c.Cookie.Name = ""
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsKeys(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without keys to be rejected")
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config with keys to validate, got %v", err)
	}
	if cfg.Cookie.SameSite != http.SameSiteLaxMode || !cfg.Cookie.Secure {
		t.Fatalf("unexpected cookie defaults %+v", cfg.Cookie)
	}
}

func TestWithConfigCopiesKeyMaterial(t *testing.T) {
	cfg := testConfig()
	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("builder must not alias caller key material")
	}
}
