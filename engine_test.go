package linkauth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth/identity"
	"github.com/MrEthical07/linkauth/identity/identitytest"
	"github.com/MrEthical07/linkauth/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

type testHarness struct {
	engine *Engine
	store  *storage.Store
	redis  *miniredis.Miniredis
	rdb    *redis.Client
	fake   *identitytest.Server
	clock  *clockwork.FakeClock
	sink   *captureSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 256
	cfg.Audit.DropIfFull = false
	return cfg
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newHarness(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	store, err := storage.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = store.DB().Close() })

	fake := identitytest.NewServer()
	t.Cleanup(fake.Close)

	client, err := identity.NewClient(identity.Config{
		Providers: map[identity.Provider]identity.ProviderConfig{
			identity.Google: fake.ProviderConfig(),
			identity.GitHub: fake.ProviderConfig(),
		},
		RequestTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("identity.NewClient failed: %v", err)
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sink := newCaptureSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithIdentityProvider(client).
		WithAuditSink(sink).
		WithClock(clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testHarness{
		engine: engine,
		store:  store,
		redis:  mr,
		rdb:    rdb,
		fake:   fake,
		clock:  clock,
		sink:   sink,
	}
}

func (h *testHarness) signup(t *testing.T, email string) *SessionTokens {
	t.Helper()
	tokens, err := h.engine.Signup(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("Signup(%s) failed: %v", email, err)
	}
	return tokens
}

// begin starts an OAuth flow and returns the state carried in the consent URL.
func (h *testHarness) begin(t *testing.T, provider, refreshToken string, linkMode bool) string {
	t.Helper()
	raw, err := h.engine.BeginOAuth(context.Background(), provider, refreshToken, linkMode)
	if err != nil {
		t.Fatalf("BeginOAuth failed: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("auth url %q carries no state", raw)
	}
	return state
}

func TestSignupLoginRefresh(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	created := h.signup(t, "Alice@Example.com")
	if created.UserID == "" || created.SessionID == "" {
		t.Fatalf("expected user and session IDs, got %+v", created)
	}

	tokens, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if tokens.UserID != created.UserID {
		t.Fatalf("login resolved %s, want %s", tokens.UserID, created.UserID)
	}
	if tokens.SessionID == created.SessionID {
		t.Fatal("expected a distinct device session per login")
	}

	principal, err := h.engine.Authenticate(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if principal.UserID != created.UserID {
		t.Fatalf("principal %s, want %s", principal.UserID, created.UserID)
	}

	h.clock.Advance(time.Minute)
	refreshed, err := h.engine.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed.RefreshToken != tokens.RefreshToken {
		t.Fatal("refresh token must not rotate")
	}
	if !refreshed.RefreshExpiresAt.Equal(tokens.RefreshExpiresAt) {
		t.Fatalf("refresh expiry moved from %v to %v", tokens.RefreshExpiresAt, refreshed.RefreshExpiresAt)
	}
	if !refreshed.AccessExpiresAt.After(tokens.AccessExpiresAt) {
		t.Fatal("expected a later access expiry after refresh")
	}

	jtis, err := h.engine.ActiveSessions(ctx, created.UserID)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(jtis) != 2 {
		t.Fatalf("expected 2 device sessions, got %v", jtis)
	}
}

func TestLoginFailuresCollapse(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.signup(t, "bob@example.com")

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@example.com", testPassword},
		{"wrong password", "bob@example.com", "wrong-password-123"},
		{"empty password", "bob@example.com", ""},
	}
	for _, tc := range cases {
		if _, err := h.engine.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Security.MaxLoginAttempts = 2
		cfg.Security.LoginCooldownDuration = time.Minute
	})
	ctx := context.Background()
	h.signup(t, "carol@example.com")

	for i := 0; i < 2; i++ {
		if _, err := h.engine.Login(ctx, "carol@example.com", "wrong-password-123"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := h.engine.Login(ctx, "carol@example.com", testPassword); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	h.redis.FastForward(2 * time.Minute)
	if _, err := h.engine.Login(ctx, "carol@example.com", testPassword); err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
}

func TestRefreshExpiredAndMalformed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	tokens := h.signup(t, "dave@example.com")

	if _, err := h.engine.Refresh(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("access token used as refresh: expected ErrTokenMalformed, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, tokens.RefreshToken+"x"); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("tampered refresh: expected ErrTokenMalformed, got %v", err)
	}

	h.clock.Advance(2 * time.Hour)
	if _, err := h.engine.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := h.engine.Authenticate(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired access token, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, tokens.AccessToken); !errors.Is(err, ErrTokenMalformed) {
		t.Fatalf("expired access token used as refresh: expected ErrTokenMalformed, got %v", err)
	}
}

func TestLogoutRevokesOnlyThatDevice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first := h.signup(t, "erin@example.com")
	second, err := h.engine.Login(ctx, "erin@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := h.engine.Logout(ctx, first.UserID, first.SessionID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := h.engine.Logout(ctx, first.UserID, first.SessionID); err != nil {
		t.Fatalf("second Logout must be a no-op, got %v", err)
	}

	if _, err := h.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch after logout, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("other device must survive, got %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first := h.signup(t, "frank@example.com")
	if _, err := h.engine.Login(ctx, "frank@example.com", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	other := h.signup(t, "frank2@example.com")

	n, err := h.engine.LogoutAll(ctx, first.UserID)
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 sessions removed, got %d", n)
	}
	if _, err := h.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, other.RefreshToken); err != nil {
		t.Fatalf("other user's session must survive, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.signup(t, "grace@example.com")

	if _, err := h.engine.Signup(ctx, "GRACE@example.com", testPassword); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := h.engine.Signup(ctx, "heidi@example.com", "short"); !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
	if _, err := h.engine.Signup(ctx, "not-an-email", testPassword); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	tokens := h.signup(t, "ivan@example.com")

	if err := h.engine.DeleteAccount(ctx, tokens.UserID, "wrong-password-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := h.engine.DeleteAccount(ctx, tokens.UserID, testPassword); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if _, err := h.store.UserByID(ctx, tokens.UserID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected user row gone, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected sessions revoked, got %v", err)
	}
	if _, err := h.engine.Login(ctx, "ivan@example.com", testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected login to fail after deletion, got %v", err)
	}
}

func TestDisabledAccount(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	tokens := h.signup(t, "judy@example.com")

	if err := h.engine.DisableAccount(ctx, tokens.UserID); err != nil {
		t.Fatalf("DisableAccount failed: %v", err)
	}
	if _, err := h.engine.Login(ctx, "judy@example.com", testPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if _, err := h.engine.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("expected disabled sessions revoked, got %v", err)
	}

	if err := h.engine.EnableAccount(ctx, tokens.UserID); err != nil {
		t.Fatalf("EnableAccount failed: %v", err)
	}
	if _, err := h.engine.Login(ctx, "judy@example.com", testPassword); err != nil {
		t.Fatalf("expected login after re-enable, got %v", err)
	}
}

func TestNilEngineNotReady(t *testing.T) {
	var e *Engine
	if _, err := e.Login(context.Background(), "a@b.c", testPassword); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Authenticate(context.Background(), "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if got := e.AuditDropped(); got != 0 {
		t.Fatalf("expected 0 dropped, got %d", got)
	}
}

func TestMetricsRecordedByEngine(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.signup(t, "kim@example.com")
	if _, err := h.engine.Login(ctx, "kim@example.com", "wrong-password-123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricSignupSuccess] != 1 {
		t.Fatalf("expected 1 signup, got %d", snap.Counters[MetricSignupSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("expected 1 login failure, got %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("expected 1 session, got %d", snap.Counters[MetricSessionCreated])
	}
}

func TestPingChecksBothBackends(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if err := h.engine.Ping(ctx); err != nil {
		t.Fatalf("Ping failed with healthy backends: %v", err)
	}

	if err := h.store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	if err := h.engine.Ping(ctx); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable with closed database, got %v", err)
	}
}

func TestPingReportsRedisOutage(t *testing.T) {
	h := newHarness(t, nil)
	h.redis.Close()

	if err := h.engine.Ping(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable without redis, got %v", err)
	}
}
