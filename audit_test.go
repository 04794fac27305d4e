package linkauth

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
)

type captureSink struct {
	events chan AuditEvent
}

func newCaptureSink(buffer int) *captureSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &captureSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *captureSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// drain closes the engine so every queued event reaches the sink, then
// returns what arrived.
func (h *testHarness) drainAudit() []AuditEvent {
	h.engine.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-h.sink.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func findEvent(events []AuditEvent, eventType string) (AuditEvent, bool) {
	for _, ev := range events {
		if ev.EventType == eventType {
			return ev, true
		}
	}
	return AuditEvent{}, false
}

func TestAuditLoginEventsCarryRequestMetadata(t *testing.T) {
	h := newHarness(t, nil)
	tokens := h.signup(t, "audit@example.com")

	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.33"), "test-agent/1.0")
	if _, err := h.engine.Login(ctx, "audit@example.com", "wrong-password-123"); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := h.engine.Login(ctx, "audit@example.com", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	events := h.drainAudit()

	failure, ok := findEvent(events, auditEventLoginFailure)
	if !ok {
		t.Fatalf("expected %s event, got %+v", auditEventLoginFailure, events)
	}
	if failure.Success || failure.Error != string(auditErrInvalidCredentials) {
		t.Fatalf("unexpected failure event %+v", failure)
	}

	success, ok := findEvent(events, auditEventLoginSuccess)
	if !ok {
		t.Fatalf("expected %s event", auditEventLoginSuccess)
	}
	if success.UserID != tokens.UserID || success.SessionID == "" {
		t.Fatalf("unexpected success event %+v", success)
	}
	if success.Metadata["ip"] != "198.51.100.33" || success.Metadata["user_agent"] != "test-agent/1.0" {
		t.Fatalf("expected request metadata, got %v", success.Metadata)
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	h := newHarness(t, nil)
	tokens := h.signup(t, "secret@example.com")
	if _, err := h.engine.Refresh(context.Background(), tokens.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	for _, ev := range h.drainAudit() {
		sink.Emit(context.Background(), ev)
	}

	out := buf.String()
	for _, needle := range []string{testPassword, tokens.RefreshToken, tokens.AccessToken} {
		if strings.Contains(out, needle) {
			t.Fatalf("audit output leaked a secret: %s", out)
		}
	}
	if !strings.Contains(out, auditEventRefreshSuccess) {
		t.Fatalf("expected refresh event in %s", out)
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Audit.Enabled = false
	})
	h.signup(t, "quiet@example.com")

	if events := h.drainAudit(); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	if h.engine.AuditDropped() != 0 {
		t.Fatal("expected no drops")
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := map[error]AuditErrorCode{
		ErrInvalidCredentials:         auditErrInvalidCredentials,
		ErrLoginRateLimited:           auditErrRateLimited,
		ErrTokenExpired:               auditErrTokenExpired,
		ErrSessionMismatch:            auditErrSessionMismatch,
		ErrDifferentAccountConflict:   auditErrConflict,
		ErrCannotUnlinkLastAuthMethod: auditErrLastMethod,
		ErrBackendUnavailable:         auditErrUnavailable,
	}
	for err, want := range cases {
		if got := auditErrorCode(err); got != want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", err, got, want)
		}
	}
	if got := auditErrorCode(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %q", got)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJSONWriterSinkThroughEngine(t *testing.T) {
	var buf syncBuffer
	h := newHarness(t, nil)
	engine, err := New().
		WithConfig(h.engine.Config()).
		WithRedis(h.rdb).
		WithAccountStore(h.store).
		WithAuditSink(NewJSONWriterSink(&buf)).
		WithClock(h.clock).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := engine.Signup(context.Background(), "json@example.com", testPassword); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	engine.Close()

	if !strings.Contains(buf.String(), auditEventSignupSuccess) {
		t.Fatalf("expected signup event in %q", buf.String())
	}
}
