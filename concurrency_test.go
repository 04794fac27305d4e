package linkauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestConcurrentRefreshAllSucceed(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Security.EnableRefreshThrottle = false })
	tokens := h.signup(t, "race@example.com")

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			out, err := h.engine.Refresh(context.Background(), tokens.RefreshToken)
			if err == nil && out.RefreshToken != tokens.RefreshToken {
				err = errors.New("refresh token changed")
			}
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			t.Fatalf("concurrent refresh failed: %v", err)
		}
	}
}

func TestConcurrentStateReplaySingleWinner(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.AddGoogleUser("code-race", "g-race", "race@example.com", "Race")
	state := h.begin(t, "google", "", false)

	const n = 12
	var wg sync.WaitGroup
	results := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := h.engine.CompleteOAuth(context.Background(), "google", "code-race", state, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrOAuthStateInvalid):
			rejected++
		default:
			t.Fatalf("unexpected callback error: %v", err)
		}
	}
	if success != 1 || rejected != n-1 {
		t.Fatalf("expected 1 success and %d rejections, got %d/%d", n-1, success, rejected)
	}
	if got := h.fake.Exchanges(); got != 1 {
		t.Fatalf("expected exactly one code exchange, got %d", got)
	}
}

func TestConcurrentOAuthSignupSameIdentity(t *testing.T) {
	h := newHarness(t, nil)

	const n = 4
	states := make([]string, n)
	for i := 0; i < n; i++ {
		h.fake.AddGoogleUser(fmt.Sprintf("code-%d", i), "g-same", "same@example.com", "Same")
		states[i] = h.begin(t, "google", "", false)
	}

	var wg sync.WaitGroup
	outcomes := make([]*OAuthOutcome, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = h.engine.CompleteOAuth(context.Background(), "google", fmt.Sprintf("code-%d", i), states[i], "")
		}(i)
	}
	wg.Wait()

	signups := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("callback %d failed: %v", i, errs[i])
		}
		if outcomes[i].UserID != outcomes[0].UserID {
			t.Fatalf("callbacks resolved to different users: %s vs %s", outcomes[i].UserID, outcomes[0].UserID)
		}
		if outcomes[i].Resolution == ResolutionSignup {
			signups++
		}
	}
	if signups != 1 {
		t.Fatalf("expected exactly one signup, got %d", signups)
	}
}

func TestConcurrentLogoutAllThenRefreshFails(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Security.EnableRefreshThrottle = false })
	first := h.signup(t, "many@example.com")

	devices := []*SessionTokens{first}
	for i := 0; i < 5; i++ {
		tokens, err := h.engine.Login(context.Background(), "many@example.com", testPassword)
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		devices = append(devices, tokens)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = h.engine.LogoutAll(context.Background(), first.UserID)
	}()
	go func() {
		defer wg.Done()
		_, _ = h.engine.LogoutAll(context.Background(), first.UserID)
	}()
	wg.Wait()

	for i, d := range devices {
		if _, err := h.engine.Refresh(context.Background(), d.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
			t.Fatalf("device %d: expected ErrTokenMismatch, got %v", i, err)
		}
	}
}
