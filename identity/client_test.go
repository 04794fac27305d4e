package identity_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/linkauth/identity"
	"github.com/MrEthical07/linkauth/identity/identitytest"
)

func newClient(t *testing.T, fake *identitytest.Server) *identity.Client {
	t.Helper()
	c, err := identity.NewClient(identity.Config{
		Providers: map[identity.Provider]identity.ProviderConfig{
			identity.Google: fake.ProviderConfig(),
		},
		RequestTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestAuthCodeURLCarriesState(t *testing.T) {
	fake := identitytest.NewServer()
	defer fake.Close()
	c := newClient(t, fake)

	raw, err := c.AuthCodeURL(identity.Google, "state-123")
	if err != nil {
		t.Fatalf("auth url: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" || q.Get("client_id") != "client-id" || q.Get("response_type") != "code" {
		t.Fatalf("unexpected query %v", q)
	}

	if _, err := c.AuthCodeURL(identity.Kakao, "s"); !errors.Is(err, identity.ErrUnsupportedProvider) {
		t.Fatalf("expected unconfigured provider to be unsupported, got %v", err)
	}
}

func TestAuthenticateExchangesAndFetches(t *testing.T) {
	fake := identitytest.NewServer()
	defer fake.Close()
	fake.AddGoogleUser("code-1", "g-42", "Alice@Example.com", "Alice")
	c := newClient(t, fake)

	profile, err := c.Authenticate(context.Background(), identity.Google, "code-1")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if profile.ProviderUserID != "g-42" || profile.Email != "alice@example.com" || profile.Provider != identity.Google {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestExchangeFailureIsNotRetried(t *testing.T) {
	fake := identitytest.NewServer()
	defer fake.Close()
	fake.AddGoogleUser("code-1", "g-42", "a@example.com", "A")
	c := newClient(t, fake)

	if _, err := c.Authenticate(context.Background(), identity.Google, "code-1"); err != nil {
		t.Fatalf("first use: %v", err)
	}
	before := fake.Exchanges()
	_, err := c.Authenticate(context.Background(), identity.Google, "code-1")
	if !errors.Is(err, identity.ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed on reused code, got %v", err)
	}
	if !identity.IsProviderFailure(err) {
		t.Fatal("expected provider failure classification")
	}
	// oauth2 may probe both client auth styles once; it must never loop.
	if n := fake.Exchanges() - before; n > 2 {
		t.Fatalf("exchange retried %d times", n)
	}
}

func TestFetchFailure(t *testing.T) {
	fake := identitytest.NewServer()
	defer fake.Close()
	fake.AddGoogleUser("code-1", "g-42", "a@example.com", "A")
	fake.FailFetch(true)
	c := newClient(t, fake)

	_, err := c.Authenticate(context.Background(), identity.Google, "code-1")
	if !errors.Is(err, identity.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestNewClientRejectsIncompleteRegistration(t *testing.T) {
	_, err := identity.NewClient(identity.Config{
		Providers: map[identity.Provider]identity.ProviderConfig{
			identity.GitHub: {ClientID: "id"},
		},
	})
	if err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
	_, err = identity.NewClient(identity.Config{
		Providers: map[identity.Provider]identity.ProviderConfig{
			"myspace": {ClientID: "id", ClientSecret: "s", RedirectURL: "https://x"},
		},
	})
	if !errors.Is(err, identity.ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}
