package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names a supported identity provider.
type Provider string

const (
	Google Provider = "google"
	GitHub Provider = "github"
	Kakao  Provider = "kakao"
	Naver  Provider = "naver"
)

var (
	// ErrUnsupportedProvider is returned for provider names outside the closed set
	// and for providers that have no client configuration.
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	// ErrProfileIncomplete is returned when a provider profile lacks a user ID.
	ErrProfileIncomplete = errors.New("identity profile incomplete")
	// ErrExchangeFailed is returned when the authorization code cannot be
	// exchanged for a provider token.
	ErrExchangeFailed = errors.New("provider code exchange failed")
	// ErrFetchFailed is returned when the provider's user-info endpoint fails.
	ErrFetchFailed = errors.New("provider profile fetch failed")
)

// Providers lists every supported provider.
func Providers() []Provider {
	return []Provider{Google, GitHub, Kakao, Naver}
}

// ParseProvider maps a case-insensitive name to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case Google, GitHub, Kakao, Naver:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
	}
}

func (p Provider) String() string { return string(p) }
