package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxProfileBytes       = 1 << 20
)

// ProviderConfig holds the client registration for one provider. Endpoint URLs
// default to the provider's public endpoints when empty.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
	// EmailsURL is only used for GitHub, whose /user omits private addresses.
	EmailsURL string
}

// Config configures a Client.
type Config struct {
	Providers      map[Provider]ProviderConfig
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

type providerClient struct {
	oauth       *oauth2.Config
	userInfoURL string
	emailsURL   string
}

// Client performs the Authorization Code grant against configured providers.
type Client struct {
	providers  map[Provider]*providerClient
	timeout    time.Duration
	httpClient *http.Client
}

type defaults struct {
	endpoint    oauth2.Endpoint
	userInfoURL string
	emailsURL   string
	scopes      []string
}

var providerDefaults = map[Provider]defaults{
	Google: {
		endpoint:    google.Endpoint,
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		scopes:      []string{"openid", "email", "profile"},
	},
	GitHub: {
		endpoint:    github.Endpoint,
		userInfoURL: "https://api.github.com/user",
		emailsURL:   "https://api.github.com/user/emails",
		scopes:      []string{"read:user", "user:email"},
	},
	Kakao: {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://kauth.kakao.com/oauth/authorize",
			TokenURL:  "https://kauth.kakao.com/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userInfoURL: "https://kapi.kakao.com/v2/user/me",
		scopes:      []string{"account_email", "profile_nickname", "profile_image"},
	},
	Naver: {
		endpoint: oauth2.Endpoint{
			AuthURL:   "https://nid.naver.com/oauth2.0/authorize",
			TokenURL:  "https://nid.naver.com/oauth2.0/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		userInfoURL: "https://openapi.naver.com/v1/nid/me",
	},
}

// NewClient validates cfg. Providers absent from cfg.Providers are reported as
// unsupported at call time.
func NewClient(cfg Config) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		providers:  make(map[Provider]*providerClient, len(cfg.Providers)),
		timeout:    timeout,
		httpClient: httpClient,
	}
	for p, pc := range cfg.Providers {
		if _, err := ParseProvider(string(p)); err != nil {
			return nil, err
		}
		if pc.ClientID == "" || pc.ClientSecret == "" || pc.RedirectURL == "" {
			return nil, fmt.Errorf("identity: %s requires client id, secret and redirect url", p)
		}

		d := providerDefaults[p]
		endpoint := d.endpoint
		if pc.AuthURL != "" {
			endpoint.AuthURL = pc.AuthURL
		}
		if pc.TokenURL != "" {
			endpoint.TokenURL = pc.TokenURL
		}
		scopes := pc.Scopes
		if len(scopes) == 0 {
			scopes = d.scopes
		}

		c.providers[p] = &providerClient{
			oauth: &oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				RedirectURL:  pc.RedirectURL,
				Scopes:       scopes,
				Endpoint:     endpoint,
			},
			userInfoURL: firstNonEmpty(pc.UserInfoURL, d.userInfoURL),
			emailsURL:   firstNonEmpty(pc.EmailsURL, d.emailsURL),
		}
	}
	return c, nil
}

// Enabled reports whether p has a client configuration.
func (c *Client) Enabled(p Provider) bool {
	_, ok := c.providers[p]
	return ok
}

func (c *Client) provider(p Provider) (*providerClient, error) {
	pc, ok := c.providers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q not configured", ErrUnsupportedProvider, p)
	}
	return pc, nil
}

// AuthCodeURL returns the provider consent URL carrying state.
func (c *Client) AuthCodeURL(p Provider, state string) (string, error) {
	pc, err := c.provider(p)
	if err != nil {
		return "", err
	}
	return pc.oauth.AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a provider token.
func (c *Client) Exchange(ctx context.Context, p Provider, code string) (*oauth2.Token, error) {
	pc, err := c.provider(p)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := pc.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}
	return tok, nil
}

// FetchProfile loads and normalizes the user-info document for tok.
func (c *Client) FetchProfile(ctx context.Context, p Provider, tok *oauth2.Token) (Profile, error) {
	pc, err := c.provider(p)
	if err != nil {
		return Profile{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.getJSON(ctx, pc.userInfoURL, tok)
	if err != nil {
		return Profile{}, err
	}
	profile, err := Extract(p, raw)
	if err != nil {
		return Profile{}, err
	}

	if p == GitHub && profile.Email == "" && pc.emailsURL != "" {
		email, err := c.githubPrimaryEmail(ctx, pc.emailsURL, tok)
		if err != nil {
			return Profile{}, err
		}
		profile.Email = email
	}
	return profile, nil
}

// Authenticate runs Exchange then FetchProfile.
func (c *Client) Authenticate(ctx context.Context, p Provider, code string) (Profile, error) {
	tok, err := c.Exchange(ctx, p, code)
	if err != nil {
		return Profile{}, err
	}
	return c.FetchProfile(ctx, p, tok)
}

func (c *Client) getJSON(ctx context.Context, url string, tok *oauth2.Token) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	return body, nil
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (c *Client) githubPrimaryEmail(ctx context.Context, url string, tok *oauth2.Token) (string, error) {
	raw, err := c.getJSON(ctx, url, tok)
	if err != nil {
		return "", err
	}
	var emails []githubEmail
	if err := json.Unmarshal(raw, &emails); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return strings.ToLower(strings.TrimSpace(e.Email)), nil
		}
	}
	return "", nil
}

// IsProviderFailure reports whether err came from talking to a provider.
func IsProviderFailure(err error) bool {
	return errors.Is(err, ErrExchangeFailed) || errors.Is(err, ErrFetchFailed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
