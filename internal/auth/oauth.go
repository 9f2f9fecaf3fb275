// Package auth implements the OAuth identity flow (Google, GitHub) and
// the session tokens handed to the frontend after a successful login.
// The relay core never consumes these tokens: it trusts the user id a
// connection asserts, and this package only covers the web handoff.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Provider identifies a supported OAuth provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// ParseProvider maps a URL path segment to a Provider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGitHub:
		return ProviderGitHub, nil
	default:
		return "", fmt.Errorf("unsupported provider %q", name)
	}
}

// Identity is the verified profile returned by a provider.
type Identity struct {
	ID       string
	Username string
	Email    string
	Avatar   string
	Provider Provider
}

// Credentials holds one provider's client configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Client performs the authorization-code exchange and profile fetch for
// one provider.
type Client struct {
	provider Provider
	oauth    *oauth2.Config
	apiBase  string
}

// NewClient creates a Client for the given provider.
func NewClient(provider Provider, creds Credentials) *Client {
	c := &Client{
		provider: provider,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
		},
	}

	switch provider {
	case ProviderGitHub:
		c.oauth.Endpoint = endpoints.GitHub
		c.oauth.Scopes = []string{"user:email", "read:user"}
		c.apiBase = "https://api.github.com"
	default:
		c.oauth.Endpoint = endpoints.Google
		c.oauth.Scopes = []string{"openid", "profile", "email"}
		c.apiBase = "https://www.googleapis.com"
	}

	return c
}

// AuthURL returns the provider consent page the user is redirected to.
func (c *Client) AuthURL(state string) string {
	if c.provider == ProviderGoogle {
		return c.oauth.AuthCodeURL(state,
			oauth2.AccessTypeOffline,
			oauth2.SetAuthURLParam("prompt", "consent"))
	}
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// Profile fetches the user profile for an access token.
func (c *Client) Profile(ctx context.Context, token *oauth2.Token) (Identity, error) {
	httpClient := c.oauth.Client(ctx, token)

	if c.provider == ProviderGitHub {
		return c.githubProfile(ctx, httpClient)
	}
	return c.googleProfile(ctx, httpClient)
}

func (c *Client) googleProfile(ctx context.Context, httpClient *http.Client) (Identity, error) {
	var info struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Email   string `json:"email"`
		Picture string `json:"picture"`
	}
	if err := c.getJSON(ctx, httpClient, c.apiBase+"/oauth2/v2/userinfo", &info); err != nil {
		return Identity{}, err
	}

	return Identity{
		ID:       info.ID,
		Username: info.Name,
		Email:    info.Email,
		Avatar:   info.Picture,
		Provider: ProviderGoogle,
	}, nil
}

func (c *Client) githubProfile(ctx context.Context, httpClient *http.Client) (Identity, error) {
	var info struct {
		ID        json.Number `json:"id"`
		Login     string      `json:"login"`
		Email     string      `json:"email"`
		AvatarURL string      `json:"avatar_url"`
	}
	if err := c.getJSON(ctx, httpClient, c.apiBase+"/user", &info); err != nil {
		return Identity{}, err
	}

	email := info.Email
	if email == "" {
		// The user endpoint omits the email unless it is public; fall
		// back to the emails endpoint and pick the primary one.
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := c.getJSON(ctx, httpClient, c.apiBase+"/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary {
					email = e.Email
					break
				}
			}
		}
	}

	return Identity{
		ID:       info.ID.String(),
		Username: info.Login,
		Email:    email,
		Avatar:   info.AvatarURL,
		Provider: ProviderGitHub,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, httpClient *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile endpoint returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode profile response: %w", err)
	}
	return nil
}
