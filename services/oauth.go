package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/whiskeyshelf/apiv1/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// OAuthIdentity is what the provider tells us about the signed in account.
type OAuthIdentity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleProvider runs the authorization code flow against Google.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg config.GoogleConfig) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

// WithEndpoints points the provider somewhere else, e.g. a test server.
func (p *GoogleProvider) WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string) *GoogleProvider {
	p.config.Endpoint = endpoint
	p.userInfoURL = userInfoURL
	return p
}

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for the identity behind it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (OAuthIdentity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("exchange code: %w", err)
	}
	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return OAuthIdentity{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return OAuthIdentity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return OAuthIdentity{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}
	var identity OAuthIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return OAuthIdentity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if identity.Subject == "" {
		return OAuthIdentity{}, fmt.Errorf("userinfo has no subject")
	}
	return identity, nil
}
