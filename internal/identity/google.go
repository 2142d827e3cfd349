package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
	TokenURL     string // overrides Google's token endpoint when set
	AdminEmails  []string
}

// GoogleProvider signs users in with Google OAuth and resolves access
// tokens through the userinfo endpoint.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	admins      adminList
}

func NewGoogleProvider(opts GoogleOptions) *GoogleProvider {
	endpoint := endpoints.Google
	if opts.TokenURL != "" {
		endpoint.TokenURL = opts.TokenURL
	}
	return &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: opts.UserInfoURL,
		admins:      newAdminList(opts.AdminEmails),
	}
}

func (p *GoogleProvider) Name() string { return "google" }

// AuthCodeURL returns the consent page URL for state
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a token
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange failed: %v", ErrUnauthenticated, err)
	}
	return token, nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (p *GoogleProvider) Resolve(ctx context.Context, bearerToken string) (*Identity, error) {
	client := p.oauth.Client(ctx, &oauth2.Token{AccessToken: bearerToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, ErrUnauthenticated
	}

	role := models.RoleCustomer
	if info.EmailVerified && p.admins.contains(info.Email) {
		role = models.RoleAdmin
	}
	return &Identity{UserID: info.Sub, Email: info.Email, Role: role}, nil
}
