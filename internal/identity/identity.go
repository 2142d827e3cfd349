package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/config"
	"storefront/internal/models"
)

var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUnsupportedProvider = errors.New("unsupported auth provider")
)

// Identity is the resolved caller of a request
type Identity struct {
	UserID   string  `json:"userId"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	VendorID *string `json:"vendorId,omitempty"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// IsVendor reports whether the identity may act on vendor order items
func (i *Identity) IsVendor() bool {
	return i != nil && (i.Role == models.RoleVendor || i.Role == models.RoleAdmin)
}

// Provider resolves a bearer token to an identity
type Provider interface {
	Name() string
	Resolve(ctx context.Context, bearerToken string) (*Identity, error)
}

// UserStore is the credential table used by the local provider
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// New selects the provider named by cfg.Provider
func New(cfg config.AuthConfig, users UserStore) (Provider, error) {
	switch cfg.Provider {
	case "local", "":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("local auth requires JWT_SECRET")
		}
		return NewLocalProvider(users, cfg.JWTSecret, cfg.JWTTTL), nil
	case "supabase":
		if cfg.SupabaseJWTSecret == "" {
			return nil, fmt.Errorf("supabase auth requires SUPABASE_JWT_SECRET")
		}
		return NewSupabaseProvider(cfg.SupabaseJWTSecret, cfg.AdminEmails), nil
	case "google":
		if cfg.GoogleClientID == "" {
			return nil, fmt.Errorf("google auth requires GOOGLE_CLIENT_ID")
		}
		return NewGoogleProvider(GoogleOptions{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			UserInfoURL:  cfg.GoogleUserInfoURL,
			AdminEmails:  cfg.AdminEmails,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

type adminList map[string]struct{}

func newAdminList(emails []string) adminList {
	list := make(adminList, len(emails))
	for _, e := range emails {
		list[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return list
}

func (a adminList) contains(email string) bool {
	_, ok := a[strings.ToLower(email)]
	return ok
}

func validRole(role string) bool {
	switch role {
	case models.RoleCustomer, models.RoleVendor, models.RoleAdmin:
		return true
	}
	return false
}
