package identity

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

type supabaseClaims struct {
	Email       string `json:"email"`
	AppMetadata struct {
		Role     string `json:"role"`
		VendorID string `json:"vendor_id"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

// SupabaseProvider verifies access tokens issued by Supabase Auth
type SupabaseProvider struct {
	secret []byte
	admins adminList
}

func NewSupabaseProvider(jwtSecret string, adminEmails []string) *SupabaseProvider {
	return &SupabaseProvider{secret: []byte(jwtSecret), admins: newAdminList(adminEmails)}
}

func (p *SupabaseProvider) Name() string { return "supabase" }

func (p *SupabaseProvider) Resolve(ctx context.Context, bearerToken string) (*Identity, error) {
	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(bearerToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, ErrUnauthenticated
	}

	role := claims.AppMetadata.Role
	if !validRole(role) {
		role = models.RoleCustomer
	}
	if p.admins.contains(claims.Email) {
		role = models.RoleAdmin
	}

	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     role,
		VendorID: models.StringPtr(claims.AppMetadata.VendorID),
	}, nil
}
