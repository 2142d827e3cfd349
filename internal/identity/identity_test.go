package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers map[string]*models.User

func (m memUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m memUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func TestLocalProvider_LoginAndResolve(t *testing.T) {
	vendorID := "vendor-a"
	user, err := NewUser("u1", "seller@example.com", "hunter22", models.RoleVendor, &vendorID)
	require.NoError(t, err)
	p := NewLocalProvider(memUsers{"u1": user}, "test-secret", time.Hour)
	ctx := context.Background()

	token, id, err := p.Login(ctx, "SELLER@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	resolved, err := p.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "seller@example.com", resolved.Email)
	assert.Equal(t, models.RoleVendor, resolved.Role)
	require.NotNil(t, resolved.VendorID)
	assert.Equal(t, "vendor-a", *resolved.VendorID)
	assert.True(t, resolved.IsVendor())
	assert.False(t, resolved.IsAdmin())

	_, _, err = p.Login(ctx, "seller@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = p.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalProvider_RejectsBadTokens(t *testing.T) {
	p := NewLocalProvider(memUsers{}, "test-secret", time.Hour)
	ctx := context.Background()

	_, err := p.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other := NewLocalProvider(memUsers{}, "other-secret", time.Hour)
	forged, err := other.Issue(&Identity{UserID: "u1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = p.Resolve(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	p.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := p.Issue(&Identity{UserID: "u1", Role: models.RoleCustomer})
	require.NoError(t, err)
	p.now = time.Now
	_, err = p.Resolve(ctx, expired)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func signSupabase(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestSupabaseProvider(t *testing.T) {
	p := NewSupabaseProvider("sb-secret", []string{"Boss@Shop.com"})
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	vendorToken := signSupabase(t, "sb-secret", jwt.MapClaims{
		"sub":          "sb-1",
		"email":        "v@shop.com",
		"exp":          exp,
		"app_metadata": map[string]interface{}{"role": "vendor", "vendor_id": "vendor-b"},
	})
	id, err := p.Resolve(ctx, vendorToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendor, id.Role)
	require.NotNil(t, id.VendorID)
	assert.Equal(t, "vendor-b", *id.VendorID)

	bossToken := signSupabase(t, "sb-secret", jwt.MapClaims{"sub": "sb-2", "email": "boss@shop.com", "exp": exp})
	id, err = p.Resolve(ctx, bossToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, id.Role)
	assert.Nil(t, id.VendorID)

	plainToken := signSupabase(t, "sb-secret", jwt.MapClaims{"sub": "sb-3", "email": "c@shop.com", "exp": exp})
	id, err = p.Resolve(ctx, plainToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, id.Role)

	_, err = p.Resolve(ctx, signSupabase(t, "wrong", jwt.MapClaims{"sub": "x", "exp": exp}))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGoogleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer admin-token":
			_, _ = w.Write([]byte(`{"sub":"g-1","email":"ops@shop.com","email_verified":true}`))
		case "Bearer user-token":
			_, _ = w.Write([]byte(`{"sub":"g-2","email":"shopper@gmail.com","email_verified":true}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	p := NewGoogleProvider(GoogleOptions{
		ClientID:    "client",
		RedirectURL: "http://localhost/callback",
		UserInfoURL: srv.URL,
		AdminEmails: []string{"ops@shop.com"},
	})
	ctx := context.Background()

	id, err := p.Resolve(ctx, "admin-token")
	require.NoError(t, err)
	assert.Equal(t, "g-1", id.UserID)
	assert.Equal(t, models.RoleAdmin, id.Role)

	id, err = p.Resolve(ctx, "user-token")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, id.Role)

	_, err = p.Resolve(ctx, "expired")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	url := p.AuthCodeURL("xyz")
	assert.Contains(t, url, "accounts.google.com")
	assert.Contains(t, url, "state=xyz")
	assert.Contains(t, url, "client_id=client")
}

func TestNew_SelectsProvider(t *testing.T) {
	cases := []struct {
		cfg  config.AuthConfig
		name string
	}{
		{config.AuthConfig{Provider: "local", JWTSecret: "s"}, "local"},
		{config.AuthConfig{Provider: "supabase", SupabaseJWTSecret: "s"}, "supabase"},
		{config.AuthConfig{Provider: "google", GoogleClientID: "c"}, "google"},
	}
	for _, tc := range cases {
		p, err := New(tc.cfg, memUsers{})
		require.NoError(t, err)
		assert.Equal(t, tc.name, p.Name())
	}

	_, err := New(config.AuthConfig{Provider: "ldap"}, memUsers{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	_, err = New(config.AuthConfig{Provider: "supabase"}, memUsers{})
	assert.Error(t, err)
}
