package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

type localClaims struct {
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	VendorID *string `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

// LocalProvider authenticates against the users table and issues HS256
// session tokens.
type LocalProvider struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewLocalProvider(users UserStore, secret string, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LocalProvider{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (p *LocalProvider) Name() string { return "local" }

// HashPassword hashes a password for the users table
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Login checks the password and returns a signed session token
func (p *LocalProvider) Login(ctx context.Context, email, password string) (string, *Identity, error) {
	user, err := p.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	id := &Identity{UserID: user.ID, Email: user.Email, Role: user.Role, VendorID: user.VendorID}
	token, err := p.Issue(id)
	if err != nil {
		return "", nil, err
	}
	return token, id, nil
}

// Issue signs a session token for id
func (p *LocalProvider) Issue(id *Identity) (string, error) {
	now := p.now()
	claims := localClaims{
		Email:    id.Email,
		Role:     id.Role,
		VendorID: id.VendorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) Resolve(ctx context.Context, bearerToken string) (*Identity, error) {
	var claims localClaims
	_, err := jwt.ParseWithClaims(bearerToken, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" || !validRole(claims.Role) {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     claims.Role,
		VendorID: claims.VendorID,
	}, nil
}

// NewUser builds a users row with a hashed password
func NewUser(id, email, password, role string, vendorID *string) (*models.User, error) {
	if !validRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:           id,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		VendorID:     vendorID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
