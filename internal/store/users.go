package store

import (
	"context"

	"storefront/internal/models"
)

const userColumns = `id, email, password_hash, role, vendor_id, first_name, last_name, created_at`

// CreateUser inserts a user into the credential table
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		user.ID, user.Email, user.PasswordHash, user.Role, user.VendorID, user.FirstName, user.LastName, user.CreatedAt)
	return err
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind("SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER(?)"), email)
	if err != nil {
		return nil, notFound(err, "user %s", email)
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "user %s", id)
	}
	return &user, nil
}
