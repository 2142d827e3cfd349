package store

import (
	"context"

	"storefront/internal/models"
)

// SaveDonation inserts a donation
func (s *Store) SaveDonation(ctx context.Context, d *models.Donation) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO donations (id, donor_name, donor_email, amount, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		d.ID, d.DonorName, d.DonorEmail, d.Amount, d.Message, d.Status, d.CreatedAt)
	return err
}

// ListDonations retrieves all donations, newest first
func (s *Store) ListDonations(ctx context.Context) ([]models.Donation, error) {
	donations := []models.Donation{}
	err := s.db.SelectContext(ctx, &donations, `
		SELECT id, donor_name, donor_email, amount, message, status, created_at
		FROM donations ORDER BY created_at DESC, id`)
	return donations, err
}
