package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type DonationRepository interface {
	SaveDonation(ctx context.Context, d *models.Donation) error
	ListDonations(ctx context.Context) ([]models.Donation, error)
}

// DonationInput is a donation as submitted by a donor
type DonationInput struct {
	DonorName  string          `json:"donor_name"`
	DonorEmail string          `json:"donor_email"`
	Amount     decimal.Decimal `json:"amount"`
	Message    string          `json:"message"`
}

// DonationService records donations. No payment is taken for them.
type DonationService struct {
	repo   DonationRepository
	logger *zap.Logger
}

func NewDonationService(repo DonationRepository) *DonationService {
	return &DonationService{repo: repo, logger: util.GetLogger()}
}

// AddDonation records a completed donation
func (s *DonationService) AddDonation(ctx context.Context, in DonationInput) (*models.Donation, error) {
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}

	donation := &models.Donation{
		ID:         "DON" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12]),
		DonorName:  strings.TrimSpace(in.DonorName),
		DonorEmail: strings.TrimSpace(in.DonorEmail),
		Amount:     in.Amount,
		Message:    in.Message,
		Status:     models.DonationStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.SaveDonation(ctx, donation); err != nil {
		return nil, fmt.Errorf("failed to save donation: %w", err)
	}

	s.logger.Info("Donation recorded",
		zap.String("donation_id", donation.ID),
		zap.String("amount", donation.Amount.StringFixed(2)))
	return donation, nil
}

func (s *DonationService) ListDonations(ctx context.Context) ([]models.Donation, error) {
	return s.repo.ListDonations(ctx)
}
