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

// CatalogService manages vendors, products and stock
type CatalogService struct {
	repo   CatalogRepository
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo, logger: util.GetLogger()}
}

// VendorInput holds the editable fields of a vendor
type VendorInput struct {
	VendorName   string `json:"vendor_name"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
	IsApproved   *bool  `json:"is_approved"`
}

// CreateVendor registers a vendor. New vendors are unapproved unless the
// input says otherwise.
func (s *CatalogService) CreateVendor(ctx context.Context, in VendorInput) (*models.Vendor, error) {
	if strings.TrimSpace(in.VendorName) == "" {
		return nil, missingField("vendor_name")
	}

	now := time.Now().UTC()
	vendor := &models.Vendor{
		ID:           uuid.New().String(),
		VendorName:   in.VendorName,
		BusinessName: in.BusinessName,
		Email:        in.Email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.IsApproved != nil {
		vendor.IsApproved = *in.IsApproved
	}

	if err := s.repo.SaveVendor(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}
	s.logger.Info("Vendor created", zap.String("vendor_id", vendor.ID), zap.String("name", vendor.VendorName))
	return vendor, nil
}

// UpdateVendor applies the non-empty fields of in to an existing vendor
func (s *CatalogService) UpdateVendor(ctx context.Context, id string, in VendorInput) (*models.Vendor, error) {
	vendor, err := s.repo.GetVendorByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrVendorNotFound)
	}

	if in.VendorName != "" {
		vendor.VendorName = in.VendorName
	}
	if in.BusinessName != "" {
		vendor.BusinessName = in.BusinessName
	}
	if in.Email != "" {
		vendor.Email = in.Email
	}
	if in.IsApproved != nil {
		vendor.IsApproved = *in.IsApproved
	}
	vendor.UpdatedAt = time.Now().UTC()

	if err := s.repo.SaveVendor(ctx, vendor); err != nil {
		return nil, fmt.Errorf("failed to update vendor: %w", err)
	}
	return vendor, nil
}

// GetVendor retrieves a vendor by ID
func (s *CatalogService) GetVendor(ctx context.Context, id string) (*models.Vendor, error) {
	vendor, err := s.repo.GetVendorByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrVendorNotFound)
	}
	return vendor, nil
}

func (s *CatalogService) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	return s.repo.ListVendors(ctx)
}

// ProductInput holds the fields of a new product
type ProductInput struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	VendorID    string          `json:"vendor_id"`
	Unit        string          `json:"unit"`
	DisplayUnit string          `json:"display_unit"`
	ImageURL    string          `json:"image_url"`
}

// CreateProduct adds a product to the catalog, or replaces it when in.ID
// already exists.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, missingField("name")
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidQuantity)
	}
	if in.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidQuantity)
	}
	if in.VendorID != "" {
		if _, err := s.repo.GetVendorByID(ctx, in.VendorID); err != nil {
			return nil, mapNotFound(err, ErrVendorNotFound)
		}
	}

	now := time.Now().UTC()
	product := &models.Product{
		ID:          in.ID,
		Name:        in.Name,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		VendorID:    models.StringPtr(in.VendorID),
		Unit:        in.Unit,
		DisplayUnit: in.DisplayUnit,
		ImageURL:    in.ImageURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	if err := s.repo.SaveProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to save product: %w", err)
	}
	return product, nil
}

// GetProduct retrieves a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrProductNotFound)
	}
	return product, nil
}

// ListProducts lists products, optionally filtered by category and vendor
func (s *CatalogService) ListProducts(ctx context.Context, category, vendorID string) ([]models.Product, error) {
	return s.repo.ListProducts(ctx, category, vendorID)
}

// AdjustStock applies change to a product's stock. The result is clamped
// at zero and the adjustment is logged.
func (s *CatalogService) AdjustStock(ctx context.Context, productID string, change int) (*models.InventoryLog, error) {
	entry, err := s.repo.AdjustStock(ctx, productID, change)
	if err != nil {
		return nil, mapNotFound(err, ErrProductNotFound)
	}

	util.StockAdjustmentsTotal.WithLabelValues("admin").Inc()
	s.logger.Info("Stock adjusted",
		zap.String("product_id", productID),
		zap.Int("change", change),
		zap.Int("old_stock", entry.OldStock),
		zap.Int("new_stock", entry.NewStock))
	return entry, nil
}
