package store

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, category, price, stock, vendor_id, unit, display_unit, image_url, created_at, updated_at`

// SaveProduct inserts a product or replaces an existing one with the same ID
func (s *Store) SaveProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, category, price, stock, vendor_id, unit, display_unit, image_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			price = excluded.price,
			stock = excluded.stock,
			vendor_id = excluded.vendor_id,
			unit = excluded.unit,
			display_unit = excluded.display_unit,
			image_url = excluded.image_url,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		p.ID, p.Name, p.Category, p.Price, p.Stock, p.VendorID, p.Unit, p.DisplayUnit, p.ImageURL, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		s.db.Rebind("SELECT "+productColumns+" FROM products WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "product %s", id)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListProducts retrieves products, optionally filtered by category and vendor
func (s *Store) ListProducts(ctx context.Context, category, vendorID string) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products WHERE 1 = 1"
	var args []interface{}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	if vendorID != "" {
		query += " AND vendor_id = ?"
		args = append(args, vendorID)
	}
	query += " ORDER BY name, id"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, s.db.Rebind(query), args...)
	return products, err
}

// AdjustStock applies delta to a product's stock, clamping at zero, and
// records the change in inventory_logs.
func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (*models.InventoryLog, error) {
	var entry *models.InventoryLog
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var stock int
		err := tx.GetContext(ctx, &stock,
			tx.Rebind("SELECT stock FROM products WHERE id = ?"+s.forUpdate()), productID)
		if err != nil {
			return notFound(err, "product %s", productID)
		}

		entry, err = adjustStockTx(ctx, tx, productID, stock, delta)
		return err
	})
	return entry, err
}

func adjustStockTx(ctx context.Context, tx *sqlx.Tx, productID string, oldStock, delta int) (*models.InventoryLog, error) {
	newStock := oldStock + delta
	if newStock < 0 {
		newStock = 0
	}
	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		tx.Rebind("UPDATE products SET stock = ?, updated_at = ? WHERE id = ?"),
		newStock, now, productID); err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	entry := &models.InventoryLog{
		ID:        uuid.New().String(),
		ProductID: productID,
		Delta:     delta,
		OldStock:  oldStock,
		NewStock:  newStock,
		CreatedAt: now,
	}
	_, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO inventory_logs (id, product_id, delta, old_stock, new_stock, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.ProductID, entry.Delta, entry.OldStock, entry.NewStock, entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to write inventory log: %w", err)
	}
	return entry, nil
}

// GetInventoryLogs retrieves stock adjustments for a product, newest first
func (s *Store) GetInventoryLogs(ctx context.Context, productID string) ([]models.InventoryLog, error) {
	logs := []models.InventoryLog{}
	err := s.db.SelectContext(ctx, &logs,
		s.db.Rebind("SELECT id, product_id, delta, old_stock, new_stock, created_at FROM inventory_logs WHERE product_id = ? ORDER BY created_at DESC"),
		productID)
	return logs, err
}

const vendorColumns = `id, vendor_name, business_name, email, is_approved, created_at, updated_at`

// SaveVendor inserts a vendor or replaces an existing one with the same ID
func (s *Store) SaveVendor(ctx context.Context, v *models.Vendor) error {
	query := `
		INSERT INTO vendors (id, vendor_name, business_name, email, is_approved, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			vendor_name = excluded.vendor_name,
			business_name = excluded.business_name,
			email = excluded.email,
			is_approved = excluded.is_approved,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		v.ID, v.VendorName, v.BusinessName, v.Email, v.IsApproved, v.CreatedAt, v.UpdatedAt)
	return err
}

// GetVendorByID retrieves a vendor by ID
func (s *Store) GetVendorByID(ctx context.Context, id string) (*models.Vendor, error) {
	var vendor models.Vendor
	err := s.db.GetContext(ctx, &vendor,
		s.db.Rebind("SELECT "+vendorColumns+" FROM vendors WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "vendor %s", id)
	}
	return &vendor, nil
}

// ListVendors retrieves all vendors
func (s *Store) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	err := s.db.SelectContext(ctx, &vendors, "SELECT "+vendorColumns+" FROM vendors ORDER BY vendor_name, id")
	return vendors, err
}
