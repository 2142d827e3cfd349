package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

const cartColumns = `cart_id, product_id, name, price, image, quantity, added_at`

// GetCart retrieves the entries of a cart in the order they were added
func (s *Store) GetCart(ctx context.Context, cartID string) ([]models.CartEntry, error) {
	entries := []models.CartEntry{}
	err := s.db.SelectContext(ctx, &entries,
		s.db.Rebind("SELECT "+cartColumns+" FROM cart_items WHERE cart_id = ? ORDER BY added_at, product_id"),
		cartID)
	return entries, err
}

// AddCartEntry adds an entry to the cart, merging quantity with an existing
// entry for the same product.
func (s *Store) AddCartEntry(ctx context.Context, entry *models.CartEntry) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var quantity int
		err := tx.GetContext(ctx, &quantity,
			tx.Rebind("SELECT quantity FROM cart_items WHERE cart_id = ? AND product_id = ?"),
			entry.CartID, entry.ProductID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if entry.AddedAt.IsZero() {
				entry.AddedAt = time.Now().UTC()
			}
			_, err = tx.ExecContext(ctx,
				tx.Rebind("INSERT INTO cart_items ("+cartColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
				entry.CartID, entry.ProductID, entry.Name, entry.Price, entry.Image, entry.Quantity, entry.AddedAt)
			return err
		case err != nil:
			return err
		}

		entry.Quantity += quantity
		_, err = tx.ExecContext(ctx,
			tx.Rebind("UPDATE cart_items SET quantity = ?, name = ?, price = ?, image = ? WHERE cart_id = ? AND product_id = ?"),
			entry.Quantity, entry.Name, entry.Price, entry.Image, entry.CartID, entry.ProductID)
		return err
	})
}

// SetCartQuantity sets the quantity of an entry; a quantity <= 0 removes it.
// Returns false when the cart holds no entry for the product.
func (s *Store) SetCartQuantity(ctx context.Context, cartID, productID string, quantity int) (bool, error) {
	if quantity <= 0 {
		return s.RemoveCartEntry(ctx, cartID, productID)
	}

	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND product_id = ?"),
		quantity, cartID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveCartEntry removes a product from the cart
func (s *Store) RemoveCartEntry(ctx context.Context, cartID, productID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM cart_items WHERE cart_id = ? AND product_id = ?"),
		cartID, productID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ClearCart removes every entry of the cart
func (s *Store) ClearCart(ctx context.Context, cartID string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM cart_items WHERE cart_id = ?"), cartID)
	return err
}
