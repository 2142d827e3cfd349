package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const orderColumns = `id, customer_name, customer_email, customer_phone, shipping_address,
	subtotal, tax, shipping, total, status, payment_status,
	COALESCE(idempotency_key, '') AS idempotency_key, created_at, updated_at`

const orderItemColumns = `oi.id, oi.order_id, oi.product_id, oi.product_name, oi.vendor_id, oi.quantity,
	oi.unit_price, oi.total_price, oi.status, oi.created_at, oi.updated_at`

// InsufficientStockError is returned when a checkout asks for more units
// than a product has in stock.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%d, requested=%d",
		e.ProductID, e.Available, e.Requested)
}

// CreateOrderTx persists an order and its items in one transaction. Each
// item's vendor is resolved from the catalog inside the transaction; a
// missing product leaves VendorID nil and its stock untouched. Stock is
// decremented and logged, and when cartID is non-empty the cart is cleared.
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, cartID string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		type stockRow struct {
			VendorID *string `db:"vendor_id"`
			Stock    int     `db:"stock"`
		}

		for _, i := range lockOrder(items) {
			var row stockRow
			err := tx.GetContext(ctx, &row,
				tx.Rebind("SELECT vendor_id, stock FROM products WHERE id = ?"+s.forUpdate()),
				items[i].ProductID)
			if errors.Is(err, sql.ErrNoRows) {
				items[i].VendorID = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to lock product %s: %w", items[i].ProductID, err)
			}
			if row.Stock < items[i].Quantity {
				return &InsufficientStockError{
					ProductID: items[i].ProductID,
					Available: row.Stock,
					Requested: items[i].Quantity,
				}
			}

			items[i].VendorID = row.VendorID
			if _, err := adjustStockTx(ctx, tx, items[i].ProductID, row.Stock, -items[i].Quantity); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO orders (id, customer_name, customer_email, customer_phone, shipping_address,
				subtotal, tax, shipping, total, status, payment_status, idempotency_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			order.ID, order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.ShippingAddress,
			order.Subtotal, order.Tax, order.Shipping, order.Total, order.Status, order.PaymentStatus,
			models.StringPtr(order.IdempotencyKey), order.CreatedAt, order.UpdatedAt)
		if isOrderIDConflict(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for _, item := range items {
			_, err := tx.ExecContext(ctx, tx.Rebind(`
				INSERT INTO order_items (id, order_id, product_id, product_name, vendor_id, quantity,
					unit_price, total_price, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				item.ID, item.OrderID, item.ProductID, item.ProductName, item.VendorID, item.Quantity,
				item.UnitPrice, item.TotalPrice, item.Status, item.CreatedAt, item.UpdatedAt)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}

		if cartID != "" {
			if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM cart_items WHERE cart_id = ?"), cartID); err != nil {
				return fmt.Errorf("failed to clear cart: %w", err)
			}
		}
		return nil
	})
}

// isOrderIDConflict reports whether err is a primary key violation on orders
func isOrderIDConflict(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == "orders_pkey"
	}
	// modernc.org/sqlite reports constraint failures only in the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed: orders.id")
}

// lockOrder returns item indexes sorted by product id. Concurrent checkouts
// lock product rows in this order so they cannot deadlock each other.
func lockOrder(items []models.OrderItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].ProductID < items[idx[b]].ProductID
	})
	return idx
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		s.db.Rebind("SELECT "+orderColumns+" FROM orders WHERE id = ?"), id)
	if err != nil {
		return nil, notFound(err, "order %s", id)
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		s.db.Rebind("SELECT "+orderColumns+" FROM orders WHERE idempotency_key = ?"), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByCustomerEmail retrieves orders placed with the given email
func (s *Store) GetOrdersByCustomerEmail(ctx context.Context, email string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		s.db.Rebind("SELECT "+orderColumns+" FROM orders WHERE LOWER(customer_email) = LOWER(?) ORDER BY created_at DESC"),
		email)
	return orders, err
}

// ListOrders retrieves all orders, newest first
func (s *Store) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC, id")
	return orders, err
}

// UpdateOrderStatus sets an order's status. Returns false if no order matched.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?"),
		status, time.Now().UTC(), orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdatePaymentStatus sets an order's payment status
func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?"),
		status, time.Now().UTC(), orderID)
	return err
}

// DeleteOrder removes an order and its items
func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM order_items WHERE order_id = ?"), orderID); err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM orders WHERE id = ?"), orderID)
		if err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		return nil
	})
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		s.db.Rebind("SELECT "+orderItemColumns+" FROM order_items oi WHERE oi.order_id = ? ORDER BY oi.created_at, oi.id"),
		orderID)
	return items, err
}

// GetOrderItemsByVendor retrieves a vendor's items joined with their order context
func (s *Store) GetOrderItemsByVendor(ctx context.Context, vendorID string) ([]models.VendorOrderItem, error) {
	query := `
		SELECT ` + orderItemColumns + `,
			o.created_at AS order_date, o.customer_name, o.shipping_address, o.status AS order_status
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.vendor_id = ?
		ORDER BY o.created_at DESC, oi.id`

	items := []models.VendorOrderItem{}
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), vendorID)
	return items, err
}

// GetOrderItemsWithVendors retrieves every order item with its vendor's
// current display names.
func (s *Store) GetOrderItemsWithVendors(ctx context.Context) ([]models.OrderItemWithVendor, error) {
	query := `
		SELECT ` + orderItemColumns + `,
			COALESCE(v.vendor_name, 'N/A') AS vendor_name,
			COALESCE(v.business_name, 'N/A') AS business_name
		FROM order_items oi
		LEFT JOIN vendors v ON v.id = oi.vendor_id
		ORDER BY oi.created_at, oi.id`

	items := []models.OrderItemWithVendor{}
	err := s.db.SelectContext(ctx, &items, query)
	return items, err
}

// ItemStatusUpdate describes the outcome of UpdateItemStatusTx
type ItemStatusUpdate struct {
	Found          bool
	Item           models.OrderItem
	PreviousStatus string
	OrderStatus    string
}

// OrderStatusChanged reports whether aggregation moved the order status
func (u *ItemStatusUpdate) OrderStatusChanged() bool {
	return u.Found && u.PreviousStatus != u.OrderStatus
}

// UpdateItemStatusTx sets an item's status and re-aggregates its parent
// order's status in the same transaction.
func (s *Store) UpdateItemStatusTx(ctx context.Context, itemID, status string) (*ItemStatusUpdate, error) {
	result := &ItemStatusUpdate{}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &result.Item,
			tx.Rebind("SELECT "+orderItemColumns+" FROM order_items oi WHERE oi.id = ?"), itemID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		var current string
		err = tx.GetContext(ctx, &current,
			tx.Rebind("SELECT status FROM orders WHERE id = ?"+s.forUpdate()), result.Item.OrderID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order item %s references missing order %s", itemID, result.Item.OrderID)
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			tx.Rebind("UPDATE order_items SET status = ?, updated_at = ? WHERE id = ?"),
			status, now, itemID); err != nil {
			return fmt.Errorf("failed to update item status: %w", err)
		}
		result.Item.Status = status
		result.Item.UpdatedAt = now

		var statuses []string
		if err := tx.SelectContext(ctx, &statuses,
			tx.Rebind("SELECT status FROM order_items WHERE order_id = ?"), result.Item.OrderID); err != nil {
			return err
		}

		result.Found = true
		result.PreviousStatus = current
		result.OrderStatus = models.AggregateStatus(current, statuses)
		if result.OrderStatus == current {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			tx.Rebind("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?"),
			result.OrderStatus, now, result.Item.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO payments (id, order_id, status, provider_tx_id, amount, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		payment.ID, payment.OrderID, payment.Status, payment.ProviderTxID, payment.Amount,
		payment.CreatedAt, payment.UpdatedAt)
	return err
}

// GetPaymentByOrderID retrieves the latest payment for an order
func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, s.db.Rebind(`
		SELECT id, order_id, status, provider_tx_id, amount, created_at, updated_at
		FROM payments WHERE order_id = ? ORDER BY created_at DESC LIMIT 1`), orderID)
	if err != nil {
		return nil, notFound(err, "payment for order %s", orderID)
	}
	return &payment, nil
}

// UpdatePayment updates a payment's status and provider transaction id
func (s *Store) UpdatePayment(ctx context.Context, paymentID, status, providerTxID string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("UPDATE payments SET status = ?, provider_tx_id = ?, updated_at = ? WHERE id = ?"),
		status, providerTxID, time.Now().UTC(), paymentID)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		s.db.Rebind("SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = ?)"), eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("INSERT INTO processed_events (event_id, event_type, processed_at) VALUES (?, ?, ?) ON CONFLICT (event_id) DO NOTHING"),
		eventID, eventType, time.Now().UTC())
	return err
}
