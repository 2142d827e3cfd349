package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
)

// Repository is the persistence the services depend on. *store.Store
// implements it.
type Repository interface {
	CatalogRepository
	CartRepository
	OrderRepository
	PaymentRepository
}

type CatalogRepository interface {
	SaveProduct(ctx context.Context, p *models.Product) error
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProducts(ctx context.Context, category, vendorID string) ([]models.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) (*models.InventoryLog, error)
	SaveVendor(ctx context.Context, v *models.Vendor) error
	GetVendorByID(ctx context.Context, id string) (*models.Vendor, error)
	ListVendors(ctx context.Context) ([]models.Vendor, error)
}

type CartRepository interface {
	GetCart(ctx context.Context, cartID string) ([]models.CartEntry, error)
	AddCartEntry(ctx context.Context, entry *models.CartEntry) error
	SetCartQuantity(ctx context.Context, cartID, productID string, quantity int) (bool, error)
	RemoveCartEntry(ctx context.Context, cartID, productID string) (bool, error)
	ClearCart(ctx context.Context, cartID string) error
}

type OrderRepository interface {
	CreateOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem, cartID string) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrdersByCustomerEmail(ctx context.Context, email string) ([]models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) (bool, error)
	DeleteOrder(ctx context.Context, orderID string) error
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetOrderItemsByVendor(ctx context.Context, vendorID string) ([]models.VendorOrderItem, error)
	GetOrderItemsWithVendors(ctx context.Context) ([]models.OrderItemWithVendor, error)
	UpdateItemStatusTx(ctx context.Context, itemID, status string) (*store.ItemStatusUpdate, error)
}

type PaymentRepository interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID, status string) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, paymentID, status, providerTxID string) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// CheckoutGuard serializes checkouts per cart and remembers which order an
// idempotency key produced. *redisclient.Client implements it.
type CheckoutGuard interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	GetIdempotentOrder(ctx context.Context, key string) (string, error)
	SetIdempotentOrder(ctx context.Context, key, orderID string, ttl time.Duration) error
}

// OrderEventPublisher is implemented by *broker.EventPublisher
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderItemStatusChanged(ctx context.Context, event *models.OrderItemStatusChangedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// PaymentEventPublisher is implemented by *broker.EventPublisher
type PaymentEventPublisher interface {
	PublishPaymentSuccess(ctx context.Context, event *models.PaymentSuccessEvent) error
	PublishPaymentFailed(ctx context.Context, event *models.PaymentFailedEvent) error
}
