package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the shared catalog
type Product struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Category    string          `db:"category" json:"category"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	VendorID    *string         `db:"vendor_id" json:"vendorId"`
	Unit        string          `db:"unit" json:"unit,omitempty"`
	DisplayUnit string          `db:"display_unit" json:"displayUnit,omitempty"`
	ImageURL    string          `db:"image_url" json:"image,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Vendor represents a seller whose products appear in the catalog
type Vendor struct {
	ID           string    `db:"id" json:"id"`
	VendorName   string    `db:"vendor_name" json:"vendorName"`
	BusinessName string    `db:"business_name" json:"businessName"`
	Email        string    `db:"email" json:"email"`
	IsApproved   bool      `db:"is_approved" json:"isApproved"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// CartEntry is one product line of a cart, unique per product
type CartEntry struct {
	CartID    string          `db:"cart_id" json:"-"`
	ProductID string          `db:"product_id" json:"productId"`
	Name      string          `db:"name" json:"name"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Image     string          `db:"image" json:"image"`
	Quantity  int             `db:"quantity" json:"quantity"`
	AddedAt   time.Time       `db:"added_at" json:"addedAt"`
}

// LineTotal returns price x quantity
func (e CartEntry) LineTotal() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Order represents a customer's checkout transaction, possibly spanning multiple vendors
type Order struct {
	ID              string          `db:"id" json:"id"`
	CustomerName    string          `db:"customer_name" json:"customerName"`
	CustomerEmail   string          `db:"customer_email" json:"customerEmail"`
	CustomerPhone   string          `db:"customer_phone" json:"customerPhone"`
	ShippingAddress string          `db:"shipping_address" json:"shippingAddress"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax             decimal.Decimal `db:"tax" json:"tax"`
	Shipping        decimal.Decimal `db:"shipping" json:"shipping"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Status          string          `db:"status" json:"status"`
	PaymentStatus   string          `db:"payment_status" json:"paymentStatus"`
	IdempotencyKey  string          `db:"idempotency_key" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem is one vendor's portion of an order. VendorID is frozen at
// order creation.
type OrderItem struct {
	ID          string          `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"orderId"`
	ProductID   string          `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	VendorID    *string         `db:"vendor_id" json:"vendorId"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unitPrice"`
	TotalPrice  decimal.Decimal `db:"total_price" json:"totalPrice"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// VendorOrderItem is a vendor's line item joined with its parent order context
type VendorOrderItem struct {
	OrderItem
	OrderDate       time.Time `db:"order_date" json:"orderDate"`
	CustomerName    string    `db:"customer_name" json:"customerName"`
	ShippingAddress string    `db:"shipping_address" json:"shippingAddress"`
	OrderStatus     string    `db:"order_status" json:"orderStatus"`
}

// OrderItemWithVendor carries live vendor display names
type OrderItemWithVendor struct {
	OrderItem
	VendorName   string `db:"vendor_name" json:"vendorName"`
	BusinessName string `db:"business_name" json:"businessName"`
}

// OrderWithItems is the admin projection of an order
type OrderWithItems struct {
	Order
	Items []OrderItemWithVendor `json:"items"`
}

// Payment represents a payment attempt for an order
type Payment struct {
	ID           string          `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"orderId"`
	Status       string          `db:"status" json:"status"`
	ProviderTxID string          `db:"provider_tx_id" json:"providerTxId,omitempty"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// InventoryLog records a stock adjustment
type InventoryLog struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"productId"`
	Delta     int       `db:"delta" json:"change"`
	OldStock  int       `db:"old_stock" json:"oldStock"`
	NewStock  int       `db:"new_stock" json:"newStock"`
	CreatedAt time.Time `db:"created_at" json:"timestamp"`
}

// Donation is a gift recorded outside of any order
type Donation struct {
	ID         string          `db:"id" json:"id"`
	DonorName  string          `db:"donor_name" json:"donorName"`
	DonorEmail string          `db:"donor_email" json:"donorEmail"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Message    string          `db:"message" json:"message,omitempty"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// DonationStatusCompleted is the only state a recorded donation has
const DonationStatusCompleted = "completed"

// User is a row of the local credential table
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	VendorID     *string   `db:"vendor_id" json:"vendorId,omitempty"`
	FirstName    string    `db:"first_name" json:"firstName"`
	LastName     string    `db:"last_name" json:"lastName"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Order and order item statuses
const (
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusPacked    = "Packed"
	StatusShipped   = "Shipped"
	StatusDelivered = "Delivered"
	StatusCancelled = "Cancelled"
)

// Payment statuses
const (
	PaymentStatusPending = "Pending"
	PaymentStatusPaid    = "Paid"
	PaymentStatusFailed  = "Failed"
)

// Roles
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// StringPtr returns nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
