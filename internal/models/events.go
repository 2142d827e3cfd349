package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated           = "ORDER_CREATED"
	EventTypeOrderItemStatusChanged = "ORDER_ITEM_STATUS_CHANGED"
	EventTypeOrderStatusChanged     = "ORDER_STATUS_CHANGED"
	EventTypePaymentSuccess         = "PAYMENT_SUCCESS"
	EventTypePaymentFailed          = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after an order is committed
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	CustomerEmail string          `json:"customer_email"`
	Total         decimal.Decimal `json:"total"`
	Items         []OrderItemData `json:"items"`
}

// OrderItemStatusChangedEvent published when a vendor updates its portion
type OrderItemStatusChangedEvent struct {
	BaseEvent
	OrderID     string  `json:"order_id"`
	OrderItemID string  `json:"order_item_id"`
	VendorID    *string `json:"vendor_id"`
	Status      string  `json:"status"`
}

// OrderStatusChangedEvent published when the order status changes
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
}

// PaymentSuccessEvent published by payment service
type PaymentSuccessEvent struct {
	BaseEvent
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	TxID      string          `json:"tx_id"`
}

// PaymentFailedEvent published by payment service
type PaymentFailedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string          `json:"product_id"`
	VendorID  *string         `json:"vendor_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
