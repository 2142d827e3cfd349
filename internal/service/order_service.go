package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const guestCustomerName = "Guest Customer"

// Pricing holds the checkout constants applied to every order
type Pricing struct {
	TaxRate     decimal.Decimal
	ShippingFee decimal.Decimal
}

// DefaultPricing is 5% tax plus a flat 50 shipping fee
var DefaultPricing = Pricing{
	TaxRate:     decimal.RequireFromString("0.05"),
	ShippingFee: decimal.NewFromInt(50),
}

// Quote computes order totals for the given cart entries. Amounts are not
// rounded: total is exactly subtotal*(1+rate)+shipping.
func (p Pricing) Quote(entries []models.CartEntry) (subtotal, tax, shipping, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, e := range entries {
		subtotal = subtotal.Add(e.LineTotal())
	}
	tax = subtotal.Mul(p.TaxRate)
	shipping = p.ShippingFee
	total = subtotal.Add(tax).Add(shipping)
	return subtotal, tax, shipping, total
}

// CheckoutOptions tunes the checkout guard and event publishing
type CheckoutOptions struct {
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
	// PublishTimeout bounds how long a committed request waits on the broker
	PublishTimeout time.Duration
}

// CustomerInfo is the contact and delivery data captured at checkout
type CustomerInfo struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	ShippingAddress string `json:"shipping_address"`
}

// SubmissionItem is one line of a checkout submission
type SubmissionItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CheckoutSubmission is a checkout sent without a stored cart
type CheckoutSubmission struct {
	CustomerInfo
	Items          []SubmissionItem `json:"items"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// OrderService converts carts into orders with per-vendor items and keeps
// the order status in step with its items.
type OrderService struct {
	repo    Repository
	guard   CheckoutGuard
	events  OrderEventPublisher
	pricing Pricing
	opts    CheckoutOptions
	newID   func() string
	logger  *zap.Logger
}

// NewOrderService creates a new order service. guard may be nil, in which
// case checkouts are not locked and idempotency relies on the database.
func NewOrderService(
	repo Repository,
	guard CheckoutGuard,
	events OrderEventPublisher,
	pricing Pricing,
	opts CheckoutOptions,
) *OrderService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Second
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	return &OrderService{
		repo:    repo,
		guard:   guard,
		events:  events,
		pricing: pricing,
		opts:    opts,
		newID:   newOrderID,
		logger:  util.GetLogger(),
	}
}

// CreateOrder checks out the stored cart. On success the order and its
// items are persisted, stock is decremented and the cart is emptied in one
// transaction. A repeated idempotency key returns the original order.
func (s *OrderService) CreateOrder(ctx context.Context, cartID string, info CustomerInfo, idempotencyKey string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder", "cart_id", cartID)
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if cartID == "" {
		return nil, missingField("cart id")
	}

	if existing, err := s.findIdempotent(ctx, idempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	release, err := s.lockCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	defer release()

	entries, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	return s.placeOrder(ctx, entries, info, idempotencyKey, cartID)
}

// SubmitOrder places an order from an explicit item list. Names and prices
// come from the catalog, and no stored cart is touched.
func (s *OrderService) SubmitOrder(ctx context.Context, sub CheckoutSubmission) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if existing, err := s.findIdempotent(ctx, sub.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	entries, err := s.entriesFromSubmission(ctx, sub.Items)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	return s.placeOrder(ctx, entries, sub.CustomerInfo, sub.IdempotencyKey, "")
}

func (s *OrderService) entriesFromSubmission(ctx context.Context, items []SubmissionItem) ([]models.CartEntry, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	quantities := make(map[string]int, len(items))
	var ids []string
	for _, item := range items {
		if item.ProductID == "" {
			return nil, missingField("product_id")
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		if _, seen := quantities[item.ProductID]; !seen {
			ids = append(ids, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	entries := make([]models.CartEntry, 0, len(ids))
	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		entries = append(entries, models.CartEntry{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.ImageURL,
			Quantity:  quantities[id],
		})
	}
	return entries, nil
}

func (s *OrderService) placeOrder(ctx context.Context, entries []models.CartEntry, info CustomerInfo, idempotencyKey, cartID string) (*models.Order, error) {
	if err := validateCheckout(entries, info); err != nil {
		s.recordFailure(err)
		return nil, err
	}

	subtotal, tax, shipping, total := s.pricing.Quote(entries)
	now := time.Now().UTC()

	name := strings.TrimSpace(info.CustomerName)
	if name == "" {
		name = guestCustomerName
	}

	order := &models.Order{
		ID:              s.newID(),
		CustomerName:    name,
		CustomerEmail:   strings.TrimSpace(info.CustomerEmail),
		CustomerPhone:   info.CustomerPhone,
		ShippingAddress: info.ShippingAddress,
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shipping,
		Total:           total,
		Status:          models.StatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		IdempotencyKey:  idempotencyKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items := make([]models.OrderItem, len(entries))
	for i, e := range entries {
		items[i] = models.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     order.ID,
			ProductID:   e.ProductID,
			ProductName: e.Name,
			Quantity:    e.Quantity,
			UnitPrice:   e.Price,
			TotalPrice:  e.LineTotal(),
			Status:      models.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	err := s.repo.CreateOrderTx(ctx, order, items, cartID)
	for attempt := 1; errors.Is(err, store.ErrDuplicateOrderID) && attempt < orderIDAttempts; attempt++ {
		s.logger.Warn("Order id collision, retrying", zap.String("order_id", order.ID))
		order.ID = s.newID()
		for i := range items {
			items[i].OrderID = order.ID
		}
		err = s.repo.CreateOrderTx(ctx, order, items, cartID)
	}
	if err != nil {
		var stockErr *store.InsufficientStockError
		if errors.As(err, &stockErr) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("%w: %w", ErrInsufficientStock, stockErr)
		}
		// A concurrent request with the same key may have won the insert.
		if idempotencyKey != "" {
			if existing, lookupErr := s.repo.GetOrderByIdempotencyKey(ctx, idempotencyKey); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Int("items", len(items)),
		zap.String("total", order.Total.StringFixed(2)))

	if idempotencyKey != "" && s.guard != nil {
		if err := s.guard.SetIdempotentOrder(ctx, idempotencyKey, order.ID, s.opts.IdempotencyTTL); err != nil {
			s.logger.Warn("Failed to cache idempotency key", zap.Error(err))
		}
	}

	s.publishOrderCreated(ctx, order, items)
	return order, nil
}

func validateCheckout(entries []models.CartEntry, info CustomerInfo) error {
	if len(entries) == 0 {
		return ErrEmptyCart
	}
	if strings.TrimSpace(info.CustomerEmail) == "" {
		return missingField("customer_email")
	}
	for _, e := range entries {
		if e.Quantity < 1 {
			return fmt.Errorf("%w: product %s", ErrInvalidQuantity, e.ProductID)
		}
	}
	return nil
}

func (s *OrderService) recordFailure(err error) {
	switch {
	case errors.Is(err, ErrEmptyCart):
		util.OrdersFailedTotal.WithLabelValues("empty_cart").Inc()
	case errors.Is(err, ErrProductNotFound):
		util.OrdersFailedTotal.WithLabelValues("unknown_product").Inc()
	default:
		util.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
	}
}

// findIdempotent returns the order an idempotency key already produced, if any.
// Redis is consulted first; the orders table is authoritative.
func (s *OrderService) findIdempotent(ctx context.Context, key string) (*models.Order, error) {
	if key == "" {
		return nil, nil
	}

	if s.guard != nil {
		orderID, err := s.guard.GetIdempotentOrder(ctx, key)
		if err != nil {
			s.logger.Warn("Idempotency cache lookup failed", zap.Error(err))
		} else if orderID != "" {
			order, err := s.repo.GetOrderByID(ctx, orderID)
			if err == nil {
				s.logger.Info("Duplicate order request detected",
					zap.String("idempotency_key", key),
					zap.String("order_id", order.ID))
				return order, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to check idempotency: %w", err)
			}
		}
	}

	existing, err := s.repo.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", key),
			zap.String("order_id", existing.ID))
	}
	return existing, nil
}

// lockCart takes the per-cart checkout lock. An unreachable lock store is
// logged and checkout proceeds unlocked.
func (s *OrderService) lockCart(ctx context.Context, cartID string) (func(), error) {
	noop := func() {}
	if s.guard == nil {
		return noop, nil
	}

	lockKey := "checkout:" + cartID
	acquired, err := s.guard.AcquireLock(ctx, lockKey, s.opts.LockTTL)
	if err != nil {
		s.logger.Warn("Checkout lock unavailable", zap.String("cart_id", cartID), zap.Error(err))
		return noop, nil
	}
	if !acquired {
		util.OrdersFailedTotal.WithLabelValues("checkout_in_progress").Inc()
		return nil, ErrCheckoutInProgress
	}

	return func() {
		if err := s.guard.ReleaseLock(context.Background(), lockKey); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("cart_id", cartID), zap.Error(err))
		}
	}, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	data := make([]models.OrderItemData, len(items))
	for i, item := range items {
		data[i] = models.OrderItemData{
			ProductID: item.ProductID,
			VendorID:  item.VendorID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total,
		Items:         data,
	}
	ctx, cancel := s.publishContext(ctx)
	defer cancel()
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

// GetOrdersForVendor returns the vendor's own line items with their
// parent order's date, customer, address and status.
func (s *OrderService) GetOrdersForVendor(ctx context.Context, vendorID string) ([]models.VendorOrderItem, error) {
	if vendorID == "" {
		return nil, missingField("vendor id")
	}
	items, err := s.repo.GetOrderItemsByVendor(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vendor orders: %w", err)
	}
	return items, nil
}

// UpdateItemStatus sets a line item's status and re-aggregates its order.
// Returns false, with nothing changed, when the item does not exist.
func (s *OrderService) UpdateItemStatus(ctx context.Context, itemID, status string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateItemStatus", "item_id", itemID, "status", status)
	defer span.End()

	if !models.IsValidStatus(status) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	update, err := s.repo.UpdateItemStatusTx(ctx, itemID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update item status: %w", err)
	}
	if !update.Found {
		s.logger.Info("Order item not found", zap.String("item_id", itemID))
		return false, nil
	}

	util.ItemStatusUpdatesTotal.WithLabelValues(status).Inc()
	s.logger.Info("Order item status updated",
		zap.String("item_id", itemID),
		zap.String("order_id", update.Item.OrderID),
		zap.String("status", status),
		zap.String("order_status", update.OrderStatus))

	itemEvent := &models.OrderItemStatusChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderItemStatusChanged),
		OrderID:     update.Item.OrderID,
		OrderItemID: itemID,
		VendorID:    update.Item.VendorID,
		Status:      status,
	}
	pubCtx, cancel := s.publishContext(ctx)
	err = s.events.PublishOrderItemStatusChanged(pubCtx, itemEvent)
	cancel()
	if err != nil {
		s.logger.Error("Failed to publish OrderItemStatusChanged event", zap.Error(err))
	}

	if update.OrderStatusChanged() {
		util.OrderStatusTransitions.WithLabelValues(update.OrderStatus, "aggregation").Inc()
		s.publishOrderStatusChanged(ctx, update.Item.OrderID, update.PreviousStatus, update.OrderStatus)
	}
	return true, nil
}

// UpdateOrderStatus overrides an order's status directly. The next item
// status change re-aggregates and may replace it. Returns false if the
// order does not exist.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID, status string) (bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus", "order_id", orderID, "status", status)
	defer span.End()

	if !models.IsValidStatus(status) {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	order, err := s.repo.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load order: %w", err)
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if !ok {
		return false, nil
	}

	if order.Status != status {
		util.OrderStatusTransitions.WithLabelValues(status, "admin").Inc()
		s.publishOrderStatusChanged(ctx, orderID, order.Status, status)
	}
	s.logger.Info("Order status overridden",
		zap.String("order_id", orderID),
		zap.String("from", order.Status),
		zap.String("to", status))
	return true, nil
}

// publishContext detaches event publishing from request cancellation and
// caps it at PublishTimeout. The order is already committed at this point.
func (s *OrderService) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
}

func (s *OrderService) publishOrderStatusChanged(ctx context.Context, orderID, previous, status string) {
	event := &models.OrderStatusChangedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:        orderID,
		PreviousStatus: previous,
		Status:         status,
	}
	ctx, cancel := s.publishContext(ctx)
	defer cancel()
	if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.String("order_id", orderID), zap.Error(err))
	}
}

// GetAllOrdersWithItems returns every order, newest first, with its items
// and the vendors' current display names.
func (s *OrderService) GetAllOrdersWithItems(ctx context.Context) ([]models.OrderWithItems, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	items, err := s.repo.GetOrderItemsWithVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}

	byOrder := make(map[string][]models.OrderItemWithVendor, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	result := make([]models.OrderWithItems, len(orders))
	for i, order := range orders {
		orderItems := byOrder[order.ID]
		if orderItems == nil {
			orderItems = []models.OrderItemWithVendor{}
		}
		result[i] = models.OrderWithItems{Order: order, Items: orderItems}
	}
	return result, nil
}

// DeleteOrder removes a delivered order together with its items
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return mapNotFound(err, ErrOrderNotFound)
	}
	if order.Status != models.StatusDelivered {
		return fmt.Errorf("%w: order %s is %s", ErrOrderNotDelivered, orderID, order.Status)
	}

	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return mapNotFound(err, ErrOrderNotFound)
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted", zap.String("order_id", orderID))
	return nil
}

// GetOrder retrieves an order and its items
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, mapNotFound(err, ErrOrderNotFound)
	}

	items, err := s.repo.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// GetCustomerOrders lists orders placed with the given email
func (s *OrderService) GetCustomerOrders(ctx context.Context, email string) ([]models.Order, error) {
	if strings.TrimSpace(email) == "" {
		return nil, missingField("email")
	}
	return s.repo.GetOrdersByCustomerEmail(ctx, email)
}

// orderIDAttempts bounds retries when a generated order id is taken
const orderIDAttempts = 3

// newOrderID returns a short customer-facing order reference
func newOrderID() string {
	return "CB" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
