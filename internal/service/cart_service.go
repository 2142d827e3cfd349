package service

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartService manages the per-session cart that checkout consumes
type CartService struct {
	repo   Repository
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(repo Repository) *CartService {
	return &CartService{repo: repo, logger: util.GetLogger()}
}

// CartView is a cart with derived totals
type CartView struct {
	CartID    string             `json:"cartId"`
	Items     []models.CartEntry `json:"items"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	ItemCount int                `json:"itemCount"`
}

func newCartView(cartID string, entries []models.CartEntry) *CartView {
	view := &CartView{CartID: cartID, Items: entries, Subtotal: decimal.Zero}
	for _, e := range entries {
		view.Subtotal = view.Subtotal.Add(e.LineTotal())
		view.ItemCount += e.Quantity
	}
	return view
}

// GetCart returns the cart's entries with subtotal and item count
func (s *CartService) GetCart(ctx context.Context, cartID string) (*CartView, error) {
	if cartID == "" {
		return nil, missingField("cart id")
	}
	entries, err := s.repo.GetCart(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return newCartView(cartID, entries), nil
}

// AddToCart snapshots the product's name, price and image into the cart.
// Adding a product already in the cart increases its quantity.
func (s *CartService) AddToCart(ctx context.Context, cartID, productID string, quantity int) (*CartView, error) {
	if cartID == "" {
		return nil, missingField("cart id")
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return nil, mapNotFound(err, ErrProductNotFound)
	}

	entry := &models.CartEntry{
		CartID:    cartID,
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Image:     product.ImageURL,
		Quantity:  quantity,
		AddedAt:   time.Now().UTC(),
	}
	if err := s.repo.AddCartEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	util.CartOperationsTotal.WithLabelValues("add").Inc()
	s.logger.Debug("Added to cart",
		zap.String("cart_id", cartID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity))
	return s.GetCart(ctx, cartID)
}

// UpdateCartItem sets an entry's quantity; zero or less removes it.
// Returns false if the product was not in the cart.
func (s *CartService) UpdateCartItem(ctx context.Context, cartID, productID string, quantity int) (bool, error) {
	if cartID == "" {
		return false, missingField("cart id")
	}
	ok, err := s.repo.SetCartQuantity(ctx, cartID, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("failed to update cart: %w", err)
	}
	util.CartOperationsTotal.WithLabelValues("update").Inc()
	return ok, nil
}

// RemoveFromCart removes a product from the cart
func (s *CartService) RemoveFromCart(ctx context.Context, cartID, productID string) (bool, error) {
	if cartID == "" {
		return false, missingField("cart id")
	}
	ok, err := s.repo.RemoveCartEntry(ctx, cartID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to remove from cart: %w", err)
	}
	util.CartOperationsTotal.WithLabelValues("remove").Inc()
	return ok, nil
}

// ClearCart empties the cart
func (s *CartService) ClearCart(ctx context.Context, cartID string) error {
	if cartID == "" {
		return missingField("cart id")
	}
	if err := s.repo.ClearCart(ctx, cartID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	util.CartOperationsTotal.WithLabelValues("clear").Inc()
	return nil
}
