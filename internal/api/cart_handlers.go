package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.GetCart(c.Request.Context(), cartID(c))
	if err != nil {
		h.respondError(c, "Failed to load cart", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.carts.AddToCart(c.Request.Context(), cartID(c), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(c, "Failed to add to cart", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ok, err := h.carts.UpdateCartItem(c.Request.Context(), cartID(c), c.Param("productId"), req.Quantity)
	if err != nil {
		h.respondError(c, "Failed to update cart", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not in cart"})
		return
	}
	h.getCart(c)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	ok, err := h.carts.RemoveFromCart(c.Request.Context(), cartID(c), c.Param("productId"))
	if err != nil {
		h.respondError(c, "Failed to remove from cart", err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not in cart"})
		return
	}
	h.getCart(c)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.ClearCart(c.Request.Context(), cartID(c)); err != nil {
		h.respondError(c, "Failed to clear cart", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkout turns the caller's cart into an order
func (h *Handler) checkout(c *gin.Context) {
	var info service.CustomerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if id := currentIdentity(c); id != nil && info.CustomerEmail == "" {
		info.CustomerEmail = id.Email
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), cartID(c), info, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"orderId": order.ID,
		"order":   order,
	})
}
