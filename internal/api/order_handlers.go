package api

import (
	"net/http"
	"strings"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// submitOrder handles checkout submissions that carry their own item list
func (h *Handler) submitOrder(c *gin.Context) {
	var req service.CheckoutSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	if id := currentIdentity(c); id != nil && req.CustomerEmail == "" {
		req.CustomerEmail = id.Email
	}

	order, err := h.orders.SubmitOrder(c.Request.Context(), req)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "orderId": order.ID})
}

// listMyOrders lists the caller's orders by email
func (h *Handler) listMyOrders(c *gin.Context) {
	orders, err := h.orders.GetCustomerOrders(c.Request.Context(), currentIdentity(c).Email)
	if err != nil {
		h.respondError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder returns an order with its items. Customers only see their own.
func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Order not found", err)
		return
	}

	id := currentIdentity(c)
	if !id.IsAdmin() && !strings.EqualFold(order.CustomerEmail, id.Email) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// updateOrderStatus handles the admin status override
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ok, err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// vendorOrders lists the caller's vendor line items. Admins pick the
// vendor with ?vendor_id=.
func (h *Handler) vendorOrders(c *gin.Context) {
	vendorID, ok := h.vendorScope(c)
	if !ok {
		return
	}

	items, err := h.orders.GetOrdersForVendor(c.Request.Context(), vendorID)
	if err != nil {
		h.respondError(c, "Failed to load vendor orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendorId": vendorID, "items": items})
}

// updateItemStatus lets a vendor advance its own line item
func (h *Handler) updateItemStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	itemID := c.Param("id")

	if id := currentIdentity(c); !id.IsAdmin() {
		vendorID, ok := h.vendorScope(c)
		if !ok {
			return
		}
		owned, err := h.ownsItem(c, vendorID, itemID)
		if err != nil {
			h.respondOrderError(c, err)
			return
		}
		if !owned {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order item not found"})
			return
		}
	}

	ok, err := h.orders.UpdateItemStatus(c.Request.Context(), itemID, req.Status)
	if err != nil {
		h.respondOrderError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "order item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) vendorScope(c *gin.Context) (string, bool) {
	id := currentIdentity(c)
	if id.IsAdmin() {
		if v := c.Query("vendor_id"); v != "" {
			return v, true
		}
	}
	if id.VendorID == nil || *id.VendorID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "No vendor linked to this account"})
		return "", false
	}
	return *id.VendorID, true
}

func (h *Handler) ownsItem(c *gin.Context, vendorID, itemID string) (bool, error) {
	items, err := h.orders.GetOrdersForVendor(c.Request.Context(), vendorID)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.ID == itemID {
			return true, nil
		}
	}
	return false, nil
}

// allOrders returns every order with its items and vendor names
func (h *Handler) allOrders(c *gin.Context) {
	orders, err := h.orders.GetAllOrdersWithItems(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.orders.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.respondOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
