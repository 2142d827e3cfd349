package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"), c.Query("vendor_id"))
	if err != nil {
		h.respondError(c, "Failed to list products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, "Product not found", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to create product", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

type stockRequest struct {
	Change int `json:"change"`
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := h.catalog.AdjustStock(c.Request.Context(), c.Param("id"), req.Change)
	if err != nil {
		h.respondError(c, "Failed to adjust stock", err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) listVendors(c *gin.Context) {
	vendors, err := h.catalog.ListVendors(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list vendors", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (h *Handler) createVendor(c *gin.Context) {
	var req service.VendorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.catalog.CreateVendor(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to create vendor", err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (h *Handler) updateVendor(c *gin.Context) {
	var req service.VendorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.catalog.UpdateVendor(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.respondError(c, "Failed to update vendor", err)
		return
	}
	c.JSON(http.StatusOK, vendor)
}

func (h *Handler) addDonation(c *gin.Context) {
	var req service.DonationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	donation, err := h.donations.AddDonation(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, "Failed to record donation", err)
		return
	}
	c.JSON(http.StatusCreated, donation)
}

func (h *Handler) listDonations(c *gin.Context) {
	donations, err := h.donations.ListDonations(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list donations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"donations": donations})
}
