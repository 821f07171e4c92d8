package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/middleware"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/sales"
	"github.com/safar/retail-ledger/internal/service"
	"github.com/safar/retail-ledger/internal/store"
	"github.com/shopspring/decimal"
)

// posSaleRequest is a sale rung up at the till. The seller is always the
// authenticated caller; ids and channels are reserved for storefront intake.
type posSaleRequest struct {
	Items         []sales.LineRequest `json:"items"`
	CustomerID    string              `json:"customer_id"`
	Discount      decimal.Decimal     `json:"discount"`
	TaxRate       decimal.Decimal     `json:"tax_rate"`
	PaymentMethod string              `json:"payment_method"`
}

func (h *Handlers) CreateSale(c *gin.Context) {
	var req posSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	actor := middleware.Actor(c)
	sale, err := h.svc.CreateSale(c.Request.Context(), actor, sales.CreateRequest{
		Items:         req.Items,
		CustomerID:    req.CustomerID,
		SellerID:      actor.ID,
		Discount:      req.Discount,
		TaxRate:       req.TaxRate,
		PaymentMethod: req.PaymentMethod,
		Channel:       models.ChannelPOS,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (h *Handlers) ListSales(c *gin.Context) {
	filter := store.SaleFilter{
		Status:     models.SaleStatus(c.Query("status")),
		CustomerID: c.Query("customer_id"),
		SellerID:   c.Query("seller_id"),
	}

	page, err := h.svc.ListSales(middleware.Actor(c), filter, queryInt(c, "page", 1), queryInt(c, "page_size", 20))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) GetSale(c *gin.Context) {
	sale, err := h.svc.GetSale(middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handlers) DeleteSale(c *gin.Context) {
	if err := h.svc.DeleteSale(c.Request.Context(), middleware.Actor(c), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type saleTransition func(ctx context.Context, actor authz.Actor, saleID string) (models.Sale, error)

func (h *Handlers) saleTransition(c *gin.Context, op saleTransition) {
	sale, err := op(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handlers) ApproveSale(c *gin.Context) { h.saleTransition(c, h.svc.ApproveSale) }

func (h *Handlers) RejectSale(c *gin.Context) { h.saleTransition(c, h.svc.RejectSale) }

func (h *Handlers) ApproveClientOrder(c *gin.Context) { h.saleTransition(c, h.svc.ApproveClientOrder) }

func (h *Handlers) RejectClientOrder(c *gin.Context) { h.saleTransition(c, h.svc.RejectClientOrder) }

func (h *Handlers) UpsertProduct(c *gin.Context) {
	var p models.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	p.ID = c.Param("id")

	saved, err := h.svc.UpsertProduct(c.Request.Context(), middleware.Actor(c), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handlers) GetProduct(c *gin.Context) {
	p, err := h.svc.GetProduct(middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handlers) StockHistory(c *gin.Context) {
	history, err := h.svc.StockHistory(middleware.Actor(c), c.Param("id"), c.Query("variant_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if history == nil {
		history = []models.StockAdjustmentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"items": history})
}

func (h *Handlers) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	level, err := h.svc.AdjustStock(c.Request.Context(), middleware.Actor(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock": level})
}

func (h *Handlers) UpsertCustomer(c *gin.Context) {
	var cust models.Customer
	if err := c.ShouldBindJSON(&cust); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	cust.ID = c.Param("id")

	saved, err := h.svc.UpsertCustomer(c.Request.Context(), middleware.Actor(c), cust)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handlers) GetCustomer(c *gin.Context) {
	cust, err := h.svc.GetCustomer(middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

func (h *Handlers) SetCommissionTracking(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	settings, err := h.svc.SetCommissionTracking(c.Request.Context(), middleware.Actor(c), req.Enabled)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
