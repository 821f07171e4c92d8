package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/service"
	"github.com/safar/retail-ledger/internal/store"
	"go.uber.org/zap"
)

type Handlers struct {
	svc    *service.Service
	logger *zap.Logger
}

func New(svc *service.Service, logger *zap.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// Register mounts every operation under rg. rg must already run the auth middleware.
func (h *Handlers) Register(rg *gin.RouterGroup) {
	rg.POST("/sales", h.CreateSale)
	rg.GET("/sales", h.ListSales)
	rg.GET("/sales/:id", h.GetSale)
	rg.DELETE("/sales/:id", h.DeleteSale)
	rg.POST("/sales/:id/approve", h.ApproveSale)
	rg.POST("/sales/:id/reject", h.RejectSale)
	rg.POST("/sales/:id/client-order/approve", h.ApproveClientOrder)
	rg.POST("/sales/:id/client-order/reject", h.RejectClientOrder)

	rg.PUT("/products/:id", h.UpsertProduct)
	rg.GET("/products/:id", h.GetProduct)
	rg.GET("/products/:id/history", h.StockHistory)
	rg.POST("/inventory/adjustments", h.AdjustStock)

	rg.PUT("/users/:id", h.UpsertUser)
	rg.GET("/users/:id", h.GetUser)
	rg.POST("/users/:id/withdrawals", h.RequestWithdrawal)
	rg.POST("/users/:id/withdrawals/:wid/approve", h.ApproveWithdrawal)
	rg.POST("/users/:id/withdrawals/:wid/reject", h.RejectWithdrawal)
	rg.POST("/users/:id/withdrawals/:wid/pay", h.MarkWithdrawalPaid)
	rg.POST("/users/:id/withdrawals/:wid/confirm", h.ConfirmWithdrawalReceived)
	rg.POST("/users/:id/custom-payments", h.InitiateCustomPayment)
	rg.POST("/users/:id/custom-payments/:pid/approve", h.ApproveCustomPayment)
	rg.POST("/users/:id/custom-payments/:pid/reject", h.RejectCustomPayment)
	rg.POST("/users/:id/custom-payments/:pid/pay", h.MarkCustomPaymentPaid)
	rg.POST("/users/:id/custom-payments/:pid/confirm", h.ConfirmCustomPaymentReceived)

	rg.PUT("/customers/:id", h.UpsertCustomer)
	rg.GET("/customers/:id", h.GetCustomer)

	rg.POST("/deposits", h.SubmitDeposit)
	rg.POST("/deposits/:id/approve", h.ApproveDeposit)
	rg.POST("/deposits/:id/reject", h.RejectDeposit)

	rg.POST("/expense-requests", h.SubmitExpenseRequest)
	rg.POST("/expense-requests/:id/approve", h.ApproveExpenseRequest)
	rg.POST("/expense-requests/:id/reject", h.RejectExpenseRequest)

	rg.GET("/expenses", h.ListExpenses)
	rg.GET("/expenses/lookup", h.LookupExpense)

	rg.PUT("/settings/commission-tracking", h.SetCommissionTracking)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidTransition), errors.Is(err, errs.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
