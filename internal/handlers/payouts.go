package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/ledger"
	"github.com/safar/retail-ledger/internal/middleware"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type amountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *Handlers) UpsertUser(c *gin.Context) {
	var usr models.User
	if err := c.ShouldBindJSON(&usr); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	usr.ID = c.Param("id")

	saved, err := h.svc.UpsertUser(c.Request.Context(), middleware.Actor(c), usr)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handlers) GetUser(c *gin.Context) {
	usr, err := h.svc.GetUser(middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usr)
}

func (h *Handlers) RequestWithdrawal(c *gin.Context) {
	var req struct {
		Amount decimal.Decimal         `json:"amount"`
		Source models.WithdrawalSource `json:"source"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	w, err := h.svc.RequestWithdrawal(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Amount, req.Source)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

type withdrawalStep func(ctx context.Context, actor authz.Actor, userID, id string) (models.Withdrawal, error)

func (h *Handlers) withdrawalStep(c *gin.Context, op withdrawalStep) {
	w, err := op(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("wid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *Handlers) ApproveWithdrawal(c *gin.Context) { h.withdrawalStep(c, h.svc.ApproveWithdrawal) }

func (h *Handlers) RejectWithdrawal(c *gin.Context) { h.withdrawalStep(c, h.svc.RejectWithdrawal) }

func (h *Handlers) MarkWithdrawalPaid(c *gin.Context) { h.withdrawalStep(c, h.svc.MarkWithdrawalPaid) }

func (h *Handlers) ConfirmWithdrawalReceived(c *gin.Context) {
	w, e, err := h.svc.ConfirmWithdrawalReceived(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("wid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawal": w, "expense": e})
}

func (h *Handlers) InitiateCustomPayment(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	cp, err := h.svc.InitiateCustomPayment(c.Request.Context(), middleware.Actor(c), c.Param("id"), req.Amount, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

type customPaymentStep func(ctx context.Context, actor authz.Actor, userID, id string) (models.CustomPayment, error)

func (h *Handlers) customPaymentStep(c *gin.Context, op customPaymentStep) {
	cp, err := op(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("pid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (h *Handlers) ApproveCustomPayment(c *gin.Context) {
	h.customPaymentStep(c, h.svc.ApproveCustomPayment)
}

func (h *Handlers) RejectCustomPayment(c *gin.Context) {
	h.customPaymentStep(c, h.svc.RejectCustomPayment)
}

func (h *Handlers) MarkCustomPaymentPaid(c *gin.Context) {
	h.customPaymentStep(c, h.svc.MarkCustomPaymentPaid)
}

func (h *Handlers) ConfirmCustomPaymentReceived(c *gin.Context) {
	cp, e, err := h.svc.ConfirmCustomPaymentReceived(c.Request.Context(), middleware.Actor(c), c.Param("id"), c.Param("pid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"custom_payment": cp, "expense": e})
}

func (h *Handlers) SubmitDeposit(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	d, err := h.svc.SubmitDeposit(c.Request.Context(), middleware.Actor(c), req.Amount, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handlers) decideDeposit(c *gin.Context, op func(ctx context.Context, actor authz.Actor, id string) (models.Deposit, error)) {
	d, err := op(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handlers) ApproveDeposit(c *gin.Context) { h.decideDeposit(c, h.svc.ApproveDeposit) }

func (h *Handlers) RejectDeposit(c *gin.Context) { h.decideDeposit(c, h.svc.RejectDeposit) }

func (h *Handlers) SubmitExpenseRequest(c *gin.Context) {
	var req struct {
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	r, err := h.svc.SubmitExpenseRequest(c.Request.Context(), middleware.Actor(c), req.Category, req.Amount, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handlers) ApproveExpenseRequest(c *gin.Context) {
	r, e, err := h.svc.ApproveExpenseRequest(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expense_request": r, "expense": e})
}

func (h *Handlers) RejectExpenseRequest(c *gin.Context) {
	r, err := h.svc.RejectExpenseRequest(c.Request.Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) ListExpenses(c *gin.Context) {
	page, err := h.svc.ListExpenses(middleware.Actor(c), c.Query("cursor"), queryInt(c, "limit", 20))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handlers) LookupExpense(c *gin.Context) {
	kind := ledger.SourceKind(c.Query("kind"))
	sourceID := c.Query("source_id")
	if kind == "" || sourceID == "" {
		badRequest(c, "kind and source_id are required")
		return
	}

	e, err := h.svc.LookupExpense(middleware.Actor(c), kind, sourceID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}
