package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/safar/retail-ledger/internal/catalog"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/stock"
	"github.com/safar/retail-ledger/internal/store"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Policy struct {
	// AllowOversell lets completion take stock below zero.
	AllowOversell bool
	// DeferredPaymentMethods create sales that wait for approval.
	DeferredPaymentMethods []string
}

type LineRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type CreateRequest struct {
	// ID is optional; callers replaying an external order pass its id. An id
	// is accepted once, even if its sale is later deleted.
	ID            string             `json:"id,omitempty"`
	Items         []LineRequest      `json:"items"`
	CustomerID    string             `json:"customer_id,omitempty"`
	SellerID      string             `json:"seller_id"`
	Discount      decimal.Decimal    `json:"discount"`
	TaxRate       decimal.Decimal    `json:"tax_rate"`
	PaymentMethod string             `json:"payment_method"`
	Channel       models.SaleChannel `json:"channel,omitempty"`
}

type Machine struct {
	policy Policy
	stock  *stock.Engine
	now    func() time.Time
	newID  func() string
}

func NewMachine(policy Policy, engine *stock.Engine) *Machine {
	return &Machine{
		policy: policy,
		stock:  engine,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
}

func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) deferred(method string) bool {
	for _, d := range m.policy.DeferredPaymentMethods {
		if d == method {
			return true
		}
	}
	return false
}

// Create records a sale. The entry status follows the channel and payment
// method; an immediately paid POS sale is completed in the same step.
func (m *Machine) Create(u *store.UnitOfWork, actorID string, req CreateRequest) (models.Sale, error) {
	if len(req.Items) == 0 {
		return models.Sale{}, errs.Invalid("sale needs at least one item")
	}
	if req.SellerID == "" {
		return models.Sale{}, errs.Invalid("seller id is required")
	}
	if req.Discount.IsNegative() || req.TaxRate.IsNegative() {
		return models.Sale{}, errs.Invalid("discount and tax rate must not be negative")
	}
	if _, err := u.User(req.SellerID); err != nil {
		return models.Sale{}, err
	}
	if req.CustomerID != "" {
		if _, err := u.Customer(req.CustomerID); err != nil {
			return models.Sale{}, err
		}
	}

	id := req.ID
	if id == "" {
		id = m.newID()
	} else if saleID, ok := u.ExternalSale(id); ok {
		return models.Sale{}, errs.Invalid("order %q was already recorded as sale %q", id, saleID)
	} else if _, err := u.Sale(id); err == nil {
		return models.Sale{}, errs.Invalid("sale %q already exists", id)
	}

	items := make([]models.SaleLineItem, 0, len(req.Items))
	subtotal := decimal.Zero
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return models.Sale{}, errs.Invalid("quantity must be positive, got %d", line.Quantity)
		}
		p, v, err := u.Catalog().Resolve(line.ProductID, line.VariantID)
		if err != nil {
			return models.Sale{}, err
		}
		item := models.SaleLineItem{
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			Price:     catalog.UnitPrice(p, v, line.Quantity),
		}
		subtotal = subtotal.Add(item.Total())
		items = append(items, item)
	}

	if req.Discount.GreaterThan(subtotal) {
		return models.Sale{}, errs.Invalid("discount %s exceeds subtotal %s", req.Discount, subtotal)
	}
	taxable := subtotal.Sub(req.Discount)
	tax := taxable.Mul(req.TaxRate).Div(hundred).Round(2)

	channel := req.Channel
	if channel == "" {
		channel = models.ChannelPOS
	}

	sale := models.Sale{
		ID:            id,
		Timestamp:     m.now(),
		Items:         items,
		CustomerID:    req.CustomerID,
		SellerID:      req.SellerID,
		Subtotal:      subtotal,
		Tax:           tax,
		Discount:      req.Discount,
		Total:         taxable.Add(tax),
		PaymentMethod: req.PaymentMethod,
		Commission:    decimal.Zero,
	}

	switch {
	case channel == models.ChannelStorefront:
		sale.Status = models.SaleStatusClientOrder
	case m.deferred(req.PaymentMethod):
		sale.Status = models.SaleStatusPendingApproval
	default:
		if err := m.complete(u, &sale, actorID); err != nil {
			return models.Sale{}, err
		}
	}
	sale.Channel = channel

	if req.ID != "" {
		u.RecordExternalSale(req.ID, sale.ID)
	}
	u.AddSale(sale)
	return sale, nil
}

func (m *Machine) Approve(u *store.UnitOfWork, actorID, saleID string) (models.Sale, error) {
	sale, err := m.expect(u, saleID, models.SaleStatusPendingApproval, "approve")
	if err != nil {
		return models.Sale{}, err
	}
	if err := m.complete(u, sale, actorID); err != nil {
		return models.Sale{}, err
	}
	sale.DecidedBy = actorID
	return *sale, nil
}

func (m *Machine) Reject(u *store.UnitOfWork, actorID, saleID string) (models.Sale, error) {
	return m.move(u, actorID, saleID, models.SaleStatusPendingApproval, models.SaleStatusRejected, "reject")
}

// ApproveClientOrder turns a storefront order into a proforma. It never
// completes the sale and never touches stock.
func (m *Machine) ApproveClientOrder(u *store.UnitOfWork, actorID, saleID string) (models.Sale, error) {
	return m.move(u, actorID, saleID, models.SaleStatusClientOrder, models.SaleStatusProforma, "approve client order")
}

func (m *Machine) RejectClientOrder(u *store.UnitOfWork, actorID, saleID string) (models.Sale, error) {
	return m.move(u, actorID, saleID, models.SaleStatusClientOrder, models.SaleStatusRejected, "reject client order")
}

// Delete removes a sale. A completed sale gives back exactly the quantities
// it took and leaves the customer's purchase history.
func (m *Machine) Delete(u *store.UnitOfWork, actorID, saleID string) (models.Sale, error) {
	sale, err := u.Sale(saleID)
	if err != nil {
		return models.Sale{}, err
	}
	removed := *sale

	if removed.Status == models.SaleStatusCompleted {
		for _, item := range removed.Items {
			_, err := m.stock.Adjust(u.Catalog(), stock.Request{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Direction: models.DirectionAdd,
				Quantity:  item.Quantity,
				Reason:    stock.ReasonSaleRestored,
				ActorID:   actorID,
				Reference: removed.ID,
			})
			if err != nil {
				return models.Sale{}, err
			}
		}

		if removed.CustomerID != "" {
			c, err := u.Customer(removed.CustomerID)
			if err != nil {
				return models.Sale{}, err
			}
			history := c.PurchaseHistory[:0]
			for _, rec := range c.PurchaseHistory {
				if rec.SaleID != removed.ID {
					history = append(history, rec)
				}
			}
			c.PurchaseHistory = history
		}
	}

	if err := u.RemoveSale(saleID); err != nil {
		return models.Sale{}, err
	}
	return removed, nil
}

func (m *Machine) expect(u *store.UnitOfWork, saleID string, from models.SaleStatus, op string) (*models.Sale, error) {
	sale, err := u.Sale(saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != from {
		return nil, errs.Transition("sale", saleID, string(sale.Status), op)
	}
	return sale, nil
}

func (m *Machine) move(u *store.UnitOfWork, actorID, saleID string, from, to models.SaleStatus, op string) (models.Sale, error) {
	sale, err := m.expect(u, saleID, from, op)
	if err != nil {
		return models.Sale{}, err
	}
	sale.Status = to
	sale.DecidedBy = actorID
	return *sale, nil
}

// complete takes the sold quantities out of stock, fixes the commission and
// records the purchase on the customer.
func (m *Machine) complete(u *store.UnitOfWork, sale *models.Sale, actorID string) error {
	for _, item := range sale.Items {
		_, err := m.stock.Adjust(u.Catalog(), stock.Request{
			ProductID:     item.ProductID,
			VariantID:     item.VariantID,
			Direction:     models.DirectionRemove,
			Quantity:      item.Quantity,
			Reason:        stock.ReasonSaleCompleted,
			ActorID:       actorID,
			Reference:     sale.ID,
			AllowNegative: m.policy.AllowOversell,
		})
		if err != nil {
			return err
		}
	}

	commission, err := Commission(u, *sale)
	if err != nil {
		return err
	}

	now := m.now()
	sale.Commission = commission
	sale.Status = models.SaleStatusCompleted
	sale.CompletedAt = &now

	if sale.CustomerID != "" {
		c, err := u.Customer(sale.CustomerID)
		if err != nil {
			return err
		}
		c.PurchaseHistory = append(c.PurchaseHistory, models.PurchaseRecord{
			SaleID: sale.ID,
			Date:   now,
			Total:  sale.Total,
		})
	}
	return nil
}

// Commission is the sum of each line's commission share, scaled down by the
// sale discount. Owners earn none while commission tracking is off.
func Commission(u *store.UnitOfWork, sale models.Sale) (decimal.Decimal, error) {
	seller, err := u.User(sale.SellerID)
	if err != nil {
		return decimal.Zero, err
	}
	if seller.Role == models.RoleOwner && !u.Settings().CommissionTrackingEnabled {
		return decimal.Zero, nil
	}
	if !sale.Subtotal.IsPositive() {
		return decimal.Zero, nil
	}

	gross := decimal.Zero
	for _, item := range sale.Items {
		p, err := u.Catalog().Product(item.ProductID)
		if err != nil {
			return decimal.Zero, err
		}
		gross = gross.Add(item.Total().Mul(p.CommissionPercentage).Div(hundred))
	}

	ratio := sale.Subtotal.Sub(sale.Discount).Div(sale.Subtotal)
	return gross.Mul(ratio).Round(2), nil
}
