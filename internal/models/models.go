package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleStaff    Role = "staff"
	RoleInvestor Role = "investor"
)

type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type PriceTier struct {
	MinQuantity int             `json:"min_quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Variant struct {
	ID         string          `json:"id"`
	Attributes []Attribute     `json:"attributes"`
	Price      decimal.Decimal `json:"price"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	Stock      int             `json:"stock"`
}

type StockDirection string

const (
	DirectionAdd    StockDirection = "add"
	DirectionRemove StockDirection = "remove"
)

type StockAdjustmentRecord struct {
	ID                  string         `json:"id"`
	Date                time.Time      `json:"date"`
	ActorID             string         `json:"actor_id"`
	VariantID           string         `json:"variant_id,omitempty"`
	Direction           StockDirection `json:"direction"`
	Quantity            int            `json:"quantity"`
	Reason              string         `json:"reason"`
	Reference           string         `json:"reference,omitempty"`
	ResultingStockLevel int            `json:"resulting_stock_level"`
}

type Product struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name"`
	Category             string                  `json:"category"`
	Price                decimal.Decimal         `json:"price"`
	CostPrice            decimal.Decimal         `json:"cost_price"`
	Stock                int                     `json:"stock"`
	CommissionPercentage decimal.Decimal         `json:"commission_percentage"`
	TieredPricing        []PriceTier             `json:"tiered_pricing,omitempty"`
	Variants             []Variant               `json:"variants,omitempty"`
	Adjustments          []StockAdjustmentRecord `json:"adjustments,omitempty"`
}

func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

type SaleStatus string

const (
	SaleStatusCompleted       SaleStatus = "completed"
	SaleStatusPendingApproval SaleStatus = "pending_approval"
	SaleStatusClientOrder     SaleStatus = "client_order"
	SaleStatusProforma        SaleStatus = "proforma"
	SaleStatusRejected        SaleStatus = "rejected"
)

type SaleChannel string

const (
	ChannelPOS        SaleChannel = "pos"
	ChannelStorefront SaleChannel = "storefront"
)

type SaleLineItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (l SaleLineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Sale struct {
	ID            string          `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Items         []SaleLineItem  `json:"items"`
	CustomerID    string          `json:"customer_id,omitempty"`
	SellerID      string          `json:"seller_id"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Commission    decimal.Decimal `json:"commission"`
	Status        SaleStatus      `json:"status"`
	Channel       SaleChannel     `json:"channel"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	DecidedBy     string          `json:"decided_by,omitempty"`
}

type PurchaseRecord struct {
	SaleID string          `json:"sale_id"`
	Date   time.Time       `json:"date"`
	Total  decimal.Decimal `json:"total"`
}

type Customer struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	PurchaseHistory []PurchaseRecord `json:"purchase_history,omitempty"`
}

type WithdrawalSource string

const (
	SourceCommission WithdrawalSource = "commission"
	SourceInvestment WithdrawalSource = "investment"
)

type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalRejected  WithdrawalStatus = "rejected"
	WithdrawalPaid      WithdrawalStatus = "paid"
	WithdrawalCompleted WithdrawalStatus = "completed"
)

type Withdrawal struct {
	ID     string           `json:"id"`
	Date   time.Time        `json:"date"`
	Amount decimal.Decimal  `json:"amount"`
	Source WithdrawalSource `json:"source"`
	Status WithdrawalStatus `json:"status"`
}

type CustomPaymentStatus string

const (
	CustomPaymentPendingUserApproval CustomPaymentStatus = "pending_user_approval"
	CustomPaymentRejectedByUser      CustomPaymentStatus = "rejected_by_user"
	CustomPaymentApprovedByUser      CustomPaymentStatus = "approved_by_user"
	CustomPaymentPaid                CustomPaymentStatus = "paid"
	CustomPaymentCompleted           CustomPaymentStatus = "completed"
)

type CustomPayment struct {
	ID          string              `json:"id"`
	Date        time.Time           `json:"date"`
	Amount      decimal.Decimal     `json:"amount"`
	Description string              `json:"description"`
	InitiatorID string              `json:"initiator_id"`
	Status      CustomPaymentStatus `json:"status"`
}

type User struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Role           Role            `json:"role"`
	Withdrawals    []Withdrawal    `json:"withdrawals,omitempty"`
	CustomPayments []CustomPayment `json:"custom_payments,omitempty"`
}

// ApprovalStatus is shared by deposits and expense requests.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type Deposit struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	SubmitterID string          `json:"submitter_id"`
	Status      ApprovalStatus  `json:"status"`
	DecidedBy   string          `json:"decided_by,omitempty"`
}

type ExpenseRequest struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	RequesterID string          `json:"requester_id"`
	Status      ApprovalStatus  `json:"status"`
	ApproverID  string          `json:"approver_id,omitempty"`
}

type Expense struct {
	ID           string          `json:"id"`
	Date         time.Time       `json:"date"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	SourceKind   string          `json:"source_kind,omitempty"`
	SourceID     string          `json:"source_id,omitempty"`
	AttributedTo string          `json:"attributed_to,omitempty"`
}

type BusinessSettings struct {
	CommissionTrackingEnabled bool `json:"commission_tracking_enabled"`
}

const (
	CategoryInvestorPayout = "Investor Payout"
	CategoryStaffPayout    = "Staff Payout"
)
