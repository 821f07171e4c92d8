package authz

import (
	"fmt"
	"strings"

	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
)

type Action string

const (
	ActionRead    Action = "read"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionPay     Action = "pay"
	// ActionConfirm covers the recipient's own answers: accepting a payment
	// offer or confirming that money arrived.
	ActionConfirm Action = "confirm"
)

const (
	ResourceSales           = "sales"
	ResourceSaleApproval    = "sales/approval"
	ResourceClientOrders    = "sales/client-orders"
	ResourceInventory       = "inventory"
	ResourceCatalog         = "catalog"
	ResourceCustomers       = "customers"
	ResourceUsers           = "users"
	ResourceDeposits        = "deposits"
	ResourceExpenseRequests = "expense-requests"
	ResourceExpenses        = "expenses"
	ResourceSettings        = "settings"
)

func WithdrawalsOf(userID string) string {
	return "users/" + userID + "/withdrawals"
}

func CustomPaymentsOf(userID string) string {
	return "users/" + userID + "/custom-payments"
}

func UserResource(userID string) string {
	return "users/" + userID
}

type Actor struct {
	ID   string
	Role models.Role
}

type Gate interface {
	HasAccess(actor Actor, resource string, action Action) bool
}

type GateFunc func(actor Actor, resource string, action Action) bool

func (f GateFunc) HasAccess(actor Actor, resource string, action Action) bool {
	return f(actor, resource, action)
}

// AllowAll is a gate for tools and tests that run without users.
var AllowAll = GateFunc(func(Actor, string, Action) bool { return true })

func Require(g Gate, actor Actor, resource string, action Action) error {
	if actor.ID == "" || !g.HasAccess(actor, resource, action) {
		return fmt.Errorf("%w: %s %q cannot %s %s", errs.ErrForbidden, actor.Role, actor.ID, action, resource)
	}
	return nil
}

// Table grants actions per role and resource pattern. A user-scoped resource
// such as users/42/withdrawals is matched as users/self/withdrawals when 42 is
// the actor, and as users/*/withdrawals otherwise. Owners may do anything.
type Table map[models.Role]map[string][]Action

func (t Table) HasAccess(actor Actor, resource string, action Action) bool {
	if actor.Role == models.RoleOwner {
		return true
	}
	for _, allowed := range t[actor.Role][pattern(actor, resource)] {
		if allowed == action {
			return true
		}
	}
	return false
}

func pattern(actor Actor, resource string) string {
	parts := strings.Split(resource, "/")
	if len(parts) < 2 || parts[0] != ResourceUsers {
		return resource
	}
	if parts[1] == actor.ID {
		parts[1] = "self"
	} else {
		parts[1] = "*"
	}
	return strings.Join(parts, "/")
}

func DefaultTable() Table {
	own := []Action{ActionRead, ActionCreate, ActionConfirm}
	return Table{
		models.RoleManager: {
			ResourceSales:                {ActionRead, ActionCreate, ActionDelete},
			ResourceSaleApproval:         {ActionApprove},
			ResourceClientOrders:         {ActionApprove},
			ResourceInventory:            {ActionRead, ActionUpdate},
			ResourceCatalog:              {ActionRead, ActionUpdate},
			ResourceCustomers:            {ActionRead, ActionUpdate},
			ResourceDeposits:             {ActionRead, ActionCreate, ActionApprove},
			ResourceExpenseRequests:      {ActionRead, ActionCreate, ActionApprove},
			ResourceExpenses:             {ActionRead},
			"users/self":                 {ActionRead},
			"users/*":                    {ActionRead},
			"users/self/withdrawals":     own,
			"users/self/custom-payments": {ActionRead, ActionConfirm},
			"users/*/withdrawals":        {ActionRead, ActionApprove},
			"users/*/custom-payments":    {ActionRead},
		},
		models.RoleStaff: {
			ResourceSales:                {ActionRead, ActionCreate},
			ResourceInventory:            {ActionRead},
			ResourceCatalog:              {ActionRead},
			ResourceCustomers:            {ActionRead, ActionUpdate},
			ResourceDeposits:             {ActionRead, ActionCreate},
			ResourceExpenseRequests:      {ActionRead, ActionCreate},
			"users/self":                 {ActionRead},
			"users/self/withdrawals":     own,
			"users/self/custom-payments": {ActionRead, ActionConfirm},
		},
		models.RoleInvestor: {
			ResourceExpenses:             {ActionRead},
			"users/self":                 {ActionRead},
			"users/self/withdrawals":     own,
			"users/self/custom-payments": {ActionRead, ActionConfirm},
		},
	}
}
