package store

import (
	"github.com/safar/retail-ledger/internal/catalog"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/ledger"
	"github.com/safar/retail-ledger/internal/models"
)

// UnitOfWork is the working set of one operation. Changes become visible only
// when the operation returns without error.
type UnitOfWork struct {
	s       *state
	catalog *catalog.Catalog
	book    *ledger.Book
}

func newUnitOfWork(s *state) *UnitOfWork {
	return &UnitOfWork{
		s:       s,
		catalog: catalog.New(&s.Products),
		book:    ledger.NewBook(&s.Expenses, s.LedgerIndex),
	}
}

func (u *UnitOfWork) Catalog() *catalog.Catalog { return u.catalog }

func (u *UnitOfWork) Book() *ledger.Book { return u.book }

func (u *UnitOfWork) Settings() *models.BusinessSettings { return &u.s.Settings }

func (u *UnitOfWork) Sales() []models.Sale { return u.s.Sales }

func (u *UnitOfWork) Sale(id string) (*models.Sale, error) {
	for i := range u.s.Sales {
		if u.s.Sales[i].ID == id {
			return &u.s.Sales[i], nil
		}
	}
	return nil, errs.NotFound("sale", id)
}

func (u *UnitOfWork) AddSale(s models.Sale) *models.Sale {
	u.s.Sales = append(u.s.Sales, s)
	return &u.s.Sales[len(u.s.Sales)-1]
}

func (u *UnitOfWork) RemoveSale(id string) error {
	for i := range u.s.Sales {
		if u.s.Sales[i].ID == id {
			u.s.Sales = append(u.s.Sales[:i], u.s.Sales[i+1:]...)
			return nil
		}
	}
	return errs.NotFound("sale", id)
}

// ExternalSale reports the sale recorded for an external order id. The entry
// outlives the sale so a replayed order is recognised after a delete.
func (u *UnitOfWork) ExternalSale(orderID string) (string, bool) {
	saleID, ok := u.s.IntakeIndex[orderID]
	return saleID, ok
}

func (u *UnitOfWork) RecordExternalSale(orderID, saleID string) {
	u.s.IntakeIndex[orderID] = saleID
}

func (u *UnitOfWork) Customers() []models.Customer { return u.s.Customers }

func (u *UnitOfWork) Customer(id string) (*models.Customer, error) {
	for i := range u.s.Customers {
		if u.s.Customers[i].ID == id {
			return &u.s.Customers[i], nil
		}
	}
	return nil, errs.NotFound("customer", id)
}

// UpsertCustomer replaces the customer's details and keeps its purchase history.
func (u *UnitOfWork) UpsertCustomer(c models.Customer) *models.Customer {
	if existing, err := u.Customer(c.ID); err == nil {
		c.PurchaseHistory = existing.PurchaseHistory
		*existing = c
		return existing
	}
	c.PurchaseHistory = nil
	u.s.Customers = append(u.s.Customers, c)
	return &u.s.Customers[len(u.s.Customers)-1]
}

func (u *UnitOfWork) Users() []models.User { return u.s.Users }

func (u *UnitOfWork) User(id string) (*models.User, error) {
	for i := range u.s.Users {
		if u.s.Users[i].ID == id {
			return &u.s.Users[i], nil
		}
	}
	return nil, errs.NotFound("user", id)
}

// UpsertUser replaces the user's profile and keeps its payouts.
func (u *UnitOfWork) UpsertUser(usr models.User) *models.User {
	if existing, err := u.User(usr.ID); err == nil {
		usr.Withdrawals = existing.Withdrawals
		usr.CustomPayments = existing.CustomPayments
		*existing = usr
		return existing
	}
	usr.Withdrawals = nil
	usr.CustomPayments = nil
	u.s.Users = append(u.s.Users, usr)
	return &u.s.Users[len(u.s.Users)-1]
}

func (u *UnitOfWork) Deposits() []models.Deposit { return u.s.Deposits }

func (u *UnitOfWork) Deposit(id string) (*models.Deposit, error) {
	for i := range u.s.Deposits {
		if u.s.Deposits[i].ID == id {
			return &u.s.Deposits[i], nil
		}
	}
	return nil, errs.NotFound("deposit", id)
}

func (u *UnitOfWork) AddDeposit(d models.Deposit) *models.Deposit {
	u.s.Deposits = append(u.s.Deposits, d)
	return &u.s.Deposits[len(u.s.Deposits)-1]
}

func (u *UnitOfWork) ExpenseRequests() []models.ExpenseRequest { return u.s.ExpenseRequests }

func (u *UnitOfWork) ExpenseRequest(id string) (*models.ExpenseRequest, error) {
	for i := range u.s.ExpenseRequests {
		if u.s.ExpenseRequests[i].ID == id {
			return &u.s.ExpenseRequests[i], nil
		}
	}
	return nil, errs.NotFound("expense request", id)
}

func (u *UnitOfWork) AddExpenseRequest(r models.ExpenseRequest) *models.ExpenseRequest {
	u.s.ExpenseRequests = append(u.s.ExpenseRequests, r)
	return &u.s.ExpenseRequests[len(u.s.ExpenseRequests)-1]
}
