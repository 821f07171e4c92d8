package service

import (
	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/catalog"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/ledger"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/stock"
	"github.com/safar/retail-ledger/internal/store"
)

// Committed state is never mutated in place, so values copied out of a view
// stay valid after later writes.

func (s *Service) GetSale(actor authz.Actor, id string) (models.Sale, error) {
	var out models.Sale
	err := s.view(actor, authz.ResourceSales, func(u *store.UnitOfWork) error {
		sale, err := u.Sale(id)
		if err != nil {
			return err
		}
		out = *sale
		return nil
	})
	return out, err
}

func (s *Service) ListSales(actor authz.Actor, filter store.SaleFilter, page, pageSize int) (*store.OffsetPage, error) {
	var out *store.OffsetPage
	err := s.view(actor, authz.ResourceSales, func(u *store.UnitOfWork) error {
		out = store.ListSales(u.Sales(), filter, page, pageSize)
		return nil
	})
	return out, err
}

func (s *Service) ListExpenses(actor authz.Actor, cursor string, limit int) (*store.CursorPage, error) {
	var out *store.CursorPage
	err := s.view(actor, authz.ResourceExpenses, func(u *store.UnitOfWork) error {
		page, err := store.ListExpenses(u.Book().Expenses(), cursor, limit)
		if err != nil {
			return errs.Invalid("bad cursor: %v", err)
		}
		out = page
		return nil
	})
	return out, err
}

// LookupExpense finds the expense a source event produced.
func (s *Service) LookupExpense(actor authz.Actor, kind ledger.SourceKind, sourceID string) (models.Expense, error) {
	var out models.Expense
	err := s.view(actor, authz.ResourceExpenses, func(u *store.UnitOfWork) error {
		e, ok := u.Book().Lookup(kind, sourceID)
		if !ok {
			return errs.NotFound("expense for "+string(kind), sourceID)
		}
		out = e
		return nil
	})
	return out, err
}

func (s *Service) GetProduct(actor authz.Actor, id string) (models.Product, error) {
	var out models.Product
	err := s.view(actor, authz.ResourceInventory, func(u *store.UnitOfWork) error {
		p, err := u.Catalog().Product(id)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	return out, err
}

func (s *Service) StockHistory(actor authz.Actor, productID, variantID string) ([]models.StockAdjustmentRecord, error) {
	var out []models.StockAdjustmentRecord
	err := s.view(actor, authz.ResourceInventory, func(u *store.UnitOfWork) error {
		p, err := u.Catalog().Product(productID)
		if err != nil {
			return err
		}
		if variantID != "" {
			if _, err := catalog.Variant(p, variantID); err != nil {
				return err
			}
		}
		out = stock.History(p, variantID)
		return nil
	})
	return out, err
}

func (s *Service) GetUser(actor authz.Actor, id string) (models.User, error) {
	var out models.User
	err := s.view(actor, authz.UserResource(id), func(u *store.UnitOfWork) error {
		usr, err := u.User(id)
		if err != nil {
			return err
		}
		out = *usr
		return nil
	})
	return out, err
}

func (s *Service) GetCustomer(actor authz.Actor, id string) (models.Customer, error) {
	var out models.Customer
	err := s.view(actor, authz.ResourceCustomers, func(u *store.UnitOfWork) error {
		c, err := u.Customer(id)
		if err != nil {
			return err
		}
		out = *c
		return nil
	})
	return out, err
}
