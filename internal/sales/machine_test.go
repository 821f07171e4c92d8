package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/persist"
	"github.com/safar/retail-ledger/internal/stock"
	"github.com/safar/retail-ledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T, policy Policy) (*store.Tenant, *Machine) {
	t.Helper()
	tenant, err := store.Open(context.Background(), "shop", persist.NewMemory(), zap.NewNop(), store.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	err = tenant.Update(context.Background(), func(u *store.UnitOfWork) error {
		u.UpsertUser(models.User{ID: "owner", Name: "Olga", Role: models.RoleOwner})
		u.UpsertUser(models.User{ID: "staff", Name: "Sam", Role: models.RoleStaff})
		u.UpsertCustomer(models.Customer{ID: "c1", Name: "Carla"})

		products := []models.Product{
			{ID: "P", Name: "Plain mug", Price: dec("10"), Stock: 10, CommissionPercentage: dec("10")},
			{
				ID: "Q", Name: "Shirt", Price: dec("20"), CommissionPercentage: dec("5"),
				Variants: []models.Variant{
					{ID: "M", Attributes: []models.Attribute{{Name: "size", Value: "M"}}, Price: dec("25"), Stock: 5},
					{ID: "L", Attributes: []models.Attribute{{Name: "size", Value: "L"}}, Price: dec("25"), Stock: 7},
				},
			},
			{
				ID: "T", Name: "Tea", Price: dec("4"), Stock: 100,
				TieredPricing: []models.PriceTier{{MinQuantity: 10, Price: dec("3.5")}, {MinQuantity: 50, Price: dec("3")}},
			},
		}
		for _, p := range products {
			if _, err := u.Catalog().Upsert(p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	engine := stock.NewEngine().WithClock(func() time.Time { return fixedNow })
	return tenant, NewMachine(policy, engine).WithClock(func() time.Time { return fixedNow })
}

func update(t *testing.T, tenant *store.Tenant, fn func(u *store.UnitOfWork) error) error {
	t.Helper()
	return tenant.Update(context.Background(), fn)
}

func product(t *testing.T, tenant *store.Tenant, id string) models.Product {
	t.Helper()
	var out models.Product
	err := tenant.View(func(u *store.UnitOfWork) error {
		p, err := u.Catalog().Product(id)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	if err != nil {
		t.Fatalf("product %s: %v", id, err)
	}
	return out
}

func defaultPolicy() Policy {
	return Policy{AllowOversell: true, DeferredPaymentMethods: []string{"bank_transfer"}}
}

func TestCompletedSaleAndDeleteRestoreStock(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	var sale models.Sale
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Create(u, "staff", CreateRequest{
			Items:         []LineRequest{{ProductID: "P", Quantity: 3}},
			SellerID:      "staff",
			CustomerID:    "c1",
			PaymentMethod: "cash",
		})
		return err
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sale.Status != models.SaleStatusCompleted {
		t.Fatalf("Expected completed, got %s", sale.Status)
	}

	p := product(t, tenant, "P")
	if p.Stock != 7 {
		t.Errorf("Expected stock 7, got %d", p.Stock)
	}
	if len(p.Adjustments) != 1 {
		t.Fatalf("Expected 1 adjustment, got %d", len(p.Adjustments))
	}
	rec := p.Adjustments[0]
	if rec.Direction != models.DirectionRemove || rec.Quantity != 3 || rec.ResultingStockLevel != 7 || rec.Reference != sale.ID {
		t.Errorf("Unexpected record %+v", rec)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Delete(u, "owner", sale.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	p = product(t, tenant, "P")
	if p.Stock != 10 {
		t.Errorf("Expected stock restored to 10, got %d", p.Stock)
	}
	restore := p.Adjustments[len(p.Adjustments)-1]
	if restore.Direction != models.DirectionAdd || restore.Quantity != 3 || restore.Reason != stock.ReasonSaleRestored {
		t.Errorf("Unexpected restore record %+v", restore)
	}

	tenant.View(func(u *store.UnitOfWork) error {
		c, _ := u.Customer("c1")
		if len(c.PurchaseHistory) != 0 {
			t.Errorf("Purchase record should be removed, got %+v", c.PurchaseHistory)
		}
		if _, err := u.Sale(sale.ID); !errors.Is(err, errs.ErrNotFound) {
			t.Errorf("Sale should be gone, got %v", err)
		}
		return nil
	})
}

func TestVariantSaleRecomputesParent(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	if q := product(t, tenant, "Q"); q.Stock != 12 {
		t.Fatalf("Expected Q stock 12, got %d", q.Stock)
	}

	var sale models.Sale
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Create(u, "staff", CreateRequest{
			Items:    []LineRequest{{ProductID: "Q", VariantID: "M", Quantity: 2}},
			SellerID: "staff",
		})
		return err
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	q := product(t, tenant, "Q")
	if q.Variants[0].Stock != 3 || q.Stock != 10 {
		t.Errorf("Expected V=3 Q=10, got V=%d Q=%d", q.Variants[0].Stock, q.Stock)
	}
	if !sale.Items[0].Price.Equal(dec("25")) {
		t.Errorf("Expected variant price captured, got %s", sale.Items[0].Price)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Delete(u, "owner", sale.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	q = product(t, tenant, "Q")
	if q.Variants[0].Stock != 5 || q.Stock != 12 {
		t.Errorf("Expected V=5 Q=12 after restore, got V=%d Q=%d", q.Variants[0].Stock, q.Stock)
	}
}

func TestPendingSaleRejectedKeepsStock(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	var sale models.Sale
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Create(u, "staff", CreateRequest{
			Items:         []LineRequest{{ProductID: "P", Quantity: 4}},
			SellerID:      "staff",
			PaymentMethod: "bank_transfer",
		})
		return err
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sale.Status != models.SaleStatusPendingApproval {
		t.Fatalf("Expected pending_approval, got %s", sale.Status)
	}
	if p := product(t, tenant, "P"); p.Stock != 10 || len(p.Adjustments) != 0 {
		t.Fatalf("Pending sale must not touch stock, got %d", p.Stock)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Reject(u, "owner", sale.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}

	for name, op := range map[string]func(u *store.UnitOfWork, actor, id string) (models.Sale, error){
		"approve":              m.Approve,
		"reject":               m.Reject,
		"approve client order": m.ApproveClientOrder,
		"reject client order":  m.RejectClientOrder,
	} {
		err := update(t, tenant, func(u *store.UnitOfWork) error {
			_, err := op(u, "owner", sale.ID)
			return err
		})
		if !errors.Is(err, errs.ErrInvalidTransition) {
			t.Errorf("%s on rejected sale: expected invalid transition, got %v", name, err)
		}
	}

	if p := product(t, tenant, "P"); p.Stock != 10 {
		t.Errorf("Stock changed after rejection: %d", p.Stock)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Delete(u, "owner", sale.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Delete rejected: %v", err)
	}
	if p := product(t, tenant, "P"); p.Stock != 10 || len(p.Adjustments) != 0 {
		t.Errorf("Deleting a rejected sale must not touch stock, got %d", p.Stock)
	}
}

func TestApprovePendingSaleCompletes(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	var sale models.Sale
	update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Create(u, "staff", CreateRequest{
			Items:         []LineRequest{{ProductID: "P", Quantity: 2}},
			SellerID:      "staff",
			CustomerID:    "c1",
			PaymentMethod: "bank_transfer",
		})
		return err
	})

	err := update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Approve(u, "owner", sale.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if sale.Status != models.SaleStatusCompleted || sale.CompletedAt == nil || sale.DecidedBy != "owner" {
		t.Errorf("Unexpected approved sale %+v", sale)
	}
	if !sale.Commission.Equal(dec("2")) {
		t.Errorf("Expected commission 2, got %s", sale.Commission)
	}
	if p := product(t, tenant, "P"); p.Stock != 8 {
		t.Errorf("Expected stock 8, got %d", p.Stock)
	}
	tenant.View(func(u *store.UnitOfWork) error {
		c, _ := u.Customer("c1")
		if len(c.PurchaseHistory) != 1 || c.PurchaseHistory[0].SaleID != sale.ID {
			t.Errorf("Expected purchase record, got %+v", c.PurchaseHistory)
		}
		return nil
	})
}

func TestClientOrderNeverCompletes(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	var sale models.Sale
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Create(u, "staff", CreateRequest{
			Items:    []LineRequest{{ProductID: "P", Quantity: 1}},
			SellerID: "staff",
			Channel:  models.ChannelStorefront,
		})
		return err
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sale.Status != models.SaleStatusClientOrder {
		t.Fatalf("Expected client_order, got %s", sale.Status)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Approve(u, "owner", sale.ID)
		return err
	})
	if !errors.Is(err, errs.ErrInvalidTransition) {
		t.Fatalf("Approving a client order as a sale should fail, got %v", err)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.ApproveClientOrder(u, "owner", sale.ID)
		return err
	})
	if err != nil {
		t.Fatalf("ApproveClientOrder: %v", err)
	}
	if sale.Status != models.SaleStatusProforma {
		t.Errorf("Expected proforma, got %s", sale.Status)
	}
	if p := product(t, tenant, "P"); p.Stock != 10 {
		t.Errorf("Client order must not touch stock, got %d", p.Stock)
	}

	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Approve(u, "owner", sale.ID)
		return err
	})
	if !errors.Is(err, errs.ErrInvalidTransition) {
		t.Errorf("Proforma must be terminal, got %v", err)
	}
}

func TestExternalOrderIsRecordedOnce(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	req := CreateRequest{
		ID:       "order-7",
		Items:    []LineRequest{{ProductID: "P", Quantity: 1}},
		SellerID: "staff",
		Channel:  models.ChannelStorefront,
	}
	create := func(u *store.UnitOfWork) error {
		_, err := m.Create(u, "staff", req)
		return err
	}

	if err := update(t, tenant, create); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Delete(u, "owner", "order-7")
		return err
	})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if err := update(t, tenant, create); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("Replayed order after delete should be refused, got %v", err)
	}
	tenant.View(func(u *store.UnitOfWork) error {
		if len(u.Sales()) != 0 {
			t.Errorf("Expected no sales after replay, got %d", len(u.Sales()))
		}
		if saleID, ok := u.ExternalSale("order-7"); !ok || saleID != "order-7" {
			t.Errorf("Expected intake entry for order-7, got %q %v", saleID, ok)
		}
		return nil
	})
}

func TestOwnerCommission(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	create := func() models.Sale {
		var sale models.Sale
		err := update(t, tenant, func(u *store.UnitOfWork) error {
			var err error
			sale, err = m.Create(u, "owner", CreateRequest{
				Items:    []LineRequest{{ProductID: "P", Quantity: 5}},
				SellerID: "owner",
				Discount: dec("10"),
			})
			return err
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return sale
	}

	if sale := create(); !sale.Commission.IsZero() {
		t.Errorf("Owner commission should be zero with tracking off, got %s", sale.Commission)
	}

	update(t, tenant, func(u *store.UnitOfWork) error {
		u.Settings().CommissionTrackingEnabled = true
		return nil
	})

	// 5 x 10 at 10% is 5, scaled by (50-10)/50.
	if sale := create(); !sale.Commission.Equal(dec("4")) {
		t.Errorf("Expected commission 4, got %s", sale.Commission)
	}
}

func TestTotalsAndTieredPricing(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	var sale models.Sale
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		var err error
		sale, err = m.Create(u, "staff", CreateRequest{
			Items:    []LineRequest{{ProductID: "T", Quantity: 12}},
			SellerID: "staff",
			Discount: dec("2"),
			TaxRate:  dec("10"),
		})
		return err
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !sale.Items[0].Price.Equal(dec("3.5")) {
		t.Errorf("Expected tier price 3.5, got %s", sale.Items[0].Price)
	}
	if !sale.Subtotal.Equal(dec("42")) || !sale.Tax.Equal(dec("4")) || !sale.Total.Equal(dec("44")) {
		t.Errorf("Unexpected totals subtotal=%s tax=%s total=%s", sale.Subtotal, sale.Tax, sale.Total)
	}
}

func TestOversellPolicy(t *testing.T) {
	req := CreateRequest{Items: []LineRequest{{ProductID: "P", Quantity: 3}, {ProductID: "Q", VariantID: "M", Quantity: 6}}, SellerID: "staff"}

	tenant, m := setup(t, Policy{AllowOversell: false})
	err := update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Create(u, "staff", req)
		return err
	})
	if !errors.Is(err, errs.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got %v", err)
	}
	if p := product(t, tenant, "P"); p.Stock != 10 || len(p.Adjustments) != 0 {
		t.Errorf("Failed completion must leave no partial effect, got stock %d", p.Stock)
	}

	tenant, m = setup(t, Policy{AllowOversell: true})
	err = update(t, tenant, func(u *store.UnitOfWork) error {
		_, err := m.Create(u, "staff", req)
		return err
	})
	if err != nil {
		t.Fatalf("Create with oversell: %v", err)
	}
	if q := product(t, tenant, "Q"); q.Variants[0].Stock != -1 || q.Stock != 6 {
		t.Errorf("Expected V=-1 Q=6, got V=%d Q=%d", q.Variants[0].Stock, q.Stock)
	}
}

func TestCreateRejectsBadReferences(t *testing.T) {
	tenant, m := setup(t, defaultPolicy())

	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"missing product", CreateRequest{Items: []LineRequest{{ProductID: "nope", Quantity: 1}}, SellerID: "staff"}, errs.ErrNotFound},
		{"missing variant", CreateRequest{Items: []LineRequest{{ProductID: "Q", VariantID: "XL", Quantity: 1}}, SellerID: "staff"}, errs.ErrNotFound},
		{"variant required", CreateRequest{Items: []LineRequest{{ProductID: "Q", Quantity: 1}}, SellerID: "staff"}, errs.ErrInvalidInput},
		{"missing seller", CreateRequest{Items: []LineRequest{{ProductID: "P", Quantity: 1}}, SellerID: "ghost"}, errs.ErrNotFound},
		{"missing customer", CreateRequest{Items: []LineRequest{{ProductID: "P", Quantity: 1}}, SellerID: "staff", CustomerID: "ghost"}, errs.ErrNotFound},
		{"zero quantity", CreateRequest{Items: []LineRequest{{ProductID: "P", Quantity: 0}}, SellerID: "staff"}, errs.ErrInvalidInput},
		{"no items", CreateRequest{SellerID: "staff"}, errs.ErrInvalidInput},
		{"discount too big", CreateRequest{Items: []LineRequest{{ProductID: "P", Quantity: 1}}, SellerID: "staff", Discount: dec("11")}, errs.ErrInvalidInput},
	}

	for _, tt := range tests {
		err := update(t, tenant, func(u *store.UnitOfWork) error {
			_, err := m.Create(u, "staff", tt.req)
			return err
		})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}

	tenant.View(func(u *store.UnitOfWork) error {
		if len(u.Sales()) != 0 {
			t.Errorf("No sale should be recorded, got %d", len(u.Sales()))
		}
		return nil
	})
}
