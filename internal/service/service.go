package service

import (
	"context"
	"time"

	"github.com/safar/retail-ledger/internal/authz"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/safar/retail-ledger/internal/payouts"
	"github.com/safar/retail-ledger/internal/sales"
	"github.com/safar/retail-ledger/internal/stock"
	"github.com/safar/retail-ledger/internal/store"
	"go.uber.org/zap"
)

type Options struct {
	Policy sales.Policy
	// Now overrides the clock of every workflow.
	Now func() time.Time
}

// Service is the operation surface of one tenant. Every mutation passes the
// gate, then runs in a single unit of work.
type Service struct {
	tenant  *store.Tenant
	gate    authz.Gate
	sales   *sales.Machine
	stock   *stock.Engine
	payouts *payouts.Workflows
	logger  *zap.Logger
}

func New(tenant *store.Tenant, gate authz.Gate, logger *zap.Logger, opts Options) *Service {
	engine := stock.NewEngine()
	machine := sales.NewMachine(opts.Policy, engine)
	workflows := payouts.New()
	if opts.Now != nil {
		engine.WithClock(opts.Now)
		machine.WithClock(opts.Now)
		workflows.WithClock(opts.Now)
	}

	return &Service{
		tenant:  tenant,
		gate:    gate,
		sales:   machine,
		stock:   engine,
		payouts: workflows,
		logger:  logger.With(zap.String("tenant_id", tenant.ID())),
	}
}

func (s *Service) authorize(actor authz.Actor, resource string, action authz.Action) error {
	if err := authz.Require(s.gate, actor, resource, action); err != nil {
		s.logger.Warn("access denied",
			zap.String("actor_id", actor.ID),
			zap.String("resource", resource),
			zap.String("action", string(action)),
		)
		return err
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, actor authz.Actor, resource string, action authz.Action, fn func(u *store.UnitOfWork) error) error {
	if err := s.authorize(actor, resource, action); err != nil {
		return err
	}
	return s.tenant.Update(ctx, fn)
}

func (s *Service) view(actor authz.Actor, resource string, fn func(u *store.UnitOfWork) error) error {
	if err := s.authorize(actor, resource, authz.ActionRead); err != nil {
		return err
	}
	return s.tenant.View(fn)
}

// Flush retries persistence of writes that could not be saved earlier.
func (s *Service) Flush(ctx context.Context) error {
	return s.tenant.Flush(ctx)
}

func (s *Service) CreateSale(ctx context.Context, actor authz.Actor, req sales.CreateRequest) (models.Sale, error) {
	var sale models.Sale
	err := s.mutate(ctx, actor, authz.ResourceSales, authz.ActionCreate, func(u *store.UnitOfWork) error {
		var err error
		sale, err = s.sales.Create(u, actor.ID, req)
		return err
	})
	if err != nil {
		return models.Sale{}, err
	}

	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.String("status", string(sale.Status)),
		zap.String("channel", string(sale.Channel)),
		zap.String("total", sale.Total.StringFixed(2)),
	)
	return sale, nil
}

type saleOp func(u *store.UnitOfWork, actorID, saleID string) (models.Sale, error)

func (s *Service) transitionSale(ctx context.Context, actor authz.Actor, resource string, action authz.Action, saleID, event string, op saleOp) (models.Sale, error) {
	var sale models.Sale
	var from models.SaleStatus
	err := s.mutate(ctx, actor, resource, action, func(u *store.UnitOfWork) error {
		current, err := u.Sale(saleID)
		if err != nil {
			return err
		}
		from = current.Status
		sale, err = op(u, actor.ID, saleID)
		return err
	})
	if err != nil {
		return models.Sale{}, err
	}

	s.logger.Info(event,
		zap.String("sale_id", saleID),
		zap.String("actor_id", actor.ID),
		zap.String("from", string(from)),
		zap.String("to", string(sale.Status)),
	)
	return sale, nil
}

func (s *Service) ApproveSale(ctx context.Context, actor authz.Actor, saleID string) (models.Sale, error) {
	return s.transitionSale(ctx, actor, authz.ResourceSaleApproval, authz.ActionApprove, saleID, "sale approved", s.sales.Approve)
}

func (s *Service) RejectSale(ctx context.Context, actor authz.Actor, saleID string) (models.Sale, error) {
	return s.transitionSale(ctx, actor, authz.ResourceSaleApproval, authz.ActionApprove, saleID, "sale rejected", s.sales.Reject)
}

func (s *Service) ApproveClientOrder(ctx context.Context, actor authz.Actor, saleID string) (models.Sale, error) {
	return s.transitionSale(ctx, actor, authz.ResourceClientOrders, authz.ActionApprove, saleID, "client order approved", s.sales.ApproveClientOrder)
}

func (s *Service) RejectClientOrder(ctx context.Context, actor authz.Actor, saleID string) (models.Sale, error) {
	return s.transitionSale(ctx, actor, authz.ResourceClientOrders, authz.ActionApprove, saleID, "client order rejected", s.sales.RejectClientOrder)
}

func (s *Service) DeleteSale(ctx context.Context, actor authz.Actor, saleID string) error {
	var removed models.Sale
	err := s.mutate(ctx, actor, authz.ResourceSales, authz.ActionDelete, func(u *store.UnitOfWork) error {
		var err error
		removed, err = s.sales.Delete(u, actor.ID, saleID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("sale deleted",
		zap.String("sale_id", saleID),
		zap.String("actor_id", actor.ID),
		zap.String("status", string(removed.Status)),
		zap.Bool("stock_restored", removed.Status == models.SaleStatusCompleted),
	)
	return nil
}

type AdjustStockRequest struct {
	ProductID string                `json:"product_id"`
	VariantID string                `json:"variant_id,omitempty"`
	Direction models.StockDirection `json:"direction"`
	Quantity  int                   `json:"quantity"`
	Reason    string                `json:"reason"`
}

// AdjustStock applies a manual correction. It never takes stock below zero.
func (s *Service) AdjustStock(ctx context.Context, actor authz.Actor, req AdjustStockRequest) (int, error) {
	if req.Reason == "" {
		return 0, errs.Invalid("adjustment reason is required")
	}

	var level int
	err := s.mutate(ctx, actor, authz.ResourceInventory, authz.ActionUpdate, func(u *store.UnitOfWork) error {
		var err error
		level, err = s.stock.Adjust(u.Catalog(), stock.Request{
			ProductID: req.ProductID,
			VariantID: req.VariantID,
			Direction: req.Direction,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
			ActorID:   actor.ID,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("stock adjusted",
		zap.String("product_id", req.ProductID),
		zap.String("variant_id", req.VariantID),
		zap.String("direction", string(req.Direction)),
		zap.Int("quantity", req.Quantity),
		zap.Int("level", level),
	)
	return level, nil
}

func (s *Service) UpsertProduct(ctx context.Context, actor authz.Actor, p models.Product) (models.Product, error) {
	var out models.Product
	err := s.mutate(ctx, actor, authz.ResourceCatalog, authz.ActionUpdate, func(u *store.UnitOfWork) error {
		saved, err := u.Catalog().Upsert(p)
		if err != nil {
			return err
		}
		out = *saved
		return nil
	})
	if err != nil {
		return models.Product{}, err
	}
	s.logger.Info("product saved", zap.String("product_id", out.ID), zap.Int("stock", out.Stock))
	return out, nil
}

func (s *Service) UpsertUser(ctx context.Context, actor authz.Actor, usr models.User) (models.User, error) {
	if usr.ID == "" || usr.Name == "" {
		return models.User{}, errs.Invalid("user id and name are required")
	}
	switch usr.Role {
	case models.RoleOwner, models.RoleManager, models.RoleStaff, models.RoleInvestor:
	default:
		return models.User{}, errs.Invalid("unknown role %q", usr.Role)
	}

	var out models.User
	err := s.mutate(ctx, actor, authz.ResourceUsers, authz.ActionUpdate, func(u *store.UnitOfWork) error {
		out = *u.UpsertUser(usr)
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.logger.Info("user saved", zap.String("user_id", out.ID), zap.String("role", string(out.Role)))
	return out, nil
}

func (s *Service) UpsertCustomer(ctx context.Context, actor authz.Actor, c models.Customer) (models.Customer, error) {
	if c.ID == "" {
		return models.Customer{}, errs.Invalid("customer id is required")
	}

	var out models.Customer
	err := s.mutate(ctx, actor, authz.ResourceCustomers, authz.ActionUpdate, func(u *store.UnitOfWork) error {
		out = *u.UpsertCustomer(c)
		return nil
	})
	if err != nil {
		return models.Customer{}, err
	}
	s.logger.Info("customer saved", zap.String("customer_id", out.ID))
	return out, nil
}

func (s *Service) SetCommissionTracking(ctx context.Context, actor authz.Actor, enabled bool) (models.BusinessSettings, error) {
	var out models.BusinessSettings
	err := s.mutate(ctx, actor, authz.ResourceSettings, authz.ActionUpdate, func(u *store.UnitOfWork) error {
		u.Settings().CommissionTrackingEnabled = enabled
		out = *u.Settings()
		return nil
	})
	if err != nil {
		return models.BusinessSettings{}, err
	}
	s.logger.Info("commission tracking changed", zap.Bool("enabled", enabled))
	return out, nil
}
