package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/retail-ledger/internal/catalog"
	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
)

const (
	ReasonSaleCompleted = "sale completed"
	ReasonSaleRestored  = "sale deleted/restored"
)

type Request struct {
	ProductID string
	VariantID string
	Direction models.StockDirection
	Quantity  int
	Reason    string
	ActorID   string
	Reference string
	// AllowNegative lets a removal take the target below zero. Manual
	// adjustments never set it.
	AllowNegative bool
}

type Engine struct {
	now   func() time.Time
	newID func() string
}

func NewEngine() *Engine {
	return &Engine{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// WithClock overrides the timestamp source for adjustment records.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Adjust applies one signed quantity change to a product or variant and
// appends exactly one audit record carrying the resulting level of the target.
func (e *Engine) Adjust(c *catalog.Catalog, req Request) (int, error) {
	if req.Quantity <= 0 {
		return 0, errs.Invalid("quantity must be positive, got %d", req.Quantity)
	}
	if req.Direction != models.DirectionAdd && req.Direction != models.DirectionRemove {
		return 0, errs.Invalid("unknown direction %q", req.Direction)
	}

	p, v, err := c.Resolve(req.ProductID, req.VariantID)
	if err != nil {
		return 0, err
	}

	level := &p.Stock
	target := fmt.Sprintf("product %s", p.ID)
	if v != nil {
		level = &v.Stock
		target = fmt.Sprintf("variant %s/%s", p.ID, v.ID)
	}

	delta := req.Quantity
	if req.Direction == models.DirectionRemove {
		if !req.AllowNegative && *level < req.Quantity {
			return 0, errs.Insufficient(target, *level, req.Quantity)
		}
		delta = -delta
	}

	*level += delta
	catalog.RecomputeStock(p)

	p.Adjustments = append(p.Adjustments, models.StockAdjustmentRecord{
		ID:                  e.newID(),
		Date:                e.now(),
		ActorID:             req.ActorID,
		VariantID:           req.VariantID,
		Direction:           req.Direction,
		Quantity:            req.Quantity,
		Reason:              req.Reason,
		Reference:           req.Reference,
		ResultingStockLevel: *level,
	})

	return *level, nil
}

// History returns the audit records of a product, optionally narrowed to one variant.
func History(p *models.Product, variantID string) []models.StockAdjustmentRecord {
	if variantID == "" {
		return p.Adjustments
	}
	var out []models.StockAdjustmentRecord
	for _, rec := range p.Adjustments {
		if rec.VariantID == variantID {
			out = append(out, rec)
		}
	}
	return out
}
