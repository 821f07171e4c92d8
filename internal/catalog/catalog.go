package catalog

import (
	"fmt"

	"github.com/safar/retail-ledger/internal/errs"
	"github.com/safar/retail-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Catalog is a view over a tenant's product collection. Lookups return
// pointers into the collection so callers mutate it in place.
type Catalog struct {
	products *[]models.Product
}

func New(products *[]models.Product) *Catalog {
	return &Catalog{products: products}
}

func (c *Catalog) Product(id string) (*models.Product, error) {
	for i := range *c.products {
		if (*c.products)[i].ID == id {
			return &(*c.products)[i], nil
		}
	}
	return nil, errs.NotFound("product", id)
}

func Variant(p *models.Product, variantID string) (*models.Variant, error) {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i], nil
		}
	}
	return nil, errs.NotFound("variant", p.ID+"/"+variantID)
}

// Resolve looks up a product and, when variantID is set, one of its variants.
// A variant-bearing product cannot be addressed without a variant.
func (c *Catalog) Resolve(productID, variantID string) (*models.Product, *models.Variant, error) {
	p, err := c.Product(productID)
	if err != nil {
		return nil, nil, err
	}

	if variantID == "" {
		if p.HasVariants() {
			return nil, nil, errs.Invalid("product %q has variants, a variant id is required", productID)
		}
		return p, nil, nil
	}

	v, err := Variant(p, variantID)
	if err != nil {
		return nil, nil, err
	}
	return p, v, nil
}

// RecomputeStock re-derives a variant-bearing product's stock from its variants.
func RecomputeStock(p *models.Product) {
	if !p.HasVariants() {
		return
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	p.Stock = total
}

func CheckAggregate(p *models.Product) error {
	if !p.HasVariants() {
		return nil
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	if total != p.Stock {
		return fmt.Errorf("product %q stock %d does not match variant sum %d", p.ID, p.Stock, total)
	}
	return nil
}

// UnitPrice is the price captured on a sale line. Variants carry their own
// price; simple products use the deepest tier the quantity qualifies for.
func UnitPrice(p *models.Product, v *models.Variant, quantity int) decimal.Decimal {
	if v != nil {
		return v.Price
	}

	price := p.Price
	best := 0
	for _, tier := range p.TieredPricing {
		if quantity >= tier.MinQuantity && tier.MinQuantity > best {
			best = tier.MinQuantity
			price = tier.Price
		}
	}
	return price
}

// Upsert inserts or replaces a product definition. Editing an existing
// product keeps its stock levels and adjustment history; levels only move
// through stock adjustments. A new variant of an existing product starts at
// zero.
func (c *Catalog) Upsert(p models.Product) (*models.Product, error) {
	if p.ID == "" {
		return nil, errs.Invalid("product id is required")
	}
	if p.Price.IsNegative() || p.CostPrice.IsNegative() {
		return nil, errs.Invalid("product %q has a negative price", p.ID)
	}
	seen := make(map[string]bool, len(p.Variants))
	for _, v := range p.Variants {
		if v.ID == "" || seen[v.ID] {
			return nil, errs.Invalid("product %q has a missing or duplicate variant id", p.ID)
		}
		seen[v.ID] = true
	}

	existing, err := c.Product(p.ID)
	if err == nil {
		if err := carryStock(existing, &p); err != nil {
			return nil, err
		}
		RecomputeStock(&p)
		p.Adjustments = existing.Adjustments
		*existing = p
		return existing, nil
	}

	RecomputeStock(&p)
	p.Adjustments = nil
	*c.products = append(*c.products, p)
	return &(*c.products)[len(*c.products)-1], nil
}

func carryStock(existing, p *models.Product) error {
	if existing.HasVariants() != p.HasVariants() && existing.Stock != 0 {
		return errs.Invalid("product %q still holds %d units; adjust them to zero before changing its variants", p.ID, existing.Stock)
	}
	if !p.HasVariants() {
		p.Stock = existing.Stock
		return nil
	}

	levels := make(map[string]int, len(existing.Variants))
	for _, v := range existing.Variants {
		levels[v.ID] = v.Stock
	}
	for i := range p.Variants {
		p.Variants[i].Stock = levels[p.Variants[i].ID]
		delete(levels, p.Variants[i].ID)
	}
	for id, level := range levels {
		if level != 0 {
			return errs.Invalid("variant %q of product %q still holds %d units", id, p.ID, level)
		}
	}
	return nil
}

func (c *Catalog) All() []models.Product {
	return *c.products
}
