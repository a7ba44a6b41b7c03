// Package sale holds the in-progress sale a cashier is building before it is
// committed to the ledger.
package sale

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/pricing"
	"lojaju/backend/internal/store"
)

// ProductLookup reads live stock and prices.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type line struct {
	productID int64
	label     string
	quantity  int
	unitPrice decimal.Decimal
}

func (l line) subtotal() decimal.Decimal {
	return l.unitPrice.Mul(decimal.NewFromInt(int64(l.quantity)))
}

// Draft is one open sale. Lines keep insertion order and hold at most one
// entry per product.
type Draft struct {
	mu       sync.Mutex
	id       string
	products ProductLookup
	customer *int64
	lines    []line
}

func NewDraft(id string, products ProductLookup) *Draft {
	return &Draft{id: id, products: products}
}

func (d *Draft) ID() string {
	return d.id
}

func (d *Draft) SelectCustomer(code int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customer = &code
}

// Customer returns the selected customer code, if any.
func (d *Draft) Customer() (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.customer == nil {
		return 0, false
	}
	return *d.customer, true
}

// AddItem adds quantity units of a product at its current effective price,
// merging into an existing line for the same product.
func (d *Draft) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}
	product, err := d.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	price := pricing.EffectivePrice(*product)
	if idx := d.indexOf(productID); idx >= 0 {
		combined := d.lines[idx].quantity + quantity
		if combined > product.Quantity {
			return store.NewStockError(productID, combined, product.Quantity)
		}
		d.lines[idx].quantity = combined
		d.lines[idx].unitPrice = price
		d.lines[idx].label = product.Label()
		return nil
	}
	if quantity > product.Quantity {
		return store.NewStockError(productID, quantity, product.Quantity)
	}
	d.lines = append(d.lines, line{
		productID: productID,
		label:     product.Label(),
		quantity:  quantity,
		unitPrice: price,
	})
	return nil
}

func (d *Draft) RemoveItem(productID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := d.indexOf(productID)
	if idx < 0 {
		return fmt.Errorf("%w: product %d is not in the sale", store.ErrNotFound, productID)
	}
	d.lines = append(d.lines[:idx], d.lines[idx+1:]...)
	return nil
}

// EditItem replaces the quantity of an existing line, re-validating against
// live stock and re-reading the effective price.
func (d *Draft) EditItem(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
	}

	d.mu.Lock()
	exists := d.indexOf(productID) >= 0
	d.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: product %d is not in the sale", store.ErrNotFound, productID)
	}

	product, err := d.products.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > product.Quantity {
		return store.NewStockError(productID, quantity, product.Quantity)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.indexOf(productID)
	if idx < 0 {
		return fmt.Errorf("%w: product %d is not in the sale", store.ErrNotFound, productID)
	}
	d.lines[idx].quantity = quantity
	d.lines[idx].unitPrice = pricing.EffectivePrice(*product)
	d.lines[idx].label = product.Label()
	return nil
}

func (d *Draft) Total() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.totalLocked()
}

func (d *Draft) totalLocked() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.lines {
		total = total.Add(l.subtotal())
	}
	return total
}

// Clear empties the draft, customer selection included.
func (d *Draft) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.customer = nil
	d.lines = nil
}

func (d *Draft) Lines() []domain.DraftLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.DraftLine, 0, len(d.lines))
	for _, l := range d.lines {
		out = append(out, domain.DraftLine{
			ProductID: l.productID,
			Label:     l.label,
			Quantity:  l.quantity,
			UnitPrice: l.unitPrice,
			Subtotal:  l.subtotal(),
		})
	}
	return out
}

func (d *Draft) View() domain.DraftView {
	lines := d.Lines()
	d.mu.Lock()
	defer d.mu.Unlock()
	view := domain.DraftView{ID: d.id, Lines: lines, Total: d.totalLocked()}
	if d.customer != nil {
		code := *d.customer
		view.CustomerCode = &code
	}
	return view
}

// Snapshot builds the ledger input from the current state. The unit prices are
// the ones recorded in the draft, not re-resolved.
func (d *Draft) Snapshot() (domain.SaleDraft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.customer == nil {
		return domain.SaleDraft{}, fmt.Errorf("%w: select a customer before finishing the sale", store.ErrValidation)
	}
	if len(d.lines) == 0 {
		return domain.SaleDraft{}, fmt.Errorf("%w: sale has no items", store.ErrValidation)
	}
	items := make([]domain.SaleItem, 0, len(d.lines))
	for _, l := range d.lines {
		items = append(items, domain.SaleItem{ProductID: l.productID, Quantity: l.quantity, UnitPrice: l.unitPrice})
	}
	return domain.SaleDraft{CustomerCode: *d.customer, Total: d.totalLocked(), Items: items}, nil
}

func (d *Draft) indexOf(productID int64) int {
	for i, l := range d.lines {
		if l.productID == productID {
			return i
		}
	}
	return -1
}
