package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	customers    map[int64]domain.Customer
	products     map[int64]domain.Product
	sales        map[int64]*domain.Sale
	payments     []domain.Payment
	nextCustomer int64
	nextProduct  int64
	nextSale     int64
	nextItem     int64
	nextPayment  int64
}

func New() *Store {
	return &Store{
		customers: make(map[int64]domain.Customer),
		products:  make(map[int64]domain.Product),
		sales:     make(map[int64]*domain.Sale),
		payments:  make([]domain.Payment, 0, 64),
	}
}

// NewSeeded returns a store with a small demo catalog for dev mode.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()
	for _, c := range []domain.Customer{
		{Name: "Maria Aparecida", Phone: "(11) 98888-1234"},
		{Name: "Joana Ribeiro", Phone: "(11) 97777-4321"},
		{Name: "Carla Souza"},
	} {
		s.nextCustomer++
		c.Code = s.nextCustomer
		c.RegisteredAt = now
		s.customers[c.Code] = c
	}

	money := decimal.RequireFromString
	promo := money("69.90")
	for _, p := range []domain.Product{
		{Type: "Vestido", Color: "Azul", Size: "M", CostPrice: money("45.00"), SalePrice: money("89.90"), Quantity: 12},
		{Type: "Blusa", Color: "Branca", Size: "P", CostPrice: money("22.00"), SalePrice: money("49.90"), Quantity: 20},
		{Type: "Calça", Color: "Preta", Size: "40", CostPrice: money("55.00"), SalePrice: money("119.90"), Quantity: 8},
		{Type: "Saia", Color: "Vermelha", Size: "G", CostPrice: money("30.00"), SalePrice: money("79.90"), Quantity: 6, Promotion: true, PromotionalPrice: &promo},
		{Type: "Cinto", Color: "Marrom", Size: "U", CostPrice: money("12.00"), SalePrice: money("29.90"), Quantity: 15},
	} {
		s.nextProduct++
		p.ID = s.nextProduct
		s.products[p.ID] = p
	}
	return s
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCustomer++
	customer.Code = s.nextCustomer
	if customer.RegisteredAt.IsZero() {
		customer.RegisteredAt = time.Now().UTC()
	}
	s.customers[customer.Code] = customer
	out := customer
	return &out, nil
}

func (s *Store) GetCustomer(_ context.Context, code int64) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.Customer) int { return cmpInt64(a.Code, b.Code) })
	return out, nil
}

func (s *Store) CountCustomers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.customers)), nil
}

func (s *Store) DeleteCustomer(_ context.Context, code int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[code]; !ok {
		return store.ErrNotFound
	}
	for _, sale := range s.sales {
		if sale.CustomerCode == code {
			return fmt.Errorf("%w: customer %d has sales", store.ErrConflict, code)
		}
	}
	delete(s.customers, code)
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProduct++
	product.ID = s.nextProduct
	s.products[product.ID] = cloneProduct(product)
	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := strings.Compare(a.Type, b.Type); c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
	return out, nil
}

// UpdateProduct keeps the stored quantity unless quantity is non-nil.
func (s *Store) UpdateProduct(_ context.Context, product domain.Product, quantity *int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	product.Quantity = current.Quantity
	if quantity != nil {
		product.Quantity = *quantity
	}
	s.products[product.ID] = cloneProduct(product)
	out := cloneProduct(product)
	return &out, nil
}

func (s *Store) SetPromotion(_ context.Context, id int64, promoPrice *decimal.Decimal) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if promoPrice == nil {
		product.Promotion = false
		product.PromotionalPrice = nil
	} else {
		if !promoPrice.LessThan(product.SalePrice) {
			return nil, fmt.Errorf("%w: promotional price must be below sale price", store.ErrConflict)
		}
		price := *promoPrice
		product.Promotion = true
		product.PromotionalPrice = &price
	}
	s.products[id] = cloneProduct(product)
	out := cloneProduct(product)
	return &out, nil
}

// DeleteProduct does not look at historical sale items; their rows keep the
// product id.
func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// CommitSale checks every line against current stock before touching
// anything, so a failure leaves the store unchanged.
func (s *Store) CommitSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(draft.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", store.ErrValidation)
	}
	if _, ok := s.customers[draft.CustomerCode]; !ok {
		return nil, fmt.Errorf("%w: customer %d", store.ErrNotFound, draft.CustomerCode)
	}

	requested := make(map[int64]int, len(draft.Items))
	total := decimal.Zero
	for _, item := range draft.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", store.ErrValidation)
		}
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: unit price must not be negative", store.ErrValidation)
		}
		product, ok := s.products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", store.ErrNotFound, item.ProductID)
		}
		requested[item.ProductID] += item.Quantity
		if requested[item.ProductID] > product.Quantity {
			return nil, store.NewStockError(item.ProductID, requested[item.ProductID], product.Quantity)
		}
		total = total.Add(item.Subtotal())
	}
	if !total.Equal(draft.Total) {
		return nil, fmt.Errorf("%w: sale total %s does not match items %s", store.ErrValidation, draft.Total.StringFixed(2), total.StringFixed(2))
	}

	s.nextSale++
	sale := &domain.Sale{
		ID:           s.nextSale,
		CustomerCode: draft.CustomerCode,
		Total:        total,
		CreatedAt:    draft.CreatedAt,
		Items:        make([]domain.SaleItem, 0, len(draft.Items)),
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	for _, item := range draft.Items {
		s.nextItem++
		item.ID = s.nextItem
		item.SaleID = sale.ID
		sale.Items = append(sale.Items, item)

		product := s.products[item.ProductID]
		product.Quantity -= item.Quantity
		s.products[item.ProductID] = product
	}
	s.sales[sale.ID] = sale
	return cloneSale(sale), nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if filter.CustomerCode != nil && sale.CustomerCode != *filter.CustomerCode {
			continue
		}
		if !inRange(sale.CreatedAt, filter.From, filter.To) {
			continue
		}
		out = append(out, *cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpInt64(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetPaidAmount(_ context.Context, saleID int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sales[saleID]; !ok {
		return decimal.Zero, store.ErrNotFound
	}
	return s.paidLocked(saleID), nil
}

// CreatePayment re-checks the remaining balance under the write lock.
func (s *Store) CreatePayment(_ context.Context, payment domain.Payment) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[payment.SaleID]
	if !ok {
		return nil, fmt.Errorf("%w: sale %d", store.ErrNotFound, payment.SaleID)
	}
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be greater than zero", store.ErrValidation)
	}
	balance := sale.Total.Sub(s.paidLocked(sale.ID))
	if payment.Amount.GreaterThan(balance) {
		return nil, fmt.Errorf("%w: payment %s exceeds remaining balance %s", store.ErrConflict, payment.Amount.StringFixed(2), balance.StringFixed(2))
	}

	s.nextPayment++
	payment.ID = s.nextPayment
	payment.CustomerCode = sale.CustomerCode
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	s.payments = append(s.payments, payment)
	out := payment
	return &out, nil
}

func (s *Store) ListPayments(_ context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		if filter.CustomerCode != nil && p.CustomerCode != *filter.CustomerCode {
			continue
		}
		if !inRange(p.PaidAt, filter.From, filter.To) {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Payment) int {
		if c := a.PaidAt.Compare(b.PaidAt); c != 0 {
			return c
		}
		return cmpInt64(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) ListReceivables(_ context.Context, customerCode *int64) ([]domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Receivable, 0)
	for _, sale := range s.sales {
		if customerCode != nil && sale.CustomerCode != *customerCode {
			continue
		}
		paid := s.paidLocked(sale.ID)
		balance := sale.Total.Sub(paid)
		if !balance.IsPositive() {
			continue
		}
		out = append(out, domain.Receivable{
			SaleID:       sale.ID,
			SaleDate:     sale.CreatedAt,
			CustomerCode: sale.CustomerCode,
			CustomerName: s.customers[sale.CustomerCode].Name,
			Total:        sale.Total,
			Paid:         paid,
			Balance:      balance,
			Status:       domain.SaleStatusOpen,
		})
	}
	slices.SortFunc(out, func(a, b domain.Receivable) int {
		if c := a.SaleDate.Compare(b.SaleDate); c != 0 {
			return c
		}
		return cmpInt64(a.SaleID, b.SaleID)
	})
	return out, nil
}

func (s *Store) OutstandingTotal(_ context.Context, customerCode *int64) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.sales {
		if customerCode != nil && sale.CustomerCode != *customerCode {
			continue
		}
		balance := sale.Total.Sub(s.paidLocked(sale.ID))
		if balance.IsPositive() {
			total = total.Add(balance)
		}
	}
	return total, nil
}

func (s *Store) SalesTotalSince(_ context.Context, from time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.sales {
		if !sale.CreatedAt.Before(from) {
			total = total.Add(sale.Total)
		}
	}
	return total, nil
}

func (s *Store) PaymentsTotalSince(_ context.Context, from time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, p := range s.payments {
		if !p.PaidAt.Before(from) {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}

// ProfitSince uses the current cost price of each product; items whose
// product was deleted are skipped.
func (s *Store) ProfitSince(_ context.Context, from time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) {
			continue
		}
		for _, item := range sale.Items {
			product, ok := s.products[item.ProductID]
			if !ok {
				continue
			}
			margin := item.UnitPrice.Sub(product.CostPrice)
			total = total.Add(margin.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return total, nil
}

func (s *Store) paidLocked(saleID int64) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range s.payments {
		if p.SaleID == saleID {
			paid = paid.Add(p.Amount)
		}
	}
	return paid
}

func inRange(at time.Time, from *time.Time, to *time.Time) bool {
	if from != nil && at.Before(*from) {
		return false
	}
	if to != nil && at.After(*to) {
		return false
	}
	return true
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneProduct(src domain.Product) domain.Product {
	out := src
	if src.PromotionalPrice != nil {
		price := *src.PromotionalPrice
		out.PromotionalPrice = &price
	}
	return out
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	out := *src
	out.Items = append([]domain.SaleItem(nil), src.Items...)
	return &out
}
