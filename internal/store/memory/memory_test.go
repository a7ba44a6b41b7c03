package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

func seedSale(t *testing.T, s *Store, stock int, qty int) (*domain.Product, *domain.Sale) {
	t.Helper()
	ctx := context.Background()
	customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Ana"})
	require.NoError(t, err)
	product, err := s.CreateProduct(ctx, domain.Product{Type: "Blusa", CostPrice: decimal.NewFromInt(20), SalePrice: decimal.NewFromInt(50), Quantity: stock})
	require.NoError(t, err)

	item := domain.SaleItem{ProductID: product.ID, Quantity: qty, UnitPrice: decimal.NewFromInt(50)}
	sale, err := s.CommitSale(ctx, domain.SaleDraft{CustomerCode: customer.Code, Total: item.Subtotal(), Items: []domain.SaleItem{item}})
	require.NoError(t, err)
	return product, sale
}

func TestCommitSaleDecrementsStock(t *testing.T) {
	s := New()
	product, sale := seedSale(t, s, 5, 3)

	got, err := s.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(150)))
	require.Len(t, sale.Items, 1)
	assert.Equal(t, sale.ID, sale.Items[0].SaleID)
}

func TestCommitSaleIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Ana"})
	require.NoError(t, err)
	a, err := s.CreateProduct(ctx, domain.Product{Type: "Saia", SalePrice: decimal.NewFromInt(10), Quantity: 5})
	require.NoError(t, err)
	b, err := s.CreateProduct(ctx, domain.Product{Type: "Cinto", SalePrice: decimal.NewFromInt(10), Quantity: 1})
	require.NoError(t, err)

	items := []domain.SaleItem{
		{ProductID: a.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		{ProductID: b.ID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
	}
	_, err = s.CommitSale(ctx, domain.SaleDraft{CustomerCode: customer.Code, Total: decimal.NewFromInt(40), Items: items})

	var stockErr *store.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ProductID)

	got, err := s.GetProduct(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	sales, err := s.ListSales(ctx, domain.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestCommitSaleRejectsMismatchedTotalAndUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	s := New()
	product, err := s.CreateProduct(ctx, domain.Product{Type: "Saia", SalePrice: decimal.NewFromInt(10), Quantity: 5})
	require.NoError(t, err)
	item := domain.SaleItem{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)}

	_, err = s.CommitSale(ctx, domain.SaleDraft{CustomerCode: 42, Total: decimal.NewFromInt(10), Items: []domain.SaleItem{item}})
	assert.ErrorIs(t, err, store.ErrNotFound)

	customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Ana"})
	require.NoError(t, err)
	_, err = s.CommitSale(ctx, domain.SaleDraft{CustomerCode: customer.Code, Total: decimal.NewFromInt(99), Items: []domain.SaleItem{item}})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestCreatePaymentBoundedByBalance(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, sale := seedSale(t, s, 5, 4)

	_, err := s.CreatePayment(ctx, domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(150)})
	require.NoError(t, err)

	_, err = s.CreatePayment(ctx, domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(60)})
	assert.ErrorIs(t, err, store.ErrConflict)

	paid, err := s.GetPaidAmount(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, paid.Equal(decimal.NewFromInt(150)))

	receivables, err := s.ListReceivables(ctx, nil)
	require.NoError(t, err)
	require.Len(t, receivables, 1)
	assert.True(t, receivables[0].Balance.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "Ana", receivables[0].CustomerName)

	payment, err := s.CreatePayment(ctx, domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.Equal(t, sale.CustomerCode, payment.CustomerCode)

	receivables, err = s.ListReceivables(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, receivables)
	outstanding, err := s.OutstandingTotal(ctx, nil)
	require.NoError(t, err)
	assert.True(t, outstanding.IsZero())
}

func TestDeleteCustomerWithSalesConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	product, sale := seedSale(t, s, 5, 1)

	assert.ErrorIs(t, s.DeleteCustomer(ctx, sale.CustomerCode), store.ErrConflict)
	assert.ErrorIs(t, s.DeleteCustomer(ctx, 999), store.ErrNotFound)

	require.NoError(t, s.DeleteProduct(ctx, product.ID))
	kept, err := s.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, kept.Items[0].ProductID)
}

func TestAggregatesSince(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, sale := seedSale(t, s, 5, 2)
	_, err := s.CreatePayment(ctx, domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(30)})
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	sales, err := s.SalesTotalSince(ctx, past)
	require.NoError(t, err)
	assert.True(t, sales.Equal(decimal.NewFromInt(100)))

	received, err := s.PaymentsTotalSince(ctx, past)
	require.NoError(t, err)
	assert.True(t, received.Equal(decimal.NewFromInt(30)))

	profit, err := s.ProfitSince(ctx, past)
	require.NoError(t, err)
	assert.True(t, profit.Equal(decimal.NewFromInt(60)))

	none, err := s.SalesTotalSince(ctx, future)
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestNewSeededHasCatalog(t *testing.T) {
	s := NewSeeded()
	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, products)
	count, err := s.CountCustomers(context.Background())
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestUpdateProductKeepsStockUnlessGiven(t *testing.T) {
	ctx := context.Background()
	s := New()
	product, _ := seedSale(t, s, 5, 3)

	stale := *product
	stale.Color = "Preto"
	updated, err := s.UpdateProduct(ctx, stale, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	assert.Equal(t, "Preto", updated.Color)

	restock := 9
	updated, err = s.UpdateProduct(ctx, stale, &restock)
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Quantity)

	_, err = s.UpdateProduct(ctx, domain.Product{ID: 404}, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetPromotionWritesOnlyPromotionFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	product, _ := seedSale(t, s, 5, 3)

	promo := decimal.NewFromInt(40)
	updated, err := s.SetPromotion(ctx, product.ID, &promo)
	require.NoError(t, err)
	assert.True(t, updated.Promotion)
	assert.Equal(t, 2, updated.Quantity)

	tooHigh := decimal.NewFromInt(50)
	_, err = s.SetPromotion(ctx, product.ID, &tooHigh)
	assert.ErrorIs(t, err, store.ErrConflict)

	cleared, err := s.SetPromotion(ctx, product.ID, nil)
	require.NoError(t, err)
	assert.False(t, cleared.Promotion)
	assert.Nil(t, cleared.PromotionalPrice)

	_, err = s.SetPromotion(ctx, 404, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
