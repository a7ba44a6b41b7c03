package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("LOJAJU_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set LOJAJU_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}
	return s
}

func TestCommitSaleAndPaymentsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	customer, err := s.CreateCustomer(ctx, domain.Customer{Name: "Integração"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	product, err := s.CreateProduct(ctx, domain.Product{
		Type:      "Vestido",
		CostPrice: decimal.NewFromInt(20),
		SalePrice: decimal.NewFromInt(50),
		Quantity:  5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	var saleID int64
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM pagamentos WHERE venda_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM itens_venda WHERE venda_id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM vendas WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, product.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM clientes WHERE codigo_cliente = $1`, customer.Code)
	})

	over := domain.SaleItem{ProductID: product.ID, Quantity: 6, UnitPrice: decimal.NewFromInt(50)}
	_, err = s.CommitSale(ctx, domain.SaleDraft{CustomerCode: customer.Code, Total: over.Subtotal(), Items: []domain.SaleItem{over}})
	var stockErr *store.StockError
	if !errors.As(err, &stockErr) || stockErr.ProductID != product.ID {
		t.Fatalf("expected stock error for product %d, got %v", product.ID, err)
	}

	item := domain.SaleItem{ProductID: product.ID, Quantity: 4, UnitPrice: decimal.NewFromInt(50)}
	sale, err := s.CommitSale(ctx, domain.SaleDraft{CustomerCode: customer.Code, Total: item.Subtotal(), Items: []domain.SaleItem{item}})
	if err != nil {
		t.Fatalf("commit sale: %v", err)
	}
	saleID = sale.ID

	reloaded, err := s.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if reloaded.Quantity != 1 {
		t.Fatalf("expected stock 1 after sale, got %d", reloaded.Quantity)
	}

	got, err := s.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !got.Total.Equal(decimal.NewFromInt(200)) || len(got.Items) != 1 || got.Items[0].Quantity != 4 {
		t.Fatalf("unexpected sale %+v", got)
	}

	if _, err := s.CreatePayment(ctx, domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(150)}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if _, err := s.CreatePayment(ctx, domain.Payment{SaleID: sale.ID, Amount: decimal.NewFromInt(60)}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on overpayment, got %v", err)
	}
	paid, err := s.GetPaidAmount(ctx, sale.ID)
	if err != nil {
		t.Fatalf("paid amount: %v", err)
	}
	if !paid.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected 150 paid, got %s", paid)
	}

	if err := s.DeleteCustomer(ctx, customer.Code); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict deleting customer with sales, got %v", err)
	}

	code := customer.Code
	receivables, err := s.ListReceivables(ctx, &code)
	if err != nil {
		t.Fatalf("receivables: %v", err)
	}
	if len(receivables) != 1 || !receivables[0].Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("unexpected receivables %+v", receivables)
	}
}

func TestUpdateProductWithoutQuantityKeepsStoredStock(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	product, err := s.CreateProduct(ctx, domain.Product{
		Type:      "Casaco",
		SalePrice: decimal.NewFromInt(200),
		Quantity:  5,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, product.ID)
	})

	stale := *product
	stale.Quantity = 99
	stale.Color = "Cinza"
	updated, err := s.UpdateProduct(ctx, stale, nil)
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Quantity != 5 || updated.Color != "Cinza" {
		t.Fatalf("expected stock 5 and color Cinza, got %d %q", updated.Quantity, updated.Color)
	}

	promo := decimal.NewFromInt(150)
	promoted, err := s.SetPromotion(ctx, product.ID, &promo)
	if err != nil {
		t.Fatalf("set promotion: %v", err)
	}
	if !promoted.Promotion || promoted.Quantity != 5 {
		t.Fatalf("unexpected product after promotion: %+v", promoted)
	}

	tooHigh := decimal.NewFromInt(200)
	if _, err := s.SetPromotion(ctx, product.ID, &tooHigh); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.SetPromotion(ctx, product.ID+1_000_000, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
