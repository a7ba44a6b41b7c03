package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lojaju/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

// StockError names the product whose on-hand quantity cannot cover a request.
type StockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

func NewStockError(productID int64, requested int, available int) error {
	return &StockError{ProductID: productID, Requested: requested, Available: available}
}

type Repository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, code int64) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	CountCustomers(ctx context.Context) (int64, error)
	DeleteCustomer(ctx context.Context, code int64) error

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	// UpdateProduct leaves stock untouched unless quantity is non-nil.
	UpdateProduct(ctx context.Context, product domain.Product, quantity *int) (*domain.Product, error)
	// SetPromotion writes only the promotion fields; nil clears them.
	SetPromotion(ctx context.Context, id int64, promoPrice *decimal.Decimal) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	CommitSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)

	GetPaidAmount(ctx context.Context, saleID int64) (decimal.Decimal, error)
	CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	ListReceivables(ctx context.Context, customerCode *int64) ([]domain.Receivable, error)
	OutstandingTotal(ctx context.Context, customerCode *int64) (decimal.Decimal, error)

	SalesTotalSince(ctx context.Context, from time.Time) (decimal.Decimal, error)
	PaymentsTotalSince(ctx context.Context, from time.Time) (decimal.Decimal, error)
	ProfitSince(ctx context.Context, from time.Time) (decimal.Decimal, error)
}
