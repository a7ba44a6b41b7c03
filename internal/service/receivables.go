package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

// SaleStatus is OPEN while a balance remains and SETTLED once it reaches zero.
func SaleStatus(balance decimal.Decimal) string {
	if balance.IsPositive() {
		return domain.SaleStatusOpen
	}
	return domain.SaleStatusSettled
}

func (s *Service) Balance(ctx context.Context, saleID int64) (domain.BalanceResponse, error) {
	committed, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return domain.BalanceResponse{}, err
	}
	paid, err := s.repo.GetPaidAmount(ctx, saleID)
	if err != nil {
		return domain.BalanceResponse{}, err
	}
	balance := committed.Total.Sub(paid)
	return domain.BalanceResponse{
		SaleID:  saleID,
		Total:   committed.Total,
		Paid:    paid,
		Balance: balance,
		Status:  SaleStatus(balance),
	}, nil
}

// RegisterPayment records a partial or full payment. The repository repeats
// the balance check inside its own transaction.
func (s *Service) RegisterPayment(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	if !req.Amount.IsPositive() {
		return domain.Payment{}, fmt.Errorf("%w: payment amount must be greater than zero", store.ErrValidation)
	}
	amount := req.Amount.Round(2)

	current, err := s.Balance(ctx, req.SaleID)
	if err != nil {
		return domain.Payment{}, err
	}
	if amount.GreaterThan(current.Balance) {
		return domain.Payment{}, fmt.Errorf("%w: payment %s exceeds remaining balance %s", store.ErrConflict, amount.StringFixed(2), current.Balance.StringFixed(2))
	}

	payment, err := s.repo.CreatePayment(ctx, domain.Payment{
		SaleID: req.SaleID,
		Amount: amount,
		PaidAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.logger.Info("payment registered",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("sale_id", payment.SaleID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("balance", current.Balance.Sub(amount).StringFixed(2)),
	)
	s.invalidateDashboard(ctx)
	return *payment, nil
}

func (s *Service) OutstandingForCustomer(ctx context.Context, customerCode int64) (decimal.Decimal, error) {
	if _, err := s.repo.GetCustomer(ctx, customerCode); err != nil {
		return decimal.Zero, err
	}
	return s.repo.OutstandingTotal(ctx, &customerCode)
}

func (s *Service) OutstandingTotal(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.OutstandingTotal(ctx, nil)
}

// PaymentsInRange lists payments with both bounds inclusive.
func (s *Service) PaymentsInRange(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: end date is before start date", store.ErrValidation)
	}
	return s.repo.ListPayments(ctx, filter)
}

func (s *Service) ListReceivables(ctx context.Context, customerCode *int64) ([]domain.Receivable, error) {
	return s.repo.ListReceivables(ctx, customerCode)
}
