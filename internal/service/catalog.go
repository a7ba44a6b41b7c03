package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/pricing"
	"lojaju/backend/internal/store"
)

func (s *Service) RegisterCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer name is required", store.ErrValidation)
	}

	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Name:         name,
		Phone:        strings.TrimSpace(req.Phone),
		RegisteredAt: s.now().UTC(),
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logger.Info("customer registered", zap.Int64("code", created.Code))
	s.invalidateDashboard(ctx)
	return *created, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, code int64) (domain.Customer, error) {
	customer, err := s.repo.GetCustomer(ctx, code)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, code int64) error {
	if err := s.repo.DeleteCustomer(ctx, code); err != nil {
		return err
	}
	s.logger.Info("customer deleted", zap.Int64("code", code))
	s.invalidateDashboard(ctx)
	return nil
}

func validateProduct(p domain.Product) error {
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("%w: product type is required", store.ErrValidation)
	}
	if p.CostPrice.IsNegative() || p.SalePrice.IsNegative() {
		return fmt.Errorf("%w: prices must not be negative", store.ErrValidation)
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", store.ErrValidation)
	}
	return nil
}

func (s *Service) RegisterProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	product := domain.Product{
		Type:      strings.TrimSpace(req.Type),
		Color:     strings.TrimSpace(req.Color),
		Size:      strings.TrimSpace(req.Size),
		CostPrice: req.CostPrice.Round(2),
		SalePrice: req.SalePrice.Round(2),
		Quantity:  req.Quantity,
	}
	if err := validateProduct(product); err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("product registered",
		zap.Int64("product_id", created.ID),
		zap.String("label", created.Label()),
		zap.Int("quantity", created.Quantity),
	)
	return *created, nil
}

// UpdateProduct replaces only the fields present in req. Stock is written
// only when req.Quantity is set. Lowering the sale price to or below an
// active promotional price clears the promotion.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	next := *existing
	if req.Type != nil {
		next.Type = strings.TrimSpace(*req.Type)
	}
	if req.Color != nil {
		next.Color = strings.TrimSpace(*req.Color)
	}
	if req.Size != nil {
		next.Size = strings.TrimSpace(*req.Size)
	}
	if req.CostPrice != nil {
		next.CostPrice = req.CostPrice.Round(2)
	}
	if req.SalePrice != nil {
		next.SalePrice = req.SalePrice.Round(2)
	}
	if req.Quantity != nil {
		next.Quantity = *req.Quantity
	}
	if err := validateProduct(next); err != nil {
		return domain.Product{}, err
	}

	hadPromotion := next.Promotion
	next = pricing.Reconcile(next)

	updated, err := s.repo.UpdateProduct(ctx, next, req.Quantity)
	if err != nil {
		return domain.Product{}, err
	}

	fields := []zap.Field{zap.Int64("product_id", updated.ID)}
	if hadPromotion && !updated.Promotion {
		fields = append(fields, zap.Bool("promotion_cleared", true))
	}
	s.logger.Info("product updated", fields...)
	s.invalidateDashboard(ctx)
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.Int64("product_id", id))
	s.invalidateDashboard(ctx)
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) EffectivePrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	product, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return pricing.EffectivePrice(*product), nil
}

func (s *Service) SetPromotion(ctx context.Context, id int64, promoPrice decimal.Decimal) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	next, err := pricing.ApplyPromotion(*existing, promoPrice)
	if err != nil {
		return domain.Product{}, err
	}
	updated, err := s.repo.SetPromotion(ctx, id, next.PromotionalPrice)
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.Info("promotion set",
		zap.Int64("product_id", id),
		zap.String("promotional_price", updated.PromotionalPrice.StringFixed(2)),
	)
	return *updated, nil
}

func (s *Service) ClearPromotion(ctx context.Context, id int64) (domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !existing.Promotion && existing.PromotionalPrice == nil {
		return *existing, nil
	}
	updated, err := s.repo.SetPromotion(ctx, id, nil)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("promotion cleared", zap.Int64("product_id", id))
	return *updated, nil
}

// ListPromotions returns products whose promotional price is in effect.
func (s *Service) ListPromotions(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if !pricing.EffectivePrice(p).Equal(p.SalePrice) {
			out = append(out, p)
		}
	}
	return out, nil
}
