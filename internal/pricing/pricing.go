// Package pricing resolves the unit price a product is sold at.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

// EffectivePrice returns the promotional price when the promotion flag is set
// and the promotional price is strictly below the sale price, otherwise the
// sale price.
func EffectivePrice(product domain.Product) decimal.Decimal {
	if product.Promotion && product.PromotionalPrice != nil && product.PromotionalPrice.LessThan(product.SalePrice) {
		return *product.PromotionalPrice
	}
	return product.SalePrice
}

// ValidatePromotion checks a candidate promotional price against the product.
func ValidatePromotion(product domain.Product, promoPrice decimal.Decimal) error {
	if !promoPrice.IsPositive() {
		return fmt.Errorf("%w: promotional price must be greater than zero", store.ErrValidation)
	}
	if promoPrice.GreaterThanOrEqual(product.SalePrice) {
		return fmt.Errorf("%w: promotional price %s must be below sale price %s", store.ErrConflict, promoPrice.StringFixed(2), product.SalePrice.StringFixed(2))
	}
	return nil
}

// ApplyPromotion returns a copy of product with the promotion set.
func ApplyPromotion(product domain.Product, promoPrice decimal.Decimal) (domain.Product, error) {
	if err := ValidatePromotion(product, promoPrice); err != nil {
		return product, err
	}
	price := promoPrice.Round(2)
	product.Promotion = true
	product.PromotionalPrice = &price
	return product, nil
}

func ClearPromotion(product domain.Product) domain.Product {
	product.Promotion = false
	product.PromotionalPrice = nil
	return product
}

// Reconcile drops a promotion that is no longer below the sale price, e.g.
// after the sale price was lowered.
func Reconcile(product domain.Product) domain.Product {
	if product.PromotionalPrice == nil {
		product.Promotion = false
		return product
	}
	if product.PromotionalPrice.GreaterThanOrEqual(product.SalePrice) {
		return ClearPromotion(product)
	}
	return product
}
