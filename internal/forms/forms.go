// Package forms turns raw UI field strings into typed requests. Every parse
// failure wraps store.ErrValidation.
package forms

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
)

func invalid(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", store.ErrValidation, field, fmt.Sprintf(format, args...))
}

// ParseMoney accepts "12.50", "12,50", "1.234,56" and "R$ 1.234,56". More
// than two fraction digits is an error, so "1.234" is never read as 1.23.
func ParseMoney(field string, raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, invalid(field, "value is required")
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	if dot := strings.Index(s, "."); dot >= 0 && len(s)-dot-1 > 2 {
		return decimal.Zero, invalid(field, "%q has more than two decimal places", raw)
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalid(field, "%q is not a money amount", raw)
	}
	return value, nil
}

func ParseQuantity(field string, raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, invalid(field, "value is required")
	}
	qty, err := strconv.Atoi(s)
	if err != nil {
		return 0, invalid(field, "%q is not a whole number", raw)
	}
	return qty, nil
}

func ParseID(field string, raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, invalid(field, "value is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, invalid(field, "%q is not a valid code", raw)
	}
	return id, nil
}

// ParseOptionalID returns nil for an empty field.
func ParseOptionalID(field string, raw string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ParseID(field, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

var dateLayouts = []string{"02/01/2006", "2006-01-02"}

// ParseDate reads a calendar date in loc. Both the dd/mm/yyyy form used on
// screen and ISO dates are accepted.
func ParseDate(field string, raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, invalid(field, "value is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid(field, "%q is not a date (dd/mm/yyyy)", raw)
}

// DateRange parses optional from/to fields. The upper bound is moved to the
// last instant of its day so the range is inclusive.
func DateRange(fromRaw string, toRaw string, loc *time.Location) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if strings.TrimSpace(fromRaw) != "" {
		t, err := ParseDate("from", fromRaw, loc)
		if err != nil {
			return nil, nil, err
		}
		from = &t
	}
	if strings.TrimSpace(toRaw) != "" {
		t, err := ParseDate("to", toRaw, loc)
		if err != nil {
			return nil, nil, err
		}
		end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		to = &end
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, invalid("to", "end date is before start date")
	}
	return from, to, nil
}

type CustomerForm struct {
	Name  string
	Phone string
}

func (f CustomerForm) Request() (domain.CustomerCreateRequest, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return domain.CustomerCreateRequest{}, invalid("name", "value is required")
	}
	return domain.CustomerCreateRequest{Name: name, Phone: strings.TrimSpace(f.Phone)}, nil
}

type ProductForm struct {
	Type      string
	Color     string
	Size      string
	CostPrice string
	SalePrice string
	Quantity  string
}

func (f ProductForm) Request() (domain.ProductCreateRequest, error) {
	req := domain.ProductCreateRequest{
		Type:  strings.TrimSpace(f.Type),
		Color: strings.TrimSpace(f.Color),
		Size:  strings.TrimSpace(f.Size),
	}
	if req.Type == "" {
		return req, invalid("type", "value is required")
	}
	var err error
	if req.CostPrice, err = ParseMoney("cost_price", f.CostPrice); err != nil {
		return req, err
	}
	if req.SalePrice, err = ParseMoney("sale_price", f.SalePrice); err != nil {
		return req, err
	}
	if req.Quantity, err = ParseQuantity("quantity", f.Quantity); err != nil {
		return req, err
	}
	return req, nil
}

// UpdateRequest only sets the fields that were filled in.
func (f ProductForm) UpdateRequest() (domain.ProductUpdateRequest, error) {
	var req domain.ProductUpdateRequest
	if v := strings.TrimSpace(f.Type); v != "" {
		req.Type = &v
	}
	if v := strings.TrimSpace(f.Color); v != "" {
		req.Color = &v
	}
	if v := strings.TrimSpace(f.Size); v != "" {
		req.Size = &v
	}
	if strings.TrimSpace(f.CostPrice) != "" {
		v, err := ParseMoney("cost_price", f.CostPrice)
		if err != nil {
			return req, err
		}
		req.CostPrice = &v
	}
	if strings.TrimSpace(f.SalePrice) != "" {
		v, err := ParseMoney("sale_price", f.SalePrice)
		if err != nil {
			return req, err
		}
		req.SalePrice = &v
	}
	if strings.TrimSpace(f.Quantity) != "" {
		v, err := ParseQuantity("quantity", f.Quantity)
		if err != nil {
			return req, err
		}
		req.Quantity = &v
	}
	return req, nil
}

type PaymentForm struct {
	SaleID string
	Amount string
}

func (f PaymentForm) Request() (domain.PaymentRequest, error) {
	saleID, err := ParseID("sale_id", f.SaleID)
	if err != nil {
		return domain.PaymentRequest{}, err
	}
	amount, err := ParseMoney("amount", f.Amount)
	if err != nil {
		return domain.PaymentRequest{}, err
	}
	return domain.PaymentRequest{SaleID: saleID, Amount: amount}, nil
}
