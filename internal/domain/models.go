package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	Code         int64     `json:"code"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type Product struct {
	ID               int64            `json:"id"`
	Type             string           `json:"type"`
	Color            string           `json:"color"`
	Size             string           `json:"size"`
	CostPrice        decimal.Decimal  `json:"cost_price"`
	SalePrice        decimal.Decimal  `json:"sale_price"`
	Quantity         int              `json:"quantity"`
	Promotion        bool             `json:"promotion"`
	PromotionalPrice *decimal.Decimal `json:"promotional_price,omitempty"`
}

// Label is the short description shown in product pickers.
func (p Product) Label() string {
	label := p.Type
	if p.Color != "" {
		label += " " + p.Color
	}
	if p.Size != "" {
		label += " " + p.Size
	}
	return label
}

type ProductCreateRequest struct {
	Type      string          `json:"type"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
	CostPrice decimal.Decimal `json:"cost_price"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Quantity  int             `json:"quantity"`
}

type ProductUpdateRequest struct {
	Type      *string          `json:"type,omitempty"`
	Color     *string          `json:"color,omitempty"`
	Size      *string          `json:"size,omitempty"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
}

type PromotionRequest struct {
	PromotionalPrice decimal.Decimal `json:"promotional_price"`
}

type SaleItem struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i SaleItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Sale struct {
	ID           int64           `json:"id"`
	CustomerCode int64           `json:"customer_code"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []SaleItem      `json:"items"`
}

// SaleDraft is what the ledger committer persists: the header fields plus the
// draft lines with their captured unit prices.
type SaleDraft struct {
	CustomerCode int64
	Total        decimal.Decimal
	CreatedAt    time.Time
	Items        []SaleItem
}

type SaleFilter struct {
	CustomerCode *int64
	From         *time.Time
	To           *time.Time
	Limit        int
}

type Payment struct {
	ID           int64           `json:"id"`
	CustomerCode int64           `json:"customer_code"`
	SaleID       int64           `json:"sale_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAt       time.Time       `json:"paid_at"`
}

type PaymentRequest struct {
	SaleID int64           `json:"sale_id"`
	Amount decimal.Decimal `json:"amount"`
}

type PaymentFilter struct {
	CustomerCode *int64
	From         *time.Time
	To           *time.Time
}

type Receivable struct {
	SaleID       int64           `json:"sale_id"`
	SaleDate     time.Time       `json:"sale_date"`
	CustomerCode int64           `json:"customer_code"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
	Status       string          `json:"status"`
}

type BalanceResponse struct {
	SaleID  int64           `json:"sale_id"`
	Total   decimal.Decimal `json:"total"`
	Paid    decimal.Decimal `json:"paid"`
	Balance decimal.Decimal `json:"balance"`
	Status  string          `json:"status"`
}

type DraftLine struct {
	ProductID int64           `json:"product_id"`
	Label     string          `json:"label"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type DraftView struct {
	ID           string          `json:"id"`
	CustomerCode *int64          `json:"customer_code,omitempty"`
	Lines        []DraftLine     `json:"lines"`
	Total        decimal.Decimal `json:"total"`
}

type PeriodTotals struct {
	Month   decimal.Decimal `json:"month"`
	Quarter decimal.Decimal `json:"quarter"`
}

type DashboardSummary struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	Timezone         string          `json:"timezone"`
	MonthStart       time.Time       `json:"month_start"`
	QuarterStart     time.Time       `json:"quarter_start"`
	Customers        int64           `json:"customers"`
	Sales            PeriodTotals    `json:"sales"`
	Received         PeriodTotals    `json:"received"`
	Profit           PeriodTotals    `json:"profit"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
}

const (
	SaleStatusOpen    = "OPEN"
	SaleStatusSettled = "SETTLED"
)
