package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lojaju/backend/internal/cache"
	"lojaju/backend/internal/domain"
	"lojaju/backend/internal/store"
	"lojaju/backend/internal/store/memory"
)

type ledgerTestContext struct {
	svc       *Service
	customers map[string]int64
	products  map[string]int64
	draftID   string
	sale      *domain.Sale
	err       error
}

func (c *ledgerTestContext) reset() {
	c.svc = New(memory.New(), cache.NoopDashboardCache{}, time.UTC, time.Minute, zap.NewNop())
	c.customers = map[string]int64{}
	c.products = map[string]int64{}
	c.draftID = ""
	c.sale = nil
	c.err = nil
}

func (c *ledgerTestContext) aCustomer(ctx context.Context, name string) error {
	customer, err := c.svc.RegisterCustomer(ctx, domain.CustomerCreateRequest{Name: name})
	if err != nil {
		return err
	}
	c.customers[name] = customer.Code
	return nil
}

func (c *ledgerTestContext) aProductPricedWithStock(ctx context.Context, kind string, price string, stock int) error {
	salePrice, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	product, err := c.svc.RegisterProduct(ctx, domain.ProductCreateRequest{Type: kind, SalePrice: salePrice, Quantity: stock})
	if err != nil {
		return err
	}
	c.products[kind] = product.ID
	return nil
}

func (c *ledgerTestContext) anOpenSaleFor(ctx context.Context, name string) error {
	code, ok := c.customers[name]
	if !ok {
		return fmt.Errorf("unknown customer %q", name)
	}
	view := c.svc.OpenDraft()
	c.draftID = view.ID
	_, err := c.svc.SelectDraftCustomer(ctx, view.ID, code)
	return err
}

func (c *ledgerTestContext) iAdd(ctx context.Context, qty int, kind string) error {
	_, c.err = c.svc.AddDraftItem(ctx, c.draftID, c.products[kind], qty)
	return nil
}

func (c *ledgerTestContext) theStockIsSetTo(ctx context.Context, kind string, qty int) error {
	_, err := c.svc.UpdateProduct(ctx, c.products[kind], domain.ProductUpdateRequest{Quantity: &qty})
	return err
}

func (c *ledgerTestContext) iFinishTheSale(ctx context.Context) error {
	committed, err := c.svc.CommitDraft(ctx, c.draftID)
	c.err = err
	if err == nil {
		c.sale = &committed
	}
	return nil
}

func (c *ledgerTestContext) iRegisterAPaymentOf(ctx context.Context, amount string) error {
	if c.sale == nil {
		return errors.New("no committed sale")
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	_, c.err = c.svc.RegisterPayment(ctx, domain.PaymentRequest{SaleID: c.sale.ID, Amount: value})
	return nil
}

func (c *ledgerTestContext) theSaleHasLine(lines int, qty int, subtotal string) error {
	view, err := c.svc.DraftView(c.draftID)
	if err != nil {
		return err
	}
	if len(view.Lines) != lines {
		return fmt.Errorf("expected %d lines, got %d", lines, len(view.Lines))
	}
	if view.Lines[0].Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, view.Lines[0].Quantity)
	}
	return equalMoney("subtotal", view.Lines[0].Subtotal, subtotal)
}

func (c *ledgerTestContext) theSaleTotalIs(total string) error {
	view, err := c.svc.DraftView(c.draftID)
	if err != nil {
		return err
	}
	return equalMoney("total", view.Total, total)
}

func (c *ledgerTestContext) hasInStock(ctx context.Context, kind string, qty int) error {
	product, err := c.svc.GetProduct(ctx, c.products[kind])
	if err != nil {
		return err
	}
	if product.Quantity != qty {
		return fmt.Errorf("expected %d in stock, got %d", qty, product.Quantity)
	}
	return nil
}

func (c *ledgerTestContext) theCommittedSale(ctx context.Context, total string, items int, qty int) error {
	if c.err != nil {
		return fmt.Errorf("commit failed: %w", c.err)
	}
	sales, err := c.svc.ListSales(ctx, domain.SaleFilter{})
	if err != nil {
		return err
	}
	if len(sales) != 1 {
		return fmt.Errorf("expected 1 sale, got %d", len(sales))
	}
	if len(sales[0].Items) != items || sales[0].Items[0].Quantity != qty {
		return fmt.Errorf("unexpected items %+v", sales[0].Items)
	}
	return equalMoney("sale total", sales[0].Total, total)
}

func (c *ledgerTestContext) theLastActionFailedWith(kind string) error {
	target := store.ErrInsufficientStock
	if kind == "a conflict" {
		target = store.ErrConflict
	}
	if !errors.Is(c.err, target) {
		return fmt.Errorf("expected %v, got %v", target, c.err)
	}
	return nil
}

func (c *ledgerTestContext) theBalanceIs(ctx context.Context, amount string) error {
	balance, err := c.svc.Balance(ctx, c.sale.ID)
	if err != nil {
		return err
	}
	return equalMoney("balance", balance.Balance, amount)
}

func (c *ledgerTestContext) theSaleIs(ctx context.Context, status string) error {
	balance, err := c.svc.Balance(ctx, c.sale.ID)
	if err != nil {
		return err
	}
	if balance.Status != status {
		return fmt.Errorf("expected status %s, got %s", status, balance.Status)
	}
	return nil
}

func (c *ledgerTestContext) noSalesExist(ctx context.Context) error {
	sales, err := c.svc.ListSales(ctx, domain.SaleFilter{})
	if err != nil {
		return err
	}
	if len(sales) != 0 {
		return fmt.Errorf("expected no sales, got %d", len(sales))
	}
	return nil
}

func equalMoney(what string, got decimal.Decimal, want string) error {
	expected, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !got.Equal(expected) {
		return fmt.Errorf("expected %s %s, got %s", what, expected.StringFixed(2), got.StringFixed(2))
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &ledgerTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^a customer "([^"]*)"$`, tc.aCustomer)
	ctx.Step(`^a product "([^"]*)" priced (\d+\.\d+) with (\d+) in stock$`, tc.aProductPricedWithStock)
	ctx.Step(`^an open sale for "([^"]*)"$`, tc.anOpenSaleFor)

	ctx.Step(`^I add (\d+) of "([^"]*)"$`, tc.iAdd)
	ctx.Step(`^the stock of "([^"]*)" is set to (\d+)$`, tc.theStockIsSetTo)
	ctx.Step(`^I finish the sale$`, tc.iFinishTheSale)
	ctx.Step(`^I register a payment of (\d+\.\d+)$`, tc.iRegisterAPaymentOf)

	ctx.Step(`^the sale has (\d+) line with quantity (\d+) and subtotal (\d+\.\d+)$`, tc.theSaleHasLine)
	ctx.Step(`^the sale total is (\d+\.\d+)$`, tc.theSaleTotalIs)
	ctx.Step(`^"([^"]*)" has (\d+) in stock$`, tc.hasInStock)
	ctx.Step(`^the committed sale total is (\d+\.\d+) with (\d+) item of quantity (\d+)$`, tc.theCommittedSale)
	ctx.Step(`^the last action failed with (insufficient stock|a conflict)$`, tc.theLastActionFailedWith)
	ctx.Step(`^the balance is (\d+\.\d+)$`, tc.theBalanceIs)
	ctx.Step(`^the sale is "([^"]*)"$`, tc.theSaleIs)
	ctx.Step(`^no sales exist$`, tc.noSalesExist)
}

func TestLedgerFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
