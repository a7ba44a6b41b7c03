package forms

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lojaju/backend/internal/store"
)

func TestParseMoneyFormats(t *testing.T) {
	cases := map[string]string{
		"12.50":       "12.5",
		"12,50":       "12.5",
		"R$ 1.234,56": "1234.56",
		"1,234.56":    "1234.56",
		"1.234.567":   "1234567",
		" 7 ":         "7",
		"1.234,5":     "1234.5",
	}
	for raw, want := range cases {
		got, err := ParseMoney("amount", raw)
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s -> %s", raw, got)
	}
}

func TestParseMoneyRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "R$", "abc", "12,5a", "1.234", "0,005", "R$ 10,999"} {
		_, err := ParseMoney("amount", raw)
		assert.ErrorIs(t, err, store.ErrValidation, raw)
	}
}

func TestParseQuantityAndID(t *testing.T) {
	qty, err := ParseQuantity("quantity", " 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, qty)

	_, err = ParseQuantity("quantity", "2.5")
	assert.ErrorIs(t, err, store.ErrValidation)

	id, err := ParseID("code", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseID("code", "0")
	assert.ErrorIs(t, err, store.ErrValidation)

	none, err := ParseOptionalID("code", "")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestParseDateLayouts(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)

	d, err := ParseDate("date", "05/03/2026", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 5, 0, 0, 0, 0, loc), d)

	iso, err := ParseDate("date", "2026-03-05", loc)
	require.NoError(t, err)
	assert.True(t, d.Equal(iso))

	_, err = ParseDate("date", "31/02/2026", loc)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestDateRangeIsInclusive(t *testing.T) {
	from, to, err := DateRange("01/03/2026", "01/03/2026", time.UTC)
	require.NoError(t, err)
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.True(t, to.After(from.Add(23*time.Hour)))
	assert.Equal(t, 1, to.Day())

	_, _, err = DateRange("02/03/2026", "01/03/2026", time.UTC)
	assert.ErrorIs(t, err, store.ErrValidation)

	from, to, err = DateRange("", "", time.UTC)
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, to)
}

func TestProductFormRequest(t *testing.T) {
	req, err := ProductForm{Type: " Vestido ", Color: "Azul", CostPrice: "45,00", SalePrice: "R$ 89,90", Quantity: "12"}.Request()
	require.NoError(t, err)
	assert.Equal(t, "Vestido", req.Type)
	assert.True(t, req.SalePrice.Equal(decimal.RequireFromString("89.90")))
	assert.Equal(t, 12, req.Quantity)

	_, err = ProductForm{CostPrice: "1", SalePrice: "2", Quantity: "1"}.Request()
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = ProductForm{Type: "Saia", CostPrice: "1", SalePrice: "2", Quantity: "x"}.Request()
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestProductFormUpdateRequestIsPartial(t *testing.T) {
	req, err := ProductForm{SalePrice: "70"}.UpdateRequest()
	require.NoError(t, err)
	require.NotNil(t, req.SalePrice)
	assert.Nil(t, req.Type)
	assert.Nil(t, req.Quantity)
}

func TestCustomerAndPaymentForms(t *testing.T) {
	_, err := CustomerForm{Name: "   "}.Request()
	assert.ErrorIs(t, err, store.ErrValidation)

	c, err := CustomerForm{Name: " Ana ", Phone: " 1199 "}.Request()
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "1199", c.Phone)

	p, err := PaymentForm{SaleID: "7", Amount: "150,00"}.Request()
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.SaleID)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(150)))

	_, err = PaymentForm{SaleID: "x", Amount: "1"}.Request()
	assert.ErrorIs(t, err, store.ErrValidation)
}
