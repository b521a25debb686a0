package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func items(prices ...string) []InvoiceItem {
	result := make([]InvoiceItem, 0, len(prices))
	for _, p := range prices {
		result = append(result, InvoiceItem{Quantity: 1, UnitPrice: dec(p)})
	}
	return result
}

func TestComputeTotals(t *testing.T) {
	cases := []struct {
		name     string
		items    []InvoiceItem
		dtype    string
		dvalue   string
		tax      string
		subtotal string
		discount string
		taxAmt   string
		total    string
	}{
		{"no discount", items("100", "50.50"), DiscountNone, "0", "0", "150.50", "0.00", "0.00", "150.50"},
		{"percentage", items("200"), DiscountPercentage, "10", "5", "200.00", "20.00", "9.00", "189.00"},
		{"fixed", items("80", "20"), DiscountFixed, "15", "18", "100.00", "15.00", "15.30", "100.30"},
		{"fixed capped", items("30"), DiscountFixed, "50", "10", "30.00", "30.00", "0.00", "0.00"},
		{"rounding", items("33.33", "33.33", "33.33"), DiscountPercentage, "12.5", "7.5", "99.99", "12.50", "6.56", "94.05"},
		{"quantity", []InvoiceItem{{Quantity: 3, UnitPrice: dec("12.345")}}, DiscountNone, "0", "0", "37.04", "0.00", "0.00", "37.04"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tot, err := ComputeTotals(tc.items, tc.dtype, dec(tc.dvalue), dec(tc.tax))
			require.NoError(t, err)
			assert.Equal(t, tc.subtotal, tot.Subtotal.StringFixed(2))
			assert.Equal(t, tc.discount, tot.Discount.StringFixed(2))
			assert.Equal(t, tc.taxAmt, tot.Tax.StringFixed(2))
			assert.Equal(t, tc.total, tot.Total.StringFixed(2))
			assert.True(t, tot.Total.Equal(tot.Subtotal.Sub(tot.Discount).Add(tot.Tax)))
		})
	}
}

func TestComputeTotalsRejects(t *testing.T) {
	_, err := ComputeTotals(items("10"), DiscountPercentage, dec("101"), dec("0"))
	assert.True(t, errors.Is(err, ErrInvalidDiscount))

	_, err = ComputeTotals(items("10"), DiscountFixed, dec("-1"), dec("0"))
	assert.True(t, errors.Is(err, ErrInvalidDiscount))

	_, err = ComputeTotals(items("10"), "COUPON", dec("1"), dec("0"))
	assert.True(t, errors.Is(err, ErrInvalidDiscount))

	_, err = ComputeTotals(items("10"), DiscountNone, dec("0"), dec("120"))
	assert.True(t, errors.Is(err, ErrInvalidTaxRate))

	_, err = ComputeTotals([]InvoiceItem{{Quantity: 0, UnitPrice: dec("5")}}, DiscountNone, dec("0"), dec("0"))
	assert.True(t, errors.Is(err, ErrInvalidItem))
}

func TestInvoicePayments(t *testing.T) {
	inv := &Invoice{Items: items("100"), TaxRate: dec("10")}
	require.NoError(t, inv.ApplyTotals())
	assert.Equal(t, "110.00", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, InvoicePending, inv.Status)
	assert.Equal(t, DiscountNone, inv.DiscountType)

	require.NoError(t, inv.AddPayment(dec("60")))
	assert.Equal(t, InvoicePartial, inv.Status)

	err := inv.AddPayment(dec("60"))
	assert.True(t, errors.Is(err, ErrOverpayment))
	assert.Equal(t, "60.00", inv.PaidAmount.StringFixed(2))

	require.NoError(t, inv.AddPayment(dec("50")))
	assert.Equal(t, InvoicePaid, inv.Status)
	assert.True(t, inv.Balance().IsZero())

	assert.True(t, errors.Is(inv.AddPayment(dec("1")), ErrInvoiceClosed))
	assert.Error(t, inv.Cancel())

	inv.RemovePayment(dec("50"))
	assert.Equal(t, InvoicePartial, inv.Status)
	require.NoError(t, inv.Cancel())
	assert.True(t, errors.Is(inv.AddPayment(dec("1")), ErrInvoiceClosed))
}

func TestPaymentStatus(t *testing.T) {
	assert.Equal(t, InvoicePending, PaymentStatus(dec("10"), dec("0")))
	assert.Equal(t, InvoicePartial, PaymentStatus(dec("10"), dec("9.99")))
	assert.Equal(t, InvoicePaid, PaymentStatus(dec("10"), dec("10")))
	assert.Equal(t, InvoicePaid, PaymentStatus(dec("0"), dec("0")))
}
