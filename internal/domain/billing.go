package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Invoice statuses
const (
	InvoicePending   = "PENDING"
	InvoicePartial   = "PARTIAL"
	InvoicePaid      = "PAID"
	InvoiceCancelled = "CANCELLED"
)

// Discount types
const (
	DiscountNone       = "NONE"
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

// Payment methods
const (
	PayCash         = "CASH"
	PayCard         = "CARD"
	PayBankTransfer = "BANK_TRANSFER"
	PayInsurance    = "INSURANCE"
	PayOther        = "OTHER"
)

var PaymentMethods = []string{PayCash, PayCard, PayBankTransfer, PayInsurance, PayOther}

var hundred = decimal.NewFromInt(100)

type Invoice struct {
	ID             int64           `json:"id,string" form:"id"`
	Number         string          `gorm:"uniqueIndex;size:32" json:"number" form:"number"`
	PatientId      int64           `gorm:"index" json:"patient_id,string" form:"patient_id"`
	AppointmentId  int64           `gorm:"index" json:"appointment_id,string" form:"appointment_id"`
	IssueDate      string          `gorm:"index;size:10" json:"issue_date" form:"issue_date"`
	DueDate        string          `gorm:"size:10" json:"due_date" form:"due_date"`
	DiscountType   string          `json:"discount_type" form:"discount_type"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_value"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(6,2)" json:"tax_rate"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(12,2)" json:"paid_amount"`
	Status         string          `gorm:"index" json:"status" form:"status"`
	Notes          string          `json:"notes" form:"notes"`
	CreatedBy      string          `json:"created_by"`
	OverdueNotice  bool            `json:"overdue_notice"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Items          []InvoiceItem   `gorm:"foreignKey:InvoiceId" json:"items,omitempty"`
	Payments       []Payment       `gorm:"foreignKey:InvoiceId" json:"payments,omitempty"`
}

// TableName Specify table name
func (Invoice) TableName() string {
	return "invoice"
}

type InvoiceItem struct {
	ID          int64           `json:"id,string"`
	InvoiceId   int64           `gorm:"index" json:"invoice_id,string"`
	ServiceId   int64           `json:"service_id,string"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
}

// TableName Specify table name
func (InvoiceItem) TableName() string {
	return "invoice_item"
}

type Payment struct {
	ID         int64           `json:"id,string"`
	InvoiceId  int64           `gorm:"index" json:"invoice_id,string"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference"`
	PaidAt     time.Time       `gorm:"index" json:"paid_at"`
	ReceivedBy string          `json:"received_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName Specify table name
func (Payment) TableName() string {
	return "payment"
}

// InvoiceTotals is the derived money breakdown of an invoice.
// Total always equals Subtotal - Discount + Tax.
type InvoiceTotals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeTotals prices the items and applies discount then tax.
// Each component is rounded to cents before the total is formed.
func ComputeTotals(items []InvoiceItem, discountType string, discountValue, taxRate decimal.Decimal) (InvoiceTotals, error) {
	var t InvoiceTotals
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return t, ErrInvalidTaxRate
	}
	if discountValue.IsNegative() {
		return t, errors.Wrap(ErrInvalidDiscount, "negative value")
	}

	subtotal := decimal.Zero
	for i := range items {
		if items[i].Quantity <= 0 || items[i].UnitPrice.IsNegative() {
			return t, errors.Wrapf(ErrInvalidItem, "item %d", i+1)
		}
		items[i].Amount = items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))).Round(2)
		subtotal = subtotal.Add(items[i].Amount)
	}
	t.Subtotal = subtotal.Round(2)

	switch discountType {
	case "", DiscountNone:
		t.Discount = decimal.Zero
	case DiscountPercentage:
		if discountValue.GreaterThan(hundred) {
			return t, errors.Wrap(ErrInvalidDiscount, "percentage above 100")
		}
		t.Discount = t.Subtotal.Mul(discountValue).Div(hundred).Round(2)
	case DiscountFixed:
		t.Discount = decimal.Min(discountValue, t.Subtotal).Round(2)
	default:
		return t, errors.Wrap(ErrInvalidDiscount, discountType)
	}

	t.Tax = t.Subtotal.Sub(t.Discount).Mul(taxRate).Div(hundred).Round(2)
	t.Total = t.Subtotal.Sub(t.Discount).Add(t.Tax)
	return t, nil
}

// ApplyTotals recomputes and stores the totals from the invoice items
func (inv *Invoice) ApplyTotals() error {
	if inv.DiscountType == "" {
		inv.DiscountType = DiscountNone
	}
	t, err := ComputeTotals(inv.Items, inv.DiscountType, inv.DiscountValue, inv.TaxRate)
	if err != nil {
		return err
	}
	inv.Subtotal = t.Subtotal
	inv.DiscountAmount = t.Discount
	inv.TaxAmount = t.Tax
	inv.TotalAmount = t.Total
	if inv.Status != InvoiceCancelled {
		inv.Status = PaymentStatus(inv.TotalAmount, inv.PaidAmount)
	}
	return nil
}

func (inv Invoice) Balance() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

// PaymentStatus derives the invoice status from amounts paid
func PaymentStatus(total, paid decimal.Decimal) string {
	switch {
	case paid.IsPositive() && paid.GreaterThanOrEqual(total):
		return InvoicePaid
	case paid.IsPositive():
		return InvoicePartial
	case total.IsZero():
		return InvoicePaid
	default:
		return InvoicePending
	}
}

// AddPayment checks and applies a payment amount to the invoice
func (inv *Invoice) AddPayment(amount decimal.Decimal) error {
	if inv.Status == InvoiceCancelled || inv.Status == InvoicePaid {
		return ErrInvoiceClosed
	}
	if !amount.IsPositive() {
		return errors.New("payment amount must be positive")
	}
	if amount.GreaterThan(inv.Balance()) {
		return errors.Wrapf(ErrOverpayment, "balance %s", inv.Balance().StringFixed(2))
	}
	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.Status = PaymentStatus(inv.TotalAmount, inv.PaidAmount)
	return nil
}

// RemovePayment reverses a previously applied payment
func (inv *Invoice) RemovePayment(amount decimal.Decimal) {
	inv.PaidAmount = decimal.Max(decimal.Zero, inv.PaidAmount.Sub(amount))
	if inv.Status != InvoiceCancelled {
		inv.Status = PaymentStatus(inv.TotalAmount, inv.PaidAmount)
	}
}

// Cancel is allowed unless the invoice has been settled
func (inv *Invoice) Cancel() error {
	if inv.Status == InvoicePaid {
		return errors.Wrap(ErrInvalidTransition, "paid invoice cannot be cancelled")
	}
	inv.Status = InvoiceCancelled
	return nil
}
