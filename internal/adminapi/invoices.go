package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var errInvoiceHasPayments = errors.New("invoice items cannot change once a payment is recorded")

type invoiceItemPayload struct {
	ServiceId   int64            `json:"service_id,string"`
	Description string           `json:"description" validate:"omitempty,max=500"`
	Quantity    int              `json:"quantity" validate:"required,min=1"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

type invoicePayload struct {
	PatientId     int64                `json:"patient_id,string" validate:"required"`
	AppointmentId int64                `json:"appointment_id,string"`
	IssueDate     string               `json:"issue_date" validate:"omitempty,max=32"`
	DueDate       string               `json:"due_date" validate:"omitempty,max=32"`
	DiscountType  string               `json:"discount_type" validate:"omitempty,oneof=NONE PERCENTAGE FIXED"`
	DiscountValue decimal.Decimal      `json:"discount_value"`
	TaxRate       *decimal.Decimal     `json:"tax_rate"`
	Notes         string               `json:"notes" validate:"omitempty,max=2000"`
	Items         []invoiceItemPayload `json:"items" validate:"required,min=1,dive"`
}

type invoiceUpdatePayload struct {
	DueDate       *string               `json:"due_date" validate:"omitempty,max=32"`
	DiscountType  *string               `json:"discount_type" validate:"omitempty,oneof=NONE PERCENTAGE FIXED"`
	DiscountValue *decimal.Decimal      `json:"discount_value"`
	TaxRate       *decimal.Decimal      `json:"tax_rate"`
	Notes         *string               `json:"notes" validate:"omitempty,max=2000"`
	Items         *[]invoiceItemPayload `json:"items" validate:"omitempty,min=1,dive"`
}

type paymentPayload struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" validate:"required,oneof=CASH CARD BANK_TRANSFER INSURANCE OTHER"`
	Reference string          `json:"reference" validate:"omitempty,max=100"`
	PaidAt    string          `json:"paid_at" validate:"omitempty,max=32"`
}

func registerInvoiceRoutes() {
	webserver.ApiGET("/invoices", ListInvoices)
	webserver.ApiGET("/invoices/:id", GetInvoice)
	webserver.ApiGET("/invoices/:id/print", PrintInvoice)
	webserver.ApiPOST("/invoices", CreateInvoice)
	webserver.ApiPUT("/invoices/:id", UpdateInvoice)
	webserver.ApiDELETE("/invoices/:id", DeleteInvoice)
	webserver.ApiPOST("/invoices/:id/payments", AddPayment)
	webserver.ApiDELETE("/invoices/:id/payments/:pid", DeletePayment)
	webserver.ApiPOST("/invoices/:id/cancel", CancelInvoice)
}

// ListInvoices lists invoices
// @Summary list invoices
// @Tags Billing
// @Param q query string false "Invoice number"
// @Param status query string false "Status"
// @Param patient_id query string false "Patient ID"
// @Param from query string false "Issued on or after"
// @Param to query string false "Issued on or before"
// @Success 200 {object} ListResponse
// @Router /api/v1/invoices [get]
func ListInvoices(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Invoice{})
	query = searchScope(query, c.QueryParam("q"), "number")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status IN ?", strings.Split(status, ","))
	}
	if id := queryID(c, "patient_id"); id > 0 {
		query = query.Where("patient_id = ?", id)
	}
	query = dateRangeScope(c, query, "issue_date")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query invoices", err.Error())
	}
	var invoices []domain.Invoice
	query = sortScope(c, query, []string{"number", "issue_date", "due_date", "total_amount", "status"}, "issue_date DESC, number DESC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&invoices).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query invoices", err.Error())
	}
	return paged(c, invoices, total, page, pageSize)
}

// GetInvoice returns an invoice with its items and payments
// @Summary get invoice
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Success 200 {object} domain.Invoice
// @Router /api/v1/invoices/{id} [get]
func GetInvoice(c echo.Context) error {
	inv, err := loadInvoice(c)
	if inv == nil {
		return err
	}
	var patient domain.Patient
	GetDB(c).Unscoped().First(&patient, inv.PatientId)
	return ok(c, map[string]interface{}{
		"invoice": inv,
		"patient": patient,
		"balance": inv.Balance(),
	})
}

// CreateInvoice issues an invoice, totals are always recomputed
// @Summary create invoice
// @Tags Billing
// @Param invoice body invoicePayload true "Invoice"
// @Success 201 {object} domain.Invoice
// @Router /api/v1/invoices [post]
func CreateInvoice(c echo.Context) error {
	var payload invoicePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, payload.PatientId).Error; err != nil {
		return fail(c, http.StatusUnprocessableEntity, "PATIENT_UNAVAILABLE", "Patient not found", nil)
	}

	inv := newInvoice(c, payload.PatientId)
	inv.AppointmentId = payload.AppointmentId
	inv.Notes = payload.Notes
	if payload.IssueDate != "" {
		d, err := common.NormalizeDate(payload.IssueDate)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid issue date", payload.IssueDate)
		}
		inv.IssueDate = d
		inv.DueDate, _ = common.AddDays(d, GetAppContext(c).ConfigMgr().Billing().InvoiceDueDays)
	}
	if payload.DueDate != "" {
		d, err := common.NormalizeDate(payload.DueDate)
		if err != nil || d < inv.IssueDate {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Due date must be on or after the issue date", payload.DueDate)
		}
		inv.DueDate = d
	}
	if payload.DiscountType != "" {
		inv.DiscountType = payload.DiscountType
	}
	inv.DiscountValue = payload.DiscountValue
	if payload.TaxRate != nil {
		inv.TaxRate = *payload.TaxRate
	}

	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		items, err := resolveItems(tx, payload.Items)
		if err != nil {
			return err
		}
		inv.Items = items
		return saveNewInvoice(tx, inv)
	})
	if err != nil {
		return domainError(c, err, "CREATE_FAILED")
	}
	publishAudit(c, "create", "invoice", inv.ID, map[string]string{"number": inv.Number, "total": inv.TotalAmount.StringFixed(2)})
	return created(c, inv)
}

// UpdateInvoice edits discount, tax, notes or items of an open invoice
// @Summary update invoice
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Param invoice body invoiceUpdatePayload true "Fields to change"
// @Success 200 {object} domain.Invoice
// @Router /api/v1/invoices/{id} [put]
func UpdateInvoice(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID", nil)
	}
	var payload invoiceUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	var inv domain.Invoice
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Preload("Payments").First(&inv, id).Error; err != nil {
			return err
		}
		if inv.Status == domain.InvoiceCancelled {
			return domain.ErrInvoiceClosed
		}
		if payload.DueDate != nil {
			d, err := common.NormalizeDate(*payload.DueDate)
			if err != nil || d < inv.IssueDate {
				return errors.Wrap(domain.ErrInvalidSchedule, "due date must be on or after the issue date")
			}
			inv.DueDate = d
		}
		if payload.DiscountType != nil {
			inv.DiscountType = *payload.DiscountType
		}
		if payload.DiscountValue != nil {
			inv.DiscountValue = *payload.DiscountValue
		}
		if payload.TaxRate != nil {
			inv.TaxRate = *payload.TaxRate
		}
		if payload.Notes != nil {
			inv.Notes = *payload.Notes
		}
		if payload.Items != nil {
			if len(inv.Payments) > 0 {
				return errInvoiceHasPayments
			}
			items, err := resolveItems(tx, *payload.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&domain.InvoiceItem{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].ID = common.UUIDint64()
				items[i].InvoiceId = inv.ID
			}
			inv.Items = items
		}
		if err := inv.ApplyTotals(); err != nil {
			return err
		}
		if inv.PaidAmount.GreaterThan(inv.TotalAmount) {
			return errors.Wrapf(domain.ErrOverpayment, "paid %s exceeds new total %s", inv.PaidAmount.StringFixed(2), inv.TotalAmount.StringFixed(2))
		}
		if payload.Items != nil {
			if err := tx.Create(&inv.Items).Error; err != nil {
				return err
			}
		}
		return tx.Omit("Items", "Payments").Save(&inv).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found", nil)
		}
		if errors.Is(err, errInvoiceHasPayments) {
			return fail(c, http.StatusConflict, "INVOICE_HAS_PAYMENTS", err.Error(), nil)
		}
		return domainError(c, err, "UPDATE_FAILED")
	}
	publishAudit(c, "update", "invoice", inv.ID, map[string]string{"total": inv.TotalAmount.StringFixed(2), "status": inv.Status})
	return ok(c, inv)
}

// DeleteInvoice removes an invoice without payments
// @Summary delete invoice
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Success 204 "No Content"
// @Router /api/v1/invoices/{id} [delete]
func DeleteInvoice(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID", nil)
	}
	var inv domain.Invoice
	if err := GetDB(c).First(&inv, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found", nil)
	}
	var payments int64
	GetDB(c).Model(&domain.Payment{}).Where("invoice_id = ?", id).Count(&payments)
	if payments > 0 {
		return fail(c, http.StatusConflict, "INVOICE_HAS_PAYMENTS", "Invoices with payments cannot be deleted, cancel them instead", nil)
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", id).Delete(&domain.InvoiceItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&inv).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete invoice", err.Error())
	}
	publishAudit(c, "delete", "invoice", inv.ID, inv.Number)
	return c.NoContent(http.StatusNoContent)
}

// AddPayment records a payment against the invoice balance
// @Summary add payment
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Param payment body paymentPayload true "Payment"
// @Success 201 {object} domain.Invoice
// @Router /api/v1/invoices/{id}/payments [post]
func AddPayment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID", nil)
	}
	var payload paymentPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if !payload.Amount.IsPositive() {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Payment amount must be positive", nil)
	}
	paidAt := time.Now()
	if payload.PaidAt != "" {
		t, err := common.ParseDate(payload.PaidAt)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid payment date", payload.PaidAt)
		}
		paidAt = t
	}

	var inv domain.Invoice
	payment := domain.Payment{
		ID:         common.UUIDint64(),
		InvoiceId:  id,
		Amount:     common.Round2(payload.Amount),
		Method:     payload.Method,
		Reference:  payload.Reference,
		PaidAt:     paidAt,
		ReceivedBy: webserver.GetOperatorName(c),
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inv, id).Error; err != nil {
			return err
		}
		if err := inv.AddPayment(payment.Amount); err != nil {
			return err
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Invoice{}).Where("id = ?", inv.ID).
			Updates(map[string]interface{}{"paid_amount": inv.PaidAmount, "status": inv.Status, "updated_at": time.Now()}).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found", nil)
		}
		return domainError(c, err, "PAYMENT_FAILED")
	}
	publishAudit(c, "payment", "invoice", inv.ID, map[string]string{"amount": payment.Amount.StringFixed(2), "method": payment.Method})
	GetDB(c).Preload("Items").Preload("Payments").First(&inv, id)
	return created(c, inv)
}

// DeletePayment reverses a payment and re-derives the invoice status
// @Summary delete payment
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Param pid path string true "Payment ID"
// @Success 200 {object} domain.Invoice
// @Router /api/v1/invoices/{id}/payments/{pid} [delete]
func DeletePayment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID", nil)
	}
	pid, err := parseIDParam(c, "pid")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid payment ID", nil)
	}
	var inv domain.Invoice
	var payment domain.Payment
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inv, id).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ? AND invoice_id = ?", pid, id).First(&payment).Error; err != nil {
			return err
		}
		inv.RemovePayment(payment.Amount)
		if err := tx.Delete(&payment).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Invoice{}).Where("id = ?", inv.ID).
			Updates(map[string]interface{}{"paid_amount": inv.PaidAmount, "status": inv.Status, "updated_at": time.Now()}).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "PAYMENT_NOT_FOUND", "Invoice or payment not found", nil)
		}
		return domainError(c, err, "DELETE_FAILED")
	}
	publishAudit(c, "delete_payment", "invoice", inv.ID, map[string]string{"amount": payment.Amount.StringFixed(2)})
	GetDB(c).Preload("Items").Preload("Payments").First(&inv, id)
	return ok(c, inv)
}

// CancelInvoice voids an unpaid or partially paid invoice
// @Summary cancel invoice
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Success 200 {object} domain.Invoice
// @Router /api/v1/invoices/{id}/cancel [post]
func CancelInvoice(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID", nil)
	}
	var inv domain.Invoice
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&inv, id).Error; err != nil {
			return err
		}
		if inv.Status == domain.InvoiceCancelled {
			return domain.ErrInvoiceClosed
		}
		if err := inv.Cancel(); err != nil {
			return err
		}
		return tx.Model(&domain.Invoice{}).Where("id = ?", inv.ID).
			Updates(map[string]interface{}{"status": inv.Status, "updated_at": time.Now()}).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found", nil)
		}
		return domainError(c, err, "CANCEL_FAILED")
	}
	publishAudit(c, "cancel", "invoice", inv.ID, inv.Number)
	return ok(c, inv)
}

// PrintInvoice renders a plain text receipt
// @Summary print invoice
// @Tags Billing
// @Param id path string true "Invoice ID"
// @Produce plain
// @Success 200 {string} string
// @Router /api/v1/invoices/{id}/print [get]
func PrintInvoice(c echo.Context) error {
	inv, err := loadInvoice(c)
	if inv == nil {
		return err
	}
	var patient domain.Patient
	GetDB(c).Unscoped().First(&patient, inv.PatientId)
	return c.String(http.StatusOK, renderReceipt(GetAppContext(c).ConfigMgr(), inv, patient))
}

// loadInvoice fetches the invoice of the :id parameter with items and
// payments. A nil invoice means the error response was already written.
func loadInvoice(c echo.Context) (*domain.Invoice, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid invoice ID", nil)
	}
	var inv domain.Invoice
	if err := GetDB(c).Preload("Items").Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("paid_at ASC")
	}).First(&inv, id).Error; err != nil {
		if isNotFound(err) {
			return nil, fail(c, http.StatusNotFound, "INVOICE_NOT_FOUND", "Invoice not found", nil)
		}
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query invoice", err.Error())
	}
	return &inv, nil
}

// newInvoice fills the defaults of a new invoice from the billing settings
func newInvoice(c echo.Context, patientId int64) *domain.Invoice {
	cm := GetAppContext(c).ConfigMgr()
	today := common.Today()
	due, _ := common.AddDays(today, cm.Billing().InvoiceDueDays)
	return &domain.Invoice{
		ID:           common.UUIDint64(),
		PatientId:    patientId,
		IssueDate:    today,
		DueDate:      due,
		DiscountType: domain.DiscountNone,
		TaxRate:      cm.GetDecimal("billing", "tax_rate"),
		Status:       domain.InvoicePending,
		CreatedBy:    webserver.GetOperatorName(c),
	}
}

// saveNewInvoice numbers, prices and inserts an invoice with its items
func saveNewInvoice(tx *gorm.DB, inv *domain.Invoice) error {
	if err := inv.ApplyTotals(); err != nil {
		return err
	}
	number, err := app.NextCode(tx, app.CounterInvoice)
	if err != nil {
		return err
	}
	inv.Number = number
	for i := range inv.Items {
		inv.Items[i].ID = common.UUIDint64()
		inv.Items[i].InvoiceId = inv.ID
	}
	return tx.Create(inv).Error
}

// resolveItems fills service descriptions and prices
func resolveItems(tx *gorm.DB, payload []invoiceItemPayload) ([]domain.InvoiceItem, error) {
	items := make([]domain.InvoiceItem, 0, len(payload))
	for i, p := range payload {
		item := domain.InvoiceItem{
			ServiceId:   p.ServiceId,
			Description: strings.TrimSpace(p.Description),
			Quantity:    p.Quantity,
		}
		if p.UnitPrice != nil {
			item.UnitPrice = *p.UnitPrice
		}
		if p.ServiceId > 0 {
			var s domain.Service
			if err := tx.First(&s, p.ServiceId).Error; err != nil {
				return nil, errors.Wrapf(domain.ErrInvalidItem, "item %d: unknown service", i+1)
			}
			if s.Status == common.DISABLED {
				return nil, errors.Wrapf(domain.ErrInvalidItem, "item %d: service %s is disabled", i+1, s.Code)
			}
			if item.Description == "" {
				item.Description = s.Name
			}
			if p.UnitPrice == nil {
				item.UnitPrice = s.Price
			}
		}
		if item.Description == "" {
			return nil, errors.Wrapf(domain.ErrInvalidItem, "item %d: description or service required", i+1)
		}
		items = append(items, item)
	}
	return items, nil
}

func renderReceipt(cm *app.ConfigManager, inv *domain.Invoice, patient domain.Patient) string {
	currency := cm.GetString("system", "currency")
	money := func(d decimal.Decimal) string {
		return fmt.Sprintf("%12s", d.StringFixed(2))
	}
	line := strings.Repeat("-", 56)
	var b strings.Builder
	fmt.Fprintln(&b, cm.GetString("system", "hospital_name"))
	if addr := cm.GetString("system", "hospital_address"); addr != "" {
		fmt.Fprintln(&b, addr)
	}
	if phone := cm.GetString("system", "hospital_phone"); phone != "" {
		fmt.Fprintln(&b, "Tel: "+phone)
	}
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Invoice: %s    Status: %s\n", inv.Number, inv.Status)
	fmt.Fprintf(&b, "Issued:  %s    Due: %s\n", inv.IssueDate, inv.DueDate)
	fmt.Fprintf(&b, "Patient: %s (%s)\n", patient.FullName(), patient.Mrn)
	fmt.Fprintln(&b, line)
	for _, it := range inv.Items {
		desc := common.Truncate(it.Description, 28)
		fmt.Fprintf(&b, "%-28s %3d x %9s %s\n", desc, it.Quantity, it.UnitPrice.StringFixed(2), money(it.Amount))
	}
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "%-43s %s\n", "Subtotal", money(inv.Subtotal))
	if inv.DiscountAmount.IsPositive() {
		label := "Discount"
		if inv.DiscountType == domain.DiscountPercentage {
			label = fmt.Sprintf("Discount (%s%%)", inv.DiscountValue.String())
		}
		fmt.Fprintf(&b, "%-43s %s\n", label, money(inv.DiscountAmount.Neg()))
	}
	if inv.TaxAmount.IsPositive() {
		fmt.Fprintf(&b, "%-43s %s\n", fmt.Sprintf("Tax (%s%%)", inv.TaxRate.String()), money(inv.TaxAmount))
	}
	fmt.Fprintf(&b, "%-43s %s\n", "Total "+currency, money(inv.TotalAmount))
	for _, p := range inv.Payments {
		fmt.Fprintf(&b, "%-43s %s\n", fmt.Sprintf("Paid %s %s", p.PaidAt.Format(common.DateLayout), p.Method), money(p.Amount))
	}
	fmt.Fprintf(&b, "%-43s %s\n", "Balance "+currency, money(inv.Balance()))
	fmt.Fprintln(&b, line)
	return b.String()
}
