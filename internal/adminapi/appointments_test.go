package adminapi

import (
	"fmt"
	"net/http"
	"testing"
	"unicode/utf8"

	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) book(patientId, doctorId int64, date, start string) (domain.Appointment, int, string) {
	env.t.Helper()
	rec := env.request(http.MethodPost, "/appointments", map[string]interface{}{
		"patient_id": fmt.Sprint(patientId),
		"doctor_id":  fmt.Sprint(doctorId),
		"date":       date,
		"start_time": start,
	})
	var appt domain.Appointment
	if rec.Code != http.StatusCreated {
		return appt, rec.Code, errorCode(env.t, rec)
	}
	decodeData(env.t, rec, &appt)
	return appt, rec.Code, ""
}

func (env *testEnv) setStatus(id int64, status string) (domain.Appointment, int, string) {
	env.t.Helper()
	rec := env.request(http.MethodPatch, fmt.Sprintf("/appointments/%d/status", id), map[string]string{"status": status})
	var appt domain.Appointment
	if rec.Code != http.StatusOK {
		return appt, rec.Code, errorCode(env.t, rec)
	}
	decodeData(env.t, rec, &appt)
	return appt, rec.Code, ""
}

func TestAppointmentBooking(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Mary", "Major")
	doctor := env.createDoctor("Dr. Grey")
	today := common.Today()

	appt, code, _ := env.book(patient.ID, doctor.ID, today, "10:00")
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.ApptScheduled, appt.Status)
	assert.Equal(t, 30, appt.Duration)
	assert.Equal(t, domain.ApptTypeConsultation, appt.Type)

	_, code, errCode := env.book(patient.ID, doctor.ID, today, "10:15")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SLOT_CONFLICT", errCode)

	_, code, _ = env.book(patient.ID, doctor.ID, today, "10:30")
	assert.Equal(t, http.StatusCreated, code)

	_, code, errCode = env.book(patient.ID, 12345, today, "11:00")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "DOCTOR_UNAVAILABLE", errCode)

	// a cancelled appointment frees its slot
	_, code, _ = env.setStatus(appt.ID, domain.ApptCancelled)
	require.Equal(t, http.StatusOK, code)
	_, code, _ = env.book(patient.ID, doctor.ID, today, "10:00")
	assert.Equal(t, http.StatusCreated, code)

	rec := env.request(http.MethodGet, fmt.Sprintf("/doctors/%d/slots?date=%s", doctor.ID, today), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slots struct {
		Working bool          `json:"working"`
		Slots   []domain.Slot `json:"slots"`
	}
	decodeData(t, rec, &slots)
	assert.True(t, slots.Working)
	assert.Len(t, slots.Slots, 16)
}

func TestAppointmentLifecycleAndQueue(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.createPatient("Alice", "One")
	p2 := env.createPatient("Bob", "Two")
	doctor := env.createDoctor("Dr. Who")
	today := common.Today()

	a1, _, _ := env.book(p1.ID, doctor.ID, today, "09:00")
	a2, _, _ := env.book(p2.ID, doctor.ID, today, "09:30")

	_, code, errCode := env.setStatus(a1.ID, domain.ApptCompleted)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", errCode)

	_, code, errCode = env.setStatus(a1.ID, "BOGUS")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_STATUS", errCode)

	checked, code, _ := env.setStatus(a2.ID, domain.ApptWaiting)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, checked.TokenNo)
	assert.NotNil(t, checked.CheckedInAt)
	checked, _, _ = env.setStatus(a1.ID, domain.ApptWaiting)
	assert.Equal(t, 2, checked.TokenNo)

	rec := env.request(http.MethodDelete, fmt.Sprintf("/appointments/%d", a1.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.request(http.MethodGet, "/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var queue struct {
		Entries []domain.QueueEntry `json:"entries"`
	}
	decodeData(t, rec, &queue)
	require.Len(t, queue.Entries, 2)
	assert.Equal(t, a2.ID, queue.Entries[0].ID)
	assert.Equal(t, "Bob Two", queue.Entries[0].PatientName)

	rec = env.request(http.MethodPost, fmt.Sprintf("/queue/call-next?doctor_id=%d", doctor.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var called domain.QueueEntry
	decodeData(t, rec, &called)
	assert.Equal(t, a2.ID, called.ID)
	assert.Equal(t, domain.ApptInProgress, called.Status)

	rec = env.request(http.MethodGet, fmt.Sprintf("/appointments/%d", a2.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Appointment  domain.Appointment `json:"appointment"`
		NextStatuses []string           `json:"next_statuses"`
	}
	decodeData(t, rec, &detail)
	assert.ElementsMatch(t, []string{domain.ApptCompleted, domain.ApptCancelled}, detail.NextStatuses)

	_, code, _ = env.setStatus(a2.ID, domain.ApptCompleted)
	require.Equal(t, http.StatusOK, code)

	rec = env.request(http.MethodPost, "/queue/call-next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodPost, "/queue/call-next", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "QUEUE_EMPTY", errorCode(t, rec))
}

func TestAppointmentInvoiceAndPayments(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Carl", "Three")
	doctor := env.createDoctor("Dr. Strange")
	appt, _, _ := env.book(patient.ID, doctor.ID, common.Today(), "14:00")

	rec := env.request(http.MethodPost, fmt.Sprintf("/appointments/%d/invoice", appt.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv domain.Invoice
	decodeData(t, rec, &inv)
	assert.Equal(t, "INV-000001", inv.Number)
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(500)), inv.TotalAmount.String())
	assert.Equal(t, domain.InvoicePending, inv.Status)

	rec = env.request(http.MethodPost, fmt.Sprintf("/appointments/%d/invoice", appt.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVOICE_EXISTS", errorCode(t, rec))

	pay := func(amount string) int {
		rec := env.request(http.MethodPost, fmt.Sprintf("/invoices/%d/payments", inv.ID), map[string]string{"amount": amount, "method": "CASH"})
		code := rec.Code
		if code == http.StatusCreated {
			decodeData(t, rec, &inv)
		}
		return code
	}
	assert.Equal(t, http.StatusCreated, pay("200"))
	assert.Equal(t, domain.InvoicePartial, inv.Status)
	assert.Equal(t, http.StatusBadRequest, pay("400"))
	assert.Equal(t, http.StatusBadRequest, pay("0"))
	assert.Equal(t, http.StatusCreated, pay("300"))
	assert.Equal(t, domain.InvoicePaid, inv.Status)

	rec = env.request(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Invoice domain.Invoice  `json:"invoice"`
		Balance decimal.Decimal `json:"balance"`
	}
	decodeData(t, rec, &detail)
	assert.True(t, detail.Balance.IsZero())
	assert.Len(t, detail.Invoice.Payments, 2)

	rec = env.request(http.MethodPost, fmt.Sprintf("/invoices/%d/cancel", inv.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvoiceTotals(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Dana", "Four")

	rec := env.request(http.MethodPost, "/invoices", map[string]interface{}{
		"patient_id":     fmt.Sprint(patient.ID),
		"discount_type":  "PERCENTAGE",
		"discount_value": "10",
		"tax_rate":       "5",
		"items": []map[string]interface{}{
			{"description": "X-Ray", "quantity": 2, "unit_price": "600"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv domain.Invoice
	decodeData(t, rec, &inv)
	assert.Equal(t, "1200.00", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "120.00", inv.DiscountAmount.StringFixed(2))
	assert.Equal(t, "54.00", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "1134.00", inv.TotalAmount.StringFixed(2))

	rec = env.request(http.MethodPost, "/invoices", map[string]interface{}{
		"patient_id":     fmt.Sprint(patient.ID),
		"discount_type":  "PERCENTAGE",
		"discount_value": "150",
		"items":          []map[string]interface{}{{"description": "Dressing", "quantity": 1, "unit_price": "250"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INVOICE", errorCode(t, rec))

	rec = env.request(http.MethodPost, fmt.Sprintf("/invoices/%d/cancel", inv.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.request(http.MethodPost, fmt.Sprintf("/invoices/%d/payments", inv.ID), map[string]string{"amount": "10", "method": "CARD"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVOICE_CLOSED", errorCode(t, rec))
}

func TestReceiptKeepsUtf8(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("José", "Núñez")

	rec := env.request(http.MethodPost, "/invoices", map[string]interface{}{
		"patient_id": fmt.Sprint(patient.ID),
		"items": []map[string]interface{}{
			{"description": "Radiografía de tórax ñññññññ", "quantity": 1, "unit_price": "80"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv domain.Invoice
	decodeData(t, rec, &inv)

	rec = env.request(http.MethodGet, fmt.Sprintf("/invoices/%d/print", inv.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	receipt := rec.Body.String()
	assert.True(t, utf8.ValidString(receipt))
	assert.Contains(t, receipt, "Radiografía de tórax ñññññññ")
	assert.Contains(t, receipt, "Núñez")
}
