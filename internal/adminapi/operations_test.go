package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitlistOrdering(t *testing.T) {
	env := newTestEnv(t)
	ids := make([]int64, 0, 3)
	for _, name := range []string{"Ann", "Ben", "Cy"} {
		p := env.createPatient(name, "Wait")
		rec := env.request(http.MethodPost, "/waitlist", map[string]string{"patient_id": fmt.Sprint(p.ID), "reason": "consult"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var entry domain.WaitlistEntry
		decodeData(t, rec, &entry)
		assert.Equal(t, domain.PriorityNormal, entry.Priority)
		ids = append(ids, entry.ID)
	}

	listIds := func() []int64 {
		rec := env.request(http.MethodGet, "/waitlist", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var rows []domain.WaitlistEntry
		decodeData(t, rec, &rows)
		out := make([]int64, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, ids, listIds())

	rec := env.request(http.MethodPost, fmt.Sprintf("/waitlist/%d/priority", ids[2]), map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{ids[2], ids[0], ids[1]}, listIds())

	rec = env.request(http.MethodPost, fmt.Sprintf("/waitlist/%d/priority", ids[2]), map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodPost, fmt.Sprintf("/waitlist/%d/priority", ids[2]), map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PRIORITY_AT_LIMIT", errorCode(t, rec))

	rec = env.request(http.MethodPost, fmt.Sprintf("/waitlist/%d/move", ids[1]), map[string]string{"direction": "up"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, listIds())

	rec = env.request(http.MethodPost, fmt.Sprintf("/waitlist/%d/move", ids[1]), map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MOVE_NOT_POSSIBLE", errorCode(t, rec))
}

func TestWaitlistPriorityOnlyWhileWaiting(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPatient("Dora", "Closed")
	rec := env.request(http.MethodPost, "/waitlist", map[string]string{"patient_id": fmt.Sprint(p.ID), "reason": "consult"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var entry domain.WaitlistEntry
	decodeData(t, rec, &entry)

	rec = env.request(http.MethodPut, fmt.Sprintf("/waitlist/%d", entry.ID), map[string]string{"status": domain.WaitlistCancelled})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(http.MethodPost, fmt.Sprintf("/waitlist/%d/priority", entry.ID), map[string]string{"direction": "up"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "WAITLIST_CLOSED", errorCode(t, rec))

	var stored domain.WaitlistEntry
	require.NoError(t, env.app.DB().First(&stored, entry.ID).Error)
	assert.Equal(t, domain.PriorityNormal, stored.Priority)
}

func TestReferralTransitions(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Rita", "Ref")
	from := env.createDoctor("Dr. A")

	rec := env.request(http.MethodPost, "/referrals", map[string]string{
		"patient_id":     fmt.Sprint(patient.ID),
		"from_doctor_id": fmt.Sprint(from.ID),
		"reason":         "cardiology review",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodPost, "/referrals", map[string]string{
		"patient_id":        fmt.Sprint(patient.ID),
		"from_doctor_id":    fmt.Sprint(from.ID),
		"external_facility": "Heart Institute",
		"reason":            "cardiology review",
		"urgency":           "URGENT",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ref domain.Referral
	decodeData(t, rec, &ref)
	assert.Equal(t, domain.ReferralPending, ref.Status)

	path := fmt.Sprintf("/referrals/%d/status", ref.ID)
	rec = env.request(http.MethodPatch, path, map[string]string{"status": domain.ReferralCompleted})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.request(http.MethodPatch, path, map[string]string{"status": domain.ReferralAccepted})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.request(http.MethodPatch, path, map[string]string{"status": domain.ReferralCompleted})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &ref)
	assert.Equal(t, domain.ReferralCompleted, ref.Status)
	rec = env.request(http.MethodPatch, path, map[string]string{"status": domain.ReferralRejected})
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, rec))
}

func TestSurgeryConflicts(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Sam", "Surg")
	surgeon := env.createDoctor("Dr. Knife")
	other := env.createDoctor("Dr. Saw")
	third := env.createDoctor("Dr. Scalpel")

	book := func(doctorId int64, room, start string) *httptest.ResponseRecorder {
		return env.request(http.MethodPost, "/surgeries", map[string]interface{}{
			"patient_id":     fmt.Sprint(patient.ID),
			"surgeon_id":     fmt.Sprint(doctorId),
			"procedure":      "Appendectomy",
			"operating_room": room,
			"date":           "2030-01-15",
			"start_time":     start,
			"duration":       90,
		})
	}
	rec := book(surgeon.ID, "or-1", "08:00")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first domain.Surgery
	decodeData(t, rec, &first)
	assert.Equal(t, "OR-1", first.OperatingRoom)

	rec = book(other.ID, "OR-1", "09:00")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SLOT_CONFLICT", errorCode(t, rec))
	rec = book(surgeon.ID, "OR-2", "09:00")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = book(other.ID, "OR-2", "09:00")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(http.MethodPatch, fmt.Sprintf("/surgeries/%d/status", first.ID), map[string]string{"status": domain.SurgeryPostponed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = book(third.ID, "OR-1", "08:30")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// the room is taken now, so the postponed surgery cannot come back
	rec = env.request(http.MethodPatch, fmt.Sprintf("/surgeries/%d/status", first.ID), map[string]string{"status": domain.SurgeryScheduled})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SLOT_CONFLICT", errorCode(t, rec))
}

func TestShiftCopyWeek(t *testing.T) {
	env := newTestEnv(t)
	for _, date := range []string{"2024-04-29", "2024-05-01"} {
		rec := env.request(http.MethodPost, "/shifts", map[string]string{
			"staff_name": "Nurse Joy",
			"date":       date,
			"shift_type": "MORNING",
			"start_time": "07:00",
			"end_time":   "15:00",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := env.request(http.MethodPost, "/shifts/copy-week", map[string]string{"week_start": "2024-05-06"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var copies []domain.Shift
	decodeData(t, rec, &copies)
	require.Len(t, copies, 2)
	assert.Equal(t, "2024-05-06", copies[0].Date)
	assert.Equal(t, "2024-05-08", copies[1].Date)

	rec = env.request(http.MethodPost, "/shifts/copy-week", map[string]string{"week_start": "2024-05-06"})
	require.Equal(t, http.StatusCreated, rec.Code)
	decodeData(t, rec, &copies)
	assert.Empty(t, copies)
}

func TestFeedbackStats(t *testing.T) {
	env := newTestEnv(t)
	for _, rating := range []int{5, 4, 3, 4} {
		rec := env.request(http.MethodPost, "/feedback", map[string]interface{}{"rating": rating, "comment": "visit"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := env.request(http.MethodPost, "/feedback", map[string]interface{}{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodGet, "/feedback/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats FeedbackStats
	decodeData(t, rec, &stats)
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 4.0, stats.Mean)
	assert.Equal(t, 4.0, stats.Median)
	assert.Equal(t, 2, stats.Histogram["4"])
	assert.Equal(t, 0, stats.Histogram["1"])
	assert.Equal(t, 4, stats.ByStatus[domain.FeedbackNew])
}

func TestExpenseSummary(t *testing.T) {
	env := newTestEnv(t)
	for _, e := range []struct{ date, category, amount string }{
		{"2024-03-01", "supplies", "120.50"},
		{"2024-03-05", "Supplies", "79.50"},
		{"2024-03-07", "utilities", "300"},
		{"2024-04-01", "utilities", "999"},
	} {
		rec := env.request(http.MethodPost, "/expenses", map[string]string{"date": e.date, "category": e.category, "amount": e.amount})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := env.request(http.MethodPost, "/expenses", map[string]string{"date": "2024-03-01", "category": "misc", "amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(http.MethodGet, "/expenses/summary?from=2024-03-01&to=2024-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary struct {
		Count      int             `json:"count"`
		Total      decimal.Decimal `json:"total"`
		Categories []categoryTotal `json:"categories"`
	}
	decodeData(t, rec, &summary)
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, "500.00", summary.Total.StringFixed(2))
	require.Len(t, summary.Categories, 2)
	assert.Equal(t, "UTILITIES", summary.Categories[0].Category)
	assert.Equal(t, "SUPPLIES", summary.Categories[1].Category)
	assert.Equal(t, "200.00", summary.Categories[1].Total.StringFixed(2))
	assert.Equal(t, 2, summary.Categories[1].Count)
}

func TestDocumentUploadDownload(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Doc", "Holder")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("patient_id", fmt.Sprint(patient.ID)))
	require.NoError(t, mw.WriteField("category", "lab"))
	fw, err := mw.CreateFormFile("file", "cbc.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hemoglobin 13.5"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, webserver.ApiPrefix+"/documents", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+env.token)
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc domain.Document
	decodeData(t, rec, &doc)
	assert.Equal(t, "cbc.txt", doc.Title)
	assert.Equal(t, "LAB", doc.Category)
	assert.Equal(t, int64(15), doc.Size)
	assert.Equal(t, patient.ID, doc.PatientId)

	rec = env.request(http.MethodGet, fmt.Sprintf("/documents/%d/download", doc.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hemoglobin 13.5", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "cbc.txt")

	var stored domain.Document
	require.NoError(t, env.app.DB().First(&stored, doc.ID).Error)
	rec = env.request(http.MethodDelete, fmt.Sprintf("/documents/%d", doc.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err = env.app.DocStore().Get(stored.BlobKey)
	assert.ErrorIs(t, err, app.ErrBlobNotFound)
}

func TestExportPatientsCsv(t *testing.T) {
	env := newTestEnv(t)
	env.createPatient("Eve", "Export")

	rec := env.request(http.MethodGet, "/export/patients?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "MRN,First Name,Last Name"))
	assert.True(t, strings.HasPrefix(lines[1], "MRN-000001,Eve,Export"))

	rec = env.request(http.MethodGet, "/export/invoices?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.request(http.MethodGet, "/export/patients?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.request(http.MethodGet, "/export/operators", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCellName(t *testing.T) {
	assert.Equal(t, "A1", cellName(0, 1))
	assert.Equal(t, "Z3", cellName(25, 3))
	assert.Equal(t, "AA2", cellName(26, 2))
	assert.Equal(t, "AB10", cellName(27, 10))
}

func TestSchedulerRunMarksMissedFollowUps(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Finn", "Follow")
	yesterday, _ := common.AddDays(common.Today(), -1)

	rec := env.request(http.MethodPost, "/follow-ups", map[string]string{
		"patient_id": fmt.Sprint(patient.ID),
		"due_date":   yesterday,
		"reason":     "wound check",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var f domain.FollowUp
	decodeData(t, rec, &f)

	var sched domain.SysScheduler
	require.NoError(t, env.app.DB().Where("task_type = ?", app.TaskFollowUpDue).First(&sched).Error)
	rec = env.request(http.MethodPost, fmt.Sprintf("/system/schedulers/%d/run", sched.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &sched)
	assert.Equal(t, "success", sched.LastResult)

	rec = env.request(http.MethodGet, fmt.Sprintf("/follow-ups/%d", f.ID), nil)
	decodeData(t, rec, &f)
	assert.Equal(t, domain.FollowUpMissed, f.Status)

	rec = env.request(http.MethodGet, "/notifications/unread-count", nil)
	var count map[string]int64
	decodeData(t, rec, &count)
	assert.Equal(t, int64(1), count["count"])

	rec = env.request(http.MethodPut, "/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.request(http.MethodGet, "/notifications/unread-count", nil)
	decodeData(t, rec, &count)
	assert.Equal(t, int64(0), count["count"])

	rec = env.request(http.MethodPost, "/system/schedulers", map[string]interface{}{"name": "bogus", "task_type": "backup", "interval": 60})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_TASK", errorCode(t, rec))
}

func TestDashboardAndReports(t *testing.T) {
	env := newTestEnv(t)
	patient := env.createPatient("Gus", "Dash")
	doctor := env.createDoctor("Dr. Dash")
	appt, _, _ := env.book(patient.ID, doctor.ID, common.Today(), "11:00")
	_, code, _ := env.setStatus(appt.ID, domain.ApptWaiting)
	require.Equal(t, http.StatusOK, code)

	rec := env.request(http.MethodPost, fmt.Sprintf("/appointments/%d/invoice", appt.ID), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv domain.Invoice
	decodeData(t, rec, &inv)
	rec = env.request(http.MethodPost, fmt.Sprintf("/invoices/%d/payments", inv.ID), map[string]string{"amount": "150", "method": "CARD"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.request(http.MethodGet, "/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var d Dashboard
	decodeData(t, rec, &d)
	assert.Equal(t, int64(1), d.Patients)
	assert.Equal(t, int64(1), d.QueueLength)
	assert.Equal(t, int64(1), d.TodayAppointments[domain.ApptWaiting])
	assert.Equal(t, "150.00", d.TodayRevenue.StringFixed(2))
	assert.Equal(t, "350.00", d.Outstanding.StringFixed(2))

	rec = env.request(http.MethodGet, "/reports/revenue", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var revenue RevenueReport
	decodeData(t, rec, &revenue)
	assert.Equal(t, "150.00", revenue.Total.StringFixed(2))
	require.Len(t, revenue.Days, 1)
	assert.Equal(t, "150.00", revenue.ByMethod["CARD"].StringFixed(2))

	rec = env.request(http.MethodGet, "/reports/appointments?from="+common.Today()+"&to="+common.Today(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		Total   int                      `json:"total"`
		Doctors []DoctorAppointmentStats `json:"doctors"`
	}
	decodeData(t, rec, &report)
	assert.Equal(t, 1, report.Total)
	require.Len(t, report.Doctors, 1)
	assert.Equal(t, "Dr. Dash", report.Doctors[0].DoctorName)
	assert.Equal(t, 1, report.Doctors[0].ByStatus[domain.ApptWaiting])
}

func TestSettingsUpdate(t *testing.T) {
	env := newTestEnv(t)
	rec := env.request(http.MethodPut, "/settings", map[string]string{"billing.tax_rate": "12.5"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "12.5", env.app.GetSettingsStringValue("billing", "tax_rate"))

	rec = env.request(http.MethodPut, "/settings", map[string]string{"billing.nonsense": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UNKNOWN_SETTING", errorCode(t, rec))

	var raw map[string]interface{}
	rec = env.request(http.MethodGet, "/settings", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "data")
}

func TestEquipmentMaintenance(t *testing.T) {
	env := newTestEnv(t)
	last, _ := common.AddDays(common.Today(), -100)
	rec := env.request(http.MethodPost, "/equipment", map[string]interface{}{
		"name":                 "Ventilator",
		"serial_number":        "vt-100",
		"location":             "ICU",
		"maintenance_interval": 90,
		"last_maintenance":     last,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e domain.Equipment
	decodeData(t, rec, &e)
	assert.Equal(t, "VT-100", e.SerialNumber)

	rec = env.request(http.MethodPost, "/equipment", map[string]interface{}{"name": "Other", "serial_number": "VT-100"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SERIAL_EXISTS", errorCode(t, rec))

	rec = env.request(http.MethodGet, "/equipment/due?days=30", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var due []struct {
		Equipment domain.Equipment `json:"equipment"`
		Overdue   bool             `json:"overdue"`
	}
	decodeData(t, rec, &due)
	require.Len(t, due, 1)
	assert.True(t, due[0].Overdue)

	rec = env.request(http.MethodPost, fmt.Sprintf("/equipment/%d/maintenance", e.ID), map[string]string{
		"type":         "PREVENTIVE",
		"performed_by": "BioMed",
		"cost":         "120",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	next, _ := common.AddDays(common.Today(), 90)
	var result struct {
		Equipment domain.Equipment `json:"equipment"`
	}
	decodeData(t, rec, &result)
	assert.Equal(t, common.Today(), result.Equipment.LastMaintenance)
	assert.Equal(t, next, result.Equipment.NextMaintenance)

	rec = env.request(http.MethodGet, "/equipment/due?days=30", nil)
	decodeData(t, rec, &due)
	assert.Empty(t, due)
}
