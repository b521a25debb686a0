package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errAppointmentLocked = errors.New("only scheduled appointments can be rescheduled")

type appointmentPayload struct {
	PatientId int64  `json:"patient_id,string" validate:"required"`
	DoctorId  int64  `json:"doctor_id,string" validate:"required"`
	Date      string `json:"date" validate:"required,max=32"`
	StartTime string `json:"start_time" validate:"required,clock"`
	Duration  int    `json:"duration" validate:"omitempty,min=5,max=480"`
	Type      string `json:"type" validate:"omitempty,oneof=CONSULTATION FOLLOW_UP EMERGENCY PROCEDURE"`
	Reason    string `json:"reason" validate:"omitempty,max=500"`
	Notes     string `json:"notes" validate:"omitempty,max=2000"`
}

type appointmentUpdatePayload struct {
	DoctorId  *int64  `json:"doctor_id,string"`
	Date      *string `json:"date" validate:"omitempty,max=32"`
	StartTime *string `json:"start_time" validate:"omitempty,clock"`
	Duration  *int    `json:"duration" validate:"omitempty,min=5,max=480"`
	Type      *string `json:"type" validate:"omitempty,oneof=CONSULTATION FOLLOW_UP EMERGENCY PROCEDURE"`
	Reason    *string `json:"reason" validate:"omitempty,max=500"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

type statusPayload struct {
	Status       string `json:"status" validate:"required"`
	CancelReason string `json:"cancel_reason" validate:"omitempty,max=500"`
}

func registerAppointmentRoutes() {
	webserver.ApiGET("/appointments", ListAppointments)
	webserver.ApiGET("/appointments/:id", GetAppointment)
	webserver.ApiPOST("/appointments", CreateAppointment)
	webserver.ApiPUT("/appointments/:id", UpdateAppointment)
	webserver.ApiPATCH("/appointments/:id/status", UpdateAppointmentStatus)
	webserver.ApiPOST("/appointments/:id/invoice", InvoiceAppointment)
	webserver.ApiDELETE("/appointments/:id", DeleteAppointment)
}

// ListAppointments lists appointments with patient and doctor names
// @Summary list appointments
// @Tags Appointments
// @Param date query string false "Exact day"
// @Param from query string false "First day"
// @Param to query string false "Last day"
// @Param doctor_id query string false "Doctor ID"
// @Param patient_id query string false "Patient ID"
// @Param status query string false "Status"
// @Success 200 {object} ListResponse
// @Router /api/v1/appointments [get]
func ListAppointments(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c)
	query := db.Model(&domain.Appointment{})
	if date := strings.TrimSpace(c.QueryParam("date")); date != "" {
		if d, err := common.NormalizeDate(date); err == nil {
			query = query.Where("date = ?", d)
		}
	}
	query = dateRangeScope(c, query, "date")
	if id := queryID(c, "doctor_id"); id > 0 {
		query = query.Where("doctor_id = ?", id)
	}
	if id := queryID(c, "patient_id"); id > 0 {
		query = query.Where("patient_id = ?", id)
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status IN ?", strings.Split(status, ","))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query appointments", err.Error())
	}
	var rows []domain.Appointment
	query = sortScope(c, query, []string{"date", "start_time", "status", "created_at"}, "date DESC, start_time ASC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query appointments", err.Error())
	}
	return paged(c, enrichAppointments(db, rows), total, page, pageSize)
}

func GetAppointment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
	}
	var appt domain.Appointment
	if err := GetDB(c).First(&appt, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found", nil)
	}
	entries := enrichAppointments(GetDB(c), []domain.Appointment{appt})
	return ok(c, map[string]interface{}{
		"appointment":   entries[0],
		"next_statuses": domain.NextStatuses(appt.Status),
	})
}

// CreateAppointment books an appointment
// @Summary book appointment
// @Tags Appointments
// @Param appointment body appointmentPayload true "Appointment"
// @Success 201 {object} domain.Appointment
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/appointments [post]
func CreateAppointment(c echo.Context) error {
	var payload appointmentPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	date, err := common.NormalizeDate(payload.Date)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid appointment date", payload.Date)
	}
	appt := domain.Appointment{
		ID:        common.UUIDint64(),
		PatientId: payload.PatientId,
		DoctorId:  payload.DoctorId,
		Date:      date,
		StartTime: payload.StartTime,
		Duration:  payload.Duration,
		Type:      common.If(payload.Type == "", domain.ApptTypeConsultation, payload.Type).(string),
		Reason:    payload.Reason,
		Notes:     payload.Notes,
		Status:    domain.ApptScheduled,
	}
	if appt.Duration == 0 {
		appt.Duration = GetAppContext(c).ConfigMgr().Appointment().SlotMinutes
	}

	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := checkBookable(tx, appt); err != nil {
			return err
		}
		return tx.Create(&appt).Error
	})
	if err != nil {
		return bookingError(c, err, "CREATE_FAILED")
	}
	publishAudit(c, "create", "appointment", appt.ID, map[string]string{"date": appt.Date, "start_time": appt.StartTime})
	return created(c, appt)
}

// UpdateAppointment reschedules or edits an appointment
// @Summary update appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Param appointment body appointmentUpdatePayload true "Fields to change"
// @Success 200 {object} domain.Appointment
// @Router /api/v1/appointments/{id} [put]
func UpdateAppointment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
	}
	var payload appointmentUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	var appt domain.Appointment
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, id).Error; err != nil {
			return err
		}
		reschedule := payload.DoctorId != nil || payload.Date != nil || payload.StartTime != nil || payload.Duration != nil
		if reschedule && appt.Status != domain.ApptScheduled {
			return errAppointmentLocked
		}
		if payload.DoctorId != nil {
			appt.DoctorId = *payload.DoctorId
		}
		if payload.Date != nil {
			d, err := common.NormalizeDate(*payload.Date)
			if err != nil {
				return errors.Wrap(domain.ErrInvalidSchedule, *payload.Date)
			}
			appt.Date = d
		}
		if payload.StartTime != nil {
			appt.StartTime = *payload.StartTime
		}
		if payload.Duration != nil {
			appt.Duration = *payload.Duration
		}
		if payload.Type != nil {
			appt.Type = *payload.Type
		}
		if payload.Reason != nil {
			appt.Reason = *payload.Reason
		}
		if payload.Notes != nil {
			appt.Notes = *payload.Notes
		}
		if reschedule {
			if err := checkBookable(tx, appt); err != nil {
				return err
			}
			appt.ReminderSent = false
		}
		return tx.Save(&appt).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found", nil)
		}
		return bookingError(c, err, "UPDATE_FAILED")
	}
	publishAudit(c, "update", "appointment", appt.ID, payload)
	return ok(c, appt)
}

// UpdateAppointmentStatus moves an appointment along the status table
// @Summary change appointment status
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Param body body statusPayload true "Target status"
// @Success 200 {object} domain.Appointment
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/appointments/{id}/status [patch]
func UpdateAppointmentStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
	}
	var payload statusPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	appt, err := changeAppointmentStatus(c, id, strings.ToUpper(payload.Status), payload.CancelReason)
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found", nil)
		}
		return domainError(c, err, "UPDATE_FAILED")
	}
	return ok(c, appt)
}

// changeAppointmentStatus applies a transition in a transaction. Entering
// WAITING draws the next queue token of the appointment day. Events are
// published once the change is committed.
func changeAppointmentStatus(c echo.Context, id int64, to, reason string) (*domain.Appointment, error) {
	var appt domain.Appointment
	var from string
	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appt, id).Error; err != nil {
			return err
		}
		from = appt.Status
		if err := appt.Transition(to, time.Now()); err != nil {
			return err
		}
		switch to {
		case domain.ApptWaiting:
			token, err := app.NextSequence(tx, app.QueueCounter(appt.Date))
			if err != nil {
				return err
			}
			appt.TokenNo = int(token)
		case domain.ApptCancelled:
			appt.CancelReason = reason
		}
		return tx.Save(&appt).Error
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("appointment status changed",
		zap.String("namespace", "appointment"),
		zap.Int64("appointment_id", appt.ID),
		zap.String("from", from),
		zap.String("to", appt.Status))
	publishAudit(c, "status", "appointment", appt.ID, map[string]string{"from": from, "to": appt.Status})
	GetAppContext(c).Publish(app.TopicAppointmentStatus, app.AppointmentStatusEvent{
		Appointment: appt,
		From:        from,
		Operator:    webserver.GetOperatorName(c),
	})
	return &appt, nil
}

func DeleteAppointment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
	}
	var appt domain.Appointment
	if err := GetDB(c).First(&appt, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found", nil)
	}
	if appt.Status == domain.ApptWaiting || appt.Status == domain.ApptInProgress || appt.Status == domain.ApptCompleted {
		return fail(c, http.StatusConflict, "APPOINTMENT_IN_USE", "Checked-in appointments cannot be deleted", appt.Status)
	}
	if err := GetDB(c).Delete(&appt).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete appointment", err.Error())
	}
	publishAudit(c, "delete", "appointment", appt.ID, nil)
	return c.NoContent(http.StatusNoContent)
}

// InvoiceAppointment bills the consultation fee of the appointment doctor
// @Summary invoice an appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 201 {object} domain.Invoice
// @Router /api/v1/appointments/{id}/invoice [post]
func InvoiceAppointment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid appointment ID", nil)
	}
	db := GetDB(c)
	var appt domain.Appointment
	if err := db.First(&appt, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "APPOINTMENT_NOT_FOUND", "Appointment not found", nil)
	}
	if !appt.IsActive() {
		return fail(c, http.StatusConflict, "APPOINTMENT_INACTIVE", "Cancelled or missed appointments are not billed", appt.Status)
	}
	var existing int64
	db.Model(&domain.Invoice{}).Where("appointment_id = ? AND status <> ?", id, domain.InvoiceCancelled).Count(&existing)
	if existing > 0 {
		return fail(c, http.StatusConflict, "INVOICE_EXISTS", "Appointment already has an invoice", nil)
	}
	var doctor domain.Doctor
	if err := db.Unscoped().First(&doctor, appt.DoctorId).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCTOR_NOT_FOUND", "Doctor not found", nil)
	}

	inv := newInvoice(c, appt.PatientId)
	inv.AppointmentId = appt.ID
	inv.Items = []domain.InvoiceItem{{
		Description: "Consultation - " + doctor.Name,
		Quantity:    1,
		UnitPrice:   doctor.ConsultationFee,
	}}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return saveNewInvoice(tx, inv)
	}); err != nil {
		return domainError(c, err, "CREATE_FAILED")
	}
	publishAudit(c, "create", "invoice", inv.ID, map[string]string{"number": inv.Number, "appointment_id": c.Param("id")})
	return created(c, inv)
}

// checkBookable verifies the participants and the doctor's calendar
func checkBookable(tx *gorm.DB, appt domain.Appointment) error {
	var patient domain.Patient
	if err := tx.First(&patient, appt.PatientId).Error; err != nil {
		return errors.Wrap(errPatientUnavailable, "patient not found")
	}
	if patient.Status != domain.PatientActive {
		return errors.Wrap(errPatientUnavailable, "patient is inactive")
	}
	var doctor domain.Doctor
	if err := tx.First(&doctor, appt.DoctorId).Error; err != nil {
		return errors.Wrap(errDoctorUnavailable, "doctor not found")
	}
	if doctor.Status != domain.DoctorActive {
		return errors.Wrapf(errDoctorUnavailable, "doctor is %s", strings.ToLower(doctor.Status))
	}
	day, err := common.ParseDate(appt.Date)
	if err != nil {
		return errors.Wrap(domain.ErrInvalidSchedule, appt.Date)
	}
	if !doctor.WorksOn(day) {
		return errors.Wrapf(errDoctorUnavailable, "doctor does not work on %s", day.Weekday())
	}

	var others []domain.Appointment
	if err := tx.Where("doctor_id = ? AND date = ? AND id <> ?", appt.DoctorId, appt.Date, appt.ID).Find(&others).Error; err != nil {
		return err
	}
	conflict, err := domain.FindConflict(appt, others)
	if err != nil {
		return err
	}
	if conflict != nil {
		return errors.Wrapf(domain.ErrSlotConflict, "%s %s", conflict.StartTime, conflict.Status)
	}
	return nil
}

var (
	errPatientUnavailable = errors.New("patient unavailable")
	errDoctorUnavailable  = errors.New("doctor unavailable")
)

func bookingError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, errPatientUnavailable):
		return fail(c, http.StatusUnprocessableEntity, "PATIENT_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, errDoctorUnavailable):
		return fail(c, http.StatusUnprocessableEntity, "DOCTOR_UNAVAILABLE", err.Error(), nil)
	case errors.Is(err, errAppointmentLocked):
		return fail(c, http.StatusConflict, "APPOINTMENT_LOCKED", err.Error(), nil)
	}
	return domainError(c, err, fallback)
}

// enrichAppointments attaches patient and doctor names to appointments
func enrichAppointments(db *gorm.DB, rows []domain.Appointment) []domain.QueueEntry {
	patientIds := make([]int64, 0, len(rows))
	doctorIds := make([]int64, 0, len(rows))
	for _, r := range rows {
		patientIds = append(patientIds, r.PatientId)
		doctorIds = append(doctorIds, r.DoctorId)
	}
	patients := make(map[int64]domain.Patient)
	doctors := make(map[int64]string)
	if len(rows) > 0 {
		var ps []domain.Patient
		db.Unscoped().Select("id", "mrn", "first_name", "last_name").Where("id IN ?", patientIds).Find(&ps)
		for _, p := range ps {
			patients[p.ID] = p
		}
		var ds []domain.Doctor
		db.Unscoped().Select("id", "name").Where("id IN ?", doctorIds).Find(&ds)
		for _, d := range ds {
			doctors[d.ID] = d.Name
		}
	}
	result := make([]domain.QueueEntry, 0, len(rows))
	for _, r := range rows {
		p := patients[r.PatientId]
		result = append(result, domain.QueueEntry{
			Appointment: r,
			PatientName: p.FullName(),
			PatientMrn:  p.Mrn,
			DoctorName:  doctors[r.DoctorId],
		})
	}
	return result
}
