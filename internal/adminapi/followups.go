package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
)

type followUpPayload struct {
	PatientId     int64  `json:"patient_id,string" validate:"required"`
	DoctorId      int64  `json:"doctor_id,string"`
	AppointmentId int64  `json:"appointment_id,string"`
	DueDate       string `json:"due_date" validate:"required,max=32"`
	Reason        string `json:"reason" validate:"required,max=1000"`
	Notes         string `json:"notes" validate:"omitempty,max=2000"`
}

type followUpUpdatePayload struct {
	DueDate *string `json:"due_date" validate:"omitempty,max=32"`
	Reason  *string `json:"reason" validate:"omitempty,min=1,max=1000"`
	Status  *string `json:"status" validate:"omitempty,oneof=PENDING COMPLETED MISSED CANCELLED"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}

func registerFollowUpRoutes() {
	webserver.ApiGET("/follow-ups", ListFollowUps)
	webserver.ApiGET("/follow-ups/:id", GetFollowUp)
	webserver.ApiPOST("/follow-ups", CreateFollowUp)
	webserver.ApiPUT("/follow-ups/:id", UpdateFollowUp)
	webserver.ApiDELETE("/follow-ups/:id", DeleteFollowUp)
}

func ListFollowUps(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.FollowUp{})
	query = dateRangeScope(c, query, "due_date")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if id := queryID(c, "doctor_id"); id > 0 {
		query = query.Where("doctor_id = ?", id)
	}
	if id := queryID(c, "patient_id"); id > 0 {
		query = query.Where("patient_id = ?", id)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query follow-ups", err.Error())
	}
	var rows []domain.FollowUp
	if err := query.Order("due_date ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query follow-ups", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func GetFollowUp(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid follow-up ID", nil)
	}
	var f domain.FollowUp
	if err := GetDB(c).First(&f, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "FOLLOWUP_NOT_FOUND", "Follow-up not found", nil)
	}
	return ok(c, f)
}

func CreateFollowUp(c echo.Context) error {
	var payload followUpPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	due, err := common.NormalizeDate(payload.DueDate)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid due date", payload.DueDate)
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, payload.PatientId).Error; err != nil {
		return fail(c, http.StatusUnprocessableEntity, "PATIENT_UNAVAILABLE", "Patient not found", nil)
	}
	doctorId := payload.DoctorId
	if payload.AppointmentId > 0 {
		var appt domain.Appointment
		if err := GetDB(c).First(&appt, payload.AppointmentId).Error; err != nil {
			return fail(c, http.StatusUnprocessableEntity, "APPOINTMENT_NOT_FOUND", "Source appointment not found", nil)
		}
		if doctorId == 0 {
			doctorId = appt.DoctorId
		}
	}
	f := domain.FollowUp{
		ID:            common.UUIDint64(),
		PatientId:     payload.PatientId,
		DoctorId:      doctorId,
		AppointmentId: payload.AppointmentId,
		DueDate:       due,
		Reason:        payload.Reason,
		Status:        domain.FollowUpPending,
		Notes:         payload.Notes,
	}
	if err := GetDB(c).Create(&f).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create follow-up", err.Error())
	}
	publishAudit(c, "create", "follow_up", f.ID, map[string]string{"due_date": f.DueDate})
	return created(c, f)
}

func UpdateFollowUp(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid follow-up ID", nil)
	}
	var f domain.FollowUp
	if err := GetDB(c).First(&f, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "FOLLOWUP_NOT_FOUND", "Follow-up not found", nil)
	}
	var payload followUpUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	updates := make(map[string]interface{})
	if payload.DueDate != nil {
		due, err := common.NormalizeDate(*payload.DueDate)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid due date", *payload.DueDate)
		}
		updates["due_date"] = due
		// rescheduling a missed follow-up reopens it
		if f.Status == domain.FollowUpMissed && payload.Status == nil && due >= common.Today() {
			updates["status"] = domain.FollowUpPending
		}
	}
	if payload.Reason != nil {
		updates["reason"] = *payload.Reason
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.Notes != nil {
		updates["notes"] = *payload.Notes
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&f).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update follow-up", err.Error())
		}
		publishAudit(c, "update", "follow_up", f.ID, updates)
	}
	GetDB(c).First(&f, id)
	return ok(c, f)
}

func DeleteFollowUp(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid follow-up ID", nil)
	}
	res := GetDB(c).Delete(&domain.FollowUp{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete follow-up", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "FOLLOWUP_NOT_FOUND", "Follow-up not found", nil)
	}
	publishAudit(c, "delete", "follow_up", id, nil)
	return c.NoContent(http.StatusNoContent)
}
