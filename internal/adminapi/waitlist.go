package adminapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var errWaitlistClosed = errors.New("waitlist entry is no longer waiting")

type waitlistPayload struct {
	PatientId     int64  `json:"patient_id,string" validate:"required"`
	DoctorId      int64  `json:"doctor_id,string"`
	PreferredDate string `json:"preferred_date" validate:"omitempty,max=32"`
	Reason        string `json:"reason" validate:"omitempty,max=500"`
	Priority      string `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Notes         string `json:"notes" validate:"omitempty,max=1000"`
}

type waitlistUpdatePayload struct {
	DoctorId      *int64  `json:"doctor_id,string"`
	PreferredDate *string `json:"preferred_date" validate:"omitempty,max=32"`
	Reason        *string `json:"reason" validate:"omitempty,max=500"`
	Priority      *string `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH URGENT"`
	Status        *string `json:"status" validate:"omitempty,oneof=WAITING CANCELLED"`
	Notes         *string `json:"notes" validate:"omitempty,max=1000"`
}

type directionPayload struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

type waitlistSchedulePayload struct {
	DoctorId  int64  `json:"doctor_id,string"`
	Date      string `json:"date" validate:"omitempty,max=32"`
	StartTime string `json:"start_time" validate:"required,clock"`
	Duration  int    `json:"duration" validate:"omitempty,min=5,max=480"`
	Type      string `json:"type" validate:"omitempty,oneof=CONSULTATION FOLLOW_UP EMERGENCY PROCEDURE"`
}

func registerWaitlistRoutes() {
	webserver.ApiGET("/waitlist", ListWaitlist)
	webserver.ApiGET("/waitlist/:id", GetWaitlistEntry)
	webserver.ApiPOST("/waitlist", CreateWaitlistEntry)
	webserver.ApiPUT("/waitlist/:id", UpdateWaitlistEntry)
	webserver.ApiDELETE("/waitlist/:id", DeleteWaitlistEntry)
	webserver.ApiPOST("/waitlist/:id/priority", ChangeWaitlistPriority)
	webserver.ApiPOST("/waitlist/:id/move", MoveWaitlistEntry)
	webserver.ApiPOST("/waitlist/:id/schedule", ScheduleWaitlistEntry)
}

// sortWaitlist orders by priority, most urgent first, then position
func sortWaitlist(entries []domain.WaitlistEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := domain.PriorityRank(entries[i].Priority), domain.PriorityRank(entries[j].Priority)
		if ri != rj {
			return ri > rj
		}
		if entries[i].Position != entries[j].Position {
			return entries[i].Position < entries[j].Position
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// ListWaitlist lists waitlist entries in priority order
// @Summary list waitlist
// @Tags Waitlist
// @Param status query string false "Status, defaults to WAITING"
// @Param doctor_id query string false "Doctor ID"
// @Success 200 {object} ListResponse
// @Router /api/v1/waitlist [get]
func ListWaitlist(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.WaitlistEntry{})
	status := strings.TrimSpace(c.QueryParam("status"))
	if status == "" {
		status = domain.WaitlistWaiting
	}
	if status != "ALL" {
		query = query.Where("status = ?", status)
	}
	if id := queryID(c, "doctor_id"); id > 0 {
		query = query.Where("doctor_id = ?", id)
	}
	if p := strings.TrimSpace(c.QueryParam("priority")); p != "" {
		query = query.Where("priority = ?", p)
	}
	var entries []domain.WaitlistEntry
	if err := query.Find(&entries).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query waitlist", err.Error())
	}
	sortWaitlist(entries)

	total := int64(len(entries))
	start := (page - 1) * pageSize
	if start > len(entries) {
		start = len(entries)
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return paged(c, entries[start:end], total, page, pageSize)
}

func GetWaitlistEntry(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid waitlist ID", nil)
	}
	var entry domain.WaitlistEntry
	if err := GetDB(c).First(&entry, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "WAITLIST_NOT_FOUND", "Waitlist entry not found", nil)
	}
	return ok(c, entry)
}

// CreateWaitlistEntry adds a patient at the end of the waitlist
// @Summary add to waitlist
// @Tags Waitlist
// @Param entry body waitlistPayload true "Entry"
// @Success 201 {object} domain.WaitlistEntry
// @Router /api/v1/waitlist [post]
func CreateWaitlistEntry(c echo.Context) error {
	var payload waitlistPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, payload.PatientId).Error; err != nil {
		return fail(c, http.StatusUnprocessableEntity, "PATIENT_UNAVAILABLE", "Patient not found", nil)
	}
	preferred := ""
	if payload.PreferredDate != "" {
		d, err := common.NormalizeDate(payload.PreferredDate)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid preferred date", payload.PreferredDate)
		}
		preferred = d
	}
	entry := domain.WaitlistEntry{
		ID:            common.UUIDint64(),
		PatientId:     payload.PatientId,
		DoctorId:      payload.DoctorId,
		PreferredDate: preferred,
		Reason:        payload.Reason,
		Priority:      common.If(payload.Priority == "", domain.PriorityNormal, payload.Priority).(string),
		Status:        domain.WaitlistWaiting,
		Notes:         payload.Notes,
	}
	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		var last struct{ Max int }
		if err := tx.Model(&domain.WaitlistEntry{}).Select("COALESCE(MAX(position), 0) AS max").Scan(&last).Error; err != nil {
			return err
		}
		entry.Position = last.Max + 1
		return tx.Create(&entry).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to add waitlist entry", err.Error())
	}
	publishAudit(c, "create", "waitlist", entry.ID, map[string]string{"priority": entry.Priority})
	return created(c, entry)
}

func UpdateWaitlistEntry(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid waitlist ID", nil)
	}
	var entry domain.WaitlistEntry
	if err := GetDB(c).First(&entry, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "WAITLIST_NOT_FOUND", "Waitlist entry not found", nil)
	}
	var payload waitlistUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if entry.Status == domain.WaitlistScheduled {
		return fail(c, http.StatusConflict, "WAITLIST_CLOSED", "Scheduled entries cannot be changed", nil)
	}
	updates := make(map[string]interface{})
	if payload.DoctorId != nil {
		updates["doctor_id"] = *payload.DoctorId
	}
	if payload.PreferredDate != nil {
		d := ""
		if *payload.PreferredDate != "" {
			if d, err = common.NormalizeDate(*payload.PreferredDate); err != nil {
				return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid preferred date", *payload.PreferredDate)
			}
		}
		updates["preferred_date"] = d
	}
	if payload.Reason != nil {
		updates["reason"] = *payload.Reason
	}
	if payload.Priority != nil {
		updates["priority"] = *payload.Priority
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.Notes != nil {
		updates["notes"] = *payload.Notes
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&entry).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update waitlist entry", err.Error())
		}
		publishAudit(c, "update", "waitlist", entry.ID, updates)
	}
	GetDB(c).First(&entry, id)
	return ok(c, entry)
}

func DeleteWaitlistEntry(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid waitlist ID", nil)
	}
	res := GetDB(c).Delete(&domain.WaitlistEntry{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete waitlist entry", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "WAITLIST_NOT_FOUND", "Waitlist entry not found", nil)
	}
	publishAudit(c, "delete", "waitlist", id, nil)
	return c.NoContent(http.StatusNoContent)
}

// ChangeWaitlistPriority raises or lowers the priority by one level
// @Summary change waitlist priority
// @Tags Waitlist
// @Param id path string true "Entry ID"
// @Param body body directionPayload true "up or down"
// @Success 200 {object} domain.WaitlistEntry
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/waitlist/{id}/priority [post]
func ChangeWaitlistPriority(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid waitlist ID", nil)
	}
	var payload directionPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	var entry domain.WaitlistEntry
	if err := GetDB(c).First(&entry, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "WAITLIST_NOT_FOUND", "Waitlist entry not found", nil)
	}
	if entry.Status != domain.WaitlistWaiting {
		return fail(c, http.StatusBadRequest, "WAITLIST_CLOSED", "Only waiting entries can change priority", entry.Status)
	}
	from := entry.Priority
	next, err := domain.ShiftPriority(entry.Priority, payload.Direction)
	if err != nil {
		return domainError(c, err, "UPDATE_FAILED")
	}
	if err := GetDB(c).Model(&entry).Update("priority", next).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update priority", err.Error())
	}
	entry.Priority = next
	publishAudit(c, "priority", "waitlist", entry.ID, map[string]string{"from": from, "to": next})
	return ok(c, entry)
}

// MoveWaitlistEntry swaps the entry with its neighbour of the same priority
// @Summary move waitlist entry
// @Tags Waitlist
// @Param id path string true "Entry ID"
// @Param body body directionPayload true "up or down"
// @Success 200 {object} Response
// @Router /api/v1/waitlist/{id}/move [post]
func MoveWaitlistEntry(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid waitlist ID", nil)
	}
	var payload directionPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	var group []domain.WaitlistEntry
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		var entry domain.WaitlistEntry
		if err := tx.First(&entry, id).Error; err != nil {
			return err
		}
		if entry.Status != domain.WaitlistWaiting {
			return errWaitlistClosed
		}
		if err := tx.Where("status = ? AND priority = ?", domain.WaitlistWaiting, entry.Priority).Find(&group).Error; err != nil {
			return err
		}
		sortWaitlist(group)
		idx := -1
		for i := range group {
			if group[i].ID == entry.ID {
				idx = i
			}
		}
		target, err := domain.SwapNeighbour(group, idx, payload.Direction)
		if err != nil {
			return err
		}
		group[idx], group[target] = group[target], group[idx]
		base := group[0].Position
		for _, g := range group[1:] {
			if g.Position < base {
				base = g.Position
			}
		}
		for i := range group {
			group[i].Position = base + i
			if err := tx.Model(&domain.WaitlistEntry{}).Where("id = ?", group[i].ID).Update("position", group[i].Position).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		switch {
		case isNotFound(err):
			return fail(c, http.StatusNotFound, "WAITLIST_NOT_FOUND", "Waitlist entry not found", nil)
		case errors.Is(err, errWaitlistClosed):
			return fail(c, http.StatusConflict, "WAITLIST_CLOSED", err.Error(), nil)
		}
		return fail(c, http.StatusConflict, "MOVE_NOT_POSSIBLE", err.Error(), nil)
	}
	publishAudit(c, "move", "waitlist", id, payload.Direction)
	return ok(c, group)
}

// ScheduleWaitlistEntry books an appointment for a waiting patient
// @Summary schedule waitlist entry
// @Tags Waitlist
// @Param id path string true "Entry ID"
// @Param body body waitlistSchedulePayload true "Booking"
// @Success 201 {object} Response
// @Router /api/v1/waitlist/{id}/schedule [post]
func ScheduleWaitlistEntry(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid waitlist ID", nil)
	}
	var payload waitlistSchedulePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	var entry domain.WaitlistEntry
	var appt domain.Appointment
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&entry, id).Error; err != nil {
			return err
		}
		if entry.Status != domain.WaitlistWaiting {
			return errWaitlistClosed
		}
		date := common.If(payload.Date == "", entry.PreferredDate, payload.Date).(string)
		date, err := common.NormalizeDate(date)
		if err != nil {
			return errors.Wrap(domain.ErrInvalidSchedule, "appointment date required")
		}
		doctorId := payload.DoctorId
		if doctorId == 0 {
			doctorId = entry.DoctorId
		}
		appt = domain.Appointment{
			ID:        common.UUIDint64(),
			PatientId: entry.PatientId,
			DoctorId:  doctorId,
			Date:      date,
			StartTime: payload.StartTime,
			Duration:  payload.Duration,
			Type:      common.If(payload.Type == "", domain.ApptTypeConsultation, payload.Type).(string),
			Reason:    entry.Reason,
			Status:    domain.ApptScheduled,
		}
		if appt.Duration == 0 {
			appt.Duration = GetAppContext(c).ConfigMgr().Appointment().SlotMinutes
		}
		if err := checkBookable(tx, appt); err != nil {
			return err
		}
		if err := tx.Create(&appt).Error; err != nil {
			return err
		}
		entry.Status = domain.WaitlistScheduled
		entry.AppointmentId = appt.ID
		return tx.Model(&domain.WaitlistEntry{}).Where("id = ?", entry.ID).
			Updates(map[string]interface{}{"status": entry.Status, "appointment_id": appt.ID}).Error
	})
	if err != nil {
		switch {
		case isNotFound(err):
			return fail(c, http.StatusNotFound, "WAITLIST_NOT_FOUND", "Waitlist entry not found", nil)
		case errors.Is(err, errWaitlistClosed):
			return fail(c, http.StatusConflict, "WAITLIST_CLOSED", err.Error(), nil)
		}
		return bookingError(c, err, "SCHEDULE_FAILED")
	}
	publishAudit(c, "schedule", "waitlist", entry.ID, map[string]string{"date": appt.Date, "start_time": appt.StartTime})
	return created(c, map[string]interface{}{
		"entry":       entry,
		"appointment": appt,
	})
}
