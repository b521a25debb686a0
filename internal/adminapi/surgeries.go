package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type surgeryPayload struct {
	PatientId      int64  `json:"patient_id,string" validate:"required"`
	SurgeonId      int64  `json:"surgeon_id,string" validate:"required"`
	Procedure      string `json:"procedure" validate:"required,max=200"`
	OperatingRoom  string `json:"operating_room" validate:"required,max=50"`
	Date           string `json:"date" validate:"required,max=32"`
	StartTime      string `json:"start_time" validate:"required,clock"`
	Duration       int    `json:"duration" validate:"required,min=15,max=1440"`
	AnesthesiaType string `json:"anesthesia_type" validate:"omitempty,max=50"`
	Notes          string `json:"notes" validate:"omitempty,max=2000"`
}

func registerSurgeryRoutes() {
	webserver.ApiGET("/surgeries", ListSurgeries)
	webserver.ApiGET("/surgeries/:id", GetSurgery)
	webserver.ApiPOST("/surgeries", CreateSurgery)
	webserver.ApiPUT("/surgeries/:id", UpdateSurgery)
	webserver.ApiPATCH("/surgeries/:id/status", UpdateSurgeryStatus)
	webserver.ApiDELETE("/surgeries/:id", DeleteSurgery)
}

func ListSurgeries(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Surgery{})
	query = dateRangeScope(c, query, "date")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if room := strings.TrimSpace(c.QueryParam("operating_room")); room != "" {
		query = query.Where("operating_room = ?", room)
	}
	if id := queryID(c, "surgeon_id"); id > 0 {
		query = query.Where("surgeon_id = ?", id)
	}
	if id := queryID(c, "patient_id"); id > 0 {
		query = query.Where("patient_id = ?", id)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query surgeries", err.Error())
	}
	var rows []domain.Surgery
	if err := query.Order("date ASC, start_time ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query surgeries", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func GetSurgery(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid surgery ID", nil)
	}
	var s domain.Surgery
	if err := GetDB(c).First(&s, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "SURGERY_NOT_FOUND", "Surgery not found", nil)
	}
	return ok(c, s)
}

// CreateSurgery books an operating room
// @Summary schedule surgery
// @Tags Surgeries
// @Param surgery body surgeryPayload true "Surgery"
// @Success 201 {object} domain.Surgery
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/surgeries [post]
func CreateSurgery(c echo.Context) error {
	var payload surgeryPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	s := domain.Surgery{ID: common.UUIDint64(), Status: domain.SurgeryScheduled}
	if err := applySurgeryPayload(&s, payload); err != nil {
		return domainError(c, err, "CREATE_FAILED")
	}
	err := GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := checkSurgerySlot(tx, s); err != nil {
			return err
		}
		return tx.Create(&s).Error
	})
	if err != nil {
		return domainError(c, err, "CREATE_FAILED")
	}
	publishAudit(c, "create", "surgery", s.ID, map[string]string{"room": s.OperatingRoom, "date": s.Date, "start_time": s.StartTime})
	return created(c, s)
}

func UpdateSurgery(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid surgery ID", nil)
	}
	var payload surgeryPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	var s domain.Surgery
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&s, id).Error; err != nil {
			return err
		}
		if s.Status != domain.SurgeryScheduled && s.Status != domain.SurgeryPostponed {
			return errors.Wrapf(domain.ErrInvalidTransition, "%s surgery cannot be rescheduled", strings.ToLower(s.Status))
		}
		if err := applySurgeryPayload(&s, payload); err != nil {
			return err
		}
		if err := checkSurgerySlot(tx, s); err != nil {
			return err
		}
		return tx.Save(&s).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "SURGERY_NOT_FOUND", "Surgery not found", nil)
		}
		return domainError(c, err, "UPDATE_FAILED")
	}
	publishAudit(c, "update", "surgery", s.ID, payload)
	return ok(c, s)
}

// UpdateSurgeryStatus moves a surgery along its lifecycle
// @Summary change surgery status
// @Tags Surgeries
// @Param id path string true "Surgery ID"
// @Param body body statusPayload true "Target status"
// @Success 200 {object} domain.Surgery
// @Router /api/v1/surgeries/{id}/status [patch]
func UpdateSurgeryStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid surgery ID", nil)
	}
	var payload statusPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	var s domain.Surgery
	var from string
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&s, id).Error; err != nil {
			return err
		}
		from = s.Status
		if err := s.Transition(strings.ToUpper(payload.Status)); err != nil {
			return err
		}
		// a postponed surgery taking its slot back must still fit
		if s.Status == domain.SurgeryScheduled {
			if err := checkSurgerySlot(tx, s); err != nil {
				return err
			}
		}
		return tx.Model(&domain.Surgery{}).Where("id = ?", s.ID).Update("status", s.Status).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "SURGERY_NOT_FOUND", "Surgery not found", nil)
		}
		return domainError(c, err, "UPDATE_FAILED")
	}
	publishAudit(c, "status", "surgery", s.ID, map[string]string{"from": from, "to": s.Status})
	return ok(c, s)
}

func DeleteSurgery(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid surgery ID", nil)
	}
	var s domain.Surgery
	if err := GetDB(c).First(&s, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "SURGERY_NOT_FOUND", "Surgery not found", nil)
	}
	if s.Status == domain.SurgeryInProgress || s.Status == domain.SurgeryCompleted {
		return fail(c, http.StatusConflict, "SURGERY_IN_USE", "Started surgeries cannot be deleted", s.Status)
	}
	if err := GetDB(c).Delete(&s).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete surgery", err.Error())
	}
	publishAudit(c, "delete", "surgery", id, nil)
	return c.NoContent(http.StatusNoContent)
}

func applySurgeryPayload(s *domain.Surgery, p surgeryPayload) error {
	date, err := common.NormalizeDate(p.Date)
	if err != nil {
		return errors.Wrap(domain.ErrInvalidSchedule, p.Date)
	}
	s.PatientId = p.PatientId
	s.SurgeonId = p.SurgeonId
	s.Procedure = strings.TrimSpace(p.Procedure)
	s.OperatingRoom = strings.ToUpper(strings.TrimSpace(p.OperatingRoom))
	s.Date = date
	s.StartTime = p.StartTime
	s.Duration = p.Duration
	s.AnesthesiaType = p.AnesthesiaType
	s.Notes = p.Notes
	return nil
}

// checkSurgerySlot rejects double booking of the room or the surgeon
func checkSurgerySlot(tx *gorm.DB, s domain.Surgery) error {
	var others []domain.Surgery
	if err := tx.Where("date = ? AND id <> ? AND (operating_room = ? OR surgeon_id = ?)", s.Date, s.ID, s.OperatingRoom, s.SurgeonId).
		Find(&others).Error; err != nil {
		return err
	}
	conflict, err := domain.SurgeryConflict(s, others)
	if err != nil {
		return err
	}
	if conflict != nil {
		return errors.Wrapf(domain.ErrSlotConflict, "%s at %s in %s", conflict.Procedure, conflict.StartTime, conflict.OperatingRoom)
	}
	return nil
}
