package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

func registerQueueRoutes() {
	webserver.ApiGET("/queue", GetQueue)
	webserver.ApiPOST("/queue/call-next", CallNext)
}

// loadQueue builds the ordered queue of a day, optionally for one doctor
func loadQueue(db *gorm.DB, date string, doctorId int64, all bool) ([]domain.QueueEntry, error) {
	query := db.Where("date = ?", date)
	if doctorId > 0 {
		query = query.Where("doctor_id = ?", doctorId)
	}
	var rows []domain.Appointment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return domain.BuildQueue(enrichAppointments(db, rows), all), nil
}

// GetQueue returns the patient queue of a day
// @Summary patient queue
// @Tags Queue
// @Param date query string false "Day, defaults to today"
// @Param doctor_id query string false "Doctor ID"
// @Param all query bool false "Include appointments not checked in"
// @Success 200 {object} Response
// @Router /api/v1/queue [get]
func GetQueue(c echo.Context) error {
	date := common.Today()
	if q := strings.TrimSpace(c.QueryParam("date")); q != "" {
		d, err := common.NormalizeDate(q)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid date", q)
		}
		date = d
	}
	entries, err := loadQueue(GetDB(c), date, queryID(c, "doctor_id"), cast.ToBool(c.QueryParam("all")))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load queue", err.Error())
	}
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return ok(c, map[string]interface{}{
		"date":    date,
		"counts":  counts,
		"entries": entries,
	})
}

// CallNext starts the consultation of the first waiting patient
// @Summary call next patient
// @Tags Queue
// @Param doctor_id query string false "Doctor ID"
// @Success 200 {object} domain.Appointment
// @Router /api/v1/queue/call-next [post]
func CallNext(c echo.Context) error {
	entries, err := loadQueue(GetDB(c), common.Today(), queryID(c, "doctor_id"), false)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load queue", err.Error())
	}
	for _, e := range entries {
		if e.Status != domain.ApptWaiting {
			continue
		}
		appt, err := changeAppointmentStatus(c, e.ID, domain.ApptInProgress, "")
		if err != nil {
			return domainError(c, err, "UPDATE_FAILED")
		}
		e.Appointment = *appt
		return ok(c, e)
	}
	return fail(c, http.StatusNotFound, "QUEUE_EMPTY", "No patient is waiting", nil)
}
