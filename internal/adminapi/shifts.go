package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"gorm.io/gorm"
)

type shiftPayload struct {
	StaffName  string `json:"staff_name" validate:"required,max=100"`
	OperatorId int64  `json:"operator_id,string"`
	DoctorId   int64  `json:"doctor_id,string"`
	Department string `json:"department" validate:"omitempty,max=100"`
	Role       string `json:"role" validate:"omitempty,max=100"`
	Date       string `json:"date" validate:"required,max=32"`
	ShiftType  string `json:"shift_type" validate:"required,oneof=MORNING EVENING NIGHT ON_CALL"`
	StartTime  string `json:"start_time" validate:"required,clock"`
	EndTime    string `json:"end_time" validate:"required,clock"`
	Notes      string `json:"notes" validate:"omitempty,max=1000"`
}

type copyWeekPayload struct {
	WeekStart string `json:"week_start" validate:"required,max=32"`
}

func registerShiftRoutes() {
	webserver.ApiGET("/shifts", ListShifts)
	webserver.ApiGET("/shifts/calendar", ShiftCalendar)
	webserver.ApiPOST("/shifts", CreateShift)
	webserver.ApiPOST("/shifts/copy-week", CopyPreviousWeek)
	webserver.ApiPUT("/shifts/:id", UpdateShift)
	webserver.ApiDELETE("/shifts/:id", DeleteShift)
}

// ListShifts lists roster entries
// @Summary list shifts
// @Tags Shifts
// @Param from query string false "First day"
// @Param to query string false "Last day"
// @Param department query string false "Department"
// @Success 200 {object} ListResponse
// @Router /api/v1/shifts [get]
func ListShifts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Shift{})
	query = dateRangeScope(c, query, "date")
	query = searchScope(query, c.QueryParam("q"), "staff_name", "role")
	if dept := strings.TrimSpace(c.QueryParam("department")); dept != "" {
		query = query.Where("department = ?", dept)
	}
	if st := strings.TrimSpace(c.QueryParam("shift_type")); st != "" {
		query = query.Where("shift_type = ?", st)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query shifts", err.Error())
	}
	var shifts []domain.Shift
	if err := query.Order("date ASC, start_time ASC, staff_name ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&shifts).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query shifts", err.Error())
	}
	return paged(c, shifts, total, page, pageSize)
}

func CreateShift(c echo.Context) error {
	var payload shiftPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	date, err := common.NormalizeDate(payload.Date)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid shift date", payload.Date)
	}
	shift := domain.Shift{
		ID:         common.UUIDint64(),
		StaffName:  common.TitleName(payload.StaffName),
		OperatorId: payload.OperatorId,
		DoctorId:   payload.DoctorId,
		Department: payload.Department,
		Role:       payload.Role,
		Date:       date,
		ShiftType:  payload.ShiftType,
		StartTime:  payload.StartTime,
		EndTime:    payload.EndTime,
		Notes:      payload.Notes,
	}
	var dup int64
	GetDB(c).Model(&domain.Shift{}).
		Where("staff_name = ? AND date = ? AND shift_type = ? AND start_time = ?", shift.StaffName, shift.Date, shift.ShiftType, shift.StartTime).
		Count(&dup)
	if dup > 0 {
		return fail(c, http.StatusConflict, "SHIFT_EXISTS", "The same shift is already rostered", nil)
	}
	if err := GetDB(c).Create(&shift).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create shift", err.Error())
	}
	publishAudit(c, "create", "shift", shift.ID, map[string]string{"staff": shift.StaffName, "date": shift.Date})
	return created(c, shift)
}

func UpdateShift(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid shift ID", nil)
	}
	var shift domain.Shift
	if err := GetDB(c).First(&shift, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "SHIFT_NOT_FOUND", "Shift not found", nil)
	}
	var payload shiftPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	date, err := common.NormalizeDate(payload.Date)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid shift date", payload.Date)
	}
	shift.StaffName = common.TitleName(payload.StaffName)
	shift.OperatorId = payload.OperatorId
	shift.DoctorId = payload.DoctorId
	shift.Department = payload.Department
	shift.Role = payload.Role
	shift.Date = date
	shift.ShiftType = payload.ShiftType
	shift.StartTime = payload.StartTime
	shift.EndTime = payload.EndTime
	shift.Notes = payload.Notes
	if err := GetDB(c).Save(&shift).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update shift", err.Error())
	}
	publishAudit(c, "update", "shift", shift.ID, payload)
	return ok(c, shift)
}

func DeleteShift(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid shift ID", nil)
	}
	res := GetDB(c).Delete(&domain.Shift{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete shift", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "SHIFT_NOT_FOUND", "Shift not found", nil)
	}
	publishAudit(c, "delete", "shift", id, nil)
	return c.NoContent(http.StatusNoContent)
}

// CopyPreviousWeek duplicates the roster of the seven days before
// week_start into the week starting at week_start
// @Summary copy previous week
// @Tags Shifts
// @Param body body copyWeekPayload true "Target week start"
// @Success 201 {object} Response
// @Router /api/v1/shifts/copy-week [post]
func CopyPreviousWeek(c echo.Context) error {
	var payload copyWeekPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	weekStart, err := common.NormalizeDate(payload.WeekStart)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid week start", payload.WeekStart)
	}
	from, to, err := domain.WeekWindow(weekStart)
	if err != nil {
		return domainError(c, err, "COPY_FAILED")
	}
	weekEnd, _ := common.AddDays(weekStart, 7)

	var copies []domain.Shift
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		var source, existing []domain.Shift
		if err := tx.Where("date >= ? AND date < ?", from, to).Order("date, start_time").Find(&source).Error; err != nil {
			return err
		}
		if err := tx.Where("date >= ? AND date < ?", weekStart, weekEnd).Find(&existing).Error; err != nil {
			return err
		}
		copies, err = domain.CopyWeek(source, existing)
		if err != nil {
			return err
		}
		if len(copies) == 0 {
			return nil
		}
		now := time.Now()
		for i := range copies {
			copies[i].ID = common.UUIDint64()
			copies[i].CreatedAt = now
			copies[i].UpdatedAt = now
		}
		return tx.Create(&copies).Error
	})
	if err != nil {
		return domainError(c, err, "COPY_FAILED")
	}
	publishAudit(c, "copy_week", "shift", 0, map[string]interface{}{"week_start": weekStart, "created": len(copies)})
	return created(c, copies)
}

// ShiftCalendar lays the roster of a month out as a calendar grid
// @Summary shift calendar
// @Tags Shifts
// @Param month query string false "YYYY-MM, defaults to the current month"
// @Success 200 {object} Response
// @Router /api/v1/shifts/calendar [get]
func ShiftCalendar(c echo.Context) error {
	month := strings.TrimSpace(c.QueryParam("month"))
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	first, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_MONTH", "Month must be YYYY-MM", month)
	}
	var shifts []domain.Shift
	err = GetDB(c).
		Where("date >= ? AND date < ?", first.AddDate(0, 0, -7).Format(common.DateLayout), first.AddDate(0, 0, 43).Format(common.DateLayout)).
		Order("start_time ASC, staff_name ASC").
		Find(&shifts).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query shifts", err.Error())
	}
	grid, err := domain.MonthGrid(month, shifts)
	if err != nil {
		return domainError(c, err, "CALENDAR_FAILED")
	}
	return ok(c, map[string]interface{}{
		"month": month,
		"weeks": grid,
	})
}
