package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var weekdays = []string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}

type doctorPayload struct {
	Name            string          `json:"name" validate:"required,max=100"`
	Specialization  string          `json:"specialization" validate:"required,max=100"`
	Department      string          `json:"department" validate:"omitempty,max=100"`
	Qualification   string          `json:"qualification" validate:"omitempty,max=200"`
	Phone           string          `json:"phone" validate:"omitempty,max=32"`
	Email           string          `json:"email" validate:"omitempty,email"`
	ConsultationFee decimal.Decimal `json:"consultation_fee"`
	WorkingDays     string          `json:"working_days" validate:"omitempty,max=64"`
	Status          string          `json:"status" validate:"omitempty,oneof=ACTIVE ON_LEAVE INACTIVE"`
	Remark          string          `json:"remark" validate:"omitempty,max=1000"`
}

type doctorUpdatePayload struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Specialization  *string          `json:"specialization" validate:"omitempty,min=1,max=100"`
	Department      *string          `json:"department" validate:"omitempty,max=100"`
	Qualification   *string          `json:"qualification" validate:"omitempty,max=200"`
	Phone           *string          `json:"phone" validate:"omitempty,max=32"`
	Email           *string          `json:"email" validate:"omitempty,email"`
	ConsultationFee *decimal.Decimal `json:"consultation_fee"`
	WorkingDays     *string          `json:"working_days" validate:"omitempty,max=64"`
	Status          *string          `json:"status" validate:"omitempty,oneof=ACTIVE ON_LEAVE INACTIVE"`
	Remark          *string          `json:"remark" validate:"omitempty,max=1000"`
}

func registerDoctorRoutes() {
	webserver.ApiGET("/doctors", ListDoctors)
	webserver.ApiGET("/doctors/:id", GetDoctor)
	webserver.ApiGET("/doctors/:id/slots", DoctorSlots)
	webserver.ApiPOST("/doctors", CreateDoctor)
	webserver.ApiPUT("/doctors/:id", UpdateDoctor)
	webserver.ApiDELETE("/doctors/:id", DeleteDoctor)
}

// ListDoctors lists doctors
// @Summary list doctors
// @Tags Doctors
// @Param q query string false "Name or specialization"
// @Param status query string false "Doctor status"
// @Success 200 {object} ListResponse
// @Router /api/v1/doctors [get]
func ListDoctors(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Doctor{})
	query = searchScope(query, c.QueryParam("q"), "name", "specialization", "department")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if dept := strings.TrimSpace(c.QueryParam("department")); dept != "" {
		query = query.Where("department = ?", dept)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query doctors", err.Error())
	}
	var doctors []domain.Doctor
	query = sortScope(c, query, []string{"name", "specialization", "department", "created_at"}, "name ASC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&doctors).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query doctors", err.Error())
	}
	return paged(c, doctors, total, page, pageSize)
}

func GetDoctor(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid doctor ID", nil)
	}
	var doctor domain.Doctor
	if err := GetDB(c).First(&doctor, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCTOR_NOT_FOUND", "Doctor not found", nil)
	}
	return ok(c, doctor)
}

// CreateDoctor adds a doctor
// @Summary create doctor
// @Tags Doctors
// @Param doctor body doctorPayload true "Doctor"
// @Success 201 {object} domain.Doctor
// @Router /api/v1/doctors [post]
func CreateDoctor(c echo.Context) error {
	var payload doctorPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if payload.ConsultationFee.IsNegative() {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Consultation fee cannot be negative", nil)
	}
	days, err := normalizeWorkingDays(payload.WorkingDays)
	if err != nil {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}
	doctor := domain.Doctor{
		ID:              common.UUIDint64(),
		Name:            common.TitleName(payload.Name),
		Specialization:  strings.TrimSpace(payload.Specialization),
		Department:      strings.TrimSpace(payload.Department),
		Qualification:   payload.Qualification,
		Phone:           payload.Phone,
		Email:           strings.ToLower(payload.Email),
		ConsultationFee: common.Round2(payload.ConsultationFee),
		WorkingDays:     days,
		Status:          common.If(payload.Status == "", domain.DoctorActive, payload.Status).(string),
		Remark:          payload.Remark,
	}
	if err := GetDB(c).Create(&doctor).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create doctor", err.Error())
	}
	publishAudit(c, "create", "doctor", doctor.ID, doctor.Name)
	return created(c, doctor)
}

func UpdateDoctor(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid doctor ID", nil)
	}
	var doctor domain.Doctor
	if err := GetDB(c).First(&doctor, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCTOR_NOT_FOUND", "Doctor not found", nil)
	}
	var payload doctorUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	updates := make(map[string]interface{})
	if payload.Name != nil {
		updates["name"] = common.TitleName(*payload.Name)
	}
	if payload.Specialization != nil {
		updates["specialization"] = strings.TrimSpace(*payload.Specialization)
	}
	if payload.Department != nil {
		updates["department"] = strings.TrimSpace(*payload.Department)
	}
	if payload.Qualification != nil {
		updates["qualification"] = *payload.Qualification
	}
	if payload.Phone != nil {
		updates["phone"] = *payload.Phone
	}
	if payload.Email != nil {
		updates["email"] = strings.ToLower(*payload.Email)
	}
	if payload.ConsultationFee != nil {
		if payload.ConsultationFee.IsNegative() {
			return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Consultation fee cannot be negative", nil)
		}
		updates["consultation_fee"] = common.Round2(*payload.ConsultationFee)
	}
	if payload.WorkingDays != nil {
		days, err := normalizeWorkingDays(*payload.WorkingDays)
		if err != nil {
			return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		}
		updates["working_days"] = days
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.Remark != nil {
		updates["remark"] = *payload.Remark
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&doctor).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update doctor", err.Error())
		}
		publishAudit(c, "update", "doctor", doctor.ID, updates)
	}
	GetDB(c).First(&doctor, id)
	return ok(c, doctor)
}

func DeleteDoctor(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid doctor ID", nil)
	}
	var doctor domain.Doctor
	if err := GetDB(c).First(&doctor, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCTOR_NOT_FOUND", "Doctor not found", nil)
	}
	var open int64
	GetDB(c).Model(&domain.Appointment{}).
		Where("doctor_id = ? AND status IN ?", id, []string{domain.ApptScheduled, domain.ApptWaiting, domain.ApptInProgress}).
		Count(&open)
	if open > 0 {
		return fail(c, http.StatusConflict, "DOCTOR_HAS_APPOINTMENTS", "Doctor has open appointments", open)
	}
	if err := GetDB(c).Delete(&doctor).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete doctor", err.Error())
	}
	publishAudit(c, "delete", "doctor", doctor.ID, doctor.Name)
	return c.NoContent(http.StatusNoContent)
}

// DoctorSlots lists the consultation slots of a day
// @Summary doctor free slots
// @Tags Doctors
// @Param id path string true "Doctor ID"
// @Param date query string false "Day, defaults to today"
// @Success 200 {object} Response
// @Router /api/v1/doctors/{id}/slots [get]
func DoctorSlots(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid doctor ID", nil)
	}
	var doctor domain.Doctor
	if err := GetDB(c).First(&doctor, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "DOCTOR_NOT_FOUND", "Doctor not found", nil)
	}
	date := common.Today()
	if q := strings.TrimSpace(c.QueryParam("date")); q != "" {
		if date, err = common.NormalizeDate(q); err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid date", q)
		}
	}
	day, _ := common.ParseDate(date)

	result := map[string]interface{}{
		"doctor_id": doctor.ID,
		"date":      date,
		"working":   doctor.Status == domain.DoctorActive && doctor.WorksOn(day),
		"slots":     []domain.Slot{},
	}
	if !result["working"].(bool) {
		return ok(c, result)
	}

	settings := GetAppContext(c).ConfigMgr().Appointment()
	start, err := common.ParseClock(settings.WorkStart)
	if err != nil {
		start = 9 * 60
	}
	end, err := common.ParseClock(settings.WorkEnd)
	if err != nil {
		end = 17 * 60
	}
	var booked []domain.Appointment
	GetDB(c).Where("doctor_id = ? AND date = ?", id, date).Find(&booked)
	result["slots"] = domain.BuildSlots(start, end, settings.SlotMinutes, booked)
	return ok(c, result)
}

func normalizeWorkingDays(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	days := make([]string, 0, 7)
	for _, d := range strings.Split(s, ",") {
		d = strings.ToUpper(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		d = common.Truncate(d, 3)
		if !common.InSlice(d, weekdays) {
			return "", errors.Errorf("unknown working day %q", d)
		}
		if !common.InSlice(d, days) {
			days = append(days, d)
		}
	}
	return strings.Join(days, ","), nil
}
